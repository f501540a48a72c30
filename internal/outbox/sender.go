package outbox

import (
	"context"
	"time"

	"github.com/pcarvalho/wacrm/internal/bus"
	"github.com/pcarvalho/wacrm/internal/msgstore"
	"go.uber.org/zap"
)

// TextSender delivers one text message and returns the server-assigned
// message id. Satisfied by *wa.Adapter.
type TextSender interface {
	SendText(ctx context.Context, key, text string) (serverMsgID string, err error)
}

// Sender drains the queue and sends entries through the transport. Each
// entry is mirrored into the message store optimistically so the
// conversation shows the outgoing text before the ack lands.
type Sender struct {
	queue  *Queue
	store  *msgstore.Store
	sender TextSender
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc

	interval time.Duration
}

// NewSender wires the drain loop. Logger may be nil.
func NewSender(queue *Queue, store *msgstore.Store, sender TextSender, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		queue:    queue,
		store:    store,
		sender:   sender,
		bus:      b,
		logger:   logger,
		interval: 500 * time.Millisecond,
	}
}

// Start begins polling for queued entries.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the drain loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Drain sends every queued entry once. Exported so tests and the final
// shutdown pass can flush without the ticker.
func (s *Sender) Drain(ctx context.Context) {
	for _, entry := range s.queue.TakePending() {
		s.sendOne(ctx, entry)
	}
}

func (s *Sender) sendOne(ctx context.Context, entry Entry) {
	now := time.Now().UnixMilli()
	s.mirror(entry, "sending", now)

	serverMsgID, err := s.sender.SendText(ctx, entry.Key, entry.Body)
	if err != nil {
		s.logger.Error("send failed",
			zap.String("client_msg_id", entry.ClientMsgID),
			zap.String("key", entry.Key),
			zap.Error(err))
		_ = s.queue.MarkFailed(entry.ClientMsgID, err.Error())
		s.mirror(entry, "failed", now)
		s.bus.Emit(bus.KindSendFailed, map[string]string{
			"client_msg_id": entry.ClientMsgID,
			"error":         err.Error(),
		})
		return
	}

	_ = s.queue.MarkSent(entry.ClientMsgID, serverMsgID)
	s.mirror(entry, "sent", now)
	s.logger.Info("message sent",
		zap.String("client_msg_id", entry.ClientMsgID),
		zap.String("server_msg_id", serverMsgID))
	s.bus.Emit(bus.KindSendAck, map[string]string{
		"client_msg_id": entry.ClientMsgID,
		"server_msg_id": serverMsgID,
	})
}

func (s *Sender) mirror(entry Entry, status string, ts int64) {
	s.store.Upsert(entry.Key, &msgstore.Record{
		MsgID:     entry.ClientMsgID,
		Body:      entry.Body,
		Kind:      "text",
		FromMe:    true,
		Status:    status,
		Timestamp: ts,
	})
	s.bus.Emit(bus.KindMessageUpserted, map[string]string{
		"key": entry.Key, "msg_id": entry.ClientMsgID,
	})
}
