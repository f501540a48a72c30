package wa

import (
	"context"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/pcarvalho/wacrm/internal/bus"
	"github.com/pcarvalho/wacrm/internal/keys"
	"github.com/pcarvalho/wacrm/internal/msgstore"
	"github.com/pcarvalho/wacrm/internal/reconcile"
	"github.com/pcarvalho/wacrm/internal/status"
)

// EventHandler translates whatsmeow events into bus payloads and drives
// the state machine. It never touches the stores directly; the
// reconciliation engine subscribes to the bus independently.
type EventHandler struct {
	adapter *Adapter
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
}

// NewEventHandler builds the handler.
func NewEventHandler(adapter *Adapter, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{adapter: adapter, bus: b, machine: machine, logger: logger}
}

// Handle is registered as the whatsmeow event handler.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Receipt:
		h.handleReceipt(evt)
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.PushName:
		h.handleContactChange(evt.JID, evt.NewPushName, "")
	case *events.BusinessName:
		h.handleContactChange(evt.JID, "", evt.NewBusinessName)
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		current := h.machine.Current()
		if current == status.AuthRequired || current == status.Reconnecting {
			_ = h.machine.Transition(status.Connecting)
		}
		_ = h.machine.Transition(status.Syncing)
		h.bus.Emit(bus.KindConnected, nil)
		go h.publishContacts()
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		_ = h.machine.Transition(status.Reconnecting)
		h.bus.Emit(bus.KindDisconnected, nil)
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		_ = h.machine.Transition(status.AuthRequired)
		h.bus.Emit(bus.KindLoggedOut, evt.Reason.String())
	}
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	if h.machine.Current() == status.Syncing {
		_ = h.machine.Transition(status.Ready)
	}
	h.bus.Emit(bus.KindMessage, parseLiveMessage(evt))
}

// handleReceipt fans a receipt out into one status patch per acknowledged
// message id. Receipt types with no conversation-level meaning (retries,
// server errors) are dropped.
func (h *EventHandler) handleReceipt(evt *events.Receipt) {
	newStatus := receiptStatus(evt.Type)
	if newStatus == "" {
		return
	}
	key := evt.Chat.ToNonAD().String()
	for _, id := range evt.MessageIDs {
		st := newStatus
		h.bus.Emit(bus.KindMessageUpdate, &reconcile.MessageUpdate{
			Key:   key,
			MsgID: string(id),
			Patch: msgstore.Patch{Status: &st},
		})
	}
}

func receiptStatus(t types.ReceiptType) string {
	switch t {
	case types.ReceiptTypeDelivered:
		return "delivered"
	case types.ReceiptTypeRead, types.ReceiptTypeReadSelf:
		return "read"
	case types.ReceiptTypePlayed:
		return "played"
	default:
		return ""
	}
}

// handleContactChange publishes one incremental contact record so name and
// identity evidence keeps flowing between full syncs. The device-store
// sibling is attached when a pairing exists.
func (h *EventHandler) handleContactChange(jid types.JID, pushName, businessName string) {
	normalized := jid.ToNonAD()
	rec := reconcile.ContactRecord{
		Key:          normalized.String(),
		PushName:     pushName,
		BusinessName: businessName,
	}
	switch sibling := h.adapter.resolveSibling(context.Background(), normalized); {
	case keys.IsLID(sibling):
		rec.LID = sibling
	case keys.IsPhone(sibling):
		rec.Phone = sibling
	}
	h.bus.Emit(bus.KindContactsUpdate, []reconcile.ContactRecord{rec})
}

// handleHistorySync builds one backfill batch per sync installment. Chat
// siblings come from the device store's LID pairings, so metadata learned
// here can resolve the batch's own messages.
func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}
	ctx := context.Background()

	batch := &reconcile.HistoryBatch{}
	for _, conv := range data.GetConversations() {
		chatKey := conv.GetID()
		jid, err := types.ParseJID(chatKey)
		if err != nil {
			h.logger.Debug("skipping conversation with bad id", zap.String("id", chatKey))
			continue
		}

		batch.Chats = append(batch.Chats, reconcile.ChatMetadata{
			Key:     chatKey,
			Sibling: h.adapter.resolveSibling(ctx, jid),
			Name:    conv.GetName(),
		})

		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			sender := wmsg.GetKey().GetParticipant()
			if sender == "" {
				sender = chatKey
			}
			batch.Messages = append(batch.Messages, reconcile.InboundMessage{
				Key: chatKey,
				Record: msgstore.Record{
					MsgID:      wmsg.GetKey().GetID(),
					SenderKey:  sender,
					SenderName: wmsg.GetPushName(),
					FromMe:     wmsg.GetKey().GetFromMe(),
					Kind:       detectKind(wmsg.GetMessage()),
					Body:       extractTextBody(wmsg.GetMessage()),
					Status:     "received",
					Timestamp:  int64(wmsg.GetMessageTimestamp()) * 1000,
				},
			})
		}
	}

	if len(batch.Chats) > 0 || len(batch.Messages) > 0 {
		h.logger.Info("history sync received",
			zap.Int("chats", len(batch.Chats)),
			zap.Int("messages", len(batch.Messages)))
		h.bus.Emit(bus.KindHistoryBatch, batch)
	}
}

func (h *EventHandler) publishContacts() {
	if h.adapter == nil {
		return
	}
	records := h.adapter.Contacts(context.Background())
	if len(records) == 0 {
		return
	}
	h.logger.Info("device store contacts synced", zap.Int("contacts", len(records)))
	h.bus.Emit(bus.KindContactsSynced, records)
}
