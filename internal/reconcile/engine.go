// Package reconcile consumes transport events and keeps the identity map
// and message store consistent with each other.
//
// Per conversation key the engine implements a two-state machine: messages
// live at the LID key until a mapping is learned (from any evidence source),
// at which point the history migrates to the phone key and stays there.
// There is no reverse transition.
package reconcile

import (
	"context"

	"github.com/pcarvalho/wacrm/internal/autoreply"
	"github.com/pcarvalho/wacrm/internal/bus"
	"github.com/pcarvalho/wacrm/internal/contacts"
	"github.com/pcarvalho/wacrm/internal/identity"
	"github.com/pcarvalho/wacrm/internal/metrics"
	"github.com/pcarvalho/wacrm/internal/msgstore"
	"go.uber.org/zap"
)

// Engine serializes all identity/store mutations on one goroutine fed by
// the bus. Malformed events degrade to logged no-ops; the engine never
// stops on bad input.
type Engine struct {
	ids    *identity.Map
	store  *msgstore.Store
	names  *contacts.Directory
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewEngine wires the engine. Logger may be nil.
func NewEngine(ids *identity.Map, store *msgstore.Store, names *contacts.Directory, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{ids: ids, store: store, names: names, bus: b, logger: logger}
}

// Start subscribes to transport events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("wa.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindMessage:
		if msg, ok := evt.Payload.(*InboundMessage); ok {
			e.HandleMessage(msg)
			return
		}
	case bus.KindMessageUpdate:
		if upd, ok := evt.Payload.(*MessageUpdate); ok {
			e.HandleMessageUpdate(upd)
			return
		}
	case bus.KindHistoryBatch:
		if batch, ok := evt.Payload.(*HistoryBatch); ok {
			e.HandleHistoryBatch(batch)
			return
		}
	case bus.KindContactsSynced, bus.KindContactsUpdate:
		if list, ok := evt.Payload.([]ContactRecord); ok {
			e.HandleContacts(list)
			return
		}
	case bus.KindPhoneShare:
		if share, ok := evt.Payload.(PhoneShare); ok {
			e.HandlePhoneShare(share)
			return
		}
	default:
		return
	}
	e.logger.Warn("unexpected event payload", zap.String("kind", evt.Kind))
}

// HandleMessage ingests one live message: upsert under the resolved key,
// opportunistic push-name capture, and the auto-reply feed for fresh
// real-time notifications.
func (e *Engine) HandleMessage(msg *InboundMessage) {
	if msg.Key == "" || msg.Record.MsgID == "" {
		e.logger.Debug("message without key or id dropped")
		return
	}
	resolved := e.ids.Resolve(msg.Key)

	e.store.Upsert(msg.Key, cloneRecord(msg.Record))
	metrics.MessagesIngested.WithLabelValues("live").Inc()

	e.saveName(msg, resolved)

	e.bus.Emit(bus.KindMessageUpserted, map[string]string{
		"key": resolved, "msg_id": msg.Record.MsgID,
	})

	if msg.Fresh && !msg.Record.FromMe {
		e.bus.Emit(bus.KindAutoReplyInbound, autoreply.Inbound{
			RawKey:      msg.Key,
			ResolvedKey: resolved,
			SenderName:  msg.Record.SenderName,
			Text:        msg.Record.Body,
			FromMe:      msg.Record.FromMe,
		})
	}
}

// HandleMessageUpdate merges a patch into a stored record, raw key first.
func (e *Engine) HandleMessageUpdate(upd *MessageUpdate) {
	if upd.Key == "" || upd.MsgID == "" {
		return
	}
	e.store.UpdateInPlace(upd.Key, upd.MsgID, upd.Patch)
}

// HandleHistoryBatch ingests one backfill installment. Chat metadata is
// scanned for sibling pairs first so messages later in the same batch land
// on already-resolved keys.
func (e *Engine) HandleHistoryBatch(batch *HistoryBatch) {
	for _, chat := range batch.Chats {
		if chat.Key == "" {
			continue
		}
		if chat.Sibling != "" {
			if ev, ok := identity.PairFromSiblings(chat.Key, chat.Sibling, identity.SourceChatMetadata); ok {
				e.register(ev)
			}
		}
		e.saveChatName(chat)
	}

	ingested := 0
	for i := range batch.Messages {
		msg := &batch.Messages[i]
		if msg.Key == "" || msg.Record.MsgID == "" {
			continue
		}
		resolved := e.ids.Resolve(msg.Key)
		e.store.Upsert(msg.Key, cloneRecord(msg.Record))
		e.saveName(msg, resolved)
		ingested++
	}
	metrics.MessagesIngested.WithLabelValues("history").Add(float64(ingested))

	e.logger.Info("history batch ingested",
		zap.Int("messages", ingested),
		zap.Int("chats", len(batch.Chats)))
	e.bus.Emit(bus.KindBatchIngested, map[string]int{
		"messages": ingested, "chats": len(batch.Chats),
	})
}

// HandleContacts extracts identity evidence and display names from synced
// or updated contact records.
func (e *Engine) HandleContacts(list []ContactRecord) {
	registered := 0
	for _, c := range list {
		for _, ev := range contactEvidence(c) {
			if e.register(ev) {
				registered++
			}
		}
		e.saveContactName(c)
	}
	if registered > 0 {
		e.logger.Info("contact sync registered mappings",
			zap.Int("contacts", len(list)), zap.Int("mappings", registered))
	}
}

// HandlePhoneShare registers an explicitly disclosed pair.
func (e *Engine) HandlePhoneShare(share PhoneShare) {
	e.register(identity.Evidence{
		LID:    share.LID,
		Phone:  share.Phone,
		Source: identity.SourcePhoneShare,
	})
}

// RecoverNames backfills the name directory from stored history: for every
// conversation with no entry, the most recent inbound push name wins. Run
// once after snapshots restore, so a lost names file can be rebuilt.
func (e *Engine) RecoverNames() int {
	recovered := 0
	for _, key := range e.store.Keys() {
		if _, ok := e.names.Lookup(key); ok {
			continue
		}
		recs := e.store.Query(key, 0, 0)
		for i := len(recs) - 1; i >= 0; i-- {
			if recs[i].FromMe || recs[i].SenderName == "" {
				continue
			}
			if e.names.Save(key, recs[i].SenderName, contacts.SourcePush) {
				recovered++
			}
			break
		}
	}
	if recovered > 0 {
		e.logger.Info("recovered names from history", zap.Int("names", recovered))
	}
	return recovered
}

// RegisterManual is the API-surface entry point for operator-supplied
// mappings. Returns true when the map changed.
func (e *Engine) RegisterManual(lid, phone string) bool {
	return e.register(identity.Evidence{LID: lid, Phone: phone, Source: identity.SourceManual})
}

// register funnels every evidence path through identity.Map.Register and
// fires the Unresolved -> Resolved transition: a successful registration
// immediately migrates any history parked at the LID key.
func (e *Engine) register(ev identity.Evidence) bool {
	if !e.ids.Register(ev.LID, ev.Phone) {
		return false
	}
	metrics.MappingsRegistered.WithLabelValues(string(ev.Source)).Inc()

	if moved := e.store.Migrate(ev.LID, ev.Phone); moved > 0 {
		metrics.MigrationsPerformed.Inc()
		metrics.MessagesMigrated.Add(float64(moved))
		e.bus.Emit(bus.KindMigration, map[string]string{
			"from": ev.LID, "to": ev.Phone,
		})
	}
	return true
}

// contactEvidence lists the pairs a contact record can testify to. All
// three shapes from the upstream protocol funnel through here.
func contactEvidence(c ContactRecord) []identity.Evidence {
	var out []identity.Evidence
	if ev, ok := identity.PairFromSiblings(c.Key, c.LID, identity.SourceContactSync); ok {
		out = append(out, ev)
	}
	if ev, ok := identity.PairFromSiblings(c.Key, c.Phone, identity.SourceContactSync); ok {
		out = append(out, ev)
	}
	if ev, ok := identity.PairFromSiblings(c.LID, c.Phone, identity.SourceContactSync); ok {
		out = append(out, ev)
	}
	return out
}

func (e *Engine) saveName(msg *InboundMessage, resolved string) {
	if msg.Record.FromMe || msg.Record.SenderName == "" {
		return
	}
	e.names.Save(msg.Key, msg.Record.SenderName, contacts.SourcePush)
	if resolved != msg.Key {
		e.names.Save(resolved, msg.Record.SenderName, contacts.SourcePush)
	}
}

func (e *Engine) saveContactName(c ContactRecord) {
	name, source := "", contacts.SourcePush
	switch {
	case c.FullName != "":
		name, source = c.FullName, contacts.SourceExplicit
	case c.BusinessName != "":
		name, source = c.BusinessName, contacts.SourceBusiness
	case c.PushName != "":
		name, source = c.PushName, contacts.SourcePush
	default:
		return
	}
	e.names.Save(c.Key, name, source)
	if resolved := e.ids.Resolve(c.Key); resolved != c.Key {
		e.names.Save(resolved, name, source)
	}
}

func (e *Engine) saveChatName(chat ChatMetadata) {
	name, source := "", contacts.SourcePush
	switch {
	case chat.Name != "":
		name, source = chat.Name, contacts.SourceExplicit
	case chat.Title != "":
		name, source = chat.Title, contacts.SourceChat
	case chat.PushName != "":
		name, source = chat.PushName, contacts.SourcePush
	default:
		return
	}
	e.names.Save(chat.Key, name, source)
	if resolved := e.ids.Resolve(chat.Key); resolved != chat.Key {
		e.names.Save(resolved, name, source)
	}
}

func cloneRecord(rec msgstore.Record) *msgstore.Record {
	out := rec
	return &out
}
