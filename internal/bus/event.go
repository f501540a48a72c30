package bus

import "time"

// Event kinds published on the bus. The transport adapter produces the
// "wa." namespace; the reconciliation engine consumes it and publishes its
// own progress events alongside the auto-reply feed.
const (
	// Transport adapter -> reconciliation engine.
	KindMessage        = "wa.message"
	KindMessageUpdate  = "wa.message_update"
	KindHistoryBatch   = "wa.history_batch"
	KindContactsSynced = "wa.contacts_synced"
	KindContactsUpdate = "wa.contacts_updated"
	KindPhoneShare     = "wa.phone_share"

	// Reconciliation engine -> auto-reply dispatcher.
	KindAutoReplyInbound = "autoreply.inbound"

	// Engine progress, consumed by the API layer and tests.
	KindMessageUpserted = "reconcile.message_upserted"
	KindBatchIngested   = "reconcile.batch_ingested"
	KindMigration       = "reconcile.migration"

	// Outbox progress.
	KindSendAck    = "outbox.send_ack"
	KindSendFailed = "outbox.send_failed"

	// Session lifecycle.
	KindConnected    = "session.connected"
	KindDisconnected = "session.disconnected"
	KindLoggedOut    = "session.logged_out"
	KindQRGenerated   = "session.qr_generated"
	KindAuthenticated = "session.authenticated"
	KindAuthFailed    = "session.auth_failed"
	KindStatusChange  = "session.status_changed"
)

// Event is one domain event.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent builds an event stamped with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
