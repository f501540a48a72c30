package reconcile

import "github.com/pcarvalho/wacrm/internal/msgstore"

// The transport adapter translates protocol events into these payloads, so
// the engine never re-derives shape from optional-field presence.

// InboundMessage is one delivered message. Fresh distinguishes real-time
// notifications from offline or backfill deliveries; only fresh messages
// reach the auto-reply policy.
type InboundMessage struct {
	Key    string
	Record msgstore.Record
	Fresh  bool
}

// MessageUpdate is a status or content patch referencing a stored record.
type MessageUpdate struct {
	Key   string
	MsgID string
	Patch msgstore.Patch
}

// ContactRecord is a synced or updated contact. Key is the primary
// identifier as delivered (either space); LID and Phone carry sibling
// identifiers when the record included them.
type ContactRecord struct {
	Key          string
	LID          string
	Phone        string
	FullName     string
	BusinessName string
	PushName     string
}

// ChatMetadata is per-chat metadata carried by a history batch. Sibling is
// the same chat's identifier in the other space, when known upstream.
type ChatMetadata struct {
	Key      string
	Sibling  string
	Name     string // operator-saved name
	Title    string // conversation title
	PushName string
}

// HistoryBatch is one backfill installment. Chats are processed before
// Messages so mappings learned from metadata benefit the same batch.
type HistoryBatch struct {
	Chats    []ChatMetadata
	Messages []InboundMessage
}

// PhoneShare is an explicit phone-number-disclosure notification.
type PhoneShare struct {
	LID   string
	Phone string
}
