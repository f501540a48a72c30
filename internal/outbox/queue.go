// Package outbox queues outgoing text messages and drains them through the
// transport, mirroring delivery state into the message store.
package outbox

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const SnapshotVersion = 1

// Entry statuses.
const (
	StatusQueued  = "queued"
	StatusSending = "sending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Entry is one queued outgoing message. ClientMsgID is assigned at enqueue
// time and stays stable across retries; ServerMsgID arrives on ack.
type Entry struct {
	ClientMsgID  string `json:"client_msg_id"`
	Key          string `json:"key"`
	Body         string `json:"body"`
	Status       string `json:"status"`
	ServerMsgID  string `json:"server_msg_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// Queue is the in-memory outbox. Entries survive restarts through the
// snapshot flusher; sending entries revert to queued on restore so an
// interrupted send is retried.
type Queue struct {
	mu      sync.Mutex
	entries []*Entry
	now     func() time.Time
}

// NewQueue builds an empty queue.
func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

// Enqueue queues a text message for key and returns the client message id.
func (q *Queue) Enqueue(key, text string) (string, error) {
	if key == "" || text == "" {
		return "", fmt.Errorf("outbox: key and text are required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now().UnixMilli()
	e := &Entry{
		ClientMsgID: uuid.NewString(),
		Key:         key,
		Body:        text,
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	q.entries = append(q.entries, e)
	return e.ClientMsgID, nil
}

// TakePending returns queued entries in enqueue order and marks them
// sending.
func (q *Queue) TakePending() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Entry
	now := q.now().UnixMilli()
	for _, e := range q.entries {
		if e.Status != StatusQueued {
			continue
		}
		e.Status = StatusSending
		e.UpdatedAt = now
		out = append(out, *e)
	}
	return out
}

// MarkSent records the server message id on a successful send.
func (q *Queue) MarkSent(clientMsgID, serverMsgID string) error {
	return q.update(clientMsgID, func(e *Entry) {
		e.Status = StatusSent
		e.ServerMsgID = serverMsgID
		e.ErrorMessage = ""
	})
}

// MarkFailed records a send failure.
func (q *Queue) MarkFailed(clientMsgID, errMsg string) error {
	return q.update(clientMsgID, func(e *Entry) {
		e.Status = StatusFailed
		e.ErrorMessage = errMsg
	})
}

func (q *Queue) update(clientMsgID string, apply func(*Entry)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.ClientMsgID == clientMsgID {
			apply(e)
			e.UpdatedAt = q.now().UnixMilli()
			return nil
		}
	}
	return fmt.Errorf("outbox: unknown entry %q", clientMsgID)
}

// Get returns a copy of one entry.
func (q *Queue) Get(clientMsgID string) *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.ClientMsgID == clientMsgID {
			out := *e
			return &out
		}
	}
	return nil
}

// Entries returns a copy of the whole queue, newest last.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, *e)
	}
	return out
}

type snapshot struct {
	Version int      `json:"version"`
	Entries []*Entry `json:"entries"`
}

// Snapshot serializes the queue for the flusher.
func (q *Queue) Snapshot() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return json.Marshal(snapshot{Version: SnapshotVersion, Entries: q.entries})
}

// Restore replaces the queue from a snapshot. In-flight sends are requeued.
func (q *Queue) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("outbox: decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("outbox: unsupported snapshot version %d", snap.Version)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = snap.Entries
	for _, e := range q.entries {
		if e.Status == StatusSending {
			e.Status = StatusQueued
		}
	}
	return nil
}
