// Package msgstore holds conversation histories keyed by conversation key.
//
// The store owns the migration side of identity resolution: once a LID key
// gains a phone mapping, that conversation's records move to the phone key
// and never split across both. All mutation and migration happens under one
// lock, so readers never observe a half-migrated conversation.
package msgstore

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pcarvalho/wacrm/internal/keys"
	"go.uber.org/zap"
)

// SnapshotVersion is bumped when the persisted layout changes.
const SnapshotVersion = 1

// Resolver maps conversation keys to their canonical form. Satisfied by
// *identity.Map.
type Resolver interface {
	Resolve(key string) string
}

type conversation struct {
	records []*Record
	byID    map[string]int // MsgID -> index into records
}

func newConversation() *conversation {
	return &conversation{byID: make(map[string]int)}
}

func (c *conversation) put(rec *Record) (overwrote bool) {
	if i, ok := c.byID[rec.MsgID]; ok {
		c.records[i] = rec
		return true
	}
	c.byID[rec.MsgID] = len(c.records)
	c.records = append(c.records, rec)
	return false
}

// Store is the message store. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	convos   map[string]*conversation
	resolver Resolver
	logger   *zap.Logger
}

// New creates an empty store using resolver for key canonicalization.
func New(resolver Resolver, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		convos:   make(map[string]*conversation),
		resolver: resolver,
		logger:   logger,
	}
}

// Upsert inserts rec under the resolved form of key, overwriting in place on
// a MsgID collision. When key is a LID that resolves to a phone key and
// history is still parked under the LID, that history is migrated first so
// the conversation is never split.
func (s *Store) Upsert(key string, rec *Record) {
	if key == "" || rec == nil || rec.MsgID == "" {
		return
	}
	resolved := s.resolver.Resolve(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if resolved != key && keys.IsLID(key) {
		s.migrateLocked(key, resolved)
	}

	conv, ok := s.convos[resolved]
	if !ok {
		conv = newConversation()
		s.convos[resolved] = conv
	}
	conv.put(rec)
}

// Migrate moves every record from source to target, skipping MsgID
// collisions, then removes the source entry. Idempotent: a second call for
// the same pair finds no source entry and does nothing. Returns the number
// of records moved.
func (s *Store) Migrate(source, target string) int {
	if source == "" || target == "" || source == target {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.migrateLocked(source, target)
}

func (s *Store) migrateLocked(source, target string) int {
	src, ok := s.convos[source]
	if !ok {
		return 0
	}

	dst, ok := s.convos[target]
	if !ok {
		dst = newConversation()
		s.convos[target] = dst
	}

	moved := 0
	for _, rec := range src.records {
		if _, exists := dst.byID[rec.MsgID]; exists {
			continue
		}
		dst.put(rec)
		moved++
	}
	delete(s.convos, source)

	s.logger.Info("conversation migrated",
		zap.String("from", source),
		zap.String("to", target),
		zap.Int("moved", moved))
	return moved
}

// UpdateInPlace merges patch into the record with msgID, looking under the
// raw key first and the resolved key second. A record that moved mid-flight
// and cannot be found under either key loses the update; status patches are
// non-critical, so this is tolerated rather than surfaced.
func (s *Store) UpdateInPlace(key, msgID string, patch Patch) {
	if key == "" || msgID == "" {
		return
	}
	resolved := s.resolver.Resolve(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range []string{key, resolved} {
		if conv, ok := s.convos[k]; ok {
			if i, ok := conv.byID[msgID]; ok {
				conv.records[i].apply(patch)
				return
			}
		}
		if key == resolved {
			break
		}
	}
	s.logger.Debug("update for unknown message dropped",
		zap.String("key", key), zap.String("msg_id", msgID))
}

// Get returns a copy of the record with msgID under key (raw, then
// resolved), or nil.
func (s *Store) Get(key, msgID string) *Record {
	resolved := s.resolver.Resolve(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, k := range []string{key, resolved} {
		if conv, ok := s.convos[k]; ok {
			if i, ok := conv.byID[msgID]; ok {
				rec := *conv.records[i]
				return &rec
			}
		}
		if key == resolved {
			break
		}
	}
	return nil
}

// Len returns the number of records stored under key without resolving it.
func (s *Store) Len(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conv, ok := s.convos[key]; ok {
		return len(conv.records)
	}
	return 0
}

// Keys returns all conversation keys currently present.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.convos))
	for k := range s.convos {
		out = append(out, k)
	}
	return out
}

// Counts returns the number of conversations and total records.
func (s *Store) Counts() (conversations, messages int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, conv := range s.convos {
		messages += len(conv.records)
	}
	return len(s.convos), messages
}

type snapshot struct {
	Version       int                  `json:"version"`
	Conversations map[string][]*Record `json:"conversations"`
}

// Snapshot serializes the store for the periodic flusher.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	convos := make(map[string][]*Record, len(s.convos))
	for k, conv := range s.convos {
		convos[k] = conv.records
	}
	return json.Marshal(snapshot{Version: SnapshotVersion, Conversations: convos})
}

// Restore loads a snapshot produced by Snapshot, rebuilding the MsgID
// indexes. Unknown versions are rejected.
func (s *Store) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode store snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("unsupported store snapshot version %d", snap.Version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.convos = make(map[string]*conversation, len(snap.Conversations))
	for k, recs := range snap.Conversations {
		conv := newConversation()
		for _, rec := range recs {
			if rec != nil && rec.MsgID != "" {
				conv.put(rec)
			}
		}
		s.convos[k] = conv
	}
	return nil
}
