// Package identity maintains the bidirectional mapping between phone-based
// conversation keys and anonymous LID keys. Messages for the same person can
// arrive tagged with either key; the map is the single source of truth for
// collapsing them onto the phone key.
package identity

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pcarvalho/wacrm/internal/keys"
	"go.uber.org/zap"
)

// SnapshotVersion is bumped when the persisted layout changes.
const SnapshotVersion = 1

// Map is the bidirectional LID <-> phone mapping. All methods are safe for
// concurrent use. Both directions are kept strictly mirrored.
type Map struct {
	mu         sync.RWMutex
	lidToPhone map[string]string
	phoneToLid map[string]string
	logger     *zap.Logger
}

// NewMap creates an empty identity map.
func NewMap(logger *zap.Logger) *Map {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Map{
		lidToPhone: make(map[string]string),
		phoneToLid: make(map[string]string),
		logger:     logger,
	}
}

// Resolve maps a LID key to its phone key when a mapping exists. Any other
// input, including group keys and unmapped LIDs, is returned unchanged.
func (m *Map) Resolve(key string) string {
	if !keys.IsLID(key) {
		return key
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if phone, ok := m.lidToPhone[key]; ok {
		return phone
	}
	return key
}

// Register records a LID <-> phone pair. Malformed pairs (wrong suffix on
// either side) are dropped without error: partial contact data routinely
// carries only one half of a pair and must not poison the map.
//
// Registering a different phone for an already-mapped LID overwrites the old
// target. The overwrite is logged at Warn so data-quality issues stay
// visible; a person legitimately changing phones looks identical in the
// evidence stream.
//
// Returns true when the map changed.
func (m *Map) Register(lid, phone string) bool {
	if lid == "" || phone == "" {
		return false
	}
	if !keys.IsLID(lid) || !keys.IsPhone(phone) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old, existed := m.lidToPhone[lid]
	if existed && old == phone {
		return false
	}

	if existed {
		// Keep the reverse direction consistent with the new target.
		delete(m.phoneToLid, old)
		m.logger.Warn("LID remapped to different phone key",
			zap.String("lid", lid),
			zap.String("old_phone", old),
			zap.String("new_phone", phone))
	} else {
		m.logger.Info("LID mapping registered",
			zap.String("lid", lid),
			zap.String("phone", phone))
	}

	m.lidToPhone[lid] = phone
	m.phoneToLid[phone] = lid
	return true
}

// LIDFor returns the LID for a phone key, or "" when unknown.
func (m *Map) LIDFor(phone string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phoneToLid[phone]
}

// Len returns the number of mappings.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lidToPhone)
}

// Pairs returns a copy of the forward direction for the API surface.
func (m *Map) Pairs() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.lidToPhone))
	for lid, phone := range m.lidToPhone {
		out[lid] = phone
	}
	return out
}

type snapshot struct {
	Version    int               `json:"version"`
	LidToPhone map[string]string `json:"lidToPhone"`
	PhoneToLid map[string]string `json:"phoneToLid"`
}

// Snapshot serializes the map for the periodic flusher.
func (m *Map) Snapshot() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(snapshot{
		Version:    SnapshotVersion,
		LidToPhone: m.lidToPhone,
		PhoneToLid: m.phoneToLid,
	})
}

// Restore loads a snapshot produced by Snapshot. An unknown version is
// rejected and the map left empty rather than guessed at.
func (m *Map) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode identity snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("unsupported identity snapshot version %d", snap.Version)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lidToPhone = make(map[string]string, len(snap.LidToPhone))
	m.phoneToLid = make(map[string]string, len(snap.LidToPhone))
	// Rebuild the reverse direction from the forward one so the two can
	// never disagree after a restore.
	for lid, phone := range snap.LidToPhone {
		m.lidToPhone[lid] = phone
		m.phoneToLid[phone] = lid
	}
	return nil
}
