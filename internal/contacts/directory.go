// Package contacts keeps display names per conversation key, ranked by the
// trustworthiness of where each name was observed.
package contacts

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SnapshotVersion is bumped when the persisted layout changes.
const SnapshotVersion = 1

// Source is the provenance of a display name.
type Source string

const (
	// SourceExplicit: the operator saved this name in their address book.
	SourceExplicit Source = "explicit"
	// SourceBusiness: a verified business name.
	SourceBusiness Source = "business"
	// SourceChat: derived from chat metadata (conversation title).
	SourceChat Source = "chat"
	// SourcePush: the name a sender sets on their own device. Lowest trust.
	SourcePush Source = "push"
)

// rank orders provenance; a lower-ranked name never overwrites a higher one.
var rank = map[Source]int{
	SourceExplicit: 3,
	SourceBusiness: 2,
	SourceChat:     1,
	SourcePush:     0,
}

// Entry is one stored name observation.
type Entry struct {
	Name      string `json:"name"`
	Source    Source `json:"source"`
	UpdatedAt string `json:"updated_at"`
}

// Directory maps conversation keys to display names. Safe for concurrent
// use. Entries are never deleted; they are only upgraded or refreshed.
type Directory struct {
	mu     sync.RWMutex
	byKey  map[string]Entry
	logger *zap.Logger
}

// NewDirectory creates an empty directory.
func NewDirectory(logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{byKey: make(map[string]Entry), logger: logger}
}

// Save records a name observation for key. Same-or-higher provenance
// overwrites freely; lower provenance is dropped. Returns true when the
// entry changed.
func (d *Directory) Save(key, name string, source Source) bool {
	if key == "" || name == "" {
		return false
	}
	if _, ok := rank[source]; !ok {
		source = SourcePush
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.byKey[key]; ok {
		if rank[source] < rank[existing.Source] {
			return false
		}
	}
	d.byKey[key] = Entry{
		Name:      name,
		Source:    source,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	return true
}

// Get returns the stored name for key, or "" when unknown.
func (d *Directory) Get(key string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byKey[key].Name
}

// Lookup returns the full entry for key.
func (d *Directory) Lookup(key string) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byKey[key]
	return e, ok
}

// Len returns the number of named keys.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byKey)
}

// All returns a copy of the directory for the API surface.
func (d *Directory) All() map[string]Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]Entry, len(d.byKey))
	for k, e := range d.byKey {
		out[k] = e
	}
	return out
}

type snapshot struct {
	Version int              `json:"version"`
	Names   map[string]Entry `json:"names"`
}

// Snapshot serializes the directory for the periodic flusher.
func (d *Directory) Snapshot() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return json.Marshal(snapshot{Version: SnapshotVersion, Names: d.byKey})
}

// Restore loads a snapshot produced by Snapshot.
func (d *Directory) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode contacts snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("unsupported contacts snapshot version %d", snap.Version)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byKey = make(map[string]Entry, len(snap.Names))
	for k, e := range snap.Names {
		d.byKey[k] = e
	}
	return nil
}
