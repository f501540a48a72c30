package autoreply

import (
	"encoding/json"
	"fmt"
	"sync"
)

// ConfigSnapshotVersion is bumped when the persisted layout changes.
const ConfigSnapshotVersion = 1

// ConfigStore holds the mutable global auto-reply configuration. The
// dashboard toggles it at runtime; the flusher persists it.
type ConfigStore struct {
	mu  sync.RWMutex
	cfg Config
}

// NewConfigStore creates a store seeded with initial.
func NewConfigStore(initial Config) *ConfigStore {
	return &ConfigStore{cfg: initial}
}

// Get returns the current configuration.
func (s *ConfigStore) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := s.cfg
	cfg.AllowedGroupKeys = append([]string(nil), s.cfg.AllowedGroupKeys...)
	return cfg
}

// Set replaces the configuration.
func (s *ConfigStore) Set(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

type configSnapshot struct {
	Version int    `json:"version"`
	Config  Config `json:"config"`
}

// Snapshot serializes the configuration for the periodic flusher.
func (s *ConfigStore) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(configSnapshot{Version: ConfigSnapshotVersion, Config: s.cfg})
}

// Restore loads a snapshot produced by Snapshot.
func (s *ConfigStore) Restore(data []byte) error {
	var snap configSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode autoreply config: %w", err)
	}
	if snap.Version != ConfigSnapshotVersion {
		return fmt.Errorf("unsupported autoreply config version %d", snap.Version)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = snap.Config
	return nil
}
