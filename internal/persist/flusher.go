// Package persist flushes component snapshots to disk on an interval and
// restores them at startup. A crash loses at most one interval of changes.
package persist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pcarvalho/wacrm/internal/metrics"
	"go.uber.org/zap"
)

// Snapshotter is anything the flusher can persist and restore. Snapshot
// returns the full serialized state; Restore replaces it.
type Snapshotter interface {
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

// DefaultInterval matches the original flush cadence.
const DefaultInterval = 30 * time.Second

type target struct {
	name string
	snap Snapshotter
}

// Flusher periodically writes registered snapshots under dir, one JSON file
// per component. Writes go through a temp file and rename so a crash mid
// flush never truncates the previous snapshot.
type Flusher struct {
	dir      string
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	targets []target
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewFlusher builds a flusher writing to dir. Logger may be nil; interval
// zero means DefaultInterval.
func NewFlusher(dir string, interval time.Duration, logger *zap.Logger) *Flusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Flusher{dir: dir, interval: interval, logger: logger}
}

// Register adds a component under name; its snapshot lands in <name>.json.
func (f *Flusher) Register(name string, snap Snapshotter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, target{name: name, snap: snap})
}

// RestoreAll loads every registered component's snapshot file. Missing files
// are fine on first run; corrupt or version-mismatched files are logged and
// skipped so one bad snapshot never blocks startup.
func (f *Flusher) RestoreAll() {
	f.mu.Lock()
	targets := append([]target(nil), f.targets...)
	f.mu.Unlock()

	for _, t := range targets {
		path := f.path(t.name)
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				f.logger.Warn("snapshot unreadable", zap.String("name", t.name), zap.Error(err))
			}
			continue
		}
		if err := t.snap.Restore(data); err != nil {
			f.logger.Warn("snapshot rejected", zap.String("name", t.name), zap.Error(err))
			continue
		}
		f.logger.Info("snapshot restored", zap.String("name", t.name), zap.Int("bytes", len(data)))
	}
}

// Start begins the flush loop.
func (f *Flusher) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	go func() {
		defer close(f.done)
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				f.FlushAll()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and performs one final flush.
func (f *Flusher) Stop() {
	if f.cancel != nil {
		f.cancel()
		<-f.done
	}
	f.FlushAll()
}

// FlushAll writes every registered snapshot once. Failures are logged per
// component and do not stop the pass.
func (f *Flusher) FlushAll() {
	f.mu.Lock()
	targets := append([]target(nil), f.targets...)
	f.mu.Unlock()

	for _, t := range targets {
		if err := f.flushOne(t); err != nil {
			metrics.SnapshotFlushes.WithLabelValues(t.name, "error").Inc()
			f.logger.Error("snapshot flush failed", zap.String("name", t.name), zap.Error(err))
			continue
		}
		metrics.SnapshotFlushes.WithLabelValues(t.name, "ok").Inc()
	}
}

func (f *Flusher) flushOne(t target) error {
	data, err := t.snap.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", t.name, err)
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	tmp := f.path(t.name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path(t.name)); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func (f *Flusher) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}
