// Package session resolves the on-disk layout under ~/.wacrm.
package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.wacrm.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wacrm")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// SessionDBPath returns the whatsmeow session.db path.
func SessionDBPath(name string) string {
	return filepath.Join(Dir(name), "session.db")
}

// SnapshotDir returns where the flusher writes component snapshots.
func SnapshotDir(name string) string {
	return filepath.Join(Dir(name), "snapshots")
}

// QRPath returns where the pairing QR code PNG is written.
func QRPath(name string) string {
	return filepath.Join(Dir(name), "qr.png")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "wacrmd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name), SnapshotDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
