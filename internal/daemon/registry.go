// Package daemon tracks background `cb daemon` processes across
// invocations so that `start`/`stop`/`status` can find each other even
// when run from unrelated shells.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
)

// Entry describes one running daemon, keyed by the ledger database it
// is servicing.
type Entry struct {
	DatabasePath string    `json:"database_path"`
	PID          int       `json:"pid"`
	Version      string    `json:"version"`
	StartedAt    time.Time `json:"started_at"`
}

// Registry is the on-disk ~/.chain/registry.json tracking every daemon
// started on this machine, guarded by a gofrs/flock file lock so
// concurrent `cb daemon start`/`stop` invocations read-modify-write
// safely across processes.
type Registry struct {
	path     string
	lockPath string
	mu       sync.Mutex
}

// NewRegistry opens (creating if needed) the registry under
// ~/.chain/registry.json.
func NewRegistry() (*Registry, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".chain")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create registry directory: %w", err)
	}
	return &Registry{
		path:     filepath.Join(dir, "registry.json"),
		lockPath: filepath.Join(dir, "registry.lock"),
	}, nil
}

func (r *Registry) withFileLock(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock := flock.New(r.lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire registry lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	return fn()
}

func (r *Registry) readEntriesLocked() ([]Entry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if len(data) == 0 {
		return []Entry{}, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupted registry just means daemons need rediscovering.
		return []Entry{}, nil
	}
	return entries, nil
}

func (r *Registry) writeEntriesLocked(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, "registry-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create registry temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write registry temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync registry temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close registry temp file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename registry temp file: %w", err)
	}
	return nil
}

// Register records entry, replacing any existing entry for the same
// database path or PID.
func (r *Registry) Register(entry Entry) error {
	return r.withFileLock(func() error {
		entries, err := r.readEntriesLocked()
		if err != nil {
			return err
		}
		filtered := make([]Entry, 0, len(entries)+1)
		for _, e := range entries {
			if e.DatabasePath != entry.DatabasePath && e.PID != entry.PID {
				filtered = append(filtered, e)
			}
		}
		filtered = append(filtered, entry)
		return r.writeEntriesLocked(filtered)
	})
}

// Unregister removes the entry for databasePath, if any.
func (r *Registry) Unregister(databasePath string) error {
	return r.withFileLock(func() error {
		entries, err := r.readEntriesLocked()
		if err != nil {
			return err
		}
		filtered := make([]Entry, 0, len(entries))
		for _, e := range entries {
			if e.DatabasePath != databasePath {
				filtered = append(filtered, e)
			}
		}
		return r.writeEntriesLocked(filtered)
	})
}

// Find returns the registered daemon for databasePath, if its process
// is still alive. Stale entries (process gone) are pruned as a side
// effect and reported as not-found.
func (r *Registry) Find(databasePath string) (*Entry, bool, error) {
	var found *Entry
	err := r.withFileLock(func() error {
		entries, err := r.readEntriesLocked()
		if err != nil {
			return err
		}
		alive := make([]Entry, 0, len(entries))
		for _, e := range entries {
			if !isProcessAlive(e.PID) {
				continue
			}
			alive = append(alive, e)
			if e.DatabasePath == databasePath {
				entry := e
				found = &entry
			}
		}
		if len(alive) != len(entries) {
			if err := r.writeEntriesLocked(alive); err != nil {
				return err
			}
		}
		return nil
	})
	return found, found != nil, err
}

// isProcessAlive reports whether pid names a live process by sending
// the null signal, per the standard Unix liveness-check idiom.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
