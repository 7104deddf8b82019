package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	return &Registry{
		path:     filepath.Join(dir, "registry.json"),
		lockPath: filepath.Join(dir, "registry.lock"),
	}
}

func TestRegister_FindReturnsLiveEntry(t *testing.T) {
	r := newTestRegistry(t)
	entry := Entry{DatabasePath: "/tmp/chain.db", PID: os.Getpid(), Version: "test", StartedAt: time.Now().UTC()}

	if err := r.Register(entry); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok, err := r.Find("/tmp/chain.db")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !ok {
		t.Fatal("expected to find the registered entry")
	}
	if got.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", got.PID, os.Getpid())
	}
}

func TestFind_PrunesDeadProcessEntries(t *testing.T) {
	r := newTestRegistry(t)
	// PID 0 never names a live process via isProcessAlive's null-signal check.
	if err := r.Register(Entry{DatabasePath: "/tmp/stale.db", PID: 0}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, ok, err := r.Find("/tmp/stale.db")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if ok {
		t.Error("expected a dead-process entry to be pruned and reported as not found")
	}
}

func TestUnregister_RemovesEntry(t *testing.T) {
	r := newTestRegistry(t)
	entry := Entry{DatabasePath: "/tmp/chain.db", PID: os.Getpid()}
	if err := r.Register(entry); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Unregister("/tmp/chain.db"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	_, ok, err := r.Find("/tmp/chain.db")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if ok {
		t.Error("expected entry to be gone after Unregister")
	}
}
