package maintenance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbatllet/private-blockchain-sub014/internal/indexer"
	"github.com/rbatllet/private-blockchain-sub014/internal/offchain"
	"github.com/rbatllet/private-blockchain-sub014/internal/storage/sqlite"
)

type fakeVacuumer struct {
	size        int64
	vacuumCalls int
}

func (f *fakeVacuumer) Vacuum(ctx context.Context) error {
	f.vacuumCalls++
	return nil
}

func (f *fakeVacuumer) DatabaseSizeBytes(ctx context.Context) (int64, error) {
	return f.size, nil
}

func newTestOffChain(t *testing.T) *offchain.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "chain.db"))
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	off, err := offchain.New(filepath.Join(t.TempDir(), "offchain"), store)
	if err != nil {
		t.Fatalf("offchain.New: %v", err)
	}
	return off
}

func TestRunOnce_RunsAllThreeTasks(t *testing.T) {
	fv := &fakeVacuumer{size: 1024}
	coord := indexer.New()
	sched := New(fv, newTestOffChain(t), coord, DefaultIntervals())

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if fv.vacuumCalls != 1 {
		t.Errorf("vacuumCalls = %d, want 1", fv.vacuumCalls)
	}
}

func TestRun_StopsWhenContextCanceled(t *testing.T) {
	fv := &fakeVacuumer{}
	coord := indexer.New()
	sched := New(fv, newTestOffChain(t), coord, Intervals{
		SizeCheck:   5 * time.Millisecond,
		Vacuum:      5 * time.Millisecond,
		OrphanSweep: 5 * time.Millisecond,
		OrphanTTL:   time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fv.vacuumCalls == 0 {
		t.Error("expected at least one vacuum tick before context cancellation")
	}
}
