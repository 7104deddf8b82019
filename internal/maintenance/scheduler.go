// Package maintenance runs C9's three background upkeep tasks — an
// hourly size check, a weekly vacuum, and a daily off-chain orphan
// sweep — each coordinated through internal/indexer so a slow run
// never overlaps itself, the way the teacher's daemon runs its own
// periodic background loops (internal/daemon) alongside
// internal/compact's tiered candidate selection for the vacuum-sized
// work.
package maintenance

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/indexer"
	"github.com/rbatllet/private-blockchain-sub014/internal/limits"
	"github.com/rbatllet/private-blockchain-sub014/internal/logx"
	"github.com/rbatllet/private-blockchain-sub014/internal/offchain"
)

const (
	sizeCheckKey   = "maintenance:size-check"
	vacuumKey      = "maintenance:vacuum"
	orphanSweepKey = "maintenance:orphan-sweep"
)

// vacuumer is the subset of sqlite.Storage the scheduler needs; kept
// as a local interface so tests can substitute a fake without pulling
// in a real database.
type vacuumer interface {
	Vacuum(ctx context.Context) error
	DatabaseSizeBytes(ctx context.Context) (int64, error)
}

// Intervals lets callers override the default cadences, primarily for
// tests (which want seconds, not days).
type Intervals struct {
	SizeCheck   time.Duration
	Vacuum      time.Duration
	OrphanSweep time.Duration
	OrphanTTL   time.Duration
}

// DefaultIntervals matches spec §4.9's stated cadences.
func DefaultIntervals() Intervals {
	return Intervals{
		SizeCheck:   time.Hour,
		Vacuum:      7 * 24 * time.Hour,
		OrphanSweep: 24 * time.Hour,
		OrphanTTL:   24 * time.Hour,
	}
}

// Scheduler owns the three ticking loops. It is safe to Run only once;
// canceling the context passed to Run stops all three loops
// cooperatively.
type Scheduler struct {
	store       vacuumer
	offChain    *offchain.Store
	coordinator *indexer.Coordinator
	intervals   Intervals
}

// New creates a Scheduler. coordinator may be shared with other
// background work (e.g. a future content indexer); the keys this
// package coordinates under are namespaced so they never collide.
func New(store vacuumer, offChain *offchain.Store, coordinator *indexer.Coordinator, intervals Intervals) *Scheduler {
	return &Scheduler{store: store, offChain: offChain, coordinator: coordinator, intervals: intervals}
}

// Run blocks until ctx is canceled or one of the three loops returns a
// non-recoverable error, coordinating every tick through the
// indexer.Coordinator so a slow vacuum never overlaps the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.loop(ctx, sizeCheckKey, s.intervals.SizeCheck, s.runSizeCheck) })
	g.Go(func() error { return s.loop(ctx, vacuumKey, s.intervals.Vacuum, s.runVacuum) })
	g.Go(func() error { return s.loop(ctx, orphanSweepKey, s.intervals.OrphanSweep, s.runOrphanSweep) })

	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, key string, interval time.Duration, task indexer.Task) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, err := s.coordinator.Coordinate(ctx, indexer.Request{Key: key, Task: task, MinInterval: interval})
			if err != nil && !chainerr.Is(err, chainerr.IndexerBusy) {
				logx.Errorf("maintenance: %s failed: %v", key, err)
			}
		}
	}
}

func (s *Scheduler) runSizeCheck(ctx context.Context) error {
	size, err := s.store.DatabaseSizeBytes(ctx)
	if err != nil {
		return err
	}
	if size > limits.MaxExportLimit {
		logx.Warnf("maintenance: database size %d bytes exceeds advisory threshold", size)
	}
	logx.Debugf("maintenance: size check ok (%d bytes)", size)
	return nil
}

func (s *Scheduler) runVacuum(ctx context.Context) error {
	logx.Infof("maintenance: starting scheduled vacuum")
	return s.store.Vacuum(ctx)
}

func (s *Scheduler) runOrphanSweep(ctx context.Context) error {
	n, err := s.offChain.CollectOrphans(ctx, s.intervals.OrphanTTL)
	if err != nil {
		return err
	}
	if n > 0 {
		logx.Infof("maintenance: removed %d orphaned off-chain objects", n)
	}
	return nil
}

// RunOnce runs all three tasks a single time, bypassing their
// schedules. Used by the CLI's "daemon run-once" subcommand and by
// tests.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	for _, t := range []struct {
		key  string
		task indexer.Task
	}{
		{sizeCheckKey, s.runSizeCheck},
		{vacuumKey, s.runVacuum},
		{orphanSweepKey, s.runOrphanSweep},
	} {
		if _, err := s.coordinator.Coordinate(ctx, indexer.Request{Key: t.key, Task: t.task, ForceRebuild: true, ForceExecution: true}); err != nil {
			return err
		}
	}
	return nil
}
