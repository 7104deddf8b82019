// Package indexer implements C7: a background indexing coordinator
// that runs at most one indexing task per key at a time (single-flight
// per key, not globally), tracks completion independently of its
// concurrency primitive so callers can wait for drain, and supports
// both a graceful shutdown (let in-flight tasks finish) and a forced
// one (cancel them). The lifecycle shape — a registry keyed by name,
// guarded by a master lock, discoverable and shuttable down — is
// lifted from the teacher's internal/daemon registry and narrowed from
// "one daemon per workspace" to "one indexing task per key".
package indexer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/logx"
)

// Task is the unit of work a Coordinator runs. Implementations should
// be idempotent: re-running a task for the same key after a partial
// failure must converge rather than double-apply.
type Task func(ctx context.Context) error

// Status reports how a Coordinate call concluded (spec §4.7).
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusSkipped   Status = "SKIPPED"
)

// Request names the task to coordinate and the knobs that decide
// whether this call actually runs it.
type Request struct {
	Key  string
	Task Task

	// MinInterval skips the task with StatusSkipped if it last
	// completed less than MinInterval ago, unless ForceRebuild is set.
	// Zero disables the skip.
	MinInterval time.Duration
	// ForceRebuild bypasses the MinInterval skip.
	ForceRebuild bool
	// ForceExecution bypasses the coordinator-wide test-mode skip.
	ForceExecution bool
	// CanWait blocks for the per-key slot instead of returning
	// IndexerBusy immediately when another task for the same key is
	// already running.
	CanWait bool
}

type keyState struct {
	sem        *semaphore.Weighted // weight 1: fair single-flight per key
	lastRun    time.Time
	lastErr    error
	inProgress bool
}

// Coordinator serializes indexing work per key and exposes enough
// state for callers (the CLI, the maintenance scheduler, tests) to
// wait for or force a drain.
type Coordinator struct {
	mu    sync.RWMutex
	keys  map[string]*keyState
	active int64 // active task counter, read under mu

	shutdown      bool
	shutdownCause context.CancelFunc
	shutdownCtx   context.Context

	// testMode, while set, makes Coordinate return StatusSkipped without
	// running the task unless the request sets ForceExecution, so tests
	// can choose exactly which calls really run.
	testMode bool
}

// New creates a ready-to-use Coordinator.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		keys:          make(map[string]*keyState),
		shutdownCtx:   ctx,
		shutdownCause: cancel,
	}
}

// SetTestMode toggles testMode; see the Coordinator doc comment.
func (c *Coordinator) SetTestMode(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.testMode = v
}

func (c *Coordinator) stateFor(key string) *keyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	ks, ok := c.keys[key]
	if !ok {
		ks = &keyState{sem: semaphore.NewWeighted(1)}
		c.keys[key] = ks
	}
	return ks
}

// Coordinate runs req.Task for req.Key, following spec §4.7's contract:
// it refuses to start any new work once Shutdown/ForceShutdown has
// fired (CANCELLED, distinct from a same-key-busy refusal), skips
// entirely while test mode is on unless ForceExecution is set, refuses
// (or, with CanWait, blocks for) a second concurrent run for the same
// key, and skips if the key last ran within req.MinInterval unless
// ForceRebuild is set. It returns once the task has finished or been
// skipped/cancelled/refused.
func (c *Coordinator) Coordinate(ctx context.Context, req Request) (Status, error) {
	c.mu.RLock()
	shuttingDown := c.shutdown
	runCtx := c.shutdownCtx
	testMode := c.testMode
	c.mu.RUnlock()
	if shuttingDown {
		return StatusCancelled, chainerr.New(chainerr.IndexerCancelled, "coordinator is shutting down, refusing new work")
	}
	if testMode && !req.ForceExecution {
		return StatusSkipped, nil
	}

	ks := c.stateFor(req.Key)

	if req.CanWait {
		if err := ks.sem.Acquire(ctx, 1); err != nil {
			return StatusCancelled, chainerr.Wrap(chainerr.IndexerCancelled, err, "waiting for indexing slot for key: "+req.Key)
		}
	} else if !ks.sem.TryAcquire(1) {
		return StatusFailed, chainerr.New(chainerr.IndexerBusy, "indexing task already running for key: "+req.Key)
	}
	defer ks.sem.Release(1)

	c.mu.RLock()
	shuttingDown = c.shutdown
	c.mu.RUnlock()
	if shuttingDown {
		return StatusCancelled, chainerr.New(chainerr.IndexerCancelled, "coordinator is shutting down, refusing new work")
	}

	c.mu.Lock()
	lastRun := ks.lastRun
	c.mu.Unlock()
	if req.MinInterval > 0 && !req.ForceRebuild && !lastRun.IsZero() && time.Since(lastRun) < req.MinInterval {
		return StatusSkipped, nil
	}

	c.mu.Lock()
	c.active++
	ks.inProgress = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.active--
		ks.inProgress = false
		ks.lastRun = time.Now().UTC()
		c.mu.Unlock()
	}()

	merged, cancel := mergeContexts(ctx, runCtx)
	defer cancel()

	err := req.Task(merged)
	c.mu.Lock()
	ks.lastErr = err
	c.mu.Unlock()
	if err != nil {
		logx.Warnf("indexer: task %q failed: %v", req.Key, err)
		return StatusFailed, err
	}
	return StatusCompleted, nil
}

// LastRun reports the last completion time for key, and whether it has
// ever run.
func (c *Coordinator) LastRun(key string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ks, ok := c.keys[key]
	if !ok || ks.lastRun.IsZero() {
		return time.Time{}, false
	}
	return ks.lastRun, true
}

// ActiveCount returns the number of tasks currently running across all
// keys.
func (c *Coordinator) ActiveCount() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// WaitForCompletion polls the active-task counter (not the semaphore,
// which only reports per-key availability) until it reaches zero or
// timeout elapses.
func (c *Coordinator) WaitForCompletion(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if c.ActiveCount() == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return chainerr.New(chainerr.IndexerTimeout, "timed out waiting for indexing tasks to drain")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Shutdown marks the coordinator as refusing new work; tasks already
// running are left to finish.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown = true
}

// ForceShutdown marks the coordinator as refusing new work and cancels
// the context passed to every in-flight task.
func (c *Coordinator) ForceShutdown() {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
	c.shutdownCause()
}

// ClearShutdownFlag reopens the coordinator for new work after a
// (non-forced) Shutdown, replacing the cancellation context if a
// ForceShutdown had fired one.
func (c *Coordinator) ClearShutdownFlag() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown = false
	select {
	case <-c.shutdownCtx.Done():
		ctx, cancel := context.WithCancel(context.Background())
		c.shutdownCtx = ctx
		c.shutdownCause = cancel
	default:
	}
}

// mergeContexts returns a context canceled when either parent is
// canceled, since Coordinate must respect both the caller's own
// deadline and the coordinator-wide shutdown signal.
func mergeContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() { stop(); cancel() }
}
