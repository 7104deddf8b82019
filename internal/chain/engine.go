// Package chain implements C4, the chain engine: admission, validation,
// rollback, export/import, and dangerous key deletion, all serialized
// behind a single global writer lock (spec §4.4).
package chain

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
	"github.com/rbatllet/private-blockchain-sub014/internal/block"
	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/crypto"
	"github.com/rbatllet/private-blockchain-sub014/internal/offchain"
)

// Engine owns the single global writer lock covering block admission,
// authorization mutations, rollback, and import (spec §4.4). Readers
// (validation, streaming queries) use the store directly without
// acquiring it, relying on the store's own consistent-snapshot
// guarantees (spec §4.2).
type Engine struct {
	Store    block.Store
	Auth     authlog.Log
	OffChain *offchain.Store

	// mu serializes writers within this process. lockFile additionally
	// serializes writers across processes sharing the same database
	// file, the way the teacher's daemon registry uses a sibling
	// .lock file (internal/daemon/registry.go's withFileLock) rather
	// than relying on in-process synchronization alone.
	mu       sync.Mutex
	lockFile *flock.Flock

	// refused is set once a fatal storage condition is observed; after
	// that the engine refuses further writes until Reset, per spec §7's
	// "Fatal conditions ... cause the chain engine to refuse further
	// writes until a reset."
	refused bool
}

// New creates an Engine. lockPath is the cross-process writer lock
// file (typically "<database>.lock"); pass "" to disable cross-process
// locking (e.g. in tests using a private in-memory store).
func New(store block.Store, auth authlog.Log, offChain *offchain.Store, lockPath string) *Engine {
	e := &Engine{Store: store, Auth: auth, OffChain: offChain}
	if lockPath != "" {
		e.lockFile = flock.New(lockPath)
	}
	return e
}

// withWriterLock acquires the in-process mutex and, if configured, the
// cross-process file lock, then runs fn. This is the sole entry point
// every mutating operation (Admit, rollback, import, authorization
// changes) must go through.
func (e *Engine) withWriterLock(ctx context.Context, fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.refused {
		return chainerr.New(chainerr.StorageError, "engine refuses writes after a fatal storage error; call Reset")
	}

	if e.lockFile != nil {
		locked, err := e.lockFile.TryLockContext(ctx, 50*time.Millisecond)
		if err != nil {
			return chainerr.Wrap(chainerr.ConcurrencyConflict, err, "acquire cross-process writer lock")
		}
		if !locked {
			return chainerr.New(chainerr.ConcurrencyConflict, "writer lock held by another process")
		}
		defer func() { _ = e.lockFile.Unlock() }()
	}

	return fn()
}

// Reset clears the refused-writes flag after an operator has addressed
// a fatal storage condition.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refused = false
}

func (e *Engine) markRefused() {
	e.refused = true
}

// InitGenesis creates block 0 if the store is empty (spec §3 I1). It is
// a no-op if a genesis block already exists.
func (e *Engine) InitGenesis(ctx context.Context) error {
	return e.withWriterLock(ctx, func() error {
		count, err := e.Store.Count(ctx)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "count blocks before genesis")
		}
		if count > 0 {
			return nil
		}
		now := time.Now().UTC()
		genesis := &block.Block{
			Number:          0,
			PreviousHash:    crypto.GenesisPreviousHash,
			Data:            nil,
			Timestamp:       now,
			SignerPublicKey: crypto.GenesisSigner,
			Signature:       crypto.GenesisSignature,
		}
		genesis.Hash = crypto.Hash(genesis.Preimage())
		if err := e.Store.Save(ctx, genesis); err != nil {
			e.markRefused()
			return chainerr.Wrap(chainerr.StorageError, err, "save genesis block")
		}
		return nil
	})
}
