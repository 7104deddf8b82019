package chain

import (
	"context"

	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/limits"
)

// ProgressFunc is invoked periodically during a long rollback so a CLI
// or daemon caller can report progress (spec §4.4.3: "callers of a
// large rollback SHOULD receive progress callbacks every
// PROGRESS_REPORT_INTERVAL deleted blocks").
type ProgressFunc func(deleted, total int64)

// RollbackN deletes the last n blocks (n >= 1), refusing to remove
// block 0. It reports progress via progress, which may be nil.
func (e *Engine) RollbackN(ctx context.Context, n int64, progress ProgressFunc) (int64, error) {
	if n <= 0 {
		return 0, chainerr.New(chainerr.StorageError, "rollback count must be positive")
	}

	var deleted int64
	err := e.withWriterLock(ctx, func() error {
		last, err := e.Store.GetLast(ctx)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "fetch last block")
		}
		if last == nil {
			return chainerr.New(chainerr.StorageError, "chain is empty")
		}
		target := last.Number - n
		if target < 0 {
			target = 0
		}
		return e.rollbackTo(ctx, target, n, progress, &deleted)
	})
	return deleted, err
}

// RollbackTo deletes every block with block_number > target, i.e.
// rewinds the chain so target becomes the new head.
func (e *Engine) RollbackTo(ctx context.Context, target int64, progress ProgressFunc) (int64, error) {
	if target < 0 {
		return 0, chainerr.New(chainerr.StorageError, "rollback target must be >= 0")
	}
	var deleted int64
	err := e.withWriterLock(ctx, func() error {
		return e.rollbackTo(ctx, target, -1, progress, &deleted)
	})
	return deleted, err
}

// rollbackTo does the actual streaming delete; it must be called with
// the writer lock already held. expected, when >= 0, is used only to
// size the progress report denominator.
func (e *Engine) rollbackTo(ctx context.Context, target, expected int64, progress ProgressFunc, deleted *int64) error {
	last, err := e.Store.GetLast(ctx)
	if err != nil {
		return chainerr.Wrap(chainerr.StorageError, err, "fetch last block")
	}
	if last == nil || last.Number <= target {
		return nil
	}

	total := last.Number - target
	if expected < 0 {
		expected = total
	}

	var reported int64
	remaining := total
	for remaining > 0 {
		batch := int64(limits.ProgressReportInterval)
		if batch > remaining {
			batch = remaining
		}
		n, err := e.Store.DeleteAfter(ctx, last.Number-reported-batch)
		if err != nil {
			e.markRefused()
			return chainerr.Wrap(chainerr.StorageError, err, "delete block range")
		}
		reported += n
		remaining -= n
		*deleted = reported
		if progress != nil {
			progress(reported, expected)
		}
		if n == 0 {
			break
		}
	}
	return nil
}
