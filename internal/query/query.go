// Package query implements C8: a bounded search for callers that want
// a finite slice back, and a streaming interface for callers that want
// to walk the whole chain in constant memory. Both sit on top of
// block.Store's own Scroll/SearchContent primitives; this package's
// job is only to apply the memory-safety caps from internal/limits.
// The cursor strategy is the store's own Scroll choice; Stream logs
// the backend's Identifier() so that choice is visible.
package query

import (
	"context"
	"strings"

	"github.com/rbatllet/private-blockchain-sub014/internal/block"
	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/crypto"
	"github.com/rbatllet/private-blockchain-sub014/internal/limits"
	"github.com/rbatllet/private-blockchain-sub014/internal/logx"
)

// Request narrows a bounded Search. A zero value matches everything
// (subject to MaxResults).
type Request struct {
	Filter     block.Filter
	Wildcard   string // substring match against block data, applied in addition to Filter
	MaxResults int    // 0 means DefaultMaxSearchResults
}

// Search returns up to req.MaxResults (clamped to
// limits.DefaultMaxSearchResults/MaxBatchSize) matching blocks,
// newest constraints applied first so a narrow filter never pays for
// scanning results it will discard.
func Search(ctx context.Context, store block.Store, req Request) ([]*block.Block, error) {
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = limits.DefaultMaxSearchResults
	}
	if maxResults > limits.MaxBatchSize {
		maxResults = limits.MaxBatchSize
	}

	if req.Wildcard != "" {
		return store.SearchContent(ctx, req.Wildcard, maxResults)
	}

	if req.Filter.Signer != "" && req.Filter.StartTime.IsZero() && req.Filter.EndTime.IsZero() {
		blocks, err := store.BySigner(ctx, req.Filter.Signer)
		if err != nil {
			return nil, chainerr.Wrap(chainerr.StorageError, err, "search by signer")
		}
		return clamp(blocks, maxResults), nil
	}

	if !req.Filter.StartTime.IsZero() || !req.Filter.EndTime.IsZero() {
		blocks, err := store.ByTimeRange(ctx, req.Filter.StartTime, req.Filter.EndTime)
		if err != nil {
			return nil, chainerr.Wrap(chainerr.StorageError, err, "search by time range")
		}
		blocks = filterBySigner(blocks, req.Filter.Signer)
		return clamp(blocks, maxResults), nil
	}

	var out []*block.Block
	err := store.Scroll(ctx, req.Filter, limits.DefaultBatchSize, func(b *block.Block) (bool, error) {
		out = append(out, b)
		return len(out) < maxResults, nil
	})
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "search via scroll")
	}
	return out, nil
}

// SearchEncrypted implements spec §4.8's encrypted-term search: unlike
// Search's WHERE-clause wildcard match, term matching against an
// encrypted block's payload requires decrypting it first, so this
// walks the chain via Scroll and decrypts only IsEncrypted blocks,
// stopping as soon as maxResults matches are found. No block beyond
// the limit is ever decrypted, and plaintext blocks are skipped
// without attempting to decrypt them.
func SearchEncrypted(ctx context.Context, store block.Store, term, password string, maxResults int) ([]*block.Block, error) {
	if maxResults <= 0 {
		maxResults = limits.DefaultMaxSearchResults
	}
	if maxResults > limits.MaxBatchSize {
		maxResults = limits.MaxBatchSize
	}

	var out []*block.Block
	err := store.Scroll(ctx, block.Filter{}, limits.DefaultBatchSize, func(b *block.Block) (bool, error) {
		if len(out) >= maxResults {
			return false, nil
		}
		if !b.IsEncrypted {
			return true, nil
		}
		plaintext, err := crypto.DecryptGCM(b.DataOrEmpty(), password)
		if err != nil {
			logx.Warnf("query: skipping encrypted block %d: %v", b.Number, err)
			return true, nil
		}
		if strings.Contains(string(plaintext), term) {
			out = append(out, b)
		}
		return len(out) < maxResults, nil
	})
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "search encrypted blocks")
	}
	return out, nil
}

func filterBySigner(blocks []*block.Block, signer string) []*block.Block {
	if signer == "" {
		return blocks
	}
	out := blocks[:0]
	for _, b := range blocks {
		if b.SignerPublicKey == signer {
			out = append(out, b)
		}
	}
	return out
}

func clamp(blocks []*block.Block, max int) []*block.Block {
	if len(blocks) > max {
		return blocks[:max]
	}
	return blocks
}

// Stream walks the whole chain matching filter, invoking consumer per
// block with no upper bound on total results — only the batch size is
// capped, so peak memory stays O(batchSize) regardless of chain
// length. It logs which cursor strategy the backend is using once per
// call, at debug level, so operators can confirm a true server-side
// cursor is in play rather than keyset pagination.
func Stream(ctx context.Context, store block.Store, filter block.Filter, batchSize int, consumer block.Consumer) error {
	if batchSize <= 0 {
		batchSize = limits.DefaultBatchSize
	}
	if batchSize > limits.MaxBatchSize {
		batchSize = limits.MaxBatchSize
	}
	logx.Debugf("query: streaming via backend %q (batch size %d)", store.Identifier(), batchSize)
	if err := store.Scroll(ctx, filter, batchSize, consumer); err != nil {
		return chainerr.Wrap(chainerr.StorageError, err, "stream blocks")
	}
	return nil
}

// MatchesWildcard reports whether a block's data contains substring,
// case-sensitively. SearchContent's server-side LIKE match folds ASCII
// letter case, so the two can differ on case alone. Exposed so callers
// composing their own Scroll consumer can apply a substring rule
// client-side without SQL escaping concerns.
func MatchesWildcard(b *block.Block, substring string) bool {
	return strings.Contains(b.DataOrEmpty(), substring)
}
