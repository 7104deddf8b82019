package block

import (
	"context"
	"time"
)

// Filter narrows a Scroll/range query. Zero values mean "unconstrained".
type Filter struct {
	StartTime  time.Time
	EndTime    time.Time
	Signer     string
	ContentSub string
}

// Consumer is invoked once per block during a Scroll. Returning false
// stops iteration early without an error (consumer-driven early
// termination, spec §4.8).
type Consumer func(b *Block) (keepGoing bool, err error)

// Store is the persistence contract for C2 (spec §4.2). Implementations
// MUST NOT accumulate Scroll results in memory; it must fall back to
// keyset pagination when the backing engine has no server-side cursor.
type Store interface {
	Save(ctx context.Context, b *Block) error
	GetByNumber(ctx context.Context, n int64) (*Block, error)
	GetLast(ctx context.Context) (*Block, error)
	Count(ctx context.Context) (int64, error)
	GetByHash(ctx context.Context, hash string) (*Block, error)
	DeleteByNumber(ctx context.Context, n int64) error
	DeleteAll(ctx context.Context) error
	// DeleteAfter removes every block with number > n and returns the
	// count removed.
	DeleteAfter(ctx context.Context, n int64) (int64, error)
	Exists(ctx context.Context, n int64) (bool, error)

	ByTimeRange(ctx context.Context, start, end time.Time) ([]*Block, error)
	BySigner(ctx context.Context, signerPublicKey string) ([]*Block, error)
	CountBySigner(ctx context.Context, signerPublicKey string) (int64, error)
	SearchContent(ctx context.Context, substring string, maxResults int) ([]*Block, error)

	// Scroll yields blocks in insertion order, batchSize at a time,
	// invoking consumer per block. It uses a server-side cursor when the
	// backing store identifier (Identifier()) supports one, keyset
	// pagination otherwise.
	Scroll(ctx context.Context, filter Filter, batchSize int, consumer Consumer) error

	// Identifier names the concrete backend ("sqlite", "postgres", ...)
	// so the streaming query layer (internal/query) can choose a cursor
	// strategy without a type assertion.
	Identifier() string
}
