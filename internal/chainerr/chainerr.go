// Package chainerr defines the tagged error taxonomy every chain
// operation reports through. Callers switch on Kind rather than
// matching error strings or sentinel values.
package chainerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies the category of failure. See spec §7.
type Kind string

const (
	BlockTooLarge         Kind = "BlockTooLarge"
	Unauthorized          Kind = "Unauthorized"
	InvalidSignature      Kind = "InvalidSignature"
	InvalidHash           Kind = "InvalidHash"
	SequenceGap           Kind = "SequenceGap"
	StorageError          Kind = "StorageError"
	CryptoError           Kind = "CryptoError"
	ChainCorrupted        Kind = "ChainCorrupted"
	ConcurrencyConflict   Kind = "ConcurrencyConflict"
	OffChainIntegrity     Kind = "OffChainIntegrityFailure"
	IndexerBusy           Kind = "IndexerBusy"
	IndexerCancelled      Kind = "IndexerCancelled"
	IndexerTimeout        Kind = "IndexerTimeout"
	LimitExceeded         Kind = "LimitExceeded"
)

// Error is the tagged result every package in this module returns
// instead of a bare error when the failure belongs to the spec's
// taxonomy. It wraps an underlying cause (if any) with pkg/errors so a
// stack trace survives up to the top-level caller/logger.
type Error struct {
	kind    Kind
	message string
	cause   error

	// Range/Count are populated for ChainCorrupted.
	RangeStart int64
	RangeCount int64

	// Limit/LimitKind are populated for LimitExceeded.
	LimitKind  string
	LimitValue int64
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a tagged error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message, cause: errors.New(message)}
}

// Wrap builds a tagged error around an underlying cause, preserving its
// stack trace via pkg/errors.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{kind: kind, message: message, cause: errors.Wrap(cause, message)}
}

// Corrupted builds a ChainCorrupted error describing the affected range.
func Corrupted(rangeStart, rangeCount int64, message string) *Error {
	return &Error{kind: ChainCorrupted, message: message, RangeStart: rangeStart, RangeCount: rangeCount, cause: errors.New(message)}
}

// Exceeded builds a LimitExceeded error naming the violated limit.
func Exceeded(limitKind string, limitValue int64, message string) *Error {
	return &Error{kind: LimitExceeded, message: message, LimitKind: limitKind, LimitValue: limitValue, cause: errors.New(message)}
}

// Is reports whether err is a *Error of the given kind, unwrapping as
// needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.kind == kind
	}
	return false
}
