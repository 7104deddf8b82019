// Package authlog implements C3, the append-only authorization log
// (spec §3, §4.3). Records are never mutated in place: revoke sets
// revoked_at once on the most recent active record, and
// re-authorization always creates a new record, preserving history for
// temporal queries (was_authorized_at) and for recovery's
// re-authorize strategy.
package authlog

import (
	"context"
	"time"
)

// Role tags an authorized key the way the teacher tags issue actors;
// spec leaves the role vocabulary open beyond "super admin" counting,
// so this is intentionally a small closed set plus an escape hatch.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleOperator   Role = "operator"
	RoleSuperAdmin Role = "super_admin"
)

// Record is one AuthorizedKey row (spec §3).
type Record struct {
	ID        int64      `json:"id"`
	PublicKey string     `json:"public_key"`
	OwnerName string     `json:"owner_name"`
	Role      Role       `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	IsActive  bool       `json:"is_active"`
}

// WasActiveAt reports whether r covered instant t: created at or before
// t, and not yet revoked (or revoked strictly after t).
func (r *Record) WasActiveAt(t time.Time) bool {
	if r.CreatedAt.After(t) {
		return false
	}
	if r.RevokedAt == nil {
		return true
	}
	return t.Before(*r.RevokedAt)
}

// Log is the persistence contract for C3.
type Log interface {
	// Add inserts a new record for pk unless an active record for pk
	// already exists, in which case it returns (false, nil).
	Add(ctx context.Context, publicKey, ownerName string, role Role, createdAt time.Time) (bool, error)

	// Revoke sets revoked_at/is_active on the most recent active record
	// for publicKey. No-op (returns nil) if none is active.
	Revoke(ctx context.Context, publicKey string) error

	IsAuthorizedNow(ctx context.Context, publicKey string) (bool, error)

	// WasAuthorizedAt finds the latest record with created_at <= t and
	// reports whether it was active at t.
	WasAuthorizedAt(ctx context.Context, publicKey string, t time.Time) (bool, error)

	ListActive(ctx context.Context) ([]*Record, error)
	ListAll(ctx context.Context) ([]*Record, error)

	// ListForKey returns every historical record for publicKey, ordered
	// by created_at ascending, for recovery's earliest-block lookups and
	// export.
	ListForKey(ctx context.Context, publicKey string) ([]*Record, error)

	// Delete physically removes every record for publicKey. Used by
	// both the safe delete and the dangerous forced delete paths in
	// internal/chain; the safety decision is the caller's.
	Delete(ctx context.Context, publicKey string) error

	CountActiveSuperAdmins(ctx context.Context) (int64, error)
	GetTotalCount(ctx context.Context) (int64, error)

	// InsertHistorical is used only by import: it inserts a record
	// verbatim (including revoked_at), bypassing the active-record
	// idempotency check Add enforces, because import is reloading
	// authoritative history rather than requesting a fresh
	// authorization.
	InsertHistorical(ctx context.Context, r *Record) error

	// Clear removes every record, used by import's atomic replacement
	// step. Named distinctly from block.Store's DeleteAll so a single
	// storage.Storage type can implement both interfaces without a
	// method-signature collision.
	Clear(ctx context.Context) error
}
