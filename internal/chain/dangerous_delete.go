package chain

import (
	"context"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/logx"
)

// CanDelete reports whether publicKey has any authorization history at
// all; a key never seen has nothing to delete.
func (e *Engine) CanDelete(ctx context.Context, publicKey string) (bool, error) {
	records, err := e.Auth.ListForKey(ctx, publicKey)
	if err != nil {
		return false, chainerr.Wrap(chainerr.StorageError, err, "list records for key")
	}
	return len(records) > 0, nil
}

// CanSafelyDelete reports whether physically removing publicKey's
// authorization history would not erase the only record of the chain's
// last super admin, and would not strand blocks that depend on
// was_authorized_at(publicKey, ...) to validate (spec §4.4.5: deleting
// a key's history makes every block it ever signed permanently
// unverifiable, since there is no longer a historical record to check
// against).
func (e *Engine) CanSafelyDelete(ctx context.Context, publicKey string) (bool, string, error) {
	records, err := e.Auth.ListForKey(ctx, publicKey)
	if err != nil {
		return false, "", chainerr.Wrap(chainerr.StorageError, err, "list records for key")
	}
	if len(records) == 0 {
		return false, "no authorization history for this key", nil
	}

	for _, r := range records {
		if r.Role == authlog.RoleSuperAdmin && r.IsActive {
			total, err := e.Auth.CountActiveSuperAdmins(ctx)
			if err != nil {
				return false, "", chainerr.Wrap(chainerr.StorageError, err, "count active super admins")
			}
			if total <= 1 {
				return false, "key is the last active super admin", nil
			}
		}
	}

	signed, err := e.Store.CountBySigner(ctx, publicKey)
	if err != nil {
		return false, "", chainerr.Wrap(chainerr.StorageError, err, "count blocks signed by key")
	}
	if signed > 0 {
		return false, "key has signed blocks that would become unverifiable", nil
	}

	return true, "", nil
}

// Delete removes publicKey's authorization history only if
// CanSafelyDelete approves; otherwise it returns an Unauthorized error
// naming the reason.
func (e *Engine) Delete(ctx context.Context, publicKey string) error {
	return e.withWriterLock(ctx, func() error {
		ok, reason, err := e.CanSafelyDelete(ctx, publicKey)
		if err != nil {
			return err
		}
		if !ok {
			return chainerr.New(chainerr.Unauthorized, "refusing unsafe delete: "+reason)
		}
		if err := e.Auth.Delete(ctx, publicKey); err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "delete authorization history")
		}
		return nil
	})
}

// DangerouslyDelete removes publicKey's authorization history iff it
// exists. If the key has signed any blocks (affected > 0) the call is
// refused unless force is set; a forced delete over an affected key
// makes every block it signed permanently unverifiable by
// was_authorized_at and will show up as Unauthorized on the next full
// Validate. reason is required whenever the call actually bypasses the
// affected-count check and is recorded in the log line, since a forced
// delete is by design an irreversible, audit-breaking operation.
func (e *Engine) DangerouslyDelete(ctx context.Context, publicKey string, force bool, reason string) error {
	return e.withWriterLock(ctx, func() error {
		ok, err := e.CanDelete(ctx, publicKey)
		if err != nil {
			return err
		}
		if !ok {
			return chainerr.New(chainerr.StorageError, "no authorization history for this key")
		}
		affected, err := e.Store.CountBySigner(ctx, publicKey)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "count blocks signed by key")
		}
		if affected > 0 && !force {
			return chainerr.New(chainerr.Unauthorized, "refusing to delete: key has signed blocks, pass force=true to override")
		}
		if affected > 0 && reason == "" {
			return chainerr.New(chainerr.Unauthorized, "refusing to delete: a reason is required for a forced delete of a key with signed blocks")
		}
		logx.Warnf("dangerously deleting authorization history for key %s (affected=%d force=%v reason=%q)", publicKey, affected, force, reason)
		if err := e.Auth.Delete(ctx, publicKey); err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "forcibly delete authorization history")
		}
		return nil
	})
}
