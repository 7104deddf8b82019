package chain

import (
	"context"
	"time"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
)

// Authorize grants publicKey the right to sign blocks, going through
// the writer lock since it is one of the mutations spec §4.4 lists
// alongside admission, rollback, and import.
func (e *Engine) Authorize(ctx context.Context, publicKey, ownerName string, role authlog.Role) (bool, error) {
	var added bool
	err := e.withWriterLock(ctx, func() error {
		var err error
		added, err = e.Auth.Add(ctx, publicKey, ownerName, role, time.Now().UTC())
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "authorize key")
		}
		return nil
	})
	return added, err
}

// Revoke withdraws publicKey's authorization. It is a no-op if the key
// has no active record. Unlike DangerouslyDelete, the historical
// record is kept: a later ValidateBlock call against blocks signed
// before revocation still sees them as compliant.
func (e *Engine) Revoke(ctx context.Context, publicKey string) error {
	return e.withWriterLock(ctx, func() error {
		if err := e.Auth.Revoke(ctx, publicKey); err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "revoke key")
		}
		return nil
	})
}
