package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
)

func scanRecord(row interface{ Scan(...any) error }) (*authlog.Record, error) {
	var (
		r         authlog.Record
		createdAt time.Time
		revokedAt sql.NullTime
		isActive  int
	)
	if err := row.Scan(&r.ID, &r.PublicKey, &r.OwnerName, &r.Role, &createdAt, &revokedAt, &isActive); err != nil {
		return nil, err
	}
	r.CreatedAt = createdAt.UTC()
	if revokedAt.Valid {
		t := revokedAt.Time.UTC()
		r.RevokedAt = &t
	}
	r.IsActive = isActive != 0
	return &r, nil
}

const authColumns = `id, public_key, owner_name, role, created_at, revoked_at, is_active`

// Add implements authlog.Log.Add: idempotent-by-current-state,
// rejecting a new record while an active one exists for publicKey.
func (s *Storage) Add(ctx context.Context, publicKey, ownerName string, role authlog.Role, createdAt time.Time) (bool, error) {
	added := false
	err := s.tx(ctx, func(tx *sql.Tx) error {
		var x int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM authorized_keys WHERE public_key = ? AND is_active = 1 LIMIT 1`, publicKey).Scan(&x)
		if err == nil {
			return nil // active record exists; added stays false
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return chainerr.Wrap(chainerr.StorageError, err, "check existing authorization")
		}
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO authorized_keys (public_key, owner_name, role, created_at, revoked_at, is_active)
			VALUES (?, ?, ?, ?, NULL, 1)`, publicKey, ownerName, string(role), createdAt.UTC())
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "insert authorization record")
		}
		added = true
		return nil
	})
	return added, err
}

func (s *Storage) Revoke(ctx context.Context, publicKey string) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE authorized_keys SET is_active = 0, revoked_at = ?
			WHERE id = (SELECT id FROM authorized_keys WHERE public_key = ? AND is_active = 1 ORDER BY created_at DESC LIMIT 1)`,
			time.Now().UTC(), publicKey)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "revoke authorization record")
		}
		_, err = res.RowsAffected()
		return err
	})
}

func (s *Storage) IsAuthorizedNow(ctx context.Context, publicKey string) (bool, error) {
	return s.WasAuthorizedAt(ctx, publicKey, time.Now().UTC())
}

// WasAuthorizedAt finds the latest record with created_at <= t and
// reports whether it was active at t, per spec §4.3.
func (s *Storage) WasAuthorizedAt(ctx context.Context, publicKey string, t time.Time) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+authColumns+` FROM authorized_keys
		WHERE public_key = ? AND created_at <= ?
		ORDER BY created_at DESC LIMIT 1`, publicKey, t.UTC())
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, chainerr.Wrap(chainerr.StorageError, err, "lookup authorization at time")
	}
	return r.WasActiveAt(t.UTC()), nil
}

func (s *Storage) ListActive(ctx context.Context) ([]*authlog.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+authColumns+` FROM authorized_keys WHERE is_active = 1 ORDER BY created_at ASC`)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "list active authorizations")
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *Storage) ListAll(ctx context.Context) ([]*authlog.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+authColumns+` FROM authorized_keys ORDER BY created_at ASC`)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "list all authorizations")
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *Storage) ListForKey(ctx context.Context, publicKey string) ([]*authlog.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+authColumns+` FROM authorized_keys WHERE public_key = ? ORDER BY created_at ASC`, publicKey)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "list authorizations for key")
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *Storage) Delete(ctx context.Context, publicKey string) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM authorized_keys WHERE public_key = ?`, publicKey)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "delete authorization records")
		}
		return nil
	})
}

func (s *Storage) CountActiveSuperAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM authorized_keys WHERE is_active = 1 AND role = ?`, string(authlog.RoleSuperAdmin)).Scan(&n)
	if err != nil {
		return 0, chainerr.Wrap(chainerr.StorageError, err, "count active super admins")
	}
	return n, nil
}

func (s *Storage) GetTotalCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM authorized_keys`).Scan(&n); err != nil {
		return 0, chainerr.Wrap(chainerr.StorageError, err, "count all authorizations")
	}
	return n, nil
}

func (s *Storage) InsertHistorical(ctx context.Context, r *authlog.Record) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		var revokedAt sql.NullTime
		if r.RevokedAt != nil {
			revokedAt = sql.NullTime{Time: r.RevokedAt.UTC(), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO authorized_keys (public_key, owner_name, role, created_at, revoked_at, is_active)
			VALUES (?, ?, ?, ?, ?, ?)`, r.PublicKey, r.OwnerName, string(r.Role), r.CreatedAt.UTC(), revokedAt, boolToInt(r.IsActive))
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "insert historical authorization record")
		}
		return nil
	})
}

// Clear implements authlog.Log.Clear.
func (s *Storage) Clear(ctx context.Context) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM authorized_keys`)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "delete all authorizations")
		}
		return nil
	})
}

func collectRecords(rows *sql.Rows) ([]*authlog.Record, error) {
	var out []*authlog.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, chainerr.Wrap(chainerr.StorageError, err, "scan authorization row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "iterate authorization rows")
	}
	return out, nil
}
