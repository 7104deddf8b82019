package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
)

const configType = "string"

// SetConfig writes key=value and appends a before/after row to
// configuration_audit, mirroring the teacher's event-sourcing of issue
// mutations (internal/storage/sqlite/events.go) applied to config
// changes instead.
func (s *Storage) SetConfig(ctx context.Context, key, value string) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		var oldValue sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT config_value FROM configuration WHERE config_key = ? AND config_type = ?`, key, configType).Scan(&oldValue)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return chainerr.Wrap(chainerr.StorageError, err, "read prior config value")
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO configuration (config_key, config_type, config_value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(config_key, config_type) DO UPDATE SET config_value = excluded.config_value, updated_at = excluded.updated_at`,
			key, configType, value, now)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "upsert config")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO configuration_audit (config_key, config_type, old_value, new_value, changed_at)
			VALUES (?, ?, ?, ?, ?)`, key, configType, oldValue, value, now)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "append config audit entry")
		}
		return nil
	})
}

func (s *Storage) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT config_value FROM configuration WHERE config_key = ? AND config_type = ?`, key, configType).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", chainerr.Wrap(chainerr.StorageError, err, "get config")
	}
	return value, nil
}

func (s *Storage) GetAllConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT config_key, config_value FROM configuration WHERE config_type = ?`, configType)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "list config")
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, chainerr.Wrap(chainerr.StorageError, err, "scan config row")
		}
		out[k] = v
	}
	return out, rows.Err()
}

// ConfigAuditEntry is one row of the configuration change history.
type ConfigAuditEntry struct {
	ConfigKey string
	OldValue  *string
	NewValue  string
	ChangedAt time.Time
}

// ConfigAuditLog returns the full change history for key, newest first.
func (s *Storage) ConfigAuditLog(ctx context.Context, key string) ([]*ConfigAuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT config_key, old_value, new_value, changed_at FROM configuration_audit
		WHERE config_key = ? ORDER BY changed_at DESC`, key)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "query config audit log")
	}
	defer rows.Close()
	var out []*ConfigAuditEntry
	for rows.Next() {
		var (
			e        ConfigAuditEntry
			oldValue sql.NullString
		)
		if err := rows.Scan(&e.ConfigKey, &oldValue, &e.NewValue, &e.ChangedAt); err != nil {
			return nil, chainerr.Wrap(chainerr.StorageError, err, "scan config audit row")
		}
		if oldValue.Valid {
			v := oldValue.String
			e.OldValue = &v
		}
		e.ChangedAt = e.ChangedAt.UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}
