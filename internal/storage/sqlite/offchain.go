package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/offchain"
)

const offChainColumns = `data_hash, signature, file_path, file_size, content_type, encryption_iv, encryption_salt, signer_public_key, created_at`

func (s *Storage) SaveOffChainObject(ctx context.Context, o *offchain.Object) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO off_chain_data (`+offChainColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(data_hash) DO NOTHING`,
			o.DataHash, o.Signature, o.FilePath, o.FileSize, o.ContentType, o.EncryptionIV, o.EncryptionSalt, o.SignerPublicKey, o.CreatedAt.UTC())
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "insert off-chain object metadata")
		}
		return nil
	})
}

func scanOffChainObject(row interface{ Scan(...any) error }) (*offchain.Object, error) {
	var (
		o         offchain.Object
		createdAt time.Time
	)
	if err := row.Scan(&o.DataHash, &o.Signature, &o.FilePath, &o.FileSize, &o.ContentType,
		&o.EncryptionIV, &o.EncryptionSalt, &o.SignerPublicKey, &createdAt); err != nil {
		return nil, err
	}
	o.CreatedAt = createdAt.UTC()
	return &o, nil
}

func (s *Storage) GetOffChainObject(ctx context.Context, dataHash string) (*offchain.Object, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+offChainColumns+` FROM off_chain_data WHERE data_hash = ?`, dataHash)
	o, err := scanOffChainObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chainerr.New(chainerr.StorageError, "off-chain object not found: "+dataHash)
	}
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "get off-chain object")
	}
	return o, nil
}

func (s *Storage) DeleteOffChainObject(ctx context.Context, dataHash string) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM off_chain_data WHERE data_hash = ?`, dataHash)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "delete off-chain object metadata")
		}
		return nil
	})
}

func (s *Storage) ListOffChainObjects(ctx context.Context) ([]*offchain.Object, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+offChainColumns+` FROM off_chain_data ORDER BY created_at ASC`)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "list off-chain objects")
	}
	defer rows.Close()
	var out []*offchain.Object
	for rows.Next() {
		o, err := scanOffChainObject(rows)
		if err != nil {
			return nil, chainerr.Wrap(chainerr.StorageError, err, "scan off-chain object row")
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "iterate off-chain object rows")
	}
	return out, nil
}

func (s *Storage) IsReferenced(ctx context.Context, dataHash string) (bool, error) {
	var x int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM blocks WHERE off_chain_data_hash = ? LIMIT 1`, dataHash).Scan(&x)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, chainerr.Wrap(chainerr.StorageError, err, "check off-chain reference")
	}
	return true, nil
}
