package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rbatllet/private-blockchain-sub014/internal/block"
	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/limits"
)

const blockColumns = `block_number, previous_hash, data, timestamp, hash, signature, signer_public_key,
	is_encrypted, category, keywords, custom_metadata, off_chain_data_hash`

func scanBlock(row interface{ Scan(...any) error }) (*block.Block, error) {
	var (
		b              block.Block
		data           sql.NullString
		ts             time.Time
		isEncrypted    int
		category       string
		keywordsRaw    string
		metadataRaw    string
		offChainHash   sql.NullString
	)
	if err := row.Scan(&b.Number, &b.PreviousHash, &data, &ts, &b.Hash, &b.Signature, &b.SignerPublicKey,
		&isEncrypted, &category, &keywordsRaw, &metadataRaw, &offChainHash); err != nil {
		return nil, err
	}
	if data.Valid {
		v := data.String
		b.Data = &v
	}
	b.Timestamp = ts.UTC()
	b.IsEncrypted = isEncrypted != 0
	b.Category = category
	if keywordsRaw != "" {
		b.Keywords = strings.Split(keywordsRaw, ",")
	}
	if metadataRaw != "" && metadataRaw != "{}" {
		m := make(map[string]string)
		if err := json.Unmarshal([]byte(metadataRaw), &m); err == nil {
			b.CustomMetadata = m
		}
	}
	if offChainHash.Valid && offChainHash.String != "" {
		b.OffChainRef = &block.OffChainRef{DataHash: offChainHash.String}
	}
	return &b, nil
}

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	if len(m) > limits.MaxJSONMetadataIterations {
		return "", chainerr.Exceeded("custom_metadata", int64(limits.MaxJSONMetadataIterations), "custom_metadata has too many entries")
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", chainerr.Wrap(chainerr.StorageError, err, "marshal custom_metadata")
	}
	return string(raw), nil
}

// Save inserts b. The caller (internal/chain, under the writer lock) is
// responsible for ensuring b.Number is the correct next value; Save
// relies on the UNIQUE constraint on block_number to surface a race as
// a StorageError rather than silently overwriting.
func (s *Storage) Save(ctx context.Context, b *block.Block) error {
	metadataJSON, err := encodeMetadata(b.CustomMetadata)
	if err != nil {
		return err
	}
	var offChainHash sql.NullString
	if b.OffChainRef != nil {
		offChainHash = sql.NullString{String: b.OffChainRef.DataHash, Valid: true}
	}
	var data sql.NullString
	if b.Data != nil {
		data = sql.NullString{String: *b.Data, Valid: true}
	}

	return s.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO blocks (`+blockColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.Number, b.PreviousHash, data, b.Timestamp.UTC(), b.Hash, b.Signature, b.SignerPublicKey,
			boolToInt(b.IsEncrypted), b.Category, strings.Join(b.Keywords, ","), metadataJSON, offChainHash)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "insert block")
		}
		_, err = tx.ExecContext(ctx, `UPDATE block_sequence SET next_value = ? WHERE sequence_name = 'block_number' AND next_value < ?`, b.Number+1, b.Number+1)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "advance block_sequence")
		}
		return nil
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *Storage) GetByNumber(ctx context.Context, n int64) (*block.Block, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE block_number = ?`, n)
	b, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "get block by number")
	}
	return b, nil
}

func (s *Storage) GetLast(ctx context.Context) (*block.Block, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks ORDER BY block_number DESC LIMIT 1`)
	b, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "get last block")
	}
	return b, nil
}

func (s *Storage) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks`).Scan(&n); err != nil {
		return 0, chainerr.Wrap(chainerr.StorageError, err, "count blocks")
	}
	return n, nil
}

func (s *Storage) GetByHash(ctx context.Context, hash string) (*block.Block, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE hash = ?`, hash)
	b, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "get block by hash")
	}
	return b, nil
}

func (s *Storage) DeleteByNumber(ctx context.Context, n int64) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		if n == 0 {
			return chainerr.New(chainerr.ConcurrencyConflict, "genesis block cannot be deleted")
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE block_number = ?`, n)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "delete block by number")
		}
		return nil
	})
}

func (s *Storage) DeleteAll(ctx context.Context) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM blocks`); err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "delete all blocks")
		}
		if _, err := tx.ExecContext(ctx, `UPDATE block_sequence SET next_value = 0 WHERE sequence_name = 'block_number'`); err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "reset block_sequence")
		}
		return nil
	})
}

// DeleteAfter removes blocks in bounded batches so a very large rollback
// range never materializes a single huge DELETE's worth of undo log in
// memory. Spec §4.4.3 requires this streaming-delete behavior but
// leaves the progress callback to the chain engine; DeleteAfter loops
// until no block above n remains and returns the total removed.
func (s *Storage) DeleteAfter(ctx context.Context, n int64) (int64, error) {
	var total int64
	for {
		var affected int64
		err := s.tx(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `
				DELETE FROM blocks WHERE block_number IN (
					SELECT block_number FROM blocks WHERE block_number > ? ORDER BY block_number DESC LIMIT ?
				)`, n, limits.ProgressReportInterval)
			if err != nil {
				return chainerr.Wrap(chainerr.StorageError, err, "delete block batch")
			}
			affected, err = res.RowsAffected()
			return err
		})
		if err != nil {
			return total, err
		}
		total += affected
		if affected < limits.ProgressReportInterval {
			break
		}
	}
	return total, nil
}

func (s *Storage) Exists(ctx context.Context, n int64) (bool, error) {
	var x int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM blocks WHERE block_number = ?`, n).Scan(&x)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, chainerr.Wrap(chainerr.StorageError, err, "check block existence")
	}
	return true, nil
}

func (s *Storage) ByTimeRange(ctx context.Context, start, end time.Time) ([]*block.Block, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE timestamp >= ? AND timestamp <= ? ORDER BY block_number ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "query by time range")
	}
	defer rows.Close()
	return collectBlocks(rows)
}

func (s *Storage) BySigner(ctx context.Context, signerPublicKey string) ([]*block.Block, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE signer_public_key = ? ORDER BY block_number ASC`, signerPublicKey)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "query by signer")
	}
	defer rows.Close()
	return collectBlocks(rows)
}

func (s *Storage) CountBySigner(ctx context.Context, signerPublicKey string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks WHERE signer_public_key = ?`, signerPublicKey).Scan(&n); err != nil {
		return 0, chainerr.Wrap(chainerr.StorageError, err, "count by signer")
	}
	return n, nil
}

// SearchContent performs a bounded substring search. maxResults is
// clamped to [1, MaxBatchSize] by the caller (internal/query); here we
// defensively re-clamp so no direct caller of the storage layer can
// bypass the cap.
func (s *Storage) SearchContent(ctx context.Context, substring string, maxResults int) ([]*block.Block, error) {
	if maxResults <= 0 || maxResults > limits.MaxBatchSize {
		maxResults = limits.MaxBatchSize
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE data LIKE ? ESCAPE '\' ORDER BY block_number ASC LIMIT ?`,
		"%"+escapeLike(substring)+"%", maxResults)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "search content")
	}
	defer rows.Close()
	return collectBlocks(rows)
}

func escapeLike(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}

func collectBlocks(rows *sql.Rows) ([]*block.Block, error) {
	var out []*block.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, chainerr.Wrap(chainerr.StorageError, err, "scan block row")
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "iterate block rows")
	}
	return out, nil
}

// Scroll implements spec §4.2/§4.8's cursor-or-keyset streaming
// contract. ncruces/go-sqlite3 has no server-side cursor distinct from
// a forward-only *sql.Rows, so Scroll always keyset-paginates here —
// Identifier() lets internal/query know this backend's choice without
// a type assertion, and a future postgres backend can report a true
// cursor instead.
func (s *Storage) Scroll(ctx context.Context, filter block.Filter, batchSize int, consumer block.Consumer) error {
	if batchSize <= 0 || batchSize > limits.MaxBatchSize {
		batchSize = limits.DefaultBatchSize
	}

	var lastSeen int64 = -1
	for {
		query := `SELECT ` + blockColumns + ` FROM blocks WHERE block_number > ?`
		args := []any{lastSeen}
		if !filter.StartTime.IsZero() {
			query += ` AND timestamp >= ?`
			args = append(args, filter.StartTime.UTC())
		}
		if !filter.EndTime.IsZero() {
			query += ` AND timestamp <= ?`
			args = append(args, filter.EndTime.UTC())
		}
		if filter.Signer != "" {
			query += ` AND signer_public_key = ?`
			args = append(args, filter.Signer)
		}
		if filter.ContentSub != "" {
			query += ` AND data LIKE ? ESCAPE '\'`
			args = append(args, "%"+escapeLike(filter.ContentSub)+"%")
		}
		query += ` ORDER BY block_number ASC LIMIT ?`
		args = append(args, batchSize)

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "scroll query batch")
		}

		batchCount := 0
		stop := false
		for rows.Next() {
			b, err := scanBlock(rows)
			if err != nil {
				rows.Close()
				return chainerr.Wrap(chainerr.StorageError, err, "scroll scan row")
			}
			batchCount++
			lastSeen = b.Number
			keepGoing, cerr := consumer(b)
			if cerr != nil {
				rows.Close()
				return cerr
			}
			if !keepGoing {
				stop = true
				break
			}
		}
		rerr := rows.Err()
		rows.Close()
		if rerr != nil {
			return chainerr.Wrap(chainerr.StorageError, rerr, "scroll iterate batch")
		}
		if stop || batchCount < batchSize {
			return nil
		}
	}
}
