// Package migrations holds idempotent schema upgrades applied after the
// base schema, mirroring the teacher's
// internal/storage/sqlite/migrations package: one function per
// migration, safe to re-run.
package migrations

import "database/sql"

// MigrateCreatedAtIndex adds an index supporting was_authorized_at's
// "latest record with created_at <= t" lookup.
func MigrateCreatedAtIndex(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_authorized_keys_created_at ON authorized_keys(public_key, created_at)`)
	return err
}

// MigrateOffChainRefColumn ensures older databases created before
// off-chain support gained the blocks.off_chain_data_hash column.
func MigrateOffChainRefColumn(db *sql.DB) error {
	rows, err := db.Query(`PRAGMA table_info(blocks)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	hasColumn := false
	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dfltValue  any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == "off_chain_data_hash" {
			hasColumn = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if hasColumn {
		return nil
	}
	_, err = db.Exec(`ALTER TABLE blocks ADD COLUMN off_chain_data_hash TEXT`)
	return err
}

// MigrateOffChainHashIndex adds an index for orphan-collection scans
// over off_chain_data_hash.
func MigrateOffChainHashIndex(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_blocks_offchain_hash ON blocks(off_chain_data_hash)`)
	return err
}
