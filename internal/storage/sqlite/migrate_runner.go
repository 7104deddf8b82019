package sqlite

import (
	"database/sql"

	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/storage/sqlite/migrations"
)

// migration pairs a stable name (for logging/inspection) with the
// idempotent function that applies it.
type migration struct {
	Name string
	Func func(*sql.DB) error
}

// migrationsList runs in order at every open, same as the teacher's
// migrationsList: every entry must be safe to re-run against an
// already-migrated database.
var migrationsList = []migration{
	{"created_at_index", migrations.MigrateCreatedAtIndex},
	{"off_chain_ref_column", migrations.MigrateOffChainRefColumn},
	{"off_chain_hash_index", migrations.MigrateOffChainHashIndex},
}

func (s *Storage) runMigrations() error {
	for _, m := range migrationsList {
		if err := m.Func(s.db); err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "run migration "+m.Name)
		}
	}
	return nil
}
