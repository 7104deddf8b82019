package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rbatllet/private-blockchain-sub014/internal/chain"
	"github.com/rbatllet/private-blockchain-sub014/internal/config"
	"github.com/rbatllet/private-blockchain-sub014/internal/offchain"
	"github.com/rbatllet/private-blockchain-sub014/internal/storage/sqlite"
)

// ledger bundles everything a subcommand needs and owns the database
// handle; callers must defer ledger.Close().
type ledger struct {
	Storage  *sqlite.Storage
	OffChain *offchain.Store
	Engine   *chain.Engine
}

func (l *ledger) Close() error {
	return l.Storage.Close()
}

// openLedger wires up storage, off-chain object storage, and the chain
// engine from the loaded configuration, honoring a --db flag override
// the way the teacher's commands honor --db against BD_DB/config.
func openLedger(cmd *cobra.Command) (*ledger, error) {
	dbPath := config.DatabasePath()
	if override, _ := cmd.Flags().GetString("db"); override != "" {
		dbPath = override
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(config.OffChainDir(), 0o755); err != nil {
		_ = store.Close()
		return nil, err
	}
	off, err := offchain.New(config.OffChainDir(), store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	engine := chain.New(store, store, off, dbPath+".lock")

	return &ledger{Storage: store, OffChain: off, Engine: engine}, nil
}
