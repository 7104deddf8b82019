package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/rbatllet/private-blockchain-sub014/internal/config"
)

var showCmd = &cobra.Command{
	Use:     "show <block-number>",
	GroupID: "chain",
	Short:   "Print one block as JSON",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var n int64
		if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil {
			return fmt.Errorf("invalid block number %q", args[0])
		}

		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		if err := printBlock(l, n); err != nil {
			return err
		}

		watch, _ := cmd.Flags().GetBool("watch")
		if !watch {
			return nil
		}
		return watchBlock(cmd, l, n)
	},
}

func printBlock(l *ledger, n int64) error {
	b, err := l.Storage.GetByNumber(context.Background(), n)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// watchBlock re-prints the block whenever the underlying database file
// is written, using fsnotify the way the teacher's daemon watches
// .beads/*.jsonl for changes. It runs until interrupted.
func watchBlock(cmd *cobra.Command, l *ledger, n int64) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dbPath := config.DatabasePath()
	if override, _ := cmd.Flags().GetString("db"); override != "" {
		dbPath = override
	}
	if err := watcher.Add(dbPath); err != nil {
		return fmt.Errorf("watch %s: %w", dbPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := printBlock(l, n); err != nil {
				fmt.Fprintln(os.Stderr, "show --watch:", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "show --watch: watcher error:", err)
		}
	}
}

func init() {
	showCmd.Flags().Bool("watch", false, "keep running, re-printing the block whenever the database file changes")
	rootCmd.AddCommand(showCmd)
}
