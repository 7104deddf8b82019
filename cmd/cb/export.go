package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbatllet/private-blockchain-sub014/internal/config"
	"github.com/rbatllet/private-blockchain-sub014/internal/limits"
)

var exportCmd = &cobra.Command{
	Use:     "export <path>",
	GroupID: "chain",
	Short:   "Stream the chain and authorization log to a JSONL file",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		if err := l.Engine.Export(context.Background(), f); err != nil {
			return err
		}

		total, err := l.Storage.Count(context.Background())
		if err != nil {
			return err
		}
		if total > limits.MaxExportLimit {
			fmt.Fprintf(os.Stderr, "warning: exported %d blocks, above the %d-block export warning threshold\n", total, limits.MaxExportLimit)
		} else if total > limits.SafeExportLimit {
			fmt.Fprintf(os.Stderr, "warning: exported %d blocks, above the %d-block safe export size; exports this large take a while\n", total, limits.SafeExportLimit)
		}
		records, err := l.Storage.ListAll(context.Background())
		if err != nil {
			return err
		}

		manifestPath := args[0] + ".manifest.toml"
		if err := config.WriteExportManifest(manifestPath, config.ExportManifest{
			FormatVersion:    1,
			ExportedAt:       time.Now().UTC(),
			TotalBlocks:      total,
			TotalAuthRecords: int64(len(records)),
			SourceDatabase:   config.DatabasePath(),
		}); err != nil {
			return err
		}

		fmt.Printf("exported %d block(s) to %s (manifest: %s)\n", total, args[0], manifestPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
