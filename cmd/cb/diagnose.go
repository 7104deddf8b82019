package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rbatllet/private-blockchain-sub014/internal/recovery"
)

var diagnoseCmd = &cobra.Command{
	Use:     "diagnose",
	GroupID: "ops",
	Short:   "Read-only scan reporting corruption without changing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		diag, err := recovery.Diagnose(context.Background(), l.Storage, l.Storage)
		if err != nil {
			return err
		}
		fmt.Println(diag.Summary)
		for _, c := range diag.Corrupted {
			fmt.Printf("  block %d: %s\n", c.Number, c.Reason)
		}
		if diag.TruncatedCount > 0 {
			fmt.Printf("  ... and %d more\n", diag.TruncatedCount)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)
}
