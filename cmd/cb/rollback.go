package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rollbackCmd = &cobra.Command{
	Use:     "rollback <n>",
	GroupID: "chain",
	Short:   "Delete the most recent n blocks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var n int64
		if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil {
			return fmt.Errorf("invalid block count %q", args[0])
		}

		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		deleted, err := l.Engine.RollbackN(context.Background(), n, func(deleted, total int64) {
			fmt.Printf("\rdeleted %d/%d blocks", deleted, total)
		})
		fmt.Println()
		if err != nil {
			return err
		}
		fmt.Printf("rolled back %d block(s)\n", deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}
