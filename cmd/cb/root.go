package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rbatllet/private-blockchain-sub014/internal/config"
	"github.com/rbatllet/private-blockchain-sub014/internal/logx"
)

var rootCmd = &cobra.Command{
	Use:           "cb",
	Short:         "cb operates a single-writer, signed, append-only ledger",
	Long:          `cb admits, validates, rolls back, exports, imports, and repairs a local signed block chain.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return err
		}
		if err := logx.Init(config.LogDir()); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "chain", Title: "Chain:"},
		&cobra.Group{ID: "auth", Title: "Authorization:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
	)
	rootCmd.PersistentFlags().String("db", "", "override database.path from config")
}

// Execute runs the root command, used by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
