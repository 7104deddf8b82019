package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rbatllet/private-blockchain-sub014/internal/chain"
)

var validateCmd = &cobra.Command{
	Use:     "validate",
	GroupID: "chain",
	Short:   "Walk the whole chain and report structural and compliance status",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		res, err := chain.Validate(context.Background(), l.Storage, l.Storage)
		if err != nil {
			return err
		}
		fmt.Println(res.Summary)
		if !res.IsStructurallyIntact || !res.IsFullyCompliant {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
