package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rbatllet/private-blockchain-sub014/internal/recovery"
)

var recoverCmd = &cobra.Command{
	Use:     "recover",
	GroupID: "ops",
	Short:   "Diagnose and try, in order, re-authorize, bounded rollback, then partial export",
	RunE: func(cmd *cobra.Command, args []string) error {
		publicKey, _ := cmd.Flags().GetString("reauthorize-key")
		ownerName, _ := cmd.Flags().GetString("owner")
		exportPath, _ := cmd.Flags().GetString("export-to")

		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		out, err := recovery.Recover(context.Background(), l.Engine, publicKey, ownerName, exportPath)
		if err != nil {
			return err
		}
		fmt.Printf("strategy: %s\n", out.Strategy)
		fmt.Printf("succeeded: %v\n", out.Succeeded)
		if out.Detail != "" {
			fmt.Println(out.Detail)
		}
		if out.RolledBackTo > 0 {
			fmt.Printf("rolled back to block %d\n", out.RolledBackTo)
		}
		if out.ExportPath != "" {
			fmt.Printf("partial export written to %s\n", out.ExportPath)
		}
		return nil
	},
}

func init() {
	recoverCmd.Flags().String("reauthorize-key", "", "public key to re-authorize if the corruption is an unauthorized signer")
	recoverCmd.Flags().String("owner", "recovered", "owner name to record for --reauthorize-key")
	recoverCmd.Flags().String("export-to", "", "path for a last-resort partial export if recovery cannot repair the chain in place")
	rootCmd.AddCommand(recoverCmd)
}
