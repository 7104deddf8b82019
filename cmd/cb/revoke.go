package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var revokeCmd = &cobra.Command{
	Use:     "revoke <public-key>",
	GroupID: "auth",
	Short:   "Withdraw a public key's right to sign blocks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		if err := l.Engine.Revoke(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Println("revoked")
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <public-key>",
	GroupID: "auth",
	Short:   "Remove a public key's authorization history (refused if unsafe)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		reason, _ := cmd.Flags().GetString("reason")
		if force && reason == "" {
			return fmt.Errorf("--reason is required with --force")
		}

		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		ctx := context.Background()
		if force {
			if err := l.Engine.DangerouslyDelete(ctx, args[0], true, reason); err != nil {
				return err
			}
			fmt.Println("deleted (forced)")
			return nil
		}
		if err := l.Engine.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	},
}

func init() {
	deleteCmd.Flags().Bool("force", false, "bypass safety checks, removing history even for a key that signed blocks")
	deleteCmd.Flags().String("reason", "", "required with --force: why this irreversible, audit-breaking delete is justified")
	rootCmd.AddCommand(revokeCmd, deleteCmd)
}
