package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
)

var authorizeCmd = &cobra.Command{
	Use:     "authorize <public-key> <owner-name> [role]",
	GroupID: "auth",
	Short:   "Grant a public key the right to sign blocks",
	Args:    cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := authlog.RoleOperator
		if len(args) == 3 {
			switch args[2] {
			case "admin":
				role = authlog.RoleAdmin
			case "operator":
				role = authlog.RoleOperator
			case "super_admin":
				role = authlog.RoleSuperAdmin
			default:
				return fmt.Errorf("unknown role %q", args[2])
			}
		}

		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		added, err := l.Engine.Authorize(context.Background(), args[0], args[1], role)
		if err != nil {
			return err
		}
		if !added {
			fmt.Println("already authorized")
			return nil
		}
		fmt.Println("authorized")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authorizeCmd)
}
