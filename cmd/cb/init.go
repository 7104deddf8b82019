package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "chain",
	Short:   "Create the database and admit the genesis block",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		if err := l.Engine.InitGenesis(context.Background()); err != nil {
			return err
		}
		fmt.Println("chain initialized")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
