package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:     "import <path>",
	GroupID: "chain",
	Short:   "Replace the chain and authorization log from a JSONL export",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		res, err := l.Engine.Import(context.Background(), f)
		if err != nil {
			return err
		}
		fmt.Println(res.Summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
