package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rbatllet/private-blockchain-sub014/internal/block"
	"github.com/rbatllet/private-blockchain-sub014/internal/query"
)

var searchCmd = &cobra.Command{
	Use:     "search",
	GroupID: "chain",
	Short:   "Bounded search over blocks by signer, content, or time range",
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, _ := cmd.Flags().GetString("signer")
		contains, _ := cmd.Flags().GetString("contains")
		max, _ := cmd.Flags().GetInt("max")
		password, _ := cmd.Flags().GetString("password")

		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		var results []*block.Block
		if password != "" {
			if contains == "" {
				return fmt.Errorf("--contains is required with --password")
			}
			results, err = query.SearchEncrypted(context.Background(), l.Storage, contains, password, max)
		} else {
			results, err = query.Search(context.Background(), l.Storage, query.Request{
				Filter:     block.Filter{Signer: signer},
				Wildcard:   contains,
				MaxResults: max,
			})
		}
		if err != nil {
			return err
		}
		for _, b := range results {
			out, err := json.Marshal(b)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
		}
		fmt.Printf("%d result(s)\n", len(results))
		return nil
	},
}

func init() {
	searchCmd.Flags().String("signer", "", "restrict to blocks signed by this public key")
	searchCmd.Flags().String("contains", "", "restrict to blocks whose data contains this substring")
	searchCmd.Flags().Int("max", 0, "maximum results (0 uses the built-in default of 10000)")
	searchCmd.Flags().String("password", "", "search encrypted blocks, decrypting each candidate with this password and stopping at --max matches")
	rootCmd.AddCommand(searchCmd)
}
