package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rbatllet/private-blockchain-sub014/internal/chain"
	"github.com/rbatllet/private-blockchain-sub014/internal/crypto"
)

var admitCmd = &cobra.Command{
	Use:     "admit <data>",
	GroupID: "chain",
	Short:   "Sign and append one block",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyPath, _ := cmd.Flags().GetString("key")
		if keyPath == "" {
			return fmt.Errorf("--key is required")
		}
		category, _ := cmd.Flags().GetString("category")
		keywords, _ := cmd.Flags().GetStringSlice("keyword")
		password, _ := cmd.Flags().GetString("password")

		pubPath, _ := cmd.Flags().GetString("pub")
		if pubPath == "" {
			pubPath = strings.TrimSuffix(keyPath, filepath.Ext(keyPath)) + ".pub"
		}

		privBytes, err := os.ReadFile(keyPath)
		if err != nil {
			return err
		}
		sk, err := crypto.StringToPrivateKey(string(privBytes))
		if err != nil {
			return err
		}
		pubBytes, err := os.ReadFile(pubPath)
		if err != nil {
			return err
		}
		pk, err := crypto.StringToPublicKey(string(pubBytes))
		if err != nil {
			return err
		}

		data := args[0]
		isEncrypted := password != ""
		if isEncrypted {
			encoded, err := crypto.EncryptGCM([]byte(data), password)
			if err != nil {
				return err
			}
			data = encoded
		}

		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		b, err := l.Engine.Admit(context.Background(), chain.AdmitRequest{
			Data:            data,
			Category:        category,
			Keywords:        keywords,
			IsEncrypted:     isEncrypted,
			SignerPublicKey: pk,
			SignerPrivate:   sk,
		})
		if err != nil {
			return err
		}
		fmt.Printf("admitted block %d (hash %s)\n", b.Number, b.Hash)
		return nil
	},
}

func init() {
	admitCmd.Flags().String("key", "", "path to a private key file produced by `cb keys generate`")
	admitCmd.Flags().String("pub", "", "path to the matching public key file (defaults to <key> with .pub extension)")
	admitCmd.Flags().String("category", "", "optional category tag")
	admitCmd.Flags().StringSlice("keyword", nil, "optional searchable keyword (repeatable)")
	admitCmd.Flags().String("password", "", "if set, encrypt the block's data with AES-GCM under this password before admitting")
	rootCmd.AddCommand(admitCmd)
}
