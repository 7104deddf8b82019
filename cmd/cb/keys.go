package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbatllet/private-blockchain-sub014/internal/config"
	"github.com/rbatllet/private-blockchain-sub014/internal/crypto"
	"github.com/rbatllet/private-blockchain-sub014/internal/crypto/keystore"
)

var keysCmd = &cobra.Command{
	Use:     "keys",
	GroupID: "auth",
	Short:   "Generate and manage signing keys and the key hierarchy",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new signing keypair and write it to disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = filepath.Join(filepath.Dir(config.DatabasePath()), "keys")
		}
		if err := os.MkdirAll(out, 0o700); err != nil {
			return err
		}

		kp, err := crypto.GenerateSigningKeyPair()
		if err != nil {
			return err
		}
		pubStr, err := crypto.PublicKeyToString(kp.Public)
		if err != nil {
			return err
		}
		privStr, err := crypto.PrivateKeyToString(kp.Private)
		if err != nil {
			return err
		}

		stamp := time.Now().UTC().Format("20060102T150405Z")
		pubPath := filepath.Join(out, stamp+".pub")
		privPath := filepath.Join(out, stamp+".key")
		if err := os.WriteFile(pubPath, []byte(pubStr), 0o644); err != nil {
			return err
		}
		if err := os.WriteFile(privPath, []byte(privStr), 0o600); err != nil {
			return err
		}

		fmt.Printf("public key:  %s\n", pubPath)
		fmt.Printf("private key: %s\n", privPath)
		fmt.Println(pubStr)
		return nil
	},
}

func openKeystore() (*keystore.Store, string, error) {
	path := filepath.Join(filepath.Dir(config.DatabasePath()), "keystore.json")
	ks, err := keystore.Load(path)
	return ks, path, err
}

var keysIssueCmd = &cobra.Command{
	Use:   "issue <issuer-id> <public-key> <level:root|intermediate|operational>",
	Short: "Issue a child key in the hierarchical key store",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ks, _, err := openKeystore()
		if err != nil {
			return err
		}

		var level keystore.Level
		switch args[2] {
		case "root":
			level = keystore.LevelRoot
		case "intermediate":
			level = keystore.LevelIntermediate
		case "operational":
			level = keystore.LevelOperational
		default:
			return fmt.Errorf("unknown level %q", args[2])
		}

		ttl, _ := cmd.Flags().GetDuration("ttl")
		expiresAt := time.Now().UTC().Add(ttl)

		var rec *keystore.Record
		if args[0] == "-" {
			rec = ks.IssueRoot(args[1], expiresAt)
		} else {
			rec, err = ks.Issue(args[0], args[1], level, expiresAt)
			if err != nil {
				return err
			}
		}
		if err := ks.Save(); err != nil {
			return err
		}
		fmt.Println(rec.ID)
		return nil
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <key-id>",
	Short: "Revoke a key and every key it transitively issued",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ks, _, err := openKeystore()
		if err != nil {
			return err
		}
		n, err := ks.RevokeCascade(args[0])
		if err != nil {
			return err
		}
		if err := ks.Save(); err != nil {
			return err
		}
		fmt.Printf("revoked %d key(s)\n", n)
		return nil
	},
}

var keysRotateCmd = &cobra.Command{
	Use:   "rotate <key-id> <new-public-key>",
	Short: "Revoke a key and issue a replacement at the same level and issuer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ks, _, err := openKeystore()
		if err != nil {
			return err
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		rec, err := ks.Rotate(args[0], args[1], time.Now().UTC().Add(ttl))
		if err != nil {
			return err
		}
		if err := ks.Save(); err != nil {
			return err
		}
		fmt.Println(rec.ID)
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keys in the hierarchical key store as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, path, err := openKeystore()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("[]")
				return nil
			}
			return err
		}
		var pretty json.RawMessage = data
		out, err := json.MarshalIndent(pretty, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	keysGenerateCmd.Flags().String("out", "", "directory to write the keypair into (default: <db dir>/keys)")
	keysIssueCmd.Flags().Duration("ttl", 365*24*time.Hour, "validity window for the issued key")
	keysRotateCmd.Flags().Duration("ttl", 365*24*time.Hour, "validity window for the replacement key")

	keysCmd.AddCommand(keysGenerateCmd, keysIssueCmd, keysRevokeCmd, keysRotateCmd, keysListCmd)
	rootCmd.AddCommand(keysCmd)
}
