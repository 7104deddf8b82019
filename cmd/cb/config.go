package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "ops",
	Short:   "Read and write the on-chain database's runtime configuration store",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration key, recording the change in configuration_audit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()
		return l.Storage.SetConfig(context.Background(), args[0], args[1])
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()
		v, err := l.Storage.GetConfig(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every configuration key and value",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()
		all, err := l.Storage.GetAllConfig(context.Background())
		if err != nil {
			return err
		}
		for k, v := range all {
			fmt.Printf("%s=%s\n", k, v)
		}
		return nil
	},
}

var configHistoryCmd = &cobra.Command{
	Use:   "history <key>",
	Short: "Print the change history for a configuration key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()
		entries, err := l.Storage.ConfigAuditLog(context.Background(), args[0])
		if err != nil {
			return err
		}
		for _, e := range entries {
			old := "<unset>"
			if e.OldValue != nil {
				old = *e.OldValue
			}
			fmt.Printf("%s  %s -> %s  (%s)\n", e.ChangedAt.Format("2006-01-02T15:04:05Z"), old, e.NewValue, e.ConfigKey)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd, configGetCmd, configListCmd, configHistoryCmd)
	rootCmd.AddCommand(configCmd)
}
