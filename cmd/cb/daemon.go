package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbatllet/private-blockchain-sub014/internal/config"
	"github.com/rbatllet/private-blockchain-sub014/internal/daemon"
	"github.com/rbatllet/private-blockchain-sub014/internal/indexer"
	"github.com/rbatllet/private-blockchain-sub014/internal/logx"
	"github.com/rbatllet/private-blockchain-sub014/internal/maintenance"
)

// gracePeriod bounds how long the daemon waits for an in-flight
// maintenance task to finish after a shutdown signal before giving up.
const gracePeriod = 30 * time.Second

// version is reported in the daemon registry entry. It has no
// semantic meaning to the ledger itself, only to `cb daemon status`.
const version = "0.1.0"

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "ops",
	Short:   "Manage the background maintenance daemon (indexer coordinator + scheduler)",
}

// daemonRunCmd is the foreground worker loop. `daemon start` forks a
// detached copy of the current executable running this subcommand;
// it is not meant to be invoked directly by an interactive user.
var daemonRunCmd = &cobra.Command{
	Use:    "run",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		coord := indexer.New()
		sched := maintenance.New(l.Storage, l.OffChain, coord, maintenance.DefaultIntervals())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		watchDir, _ := cmd.Flags().GetString("watch-export-dir")
		if watchDir != "" {
			go func() {
				if err := maintenance.WatchExportDir(ctx, watchDir, l.Engine); err != nil {
					logx.Warnf("daemon: watch %s: %v", watchDir, err)
				}
			}()
		}

		logx.Infof("daemon starting, pid %d", os.Getpid())
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		coord.Shutdown()
		if err := coord.WaitForCompletion(gracePeriod); err != nil {
			logx.Warnf("daemon: %v", err)
		}
		logx.Infof("daemon stopped, pid %d", os.Getpid())
		return nil
	},
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the maintenance daemon in the background and record it in the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := config.DatabasePath()
		if override, _ := cmd.Flags().GetString("db"); override != "" {
			dbPath = override
		}

		reg, err := daemon.NewRegistry()
		if err != nil {
			return err
		}
		if entry, ok, err := reg.Find(dbPath); err != nil {
			return err
		} else if ok {
			fmt.Printf("daemon already running for %s (pid %d)\n", dbPath, entry.PID)
			return nil
		}

		exe, err := os.Executable()
		if err != nil {
			exe = os.Args[0]
		}

		childArgs := []string{"daemon", "run", "--db", dbPath}
		if watchDir, _ := cmd.Flags().GetString("watch-export-dir"); watchDir != "" {
			childArgs = append(childArgs, "--watch-export-dir", watchDir)
		}
		child := exec.Command(exe, childArgs...) // #nosec G204 -- exe is our own executable, args are config/flag controlled
		devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		if err != nil {
			return err
		}
		child.Stdin = devNull
		child.Stdout = devNull
		child.Stderr = devNull
		child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

		if err := child.Start(); err != nil {
			return fmt.Errorf("start daemon process: %w", err)
		}
		go func() { _ = child.Wait() }()

		if err := reg.Register(daemon.Entry{
			DatabasePath: dbPath,
			PID:          child.Process.Pid,
			Version:      version,
			StartedAt:    time.Now().UTC(),
		}); err != nil {
			return err
		}

		fmt.Printf("daemon started for %s (pid %d)\n", dbPath, child.Process.Pid)
		return nil
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon registered for this database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := config.DatabasePath()
		if override, _ := cmd.Flags().GetString("db"); override != "" {
			dbPath = override
		}

		reg, err := daemon.NewRegistry()
		if err != nil {
			return err
		}
		entry, ok, err := reg.Find(dbPath)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("no daemon registered for %s\n", dbPath)
			return nil
		}

		process, err := os.FindProcess(entry.PID)
		if err != nil {
			return reg.Unregister(dbPath)
		}
		if err := process.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("signal daemon pid %d: %w", entry.PID, err)
		}

		for i := 0; i < 30; i++ {
			time.Sleep(100 * time.Millisecond)
			if _, stillAlive, _ := reg.Find(dbPath); !stillAlive {
				fmt.Printf("daemon stopped (pid %d)\n", entry.PID)
				return nil
			}
		}

		fmt.Printf("daemon did not stop within 3s, sending SIGKILL (pid %d)\n", entry.PID)
		_ = process.Kill()
		return reg.Unregister(dbPath)
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a daemon is running for this database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := config.DatabasePath()
		if override, _ := cmd.Flags().GetString("db"); override != "" {
			dbPath = override
		}

		reg, err := daemon.NewRegistry()
		if err != nil {
			return err
		}
		entry, ok, err := reg.Find(dbPath)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("daemon: not running (%s)\n", dbPath)
			return nil
		}
		fmt.Printf("daemon: running (pid %d, version %s, started %s, db %s)\n",
			entry.PID, entry.Version, entry.StartedAt.Format(time.RFC3339), entry.DatabasePath)
		return nil
	},
}

var daemonRunOnceCmd = &cobra.Command{
	Use:   "run-once",
	Short: "Run every maintenance task a single time and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		coord := indexer.New()
		sched := maintenance.New(l.Storage, l.OffChain, coord, maintenance.DefaultIntervals())
		return sched.RunOnce(context.Background())
	},
}

func init() {
	daemonRunCmd.Flags().String("watch-export-dir", "", "watch this directory and auto-import any .jsonl file written to it")
	daemonStartCmd.Flags().String("watch-export-dir", "", "watch this directory and auto-import any .jsonl file written to it")

	daemonCmd.AddCommand(daemonRunCmd, daemonStartCmd, daemonStopCmd, daemonStatusCmd, daemonRunOnceCmd)
	rootCmd.AddCommand(daemonCmd)
}
