// Package config loads the operator-facing configuration surface
// (spec §6) through a viper singleton, the way the teacher's
// internal/config does: walk up from the working directory looking
// for a project-local config file, fall back to a user config
// directory, bind CB_-prefixed environment variables over both, and
// seed defaults for every knob so a bare invocation with no config
// file at all still runs.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/logx"
)

var v *viper.Viper

const configDirName = ".chain"

// Initialize sets up the viper singleton. Call once at process
// startup, before any Get accessor.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := locateConfigFile(v)

	v.SetEnvPrefix("CB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "read config file")
		}
		logx.Debugf("loaded config from %s", v.ConfigFileUsed())
	} else {
		logx.Debugf("no config.yaml found; using defaults and environment variables")
	}
	return nil
}

// locateConfigFile mirrors the teacher's search order: project-local
// first (walking up from cwd), then a user config directory, then the
// user's home directory.
func locateConfigFile(v *viper.Viper) bool {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			candidate := filepath.Join(dir, configDirName, "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				return true
			}
		}
	}
	if dir, err := os.UserConfigDir(); err == nil {
		candidate := filepath.Join(dir, "cb", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			v.SetConfigFile(candidate)
			return true
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, configDirName, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			v.SetConfigFile(candidate)
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", ".chain/chain.db")
	v.SetDefault("database.lock-timeout", "10s")

	v.SetDefault("offchain.dir", ".chain/offchain")
	v.SetDefault("offchain.orphan-ttl", "24h")

	v.SetDefault("log.dir", ".chain/logs")
	v.SetDefault("log.level", "info")

	v.SetDefault("limits.batch-size", 1_000)
	v.SetDefault("limits.max-search-results", 10_000)
	v.SetDefault("limits.safe-export-limit", 100_000)
	v.SetDefault("limits.max-export-limit", 500_000)
	v.SetDefault("limits.large-rollback-threshold", 100_000)
	v.SetDefault("limits.rollback-safety-margin", 0.15)

	v.SetDefault("maintenance.size-check-interval", "1h")
	v.SetDefault("maintenance.vacuum-interval", "168h")
	v.SetDefault("maintenance.orphan-sweep-interval", "24h")

	v.SetDefault("daemon.socket", ".chain/daemon.sock")
	v.SetDefault("daemon.pid-file", ".chain/daemon.pid")
}

// Get returns the loaded viper instance, or panics if Initialize was
// never called — a programmer error, not a runtime condition.
func Get() *viper.Viper {
	if v == nil {
		panic("config: Initialize was not called")
	}
	return v
}

// Typed accessors for the configuration knobs; cmd/cb reads the path
// knobs through them. Kept here rather than scattering
// v.GetString calls across the module, matching the teacher's pattern
// of small typed wrapper functions over the viper singleton.

func DatabasePath() string { return Get().GetString("database.path") }
func OffChainDir() string  { return Get().GetString("offchain.dir") }
func LogDir() string       { return Get().GetString("log.dir") }
func LogLevel() string     { return Get().GetString("log.level") }

func BatchSize() int                { return Get().GetInt("limits.batch-size") }
func MaxSearchResults() int         { return Get().GetInt("limits.max-search-results") }
func SafeExportLimit() int          { return Get().GetInt("limits.safe-export-limit") }
func MaxExportLimit() int           { return Get().GetInt("limits.max-export-limit") }
func LargeRollbackThreshold() int   { return Get().GetInt("limits.large-rollback-threshold") }
func RollbackSafetyMargin() float64 { return Get().GetFloat64("limits.rollback-safety-margin") }

func OrphanTTL() time.Duration           { return Get().GetDuration("offchain.orphan-ttl") }
func SizeCheckInterval() time.Duration   { return Get().GetDuration("maintenance.size-check-interval") }
func VacuumInterval() time.Duration      { return Get().GetDuration("maintenance.vacuum-interval") }
func OrphanSweepInterval() time.Duration { return Get().GetDuration("maintenance.orphan-sweep-interval") }
func DatabaseLockTimeout() time.Duration { return Get().GetDuration("database.lock-timeout") }

func DaemonSocket() string  { return Get().GetString("daemon.socket") }
func DaemonPIDFile() string { return Get().GetString("daemon.pid-file") }
