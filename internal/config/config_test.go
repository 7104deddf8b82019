package config

import (
	"testing"
	"time"
)

func TestInitialize_DefaultsApplyWithNoConfigFile(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if BatchSize() != 1_000 {
		t.Errorf("BatchSize() = %d, want 1000", BatchSize())
	}
	if OrphanTTL() != 24*time.Hour {
		t.Errorf("OrphanTTL() = %v, want 24h", OrphanTTL())
	}
}

func TestInitialize_EnvironmentOverridesDefault(t *testing.T) {
	t.Setenv("CB_DATABASE_PATH", "/tmp/override/chain.db")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := DatabasePath(); got != "/tmp/override/chain.db" {
		t.Errorf("DatabasePath() = %q, want override", got)
	}
}

func TestGet_PanicsBeforeInitialize(t *testing.T) {
	v = nil
	defer func() {
		if recover() == nil {
			t.Error("expected Get to panic before Initialize")
		}
	}()
	Get()
}
