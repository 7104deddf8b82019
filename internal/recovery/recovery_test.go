package recovery

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
	"github.com/rbatllet/private-blockchain-sub014/internal/chain"
	"github.com/rbatllet/private-blockchain-sub014/internal/crypto"
	"github.com/rbatllet/private-blockchain-sub014/internal/offchain"
	"github.com/rbatllet/private-blockchain-sub014/internal/storage/sqlite"
)

func newTestEngine(t *testing.T) *chain.Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "chain.db")
	store, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	off, err := offchain.New(filepath.Join(t.TempDir(), "offchain"), store)
	if err != nil {
		t.Fatalf("offchain.New: %v", err)
	}

	e := chain.New(store, store, off, "")
	if err := e.InitGenesis(context.Background()); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}
	return e
}

func authorizedSigner(t *testing.T, e *chain.Engine) (pubStr string, admit func(data string) error) {
	t.Helper()
	kp, err := crypto.GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair: %v", err)
	}
	pubStr, err = crypto.PublicKeyToString(kp.Public)
	if err != nil {
		t.Fatalf("PublicKeyToString: %v", err)
	}
	if _, err := e.Authorize(context.Background(), pubStr, "signer", authlog.RoleOperator); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	admit = func(data string) error {
		_, err := e.Admit(context.Background(), chain.AdmitRequest{
			Data:            data,
			SignerPublicKey: kp.Public,
			SignerPrivate:   kp.Private,
		})
		return err
	}
	return pubStr, admit
}

func TestDiagnose_CompliantChainReportsNoCorruption(t *testing.T) {
	e := newTestEngine(t)
	_, admit := authorizedSigner(t, e)
	for i := 0; i < 3; i++ {
		if err := admit("block"); err != nil {
			t.Fatalf("admit: %v", err)
		}
	}

	diag, err := Diagnose(context.Background(), e.Store, e.Auth)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !diag.IsFullyCompliant {
		t.Error("expected a freshly admitted chain to be fully compliant")
	}
	if len(diag.Corrupted) != 0 {
		t.Errorf("expected no corrupted blocks, got %d", len(diag.Corrupted))
	}
	if diag.FirstCorruptedAt != -1 {
		t.Errorf("FirstCorruptedAt = %d, want -1", diag.FirstCorruptedAt)
	}
}

func TestRecover_ReauthorizeRestoresCompliance(t *testing.T) {
	e := newTestEngine(t)
	pubStr, admit := authorizedSigner(t, e)
	if err := admit("block"); err != nil {
		t.Fatalf("admit: %v", err)
	}

	// Force the signer out of the authorization log entirely, the way a
	// dangerous delete or a botched import would.
	if err := e.DangerouslyDelete(context.Background(), pubStr, true, "test: simulate botched import"); err != nil {
		t.Fatalf("DangerouslyDelete: %v", err)
	}

	out, err := Recover(context.Background(), e, pubStr, "restored", "")
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if out.Strategy != StrategyReauthorize {
		t.Errorf("Strategy = %s, want %s", out.Strategy, StrategyReauthorize)
	}
	if !out.Succeeded {
		t.Errorf("expected recovery to succeed, detail: %s", out.Detail)
	}
}

func TestRecover_CompliantChainShortCircuitsWithNone(t *testing.T) {
	e := newTestEngine(t)
	_, admit := authorizedSigner(t, e)
	if err := admit("block"); err != nil {
		t.Fatalf("admit: %v", err)
	}

	out, err := Recover(context.Background(), e, "", "", "")
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	// Chain was already compliant; Recover should short-circuit with
	// StrategyNone rather than reach for export.
	if out.Strategy != StrategyNone {
		t.Errorf("Strategy = %s, want %s", out.Strategy, StrategyNone)
	}
}
