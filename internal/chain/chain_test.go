package chain

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cloudflare/circl/sign"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
	"github.com/rbatllet/private-blockchain-sub014/internal/crypto"
	"github.com/rbatllet/private-blockchain-sub014/internal/offchain"
	"github.com/rbatllet/private-blockchain-sub014/internal/storage/sqlite"
)

// newTestEngine returns an Engine backed by a fresh on-disk sqlite
// database under t.TempDir(), with genesis already admitted. Tests run
// without a cross-process lock file since each test gets its own DB.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "chain.db")
	store, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	offDir := filepath.Join(t.TempDir(), "offchain")
	off, err := offchain.New(offDir, store)
	if err != nil {
		t.Fatalf("offchain.New: %v", err)
	}

	e := New(store, store, off, "")
	if err := e.InitGenesis(context.Background()); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}
	return e
}

// testSigner generates a fresh keypair and authorizes its public key as
// an operator, returning both halves for admission tests.
func testSigner(t *testing.T, e *Engine) (sign.PublicKey, sign.PrivateKey, string) {
	t.Helper()
	kp, err := crypto.GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair: %v", err)
	}
	pkStr, err := crypto.PublicKeyToString(kp.Public)
	if err != nil {
		t.Fatalf("PublicKeyToString: %v", err)
	}
	if _, err := e.Authorize(context.Background(), pkStr, "test signer", authlog.RoleOperator); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	return kp.Public, kp.Private, pkStr
}

// newUnauthorizedSigner generates a keypair that is never added to the
// authorization log, for negative Admit tests.
func newUnauthorizedSigner() (*crypto.KeyPair, error) {
	return crypto.GenerateSigningKeyPair()
}
