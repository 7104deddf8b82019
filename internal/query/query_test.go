package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
	"github.com/rbatllet/private-blockchain-sub014/internal/block"
	"github.com/rbatllet/private-blockchain-sub014/internal/chain"
	"github.com/rbatllet/private-blockchain-sub014/internal/crypto"
	"github.com/rbatllet/private-blockchain-sub014/internal/offchain"
	"github.com/rbatllet/private-blockchain-sub014/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Storage {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "chain.db"))
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedChain(t *testing.T, store *sqlite.Storage, data ...string) string {
	t.Helper()
	off, err := offchain.New(filepath.Join(t.TempDir(), "offchain"), store)
	if err != nil {
		t.Fatalf("offchain.New: %v", err)
	}
	e := chain.New(store, store, off, "")
	if err := e.InitGenesis(context.Background()); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}

	kp, err := crypto.GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair: %v", err)
	}
	pkStr, err := crypto.PublicKeyToString(kp.Public)
	if err != nil {
		t.Fatalf("PublicKeyToString: %v", err)
	}
	if _, err := e.Authorize(context.Background(), pkStr, "signer", authlog.RoleOperator); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	for _, d := range data {
		if _, err := e.Admit(context.Background(), chain.AdmitRequest{
			Data:            d,
			SignerPublicKey: kp.Public,
			SignerPrivate:   kp.Private,
		}); err != nil {
			t.Fatalf("Admit: %v", err)
		}
	}
	return pkStr
}

func TestSearch_WildcardMatchesContent(t *testing.T) {
	store := newTestStore(t)
	seedChain(t, store, "alpha payload", "beta payload", "nothing relevant")

	results, err := Search(context.Background(), store, Request{Wildcard: "payload"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
}

func TestSearch_BySigner(t *testing.T) {
	store := newTestStore(t)
	pkStr := seedChain(t, store, "a", "b")

	results, err := Search(context.Background(), store, Request{Filter: block.Filter{Signer: pkStr}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
	for _, b := range results {
		if b.SignerPublicKey != pkStr {
			t.Errorf("block %d signed by %q, want %q", b.Number, b.SignerPublicKey, pkStr)
		}
	}
}

func seedEncryptedChain(t *testing.T, store *sqlite.Storage, password string, data ...string) {
	t.Helper()
	off, err := offchain.New(filepath.Join(t.TempDir(), "offchain"), store)
	if err != nil {
		t.Fatalf("offchain.New: %v", err)
	}
	e := chain.New(store, store, off, "")
	if err := e.InitGenesis(context.Background()); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}

	kp, err := crypto.GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair: %v", err)
	}
	pkStr, err := crypto.PublicKeyToString(kp.Public)
	if err != nil {
		t.Fatalf("PublicKeyToString: %v", err)
	}
	if _, err := e.Authorize(context.Background(), pkStr, "signer", authlog.RoleOperator); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	for _, d := range data {
		encoded, err := crypto.EncryptGCM([]byte(d), password)
		if err != nil {
			t.Fatalf("EncryptGCM: %v", err)
		}
		if _, err := e.Admit(context.Background(), chain.AdmitRequest{
			Data:            encoded,
			IsEncrypted:     true,
			SignerPublicKey: kp.Public,
			SignerPrivate:   kp.Private,
		}); err != nil {
			t.Fatalf("Admit: %v", err)
		}
	}
}

func TestSearchEncrypted_DecryptsAndMatchesTerm(t *testing.T) {
	store := newTestStore(t)
	seedEncryptedChain(t, store, "hunter2", "alpha secret", "beta secret", "nothing relevant")

	results, err := SearchEncrypted(context.Background(), store, "secret", "hunter2", 0)
	if err != nil {
		t.Fatalf("SearchEncrypted: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
}

func TestSearchEncrypted_StopsAtMaxResults(t *testing.T) {
	store := newTestStore(t)
	seedEncryptedChain(t, store, "hunter2", "secret one", "secret two", "secret three")

	results, err := SearchEncrypted(context.Background(), store, "secret", "hunter2", 1)
	if err != nil {
		t.Fatalf("SearchEncrypted: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("len(results) = %d, want 1 (maxResults should stop the scroll early)", len(results))
	}
}

func TestSearchEncrypted_WrongPasswordYieldsNoMatches(t *testing.T) {
	store := newTestStore(t)
	seedEncryptedChain(t, store, "hunter2", "secret payload")

	results, err := SearchEncrypted(context.Background(), store, "secret", "wrong-password", 0)
	if err != nil {
		t.Fatalf("SearchEncrypted: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0 for an undecryptable block", len(results))
	}
}

func TestStream_VisitsEveryBlockInOrder(t *testing.T) {
	store := newTestStore(t)
	seedChain(t, store, "a", "b", "c")

	var numbers []int64
	err := Stream(context.Background(), store, block.Filter{}, 2, func(b *block.Block) (bool, error) {
		numbers = append(numbers, b.Number)
		return true, nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(numbers) != 4 { // genesis + 3
		t.Fatalf("visited %d blocks, want 4", len(numbers))
	}
	for i, n := range numbers {
		if n != int64(i) {
			t.Errorf("numbers[%d] = %d, want %d", i, n, i)
		}
	}
}
