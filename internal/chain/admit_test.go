package chain

import (
	"context"
	"strings"
	"testing"

	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/limits"
)

func TestAdmit_SequentialBlocksLinkCorrectly(t *testing.T) {
	e := newTestEngine(t)
	pk, sk, _ := testSigner(t, e)

	prevHash := ""
	for i := 0; i < 3; i++ {
		b, err := e.Admit(context.Background(), AdmitRequest{
			Data:            "payload",
			SignerPublicKey: pk,
			SignerPrivate:   sk,
		})
		if err != nil {
			t.Fatalf("Admit #%d: %v", i, err)
		}
		if i == 0 {
			prevHash = b.Hash
			continue
		}
		if b.PreviousHash != prevHash {
			t.Errorf("block %d: PreviousHash = %q, want %q", b.Number, b.PreviousHash, prevHash)
		}
		prevHash = b.Hash
	}

	count, err := e.Store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 4 { // genesis + 3
		t.Errorf("Count = %d, want 4", count)
	}
}

func TestAdmit_RejectsUnauthorizedSigner(t *testing.T) {
	e := newTestEngine(t)
	kp, err := newUnauthorizedSigner()
	if err != nil {
		t.Fatalf("newUnauthorizedSigner: %v", err)
	}

	_, err = e.Admit(context.Background(), AdmitRequest{
		Data:            "payload",
		SignerPublicKey: kp.Public,
		SignerPrivate:   kp.Private,
	})
	if err == nil {
		t.Fatal("expected Admit to reject an unauthorized signer")
	}
	if !chainerr.Is(err, chainerr.Unauthorized) {
		t.Errorf("error kind = %v, want Unauthorized", err)
	}
}

func TestAdmit_RejectsOversizedData(t *testing.T) {
	e := newTestEngine(t)
	pk, sk, _ := testSigner(t, e)

	huge := strings.Repeat("x", limits.MaxBlockDataLength+1)
	_, err := e.Admit(context.Background(), AdmitRequest{
		Data:            huge,
		SignerPublicKey: pk,
		SignerPrivate:   sk,
	})
	if err == nil {
		t.Fatal("expected Admit to reject oversized data")
	}
	if !chainerr.Is(err, chainerr.LimitExceeded) {
		t.Errorf("error kind = %v, want LimitExceeded", err)
	}
}
