package chain

import (
	"context"
	"testing"
)

func TestValidate_FreshChainIsCompliant(t *testing.T) {
	e := newTestEngine(t)
	pk, sk, _ := testSigner(t, e)

	for i := 0; i < 5; i++ {
		if _, err := e.Admit(context.Background(), AdmitRequest{
			Data:            "block",
			SignerPublicKey: pk,
			SignerPrivate:   sk,
		}); err != nil {
			t.Fatalf("Admit: %v", err)
		}
	}

	res, err := Validate(context.Background(), e.Store, e.Auth)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.IsStructurallyIntact {
		t.Error("expected IsStructurallyIntact")
	}
	if !res.IsFullyCompliant {
		t.Error("expected IsFullyCompliant")
	}
	if res.TotalBlocks != 6 {
		t.Errorf("TotalBlocks = %d, want 6", res.TotalBlocks)
	}
}

func TestValidate_RevokedSignerStaysStructurallyIntact(t *testing.T) {
	e := newTestEngine(t)
	pk, sk, pkStr := testSigner(t, e)

	if _, err := e.Admit(context.Background(), AdmitRequest{
		Data:            "block",
		SignerPublicKey: pk,
		SignerPrivate:   sk,
	}); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	if err := e.Revoke(context.Background(), pkStr); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	res, err := Validate(context.Background(), e.Store, e.Auth)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.IsStructurallyIntact {
		t.Error("revoking a signer after the fact must not break structural integrity")
	}
	if !res.IsFullyCompliant {
		t.Error("a block signed while authorized stays compliant after later revocation")
	}
}
