package chain

import (
	"context"
	"testing"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/crypto"
)

func TestDelete_RefusesWhenKeyHasSignedBlocks(t *testing.T) {
	e := newTestEngine(t)
	pk, sk, pkStr := testSigner(t, e)

	if _, err := e.Admit(context.Background(), AdmitRequest{
		Data:            "block",
		SignerPublicKey: pk,
		SignerPrivate:   sk,
	}); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	err := e.Delete(context.Background(), pkStr)
	if err == nil {
		t.Fatal("expected Delete to refuse a key with signed blocks")
	}
	if !chainerr.Is(err, chainerr.Unauthorized) {
		t.Errorf("error kind = %v, want Unauthorized", err)
	}
}

func TestDangerouslyDelete_BypassesSafetyChecks(t *testing.T) {
	e := newTestEngine(t)
	pk, sk, pkStr := testSigner(t, e)

	if _, err := e.Admit(context.Background(), AdmitRequest{
		Data:            "block",
		SignerPublicKey: pk,
		SignerPrivate:   sk,
	}); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	if err := e.DangerouslyDelete(context.Background(), pkStr, false, ""); err == nil {
		t.Fatal("expected DangerouslyDelete without force to refuse a key with signed blocks")
	}

	if err := e.DangerouslyDelete(context.Background(), pkStr, true, "test cleanup"); err != nil {
		t.Fatalf("DangerouslyDelete: %v", err)
	}

	res, err := Validate(context.Background(), e.Store, e.Auth)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.IsFullyCompliant {
		t.Error("deleting a signer's history should leave its blocks unverifiable")
	}
}

func TestCanSafelyDelete_RefusesLastSuperAdmin(t *testing.T) {
	e := newTestEngine(t)
	kp, err := newUnauthorizedSigner()
	if err != nil {
		t.Fatalf("newUnauthorizedSigner: %v", err)
	}
	pkStr, err := crypto.PublicKeyToString(kp.Public)
	if err != nil {
		t.Fatalf("PublicKeyToString: %v", err)
	}
	if _, err := e.Authorize(context.Background(), pkStr, "root", authlog.RoleSuperAdmin); err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	ok, reason, err := e.CanSafelyDelete(context.Background(), pkStr)
	if err != nil {
		t.Fatalf("CanSafelyDelete: %v", err)
	}
	if ok {
		t.Error("expected CanSafelyDelete to refuse the last active super admin")
	}
	if reason == "" {
		t.Error("expected a non-empty refusal reason")
	}
}
