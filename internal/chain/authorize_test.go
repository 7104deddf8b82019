package chain

import (
	"context"
	"testing"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
)

func TestAuthorize_SecondCallIsNoop(t *testing.T) {
	e := newTestEngine(t)
	_, _, pkStr := testSigner(t, e)

	added, err := e.Authorize(context.Background(), pkStr, "test signer", authlog.RoleOperator)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if added {
		t.Error("expected second Authorize of an already-active key to report added=false")
	}
}

func TestRevoke_ThenIsAuthorizedNowFalse(t *testing.T) {
	e := newTestEngine(t)
	_, _, pkStr := testSigner(t, e)

	if err := e.Revoke(context.Background(), pkStr); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	ok, err := e.Auth.IsAuthorizedNow(context.Background(), pkStr)
	if err != nil {
		t.Fatalf("IsAuthorizedNow: %v", err)
	}
	if ok {
		t.Error("expected IsAuthorizedNow to be false after Revoke")
	}
}
