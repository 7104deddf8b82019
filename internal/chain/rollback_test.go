package chain

import (
	"context"
	"testing"
)

func TestRollbackN_RemovesTrailingBlocks(t *testing.T) {
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

	var reports []int64
	deleted, err := e.RollbackN(context.Background(), 3, func(d, total int64) {
		reports = append(reports, d)
	})
	if err != nil {
		t.Fatalf("RollbackN: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	last, err := e.Store.GetLast(context.Background())
	if err != nil {
		t.Fatalf("GetLast: %v", err)
	}
	if last.Number != 2 {
		t.Errorf("last block number = %d, want 2", last.Number)
	}
}

func TestRollbackN_ClampsAtZero(t *testing.T) {
	e := newTestEngine(t)
	pk, sk, _ := testSigner(t, e)
	if _, err := e.Admit(context.Background(), AdmitRequest{
		Data:            "block",
		SignerPublicKey: pk,
		SignerPrivate:   sk,
	}); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	if _, err := e.RollbackN(context.Background(), 1000, nil); err != nil {
		t.Fatalf("RollbackN: %v", err)
	}

	last, err := e.Store.GetLast(context.Background())
	if err != nil {
		t.Fatalf("GetLast: %v", err)
	}
	if last.Number != 0 {
		t.Errorf("last block number = %d, want 0 (genesis must survive)", last.Number)
	}
}
