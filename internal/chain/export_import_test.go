package chain

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
)

func TestExportImport_RoundTripsBlocksAndAuthLog(t *testing.T) {
	src := newTestEngine(t)
	pk, sk, pkStr := testSigner(t, src)

	for i := 0; i < 4; i++ {
		if _, err := src.Admit(context.Background(), AdmitRequest{
			Data:            "block",
			SignerPublicKey: pk,
			SignerPrivate:   sk,
		}); err != nil {
			t.Fatalf("Admit: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := src.Export(context.Background(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := newTestEngine(t)
	res, err := dst.Import(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !res.IsStructurallyIntact || !res.IsFullyCompliant {
		t.Fatalf("imported chain not compliant: %s", res.Summary)
	}

	srcCount, _ := src.Store.Count(context.Background())
	dstCount, _ := dst.Store.Count(context.Background())
	if srcCount != dstCount {
		t.Errorf("block count mismatch: src=%d dst=%d", srcCount, dstCount)
	}

	authorized, err := dst.Auth.IsAuthorizedNow(context.Background(), pkStr)
	if err != nil {
		t.Fatalf("IsAuthorizedNow: %v", err)
	}
	if !authorized {
		t.Error("imported authorization log should retain the original signer")
	}
}

func TestAdjustImportedAuthRecord_RewindsCreatedAtBeforeEarliestSignedBlock(t *testing.T) {
	earliest := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := &authlog.Record{
		PublicKey: "pk",
		CreatedAt: earliest.Add(time.Hour), // later than the block it signed
		IsActive:  true,
	}

	adjustImportedAuthRecord(rec, earliest, time.Time{})

	if !rec.CreatedAt.Before(earliest) {
		t.Errorf("CreatedAt = %v, want it rewound to before %v", rec.CreatedAt, earliest)
	}
	if want := earliest.Add(-temporalAdjustmentMargin); !rec.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want exactly %v (one margin before earliest)", rec.CreatedAt, want)
	}
}

func TestAdjustImportedAuthRecord_BackfillsMissingRevokedAt(t *testing.T) {
	latest := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := &authlog.Record{
		PublicKey: "pk",
		CreatedAt: latest.Add(-time.Hour),
		IsActive:  false, // revoked, but RevokedAt never recorded
	}

	adjustImportedAuthRecord(rec, time.Time{}, latest)

	if rec.RevokedAt == nil {
		t.Fatal("expected RevokedAt to be backfilled")
	}
	if want := latest.Add(temporalAdjustmentMargin); !rec.RevokedAt.Equal(want) {
		t.Errorf("RevokedAt = %v, want exactly %v (one margin after latest)", *rec.RevokedAt, want)
	}
}

func TestAdjustImportedAuthRecord_NoOpWhenKeyNeverSignedAnImportedBlock(t *testing.T) {
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &authlog.Record{PublicKey: "pk", CreatedAt: createdAt, IsActive: false}

	adjustImportedAuthRecord(rec, time.Time{}, time.Time{})

	if !rec.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt changed to %v despite no signed blocks in the import", rec.CreatedAt)
	}
	if rec.RevokedAt != nil {
		t.Error("RevokedAt backfilled despite no signed blocks in the import")
	}
}
