package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestExportManifest_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.jsonl.manifest.toml")
	want := ExportManifest{
		FormatVersion:    1,
		ExportedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		TotalBlocks:      42,
		TotalAuthRecords: 3,
		SourceDatabase:   ".chain/chain.db",
	}

	if err := WriteExportManifest(path, want); err != nil {
		t.Fatalf("WriteExportManifest: %v", err)
	}

	got, err := ReadExportManifest(path)
	if err != nil {
		t.Fatalf("ReadExportManifest: %v", err)
	}

	if diff := cmp.Diff(want, *got, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Errorf("manifest round-trip mismatch (-want +got):\n%s", diff)
	}
}
