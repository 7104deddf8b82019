package chain

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
	"github.com/rbatllet/private-blockchain-sub014/internal/block"
	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/limits"
)

// exportFormatVersion is bumped whenever the line envelope below changes
// shape in a way old importers can't tolerate.
const exportFormatVersion = 1

// envelope is the one JSON shape every line of an export file takes;
// Type discriminates which of Block/Auth/Header is populated. A
// line-oriented (JSONL) format, rather than one big JSON array, is what
// lets Export and Import both run in constant memory (spec §4.4.4).
type envelope struct {
	Type string          `json:"type"`
	Hdr  *exportHeader   `json:"header,omitempty"`
	Blk  *block.Block    `json:"block,omitempty"`
	Auth *authlog.Record `json:"auth,omitempty"`
}

type exportHeader struct {
	Version          int       `json:"version"`
	ExportedAt       time.Time `json:"exported_at"`
	TotalBlocks      int64     `json:"total_blocks"`
	TotalAuthRecords int64     `json:"total_auth_records"`
}

// Export streams every block (in ascending order) and every
// authorization record to w as newline-delimited JSON, never
// materializing the whole chain in memory. Count limits are the
// caller's concern (spec's SAFE_EXPORT_LIMIT/MAX_EXPORT_LIMIT apply to
// the CLI layer, not this primitive).
func (e *Engine) Export(ctx context.Context, w io.Writer) error {
	blockCount, err := e.Store.Count(ctx)
	if err != nil {
		return chainerr.Wrap(chainerr.StorageError, err, "count blocks for export header")
	}
	authRecords, err := e.Auth.ListAll(ctx)
	if err != nil {
		return chainerr.Wrap(chainerr.StorageError, err, "list auth records for export")
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	if err := enc.Encode(envelope{Type: "header", Hdr: &exportHeader{
		Version:          exportFormatVersion,
		ExportedAt:       time.Now().UTC(),
		TotalBlocks:      blockCount,
		TotalAuthRecords: int64(len(authRecords)),
	}}); err != nil {
		return chainerr.Wrap(chainerr.StorageError, err, "write export header")
	}

	var scrollErr error
	err = e.Store.Scroll(ctx, block.Filter{}, limits.DefaultBatchSize, func(b *block.Block) (bool, error) {
		if err := enc.Encode(envelope{Type: "block", Blk: b}); err != nil {
			scrollErr = err
			return false, err
		}
		return true, nil
	})
	if err != nil {
		if scrollErr != nil {
			return chainerr.Wrap(chainerr.StorageError, scrollErr, "write exported block")
		}
		return chainerr.Wrap(chainerr.StorageError, err, "scroll blocks for export")
	}

	for _, r := range authRecords {
		if err := enc.Encode(envelope{Type: "auth", Auth: r}); err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "write exported auth record")
		}
	}

	if err := bw.Flush(); err != nil {
		return chainerr.Wrap(chainerr.StorageError, err, "flush export stream")
	}
	return nil
}

// temporalAdjustmentMargin is the minimum clearance spec §4.3 requires
// between an authorization record and the blocks it must cover: at
// least one minute before the earliest block the key signed, and at
// least one minute after the latest one.
const temporalAdjustmentMargin = time.Minute

// adjustImportedAuthRecord enforces spec §4.3's import-time temporal-
// consistency requirement in place: a record whose created_at is later
// than the earliest block signed by its key is rewound to at least one
// minute before that block, and a revoked record with no revoked_at is
// backfilled to one minute after the latest block that key signed.
// earliest/latest are the zero time when the key never signed a block
// in the imported stream, in which case neither adjustment applies.
func adjustImportedAuthRecord(rec *authlog.Record, earliest, latest time.Time) {
	if !earliest.IsZero() {
		floor := earliest.Add(-temporalAdjustmentMargin)
		if rec.CreatedAt.After(earliest) {
			rec.CreatedAt = floor
		}
	}
	if rec.RevokedAt == nil && !rec.IsActive && !latest.IsZero() {
		revokedAt := latest.Add(temporalAdjustmentMargin)
		rec.RevokedAt = &revokedAt
	}
}

// Import atomically replaces the chain and authorization log with the
// contents of r, per spec §4.4.4: every existing block and auth record
// is discarded first, the incoming stream is then replayed block by
// block and record by record, and the result is validated end-to-end
// before Import returns. A failed post-import validation leaves the
// replacement in place but reports the defect — there is no second
// copy to roll back to once the old data is gone, so callers that need
// a safety net should Export before Import.
func (e *Engine) Import(ctx context.Context, r io.Reader) (*Result, error) {
	var result *Result
	err := e.withWriterLock(ctx, func() error {
		if err := e.Store.DeleteAll(ctx); err != nil {
			e.markRefused()
			return chainerr.Wrap(chainerr.StorageError, err, "clear blocks before import")
		}
		if err := e.Auth.Clear(ctx); err != nil {
			e.markRefused()
			return chainerr.Wrap(chainerr.StorageError, err, "clear authorization log before import")
		}

		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), limits.MaxBlockSizeBytes*2)

		earliestBySigner := make(map[string]time.Time)
		latestBySigner := make(map[string]time.Time)
		var authRecords []*authlog.Record

		var hdr *exportHeader
		var blocksSeen, authSeen int64
		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}
			var env envelope
			if err := json.Unmarshal(line, &env); err != nil {
				return chainerr.Wrap(chainerr.StorageError, err, "decode import line")
			}
			switch env.Type {
			case "header":
				// The actual counts come from the stream itself; the
				// header's counts are only compared against them below so
				// truncated files fail loudly.
				hdr = env.Hdr
			case "block":
				if env.Blk == nil {
					return chainerr.New(chainerr.StorageError, "import line declares type=block with no payload")
				}
				if err := e.Store.Save(ctx, env.Blk); err != nil {
					e.markRefused()
					return chainerr.Wrap(chainerr.StorageError, err, "replay imported block")
				}
				signer := env.Blk.SignerPublicKey
				if earliest, ok := earliestBySigner[signer]; !ok || env.Blk.Timestamp.Before(earliest) {
					earliestBySigner[signer] = env.Blk.Timestamp
				}
				if latest, ok := latestBySigner[signer]; !ok || env.Blk.Timestamp.After(latest) {
					latestBySigner[signer] = env.Blk.Timestamp
				}
				blocksSeen++
			case "auth":
				if env.Auth == nil {
					return chainerr.New(chainerr.StorageError, "import line declares type=auth with no payload")
				}
				// Auth records are buffered rather than inserted
				// immediately: the temporal-consistency adjustment below
				// needs the full earliest/latest-signed-block map, which
				// an export only finishes writing after all block lines
				// (blocks precede auth records in Export's own stream
				// order).
				authRecords = append(authRecords, env.Auth)
				authSeen++
			default:
				return chainerr.New(chainerr.StorageError, "unrecognized import line type: "+env.Type)
			}
		}
		if err := sc.Err(); err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "read import stream")
		}
		if hdr != nil && (blocksSeen < hdr.TotalBlocks || authSeen < hdr.TotalAuthRecords) {
			return chainerr.New(chainerr.StorageError, "import stream is truncated: fewer lines than its header declares")
		}

		for _, rec := range authRecords {
			adjustImportedAuthRecord(rec, earliestBySigner[rec.PublicKey], latestBySigner[rec.PublicKey])
			if err := e.Auth.InsertHistorical(ctx, rec); err != nil {
				e.markRefused()
				return chainerr.Wrap(chainerr.StorageError, err, "replay imported auth record")
			}
		}

		res, verr := Validate(ctx, e.Store, e.Auth)
		if verr != nil {
			return chainerr.Wrap(chainerr.StorageError, verr, "post-import validation")
		}
		result = res
		if !res.IsStructurallyIntact {
			return chainerr.Corrupted(0, res.TotalBlocks, "imported chain failed post-import structural validation")
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}
