package recovery

import (
	"context"
	"os"
	"time"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
	"github.com/rbatllet/private-blockchain-sub014/internal/chain"
	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/limits"
	"github.com/rbatllet/private-blockchain-sub014/internal/logx"
)

// Strategy names the repair approach that resolved (or attempted to
// resolve) a diagnosis.
type Strategy string

const (
	StrategyNone            Strategy = "none"
	StrategyReauthorize     Strategy = "reauthorize"
	StrategyBoundedRollback Strategy = "bounded_rollback"
	StrategyPartialExport   Strategy = "partial_export"
)

// Outcome reports what Recover did and whether the chain is compliant
// afterward.
type Outcome struct {
	Strategy     Strategy
	Diagnosis    *Diagnosis
	RolledBackTo int64
	ExportPath   string
	Succeeded    bool
	Detail       string
}

// Recover attempts, in order, the three strategies spec §4.6
// describes: re-authorize the offending signer (cheapest, least
// destructive), a bounded rollback to the last good block (destructive
// but bounded), and finally a partial export (last resort: it writes
// the whole chain, damaged blocks included, to exportPath and leaves
// the store untouched). It stops at the first strategy that leaves the
// chain fully compliant.
func Recover(ctx context.Context, engine *chain.Engine, publicKey, ownerName, exportPath string) (*Outcome, error) {
	diag, err := Diagnose(ctx, engine.Store, engine.Auth)
	if err != nil {
		return nil, err
	}
	if diag.IsFullyCompliant {
		return &Outcome{Strategy: StrategyNone, Diagnosis: diag, Succeeded: true, Detail: "chain already compliant"}, nil
	}

	if out, ok, err := tryReauthorize(ctx, engine, diag, publicKey, ownerName); err != nil {
		return nil, err
	} else if ok {
		return out, nil
	}

	if out, ok, err := tryBoundedRollback(ctx, engine, diag); err != nil {
		return nil, err
	} else if ok {
		return out, nil
	}

	return tryPartialExport(ctx, engine, diag, exportPath)
}

// tryReauthorize backdates a new authorization record to just before the
// earliest corrupted block, rather than stamping it with the current
// time: was_authorized_at is strictly temporal (authlog.Record.WasActiveAt),
// so a record created after the offending block's timestamp can never
// retroactively validate it. InsertHistorical is used instead of Add
// specifically to set that backdated created_at.
func tryReauthorize(ctx context.Context, engine *chain.Engine, diag *Diagnosis, publicKey, ownerName string) (*Outcome, bool, error) {
	if publicKey == "" || len(diag.Corrupted) == 0 {
		return nil, false, nil
	}
	offending, err := engine.Store.GetByNumber(ctx, diag.Corrupted[0].Number)
	if err != nil {
		return nil, false, chainerr.Wrap(chainerr.StorageError, err, "fetch offending block")
	}
	record := &authlog.Record{
		PublicKey: publicKey,
		OwnerName: ownerName,
		Role:      authlog.RoleOperator,
		CreatedAt: offending.Timestamp.Add(-time.Second),
		IsActive:  true,
	}
	if err := engine.Auth.InsertHistorical(ctx, record); err != nil {
		return nil, false, chainerr.Wrap(chainerr.StorageError, err, "re-authorize candidate signer")
	}
	logx.Warnf("recovery: backdated authorization for %s ahead of block %d, re-validating", publicKey, offending.Number)

	newDiag, err := Diagnose(ctx, engine.Store, engine.Auth)
	if err != nil {
		return nil, false, err
	}
	if !newDiag.IsFullyCompliant {
		return nil, false, nil
	}
	return &Outcome{Strategy: StrategyReauthorize, Diagnosis: newDiag, Succeeded: true, Detail: "re-authorization restored compliance"}, true, nil
}

func tryBoundedRollback(ctx context.Context, engine *chain.Engine, diag *Diagnosis) (*Outcome, bool, error) {
	if diag.FirstCorruptedAt <= 0 {
		return nil, false, nil
	}
	target := diag.FirstCorruptedAt - 1
	blocksToDrop := diag.TotalBlocks - 1 - target
	if blocksToDrop > int64(float64(limits.LargeRollbackThreshold)*(1+limits.DefaultRollbackSafetyMargin)) {
		logx.Warnf("recovery: bounded rollback would drop %d blocks, above safety margin; skipping to partial export", blocksToDrop)
		return nil, false, nil
	}

	logx.Warnf("recovery: rolling back to block %d to discard %d damaged blocks", target, blocksToDrop)
	if _, err := engine.RollbackTo(ctx, target, nil); err != nil {
		return nil, false, chainerr.Wrap(chainerr.StorageError, err, "bounded rollback")
	}

	newDiag, err := Diagnose(ctx, engine.Store, engine.Auth)
	if err != nil {
		return nil, false, err
	}
	if !newDiag.IsFullyCompliant {
		return nil, false, nil
	}
	return &Outcome{Strategy: StrategyBoundedRollback, Diagnosis: newDiag, RolledBackTo: target, Succeeded: true,
		Detail: "rolled back to last known-good block"}, true, nil
}

func tryPartialExport(ctx context.Context, engine *chain.Engine, diag *Diagnosis, exportPath string) (*Outcome, error) {
	if exportPath == "" {
		return &Outcome{Strategy: StrategyPartialExport, Diagnosis: diag, Succeeded: false,
			Detail: "no export path given; chain remains non-compliant and unmodified"}, nil
	}

	f, err := os.Create(exportPath)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "open partial export destination")
	}
	defer f.Close()

	if err := engine.Export(ctx, f); err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "write partial export")
	}
	logx.Warnf("recovery: exhausted automatic strategies; wrote partial export to %s", exportPath)
	return &Outcome{Strategy: StrategyPartialExport, Diagnosis: diag, ExportPath: exportPath, Succeeded: false,
		Detail: "chain left untouched; everything exportable was written for manual triage"}, nil
}
