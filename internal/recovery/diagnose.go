// Package recovery implements C6: diagnosing chain damage and applying
// bounded, ordered repair strategies. It mirrors the teacher's doctor
// (diagnose) / doctor/fix (repair) split: Diagnose never mutates
// anything, and every Recover strategy is tried in a fixed,
// conservative-first order, stopping at the first one that restores
// compliance.
package recovery

import (
	"context"
	"strconv"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
	"github.com/rbatllet/private-blockchain-sub014/internal/block"
	"github.com/rbatllet/private-blockchain-sub014/internal/chain"
	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/limits"
)

// CorruptedBlock names one block that failed validation and why.
type CorruptedBlock struct {
	Number int64  `json:"block_number"`
	Reason string `json:"reason"`
}

// Diagnosis is the read-only report produced by Diagnose.
type Diagnosis struct {
	*chain.Result

	// Corrupted holds up to limits.MaxDiagnosisSamples individual
	// failures, earliest-first. Truncated reports set TruncatedCount to
	// how many additional failures were not recorded.
	Corrupted      []CorruptedBlock `json:"corrupted_blocks"`
	TruncatedCount int64            `json:"truncated_count"`

	// FirstCorruptedAt is the lowest block_number with a structural
	// defect, or -1 if none. Recovery's bounded-rollback strategy
	// targets the block immediately before this one.
	FirstCorruptedAt int64 `json:"first_corrupted_at"`
}

// Diagnose walks the whole chain once, classifying every block and
// recording (up to the sample cap) why any block failed. It never
// mutates the store or the authorization log.
func Diagnose(ctx context.Context, store block.Store, auth authlog.Log) (*Diagnosis, error) {
	d := &Diagnosis{FirstCorruptedAt: -1}

	res := &chain.Result{IsStructurallyIntact: true, IsFullyCompliant: true}
	d.Result = res

	var prev *block.Block
	err := store.Scroll(ctx, block.Filter{}, 0, func(b *block.Block) (bool, error) {
		res.TotalBlocks++
		verr := chain.ValidateBlock(ctx, auth, b, prev)
		switch {
		case verr == nil:
			res.ValidBlocks++
			if !b.IsGenesis() {
				stillAuthorized, aerr := auth.IsAuthorizedNow(ctx, b.SignerPublicKey)
				if aerr == nil && !stillAuthorized {
					res.RevokedBlocks++
				}
			}
		case chainerr.Is(verr, chainerr.Unauthorized):
			res.IsFullyCompliant = false
			d.record(b.Number, verr.Error())
		default:
			res.IsStructurallyIntact = false
			res.IsFullyCompliant = false
			if d.FirstCorruptedAt < 0 {
				d.FirstCorruptedAt = b.Number
			}
			d.record(b.Number, verr.Error())
		}
		prev = b
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case res.IsFullyCompliant:
		res.Summary = "chain is structurally intact and fully compliant"
	case res.IsStructurallyIntact:
		res.Summary = "chain is structurally intact but not fully compliant"
	default:
		res.Summary = "chain has structural defects starting at block " + strconv.FormatInt(d.FirstCorruptedAt, 10)
	}
	return d, nil
}

func (d *Diagnosis) record(number int64, reason string) {
	if int64(len(d.Corrupted)) >= limits.MaxDiagnosisSamples {
		d.TruncatedCount++
		return
	}
	d.Corrupted = append(d.Corrupted, CorruptedBlock{Number: number, Reason: reason})
}
