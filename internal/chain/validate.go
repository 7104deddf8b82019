package chain

import (
	"context"

	"github.com/rbatllet/private-blockchain-sub014/internal/authlog"
	"github.com/rbatllet/private-blockchain-sub014/internal/block"
	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/crypto"
)

// ValidateBlock checks b against its predecessor p per spec §4.4.2.
// p is nil only for block 0, which validates trivially.
func ValidateBlock(ctx context.Context, auth authlog.Log, b, p *block.Block) error {
	if b.IsGenesis() {
		if b.PreviousHash != crypto.GenesisPreviousHash {
			return chainerr.New(chainerr.InvalidHash, "genesis previous_hash must be the sentinel \"0\"")
		}
		if b.SignerPublicKey != crypto.GenesisSigner || b.Signature != crypto.GenesisSignature {
			return chainerr.New(chainerr.InvalidSignature, "genesis must carry the GENESIS sentinel signer/signature")
		}
		return nil
	}
	if p == nil {
		return chainerr.New(chainerr.SequenceGap, "non-genesis block has no predecessor")
	}
	if b.PreviousHash != p.Hash {
		return chainerr.New(chainerr.InvalidHash, "previous_hash does not match predecessor's hash")
	}
	if b.Number != p.Number+1 {
		return chainerr.New(chainerr.SequenceGap, "block_number is not predecessor+1")
	}
	if crypto.Hash(b.Preimage()) != b.Hash {
		return chainerr.New(chainerr.InvalidHash, "hash does not match canonical preimage")
	}
	pk, err := crypto.StringToPublicKey(b.SignerPublicKey)
	if err != nil {
		return chainerr.Wrap(chainerr.CryptoError, err, "decode signer public key")
	}
	ok, err := crypto.VerifyBase64(pk, b.Preimage(), b.Signature)
	if err != nil {
		return chainerr.Wrap(chainerr.CryptoError, err, "verify signature")
	}
	if !ok {
		return chainerr.New(chainerr.InvalidSignature, "signature does not verify over canonical preimage")
	}
	wasAuthorized, err := auth.WasAuthorizedAt(ctx, b.SignerPublicKey, b.Timestamp)
	if err != nil {
		return chainerr.Wrap(chainerr.StorageError, err, "check historical authorization")
	}
	if !wasAuthorized {
		return chainerr.New(chainerr.Unauthorized, "signer was not authorized at block timestamp")
	}
	return nil
}

// Result is the structured chain-validation report of spec §4.4.2.
type Result struct {
	IsStructurallyIntact bool
	IsFullyCompliant     bool
	TotalBlocks          int64
	ValidBlocks          int64
	// RevokedBlocks counts blocks signed by a key that was authorized at
	// admission time but is not authorized now — an audit-trail marker,
	// not a structural defect (spec §4.4.2, and the reference choice
	// recorded for the open question in spec §9: revoked blocks count
	// toward the audit trail only, never toward IsFullyCompliant).
	RevokedBlocks int64
	Summary       string
}

// Validate walks the chain from block 0 forward, computing both
// structural intactness (I2/I3/signatures) and full compliance (I2/I3
// plus I4 at every block).
func Validate(ctx context.Context, store block.Store, auth authlog.Log) (*Result, error) {
	res := &Result{IsStructurallyIntact: true, IsFullyCompliant: true}

	var prev *block.Block
	err := store.Scroll(ctx, block.Filter{}, 0, func(b *block.Block) (bool, error) {
		res.TotalBlocks++
		if err := ValidateBlock(ctx, auth, b, prev); err != nil {
			if chainerr.Is(err, chainerr.Unauthorized) {
				res.IsFullyCompliant = false
			} else {
				res.IsStructurallyIntact = false
				res.IsFullyCompliant = false
			}
		} else {
			res.ValidBlocks++
			if !b.IsGenesis() {
				stillAuthorized, aerr := auth.IsAuthorizedNow(ctx, b.SignerPublicKey)
				if aerr == nil && !stillAuthorized {
					res.RevokedBlocks++
				}
			}
		}
		prev = b
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if res.IsFullyCompliant {
		res.Summary = "chain is structurally intact and fully compliant"
	} else if res.IsStructurallyIntact {
		res.Summary = "chain is structurally intact but not fully compliant (signers not authorized at block time present)"
	} else {
		res.Summary = "chain has structural defects"
	}
	return res, nil
}
