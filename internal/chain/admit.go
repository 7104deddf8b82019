package chain

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/cloudflare/circl/sign"

	"github.com/rbatllet/private-blockchain-sub014/internal/block"
	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/crypto"
	"github.com/rbatllet/private-blockchain-sub014/internal/limits"
)

// AdmitRequest carries everything Admit needs beyond the signing
// material: optional off-chain routing and the block's searchable
// metadata.
type AdmitRequest struct {
	Data            string
	Category        string
	Keywords        []string
	CustomMetadata  map[string]string
	IsEncrypted     bool
	OffChainRef     *block.OffChainRef
	SignerPublicKey sign.PublicKey
	SignerPrivate   sign.PrivateKey
}

// Admit appends one block under the writer lock, following spec
// §4.4.1: validate size, require current authorization, compute the
// next sequence number, build and sign the canonical preimage, and
// re-validate the result against its predecessor before persisting.
func (e *Engine) Admit(ctx context.Context, req AdmitRequest) (*block.Block, error) {
	if err := validateSize(req.Data); err != nil {
		return nil, err
	}

	var admitted *block.Block
	err := e.withWriterLock(ctx, func() error {
		t := time.Now().UTC()

		pkStr, err := crypto.PublicKeyToString(req.SignerPublicKey)
		if err != nil {
			return chainerr.Wrap(chainerr.CryptoError, err, "encode signer public key")
		}
		authorized, err := e.Auth.WasAuthorizedAt(ctx, pkStr, t)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "check current authorization")
		}
		if !authorized {
			return chainerr.New(chainerr.Unauthorized, "signer is not currently authorized")
		}

		last, err := e.Store.GetLast(ctx)
		if err != nil {
			return chainerr.Wrap(chainerr.StorageError, err, "fetch last block")
		}
		if last == nil {
			return chainerr.New(chainerr.SequenceGap, "no genesis block; call InitGenesis first")
		}

		data := req.Data
		var dataPtr *string
		if req.OffChainRef == nil {
			dataPtr = &data
		}

		b := &block.Block{
			Number:          last.Number + 1,
			PreviousHash:    last.Hash,
			Data:            dataPtr,
			Timestamp:       t,
			SignerPublicKey: pkStr,
			IsEncrypted:     req.IsEncrypted,
			Category:        req.Category,
			Keywords:        req.Keywords,
			CustomMetadata:  req.CustomMetadata,
			OffChainRef:     req.OffChainRef,
		}

		preimage := b.Preimage()
		b.Hash = crypto.Hash(preimage)
		sig, err := crypto.SignBase64(req.SignerPrivate, preimage)
		if err != nil {
			return chainerr.Wrap(chainerr.CryptoError, err, "sign block")
		}
		b.Signature = sig

		if err := ValidateBlock(ctx, e.Auth, b, last); err != nil {
			return err
		}

		if err := e.Store.Save(ctx, b); err != nil {
			e.markRefused()
			return chainerr.Wrap(chainerr.StorageError, err, "save block")
		}

		admitted = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return admitted, nil
}

// validateSize enforces I5 (char-count bound) and the wire-size bound
// (MaxBlockSizeBytes) independently, since a multi-byte-heavy string
// can be short in characters but large in bytes.
func validateSize(data string) error {
	if utf8.RuneCountInString(data) > limits.MaxBlockDataLength {
		return chainerr.Exceeded("block_data_length", limits.MaxBlockDataLength, "block data exceeds maximum character length")
	}
	if len(data) > limits.MaxBlockSizeBytes {
		return chainerr.Exceeded("block_size_bytes", limits.MaxBlockSizeBytes, "block data exceeds maximum byte size")
	}
	return nil
}
