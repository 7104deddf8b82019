// Package block defines the Block entity (spec §3) and the canonical
// preimage encoding used for both hashing and signing.
package block

import (
	"strconv"
	"time"
)

// OffChainRef points at a payload stored outside the relational store,
// keyed by content hash (see internal/offchain).
type OffChainRef struct {
	DataHash        string `json:"data_hash"`
	Signature       string `json:"signature"`
	FilePath        string `json:"file_path"`
	FileSize        int64  `json:"file_size"`
	ContentType     string `json:"content_type"`
	EncryptionIV    string `json:"encryption_iv,omitempty"`
	EncryptionSalt  string `json:"encryption_salt,omitempty"`
	SignerPublicKey string `json:"signer_public_key"`
}

// Block is the unit of admission (spec §3).
type Block struct {
	Number          int64             `json:"block_number"`
	PreviousHash    string            `json:"previous_hash"`
	Data            *string           `json:"data"`
	Timestamp       time.Time         `json:"timestamp"`
	Hash            string            `json:"hash"`
	Signature       string            `json:"signature"`
	SignerPublicKey string            `json:"signer_public_key"`
	IsEncrypted     bool              `json:"is_encrypted"`
	Category        string            `json:"category,omitempty"`
	Keywords        []string          `json:"keywords,omitempty"`
	CustomMetadata  map[string]string `json:"custom_metadata,omitempty"`
	OffChainRef     *OffChainRef      `json:"off_chain_ref,omitempty"`
}

// IsGenesis reports whether b is block 0.
func (b *Block) IsGenesis() bool { return b.Number == 0 }

// DataOrEmpty returns the data payload, or "" if nil (off-chain blocks
// carry a nil Data and a non-nil OffChainRef instead).
func (b *Block) DataOrEmpty() string {
	if b.Data == nil {
		return ""
	}
	return *b.Data
}

// CanonicalPreimage implements spec §6's exact encoding:
//
//	concat(decimal(block_number), previous_hash_or_empty, data_or_empty,
//	       decimal(epoch_seconds_utc(timestamp)), signer_public_key_or_empty)
//
// with no separators and no escaping. This is the single source of
// truth both the chain engine and any independent verifier must agree
// on byte-for-byte.
func CanonicalPreimage(number int64, previousHash, data string, timestamp time.Time, signerPublicKey string) []byte {
	epoch := timestamp.UTC().Unix()
	s := strconv.FormatInt(number, 10) + previousHash + data + strconv.FormatInt(epoch, 10) + signerPublicKey
	return []byte(s)
}

// Preimage is a convenience wrapper over CanonicalPreimage for an
// already-constructed block.
func (b *Block) Preimage() []byte {
	return CanonicalPreimage(b.Number, b.PreviousHash, b.DataOrEmpty(), b.Timestamp, b.SignerPublicKey)
}
