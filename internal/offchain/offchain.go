// Package offchain implements C5: content-addressed off-chain payload
// storage with integrity verification on read, grounded on the
// teacher's internal/audit append-only file conventions (atomic
// creation, deterministic paths) generalized from id-addressed JSONL
// entries to hash-addressed binary objects.
package offchain

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/crypto"
)

// Object is the OffChainObject entity (spec §3).
type Object struct {
	DataHash        string
	Signature       string
	FilePath        string
	FileSize        int64
	ContentType     string
	EncryptionIV    string
	EncryptionSalt  string
	SignerPublicKey string
	CreatedAt       time.Time
}

// Metadata is the persistence contract's off_chain_data row accessor;
// the chain engine persists/reads metadata through this narrow
// interface so internal/offchain itself stays storage-engine agnostic.
type Metadata interface {
	SaveOffChainObject(ctx context.Context, o *Object) error
	GetOffChainObject(ctx context.Context, dataHash string) (*Object, error)
	DeleteOffChainObject(ctx context.Context, dataHash string) error
	ListOffChainObjects(ctx context.Context) ([]*Object, error)
	// IsReferenced reports whether any block currently references
	// dataHash, used by orphan collection.
	IsReferenced(ctx context.Context, dataHash string) (bool, error)
}

// Store writes payloads to a content-addressed directory tree and
// verifies integrity/signature on every read.
type Store struct {
	root string
	meta Metadata
}

// New creates a Store rooted at dir, creating it if necessary.
func New(dir string, meta Metadata) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "create off-chain root")
	}
	return &Store{root: dir, meta: meta}, nil
}

// pathFor derives a deterministic, sharded path from a data hash, the
// way the export format's "file names are deterministic functions of
// data_hash" requires (spec §6).
func (s *Store) pathFor(dataHash string) string {
	if len(dataHash) < 4 {
		return filepath.Join(s.root, dataHash)
	}
	return filepath.Join(s.root, dataHash[:2], dataHash[2:4], dataHash)
}

// Put writes payload content-addressed by its hash and records
// metadata carrying the caller-supplied signature sig; Put itself does
// not sign. Returns the stored Object, whose DataHash the caller
// attaches to the admitting block.
func (s *Store) Put(ctx context.Context, payload []byte, contentType string, signerPublicKey string, sig string, iv, salt string) (*Object, error) {
	hash := crypto.Hash(payload)
	path := s.pathFor(hash)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, chainerr.Wrap(chainerr.StorageError, err, "create off-chain shard dir")
	}
	// Idempotent: identical content hashes to the same path.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		tmp, err := os.CreateTemp(filepath.Dir(path), "obj-*.tmp")
		if err != nil {
			return nil, chainerr.Wrap(chainerr.StorageError, err, "create temp off-chain file")
		}
		tmpPath := tmp.Name()
		if _, err := tmp.Write(payload); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return nil, chainerr.Wrap(chainerr.StorageError, err, "write off-chain payload")
		}
		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return nil, chainerr.Wrap(chainerr.StorageError, err, "sync off-chain payload")
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmpPath)
			return nil, chainerr.Wrap(chainerr.StorageError, err, "close off-chain payload")
		}
		if err := os.Rename(tmpPath, path); err != nil {
			_ = os.Remove(tmpPath)
			return nil, chainerr.Wrap(chainerr.StorageError, err, "rename off-chain payload")
		}
	}

	obj := &Object{
		DataHash:        hash,
		Signature:       sig,
		FilePath:        path,
		FileSize:        int64(len(payload)),
		ContentType:     contentType,
		EncryptionIV:    iv,
		EncryptionSalt:  salt,
		SignerPublicKey: signerPublicKey,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.meta.SaveOffChainObject(ctx, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Get reads the payload for dataHash and verifies
// hash(file_bytes) == data_hash and verify(signer, file_bytes,
// signature) before returning, per spec §4.5.
func (s *Store) Get(ctx context.Context, dataHash string) ([]byte, *Object, error) {
	obj, err := s.meta.GetOffChainObject(ctx, dataHash)
	if err != nil {
		return nil, nil, err
	}
	raw, err := os.ReadFile(obj.FilePath)
	if err != nil {
		return nil, nil, chainerr.Wrap(chainerr.StorageError, err, "read off-chain payload")
	}
	if crypto.Hash(raw) != obj.DataHash {
		return nil, nil, chainerr.New(chainerr.OffChainIntegrity, "stored payload does not match data_hash")
	}
	pk, err := crypto.StringToPublicKey(obj.SignerPublicKey)
	if err != nil {
		return nil, nil, chainerr.Wrap(chainerr.OffChainIntegrity, err, "decode signer key")
	}
	ok, err := crypto.VerifyBase64(pk, raw, obj.Signature)
	if err != nil || !ok {
		return nil, nil, chainerr.New(chainerr.OffChainIntegrity, "signature verification failed")
	}
	return raw, obj, nil
}

// CollectOrphans deletes every object older than ttl that no block
// currently references, returning the count removed. Deletion is
// idempotent: a concurrently-removed file is not an error.
func (s *Store) CollectOrphans(ctx context.Context, ttl time.Duration) (int, error) {
	objs, err := s.meta.ListOffChainObjects(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	removed := 0
	for _, o := range objs {
		if now.Sub(o.CreatedAt) < ttl {
			continue
		}
		referenced, err := s.meta.IsReferenced(ctx, o.DataHash)
		if err != nil {
			return removed, err
		}
		if referenced {
			continue
		}
		if err := os.Remove(o.FilePath); err != nil && !os.IsNotExist(err) {
			return removed, chainerr.Wrap(chainerr.StorageError, err, "remove orphaned off-chain file")
		}
		if err := s.meta.DeleteOffChainObject(ctx, o.DataHash); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
