// Package keystore implements the optional hierarchical key store named
// in spec §4.1: a root key issues intermediate keys, intermediates issue
// operational keys, and revocation can cascade down the tree. It is a
// pure in-memory + JSON-persisted structure, generalized from the
// teacher's daemon registry (internal/daemon/registry.go): an
// RW-mutex-guarded map, serialized to disk with an atomic
// write-temp-then-rename.
package keystore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbatllet/private-blockchain-sub014/internal/chainerr"
	"github.com/rbatllet/private-blockchain-sub014/internal/crypto"
)

// Level identifies where a key sits in the hierarchy.
type Level int

const (
	LevelRoot Level = iota
	LevelIntermediate
	LevelOperational
)

// Record is one node in the hierarchy.
type Record struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	IssuerID  string    `json:"issuer_id,omitempty"`
	PublicKey string    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	RevokedAt time.Time `json:"revoked_at,omitempty"`
}

// Store is the hierarchical key store. Zero value is not usable; call
// New or Load.
type Store struct {
	mu       sync.RWMutex
	path     string
	records  map[string]*Record
	children map[string][]string // issuer id -> child ids
}

// New creates an empty, unpersisted store.
func New() *Store {
	return &Store{records: make(map[string]*Record), children: make(map[string][]string)}
}

// Load reads a store from path, or returns an empty store if the file
// does not exist yet — mirroring the teacher registry's
// readEntriesLocked tolerance of a missing file.
func Load(path string) (*Store, error) {
	s := New()
	s.path = path
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, chainerr.Wrap(chainerr.StorageError, err, "read keystore file")
	}
	var recs []*Record
	if len(data) > 0 {
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, chainerr.Wrap(chainerr.StorageError, err, "parse keystore file")
		}
	}
	for _, r := range recs {
		s.records[r.ID] = r
		if r.IssuerID != "" {
			s.children[r.IssuerID] = append(s.children[r.IssuerID], r.ID)
		}
	}
	return s, nil
}

// Save persists the store atomically (temp file + rename), matching the
// teacher's writeEntriesLocked pattern.
func (s *Store) Save() error {
	s.mu.RLock()
	recs := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	path := s.path
	s.mu.RUnlock()

	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return chainerr.Wrap(chainerr.StorageError, err, "marshal keystore")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return chainerr.Wrap(chainerr.StorageError, err, "create keystore dir")
	}
	tmp, err := os.CreateTemp(dir, "keystore-*.json.tmp")
	if err != nil {
		return chainerr.Wrap(chainerr.StorageError, err, "create temp keystore file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return chainerr.Wrap(chainerr.StorageError, err, "write temp keystore file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return chainerr.Wrap(chainerr.StorageError, err, "sync temp keystore file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return chainerr.Wrap(chainerr.StorageError, err, "close temp keystore file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return chainerr.Wrap(chainerr.StorageError, err, "rename temp keystore file")
	}
	return nil
}

// IssueRoot creates a new root key with the given validity window.
func (s *Store) IssueRoot(publicKey string, expiresAt time.Time) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &Record{ID: uuid.NewString(), Level: LevelRoot, PublicKey: publicKey, CreatedAt: time.Now().UTC(), ExpiresAt: expiresAt}
	s.records[r.ID] = r
	return r
}

// Issue creates a child key under issuerID. Enforces (a) an operational
// key cannot issue, and (b) the child's expiry is clamped to the
// issuer's expiry.
func (s *Store) Issue(issuerID, publicKey string, level Level, expiresAt time.Time) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issuer, ok := s.records[issuerID]
	if !ok {
		return nil, chainerr.New(chainerr.Unauthorized, "issuer key not found")
	}
	if issuer.Revoked {
		return nil, chainerr.New(chainerr.Unauthorized, "issuer key is revoked")
	}
	if issuer.Level == LevelOperational {
		return nil, chainerr.New(chainerr.Unauthorized, "operational keys cannot issue child keys")
	}
	if level <= issuer.Level {
		return nil, chainerr.New(chainerr.Unauthorized, "child key level must be strictly below issuer level")
	}
	if expiresAt.After(issuer.ExpiresAt) {
		expiresAt = issuer.ExpiresAt
	}

	r := &Record{
		ID:        uuid.NewString(),
		Level:     level,
		IssuerID:  issuerID,
		PublicKey: publicKey,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	s.records[r.ID] = r
	s.children[issuerID] = append(s.children[issuerID], r.ID)
	return r, nil
}

// RevokeCascade revokes id and, transitively, every key it issued.
func (s *Store) RevokeCascade(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return 0, chainerr.New(chainerr.Unauthorized, "key not found")
	}

	now := time.Now().UTC()
	count := 0
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		r, ok := s.records[cur]
		if !ok || r.Revoked {
			continue
		}
		r.Revoked = true
		r.RevokedAt = now
		count++
		queue = append(queue, s.children[cur]...)
	}
	return count, nil
}

// Rotate revokes id's key and issues a replacement with newPublicKey at
// the same level and under the same issuer, expiring at expiresAt. The
// old record's children are left alone: rotation replaces the signing
// key itself, it is not a cascade revocation of everything the old key
// issued.
func (s *Store) Rotate(id, newPublicKey string, expiresAt time.Time) (*Record, error) {
	s.mu.Lock()
	old, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return nil, chainerr.New(chainerr.Unauthorized, "key not found")
	}
	if old.Revoked {
		s.mu.Unlock()
		return nil, chainerr.New(chainerr.Unauthorized, "key is already revoked")
	}
	level, issuerID := old.Level, old.IssuerID
	now := time.Now().UTC()
	old.Revoked = true
	old.RevokedAt = now
	s.mu.Unlock()

	if level == LevelRoot {
		r := s.IssueRoot(newPublicKey, expiresAt)
		return r, nil
	}
	return s.Issue(issuerID, newPublicKey, level, expiresAt)
}

// IsValid reports whether id is present, not revoked, and not expired
// as of t.
func (s *Store) IsValid(id string, t time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok || r.Revoked {
		return false
	}
	return t.Before(r.ExpiresAt)
}

// Get returns a copy of the record for id, if present.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// NewPublicKeyString is a convenience re-export so callers don't need
// to import internal/crypto just to stringify a generated key when
// seeding a root record.
func NewPublicKeyString(kp *crypto.KeyPair) (string, error) {
	return crypto.PublicKeyToString(kp.Public)
}
