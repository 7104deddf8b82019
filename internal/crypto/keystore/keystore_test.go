package keystore

import (
	"testing"
	"time"
)

func TestIssue_ChildLevelMustExceedIssuer(t *testing.T) {
	s := New()
	root := s.IssueRoot("root-pub", time.Now().UTC().Add(time.Hour))

	if _, err := s.Issue(root.ID, "bad-pub", LevelRoot, time.Now().UTC().Add(time.Minute)); err == nil {
		t.Fatal("expected error issuing a child at the same level as its issuer")
	}

	child, err := s.Issue(root.ID, "intermediate-pub", LevelIntermediate, time.Now().UTC().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if child.ExpiresAt.After(root.ExpiresAt) {
		t.Error("child expiry should be clamped to issuer expiry when requested later")
	}
}

func TestRevokeCascade_RevokesDescendants(t *testing.T) {
	s := New()
	root := s.IssueRoot("root-pub", time.Now().UTC().Add(time.Hour))
	mid, err := s.Issue(root.ID, "mid-pub", LevelIntermediate, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue intermediate: %v", err)
	}
	leaf, err := s.Issue(mid.ID, "leaf-pub", LevelOperational, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue leaf: %v", err)
	}

	n, err := s.RevokeCascade(mid.ID)
	if err != nil {
		t.Fatalf("RevokeCascade: %v", err)
	}
	if n != 2 {
		t.Errorf("RevokeCascade revoked %d keys, want 2 (mid + leaf)", n)
	}
	if s.IsValid(leaf.ID, time.Now().UTC()) {
		t.Error("leaf key should be invalid after its issuer was cascade-revoked")
	}
	if !s.IsValid(root.ID, time.Now().UTC()) {
		t.Error("root key should remain valid; cascade only flows downward")
	}
}

func TestRotate_RevokesOldAndIssuesReplacementAtSameLevel(t *testing.T) {
	s := New()
	root := s.IssueRoot("root-pub", time.Now().UTC().Add(time.Hour))
	mid, err := s.Issue(root.ID, "mid-pub", LevelIntermediate, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	replacement, err := s.Rotate(mid.ID, "mid-pub-v2", time.Now().UTC().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	if s.IsValid(mid.ID, time.Now().UTC()) {
		t.Error("old key should be revoked after rotation")
	}
	if !s.IsValid(replacement.ID, time.Now().UTC()) {
		t.Error("replacement key should be valid")
	}
	got, _ := s.Get(replacement.ID)
	if got.Level != LevelIntermediate || got.IssuerID != root.ID {
		t.Errorf("replacement = level %v issuer %v, want LevelIntermediate issued by root", got.Level, got.IssuerID)
	}
}

func TestRotate_UnknownKeyErrors(t *testing.T) {
	s := New()
	if _, err := s.Rotate("missing", "pub", time.Now().UTC().Add(time.Hour)); err == nil {
		t.Fatal("expected error rotating a key that does not exist")
	}
}
