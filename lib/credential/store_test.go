// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"crypto/ed25519"
	"testing"
)

func testCredential(t *testing.T, userID string) Credential {
	t.Helper()
	_, asPrivate := testASKeypair(t)
	userPublic, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generating user key: %v", err)
	}
	cred, err := Sign(asPrivate, userID, userPublic)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return *cred
}

func TestStoreRegisterAndLookup(t *testing.T) {
	store := NewStore()
	cred := testCredential(t, "alice")

	if _, err := store.Register(cred); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok := store.Lookup("alice")
	if !ok {
		t.Fatal("Lookup: alice not found")
	}
	if got.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", got.UserID)
	}

	if _, ok := store.Lookup("bob"); ok {
		t.Error("Lookup: bob should not be found")
	}
}

func TestStoreRegisterDuplicateRejected(t *testing.T) {
	store := NewStore()
	cred := testCredential(t, "alice")

	if _, err := store.Register(cred); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := store.Register(cred); err != ErrAlreadyRegistered {
		t.Errorf("second Register = %v, want ErrAlreadyRegistered", err)
	}
}

func TestStoreSyncSince(t *testing.T) {
	store := NewStore()

	deltaAlice, err := store.Register(testCredential(t, "alice"))
	if err != nil {
		t.Fatalf("Register alice: %v", err)
	}
	deltaBob, err := store.Register(testCredential(t, "bob"))
	if err != nil {
		t.Fatalf("Register bob: %v", err)
	}

	full := store.SyncSince(-1)
	if len(full) != 2 {
		t.Fatalf("SyncSince(-1) returned %d deltas, want 2", len(full))
	}

	partial := store.SyncSince(deltaAlice.Sequence)
	if len(partial) != 1 || partial[0].Credential.UserID != "bob" {
		t.Fatalf("SyncSince(%d) = %+v, want only bob's delta", deltaAlice.Sequence, partial)
	}

	none := store.SyncSince(deltaBob.Sequence)
	if len(none) != 0 {
		t.Errorf("SyncSince(%d) returned %d deltas, want 0", deltaBob.Sequence, len(none))
	}
}

func TestStoreDeplatform(t *testing.T) {
	store := NewStore()
	cred := testCredential(t, "alice")

	if _, err := store.Register(cred); err != nil {
		t.Fatalf("Register: %v", err)
	}

	fingerprint, err := store.Deplatform("alice")
	if err != nil {
		t.Fatalf("Deplatform: %v", err)
	}
	if fingerprint != cred.Fingerprint() {
		t.Error("Deplatform returned a fingerprint that doesn't match the credential")
	}

	if _, ok := store.Lookup("alice"); ok {
		t.Error("deplatformed user should no longer be found by Lookup")
	}

	if _, err := store.Deplatform("alice"); err != ErrUnknownUser {
		t.Errorf("re-deplatforming = %v, want ErrUnknownUser", err)
	}
}

func TestStoreDeplatformUnknownUser(t *testing.T) {
	store := NewStore()
	if _, err := store.Deplatform("nobody"); err != ErrUnknownUser {
		t.Errorf("Deplatform(nobody) = %v, want ErrUnknownUser", err)
	}
}

func TestStoreLen(t *testing.T) {
	store := NewStore()
	if store.Len() != 0 {
		t.Fatalf("Len on empty store = %d, want 0", store.Len())
	}

	if _, err := store.Register(testCredential(t, "alice")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := store.Register(testCredential(t, "bob")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("Len = %d, want 2", store.Len())
	}

	if _, err := store.Deplatform("alice"); err != nil {
		t.Fatalf("Deplatform: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len after deplatform = %d, want 1", store.Len())
	}
}
