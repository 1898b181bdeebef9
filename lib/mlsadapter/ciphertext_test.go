// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package mlsadapter

import (
	"testing"

	"github.com/mlsgov/platform/lib/identity"
)

func TestEncryptApp_ProcessApp_RoundTrip(t *testing.T) {
	creator := mustUserID(t, "alice")
	group, err := NewGroup(identity.NewGroupID(), creator, Ciphersuite)
	if err != nil {
		t.Fatalf("NewGroup() error: %v", err)
	}
	defer group.Close()

	plaintext := []byte("hello group")
	ct, err := EncryptApp(group, creator, plaintext)
	if err != nil {
		t.Fatalf("EncryptApp() error: %v", err)
	}
	if ct.Counter != 0 {
		t.Errorf("first message Counter = %d, want 0", ct.Counter)
	}

	decrypted, err := ProcessApp(group, ct)
	if err != nil {
		t.Fatalf("ProcessApp() error: %v", err)
	}
	if string(decrypted) != string(plaintext) {
		t.Errorf("ProcessApp() = %q, want %q", decrypted, plaintext)
	}
}

func TestEncryptApp_CounterAdvances(t *testing.T) {
	creator := mustUserID(t, "alice")
	group, err := NewGroup(identity.NewGroupID(), creator, Ciphersuite)
	if err != nil {
		t.Fatalf("NewGroup() error: %v", err)
	}
	defer group.Close()

	first, err := EncryptApp(group, creator, []byte("one"))
	if err != nil {
		t.Fatalf("EncryptApp() error: %v", err)
	}
	second, err := EncryptApp(group, creator, []byte("two"))
	if err != nil {
		t.Fatalf("EncryptApp() error: %v", err)
	}

	if first.Counter != 0 || second.Counter != 1 {
		t.Errorf("counters = %d, %d, want 0, 1", first.Counter, second.Counter)
	}
	if string(first.Bytes) == string(second.Bytes) {
		t.Error("two messages with different counters produced identical ciphertext")
	}
}

func TestEncryptApp_SenderNotMember(t *testing.T) {
	creator := mustUserID(t, "alice")
	group, err := NewGroup(identity.NewGroupID(), creator, Ciphersuite)
	if err != nil {
		t.Fatalf("NewGroup() error: %v", err)
	}
	defer group.Close()

	_, err = EncryptApp(group, mustUserID(t, "outsider"), []byte("hi"))
	if err != ErrSenderNotMember {
		t.Errorf("EncryptApp() error = %v, want ErrSenderNotMember", err)
	}
}

func TestProcessApp_ReplayedCounter(t *testing.T) {
	creator := mustUserID(t, "alice")
	group, err := NewGroup(identity.NewGroupID(), creator, Ciphersuite)
	if err != nil {
		t.Fatalf("NewGroup() error: %v", err)
	}
	defer group.Close()

	ct, err := EncryptApp(group, creator, []byte("hello"))
	if err != nil {
		t.Fatalf("EncryptApp() error: %v", err)
	}

	if _, err := ProcessApp(group, ct); err != nil {
		t.Fatalf("first ProcessApp() error: %v", err)
	}
	if _, err := ProcessApp(group, ct); err != ErrReplayedCounter {
		t.Errorf("replayed ProcessApp() error = %v, want ErrReplayedCounter", err)
	}
}

func TestProcessApp_WrongEpoch(t *testing.T) {
	creator := mustUserID(t, "alice")
	group, err := NewGroup(identity.NewGroupID(), creator, Ciphersuite)
	if err != nil {
		t.Fatalf("NewGroup() error: %v", err)
	}
	defer group.Close()

	ct, err := EncryptApp(group, creator, []byte("hello"))
	if err != nil {
		t.Fatalf("EncryptApp() error: %v", err)
	}
	ct.Epoch = 99

	if _, err := ProcessApp(group, ct); err == nil {
		t.Error("ProcessApp() with mismatched epoch should return error")
	}
}

func TestProcessApp_TamperedCiphertext(t *testing.T) {
	creator := mustUserID(t, "alice")
	group, err := NewGroup(identity.NewGroupID(), creator, Ciphersuite)
	if err != nil {
		t.Fatalf("NewGroup() error: %v", err)
	}
	defer group.Close()

	ct, err := EncryptApp(group, creator, []byte("hello"))
	if err != nil {
		t.Fatalf("EncryptApp() error: %v", err)
	}
	ct.Bytes[0] ^= 0xFF

	if _, err := ProcessApp(group, ct); err == nil {
		t.Error("ProcessApp() with tampered ciphertext should return error")
	}
}

func TestProcessApp_SenderNotMember(t *testing.T) {
	creator := mustUserID(t, "alice")
	group, err := NewGroup(identity.NewGroupID(), creator, Ciphersuite)
	if err != nil {
		t.Fatalf("NewGroup() error: %v", err)
	}
	defer group.Close()

	ct, err := EncryptApp(group, creator, []byte("hello"))
	if err != nil {
		t.Fatalf("EncryptApp() error: %v", err)
	}
	ct.Sender = mustUserID(t, "outsider")

	if _, err := ProcessApp(group, ct); err != ErrSenderNotMember {
		t.Errorf("ProcessApp() error = %v, want ErrSenderNotMember", err)
	}
}
