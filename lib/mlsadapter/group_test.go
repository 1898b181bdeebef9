// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package mlsadapter

import (
	"testing"

	"github.com/mlsgov/platform/lib/identity"
)

func mustUserID(t *testing.T, raw string) identity.UserID {
	t.Helper()
	id, err := identity.ParseUserID(raw)
	if err != nil {
		t.Fatalf("ParseUserID(%q) error: %v", raw, err)
	}
	return id
}

func TestNewGroup(t *testing.T) {
	creator := mustUserID(t, "alice")
	groupID := identity.NewGroupID()

	group, err := NewGroup(groupID, creator, Ciphersuite)
	if err != nil {
		t.Fatalf("NewGroup() error: %v", err)
	}
	defer group.Close()

	if !group.ID().Equal(groupID) {
		t.Errorf("ID() = %v, want %v", group.ID(), groupID)
	}
	if group.Epoch() != 0 {
		t.Errorf("Epoch() = %d, want 0", group.Epoch())
	}
	members := group.Members()
	if len(members) != 1 || !members[0].Equal(creator) {
		t.Errorf("Members() = %v, want [%v]", members, creator)
	}
}

func TestNewGroup_WrongCiphersuite(t *testing.T) {
	creator := mustUserID(t, "alice")
	_, err := NewGroup(identity.NewGroupID(), creator, "some-other-suite")
	if err == nil {
		t.Error("NewGroup() with wrong ciphersuite should return error")
	}
}

func TestNewGroup_ZeroCreator(t *testing.T) {
	_, err := NewGroup(identity.NewGroupID(), identity.UserID{}, Ciphersuite)
	if err == nil {
		t.Error("NewGroup() with zero creator should return error")
	}
}

func TestGroup_Close_Idempotent(t *testing.T) {
	creator := mustUserID(t, "alice")
	group, err := NewGroup(identity.NewGroupID(), creator, Ciphersuite)
	if err != nil {
		t.Fatalf("NewGroup() error: %v", err)
	}
	if err := group.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := group.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}
