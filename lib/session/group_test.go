// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"testing"

	"github.com/mlsgov/platform/lib/config"
)

func TestCreateGroup_OwnerHoldsEveryCapabilityExceptRename(t *testing.T) {
	c := newTestClient(t, "alice")
	g, err := c.CreateGroup("friends", "general", "General")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	if !g.State.Roles.IsMember(c.Identity.UserID) {
		t.Fatal("creator is not a member of their own new group")
	}
	if g.State.Roles.Check(c.Identity.UserID, "RenameGroup") {
		t.Fatal("owner role carries RenameGroup capability; renames are left to the Policy Engine")
	}
	if !g.State.Roles.Check(c.Identity.UserID, "Kick") {
		t.Fatal("owner role does not carry Kick capability")
	}
	if g.State.Roles.MemberCount() != 1 {
		t.Fatalf("MemberCount() = %d, want 1", g.State.Roles.MemberCount())
	}
}

func TestNewGovernanceState_BaselineModeSkipsPolicyEngine(t *testing.T) {
	c := newTestClient(t, "alice")
	c.Config.Mode = config.BaselineMode

	g, err := c.CreateGroup("friends", "general", "General")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if g.State.Policies != nil {
		t.Fatal("baseline mode group has a non-nil Policy Engine")
	}
}

func TestNewGovernanceState_GovernanceModeInstallsPolicyEngine(t *testing.T) {
	c := newTestClient(t, "alice")
	g, err := c.CreateGroup("friends", "general", "General")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if g.State.Policies == nil {
		t.Fatal("governance mode group has a nil Policy Engine")
	}
}

func TestGroupSession_SyncPosition_AdvancesMonotonically(t *testing.T) {
	c := newTestClient(t, "alice")
	g, err := c.CreateGroup("friends", "general", "General")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	g.advancePosition(5)
	g.advancePosition(3)
	if got := g.SyncPosition(); got != 5 {
		t.Fatalf("SyncPosition() = %d, want 5 (stale position must not regress it)", got)
	}
	g.advancePosition(9)
	if got := g.SyncPosition(); got != 9 {
		t.Fatalf("SyncPosition() = %d, want 9", got)
	}
}
