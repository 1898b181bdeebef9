// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package rbac_test

import (
	"testing"

	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/rbac"
)

func mustUser(t *testing.T, raw string) identity.UserID {
	t.Helper()
	id, err := identity.ParseUserID(raw)
	if err != nil {
		t.Fatalf("ParseUserID(%q): %v", raw, err)
	}
	return id
}

func TestRoleTable_Check_ImmediatePass(t *testing.T) {
	table := rbac.NewRoleTable()
	table.DefineRole("owner", []string{"**"})
	table.DefineRole("member", []string{"text", "member/accept"})

	alice := mustUser(t, "alice")
	bob := mustUser(t, "bob")

	table.SetUserRole(alice, "owner")
	table.SetUserRole(bob, "member")

	if !table.Check(alice, "member/kick") {
		t.Error("owner should pass every action kind via universal wildcard")
	}
	if !table.Check(bob, "text") {
		t.Error("member should pass its granted capability")
	}
	if table.Check(bob, "member/kick") {
		t.Error("member should not pass an ungranted capability")
	}
}

func TestRoleTable_Check_NoAssignedRole(t *testing.T) {
	table := rbac.NewRoleTable()
	table.DefineRole("member", []string{"**"})

	mallory := mustUser(t, "mallory")

	if table.Check(mallory, "member/kick") {
		t.Error("a user with no assigned role must never pass RBAC")
	}
}

func TestRoleTable_SetUserRole_EmptyClears(t *testing.T) {
	table := rbac.NewRoleTable()
	table.DefineRole("member", []string{"**"})

	alice := mustUser(t, "alice")
	table.SetUserRole(alice, "member")

	if !table.Check(alice, "text") {
		t.Fatal("expected alice to pass before role is cleared")
	}

	table.SetUserRole(alice, "")
	if _, ok := table.RoleOf(alice); ok {
		t.Error("expected RoleOf to report no role after clearing")
	}
	if table.Check(alice, "text") {
		t.Error("expected Check to fail after role cleared")
	}
}

func TestRoleTable_RemoveUser(t *testing.T) {
	table := rbac.NewRoleTable()
	table.DefineRole("member", []string{"**"})

	bob := mustUser(t, "bob")
	table.SetUserRole(bob, "member")
	table.RemoveUser(bob)

	if _, ok := table.RoleOf(bob); ok {
		t.Error("expected RoleOf to report no role after RemoveUser")
	}
}

func TestRoleTable_Capabilities_ReturnsCopy(t *testing.T) {
	table := rbac.NewRoleTable()
	table.DefineRole("member", []string{"text"})

	patterns := table.Capabilities("member")
	patterns[0] = "mutated"

	if got := table.Capabilities("member"); got[0] != "text" {
		t.Errorf("expected internal capability set to be unaffected by caller mutation, got %v", got)
	}
}

func TestRoleTable_DefineRole_Redefines(t *testing.T) {
	table := rbac.NewRoleTable()
	table.DefineRole("member", []string{"text"})

	alice := mustUser(t, "alice")
	table.SetUserRole(alice, "member")

	if table.Check(alice, "member/kick") {
		t.Fatal("expected kick to fail before redefinition")
	}

	table.DefineRole("member", []string{"text", "member/kick"})
	if !table.Check(alice, "member/kick") {
		t.Error("expected kick to pass after DefRole redefines member's capabilities")
	}
}
