// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"testing"

	"github.com/mlsgov/platform/lib/config"
	"github.com/mlsgov/platform/lib/identity"
)

func newTestIdentity(t *testing.T, user string) *LocalIdentity {
	t.Helper()
	userID, err := identity.ParseUserID(user)
	if err != nil {
		t.Fatalf("ParseUserID(%q): %v", user, err)
	}
	id, err := LoadOrCreateIdentity(t.TempDir(), userID)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity: %v", err)
	}
	t.Cleanup(func() { id.Close() })
	return id
}

func newTestClient(t *testing.T, user string) *Client {
	t.Helper()
	id := newTestIdentity(t, user)
	cfg := config.ClientConfig{
		ASAddr:       "127.0.0.1:0",
		DSAddr:       "127.0.0.1:0",
		StateDir:     t.TempDir(),
		Mode:         config.GovernanceMode,
		SyncInterval: "20ms",
	}
	return New(cfg, id, testLogger())
}

func TestAddGroup_LookupByIDAndName(t *testing.T) {
	c := newTestClient(t, "alice")
	g, err := c.CreateGroup("friends", "general", "General")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	if got, ok := c.Group(g.Group.ID()); !ok || got != g {
		t.Fatalf("Group(%v) = %v, %v; want %v, true", g.Group.ID(), got, ok, g)
	}
	if got, ok := c.GroupByName("friends", "general"); !ok || got != g {
		t.Fatalf("GroupByName(friends, general) = %v, %v; want %v, true", got, ok, g)
	}
	if _, ok := c.GroupByName("friends", "other-channel"); ok {
		t.Fatal("GroupByName(friends, other-channel) found a group that was never added")
	}
}

func TestGroups_ListsEveryAddedGroup(t *testing.T) {
	c := newTestClient(t, "alice")
	first, err := c.CreateGroup("a", "general", "A")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	second, err := c.CreateGroup("b", "general", "B")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	groups := c.Groups()
	if len(groups) != 2 {
		t.Fatalf("Groups() returned %d sessions, want 2", len(groups))
	}
	seen := map[identity.GroupID]bool{}
	for _, g := range groups {
		seen[g.Group.ID()] = true
	}
	if !seen[first.Group.ID()] || !seen[second.Group.ID()] {
		t.Fatal("Groups() did not include both created sessions")
	}
}

func TestGroupByName_UnknownNameNotFound(t *testing.T) {
	c := newTestClient(t, "alice")
	if _, ok := c.GroupByName("nope", "nope"); ok {
		t.Fatal("GroupByName found a group in an empty client")
	}
}
