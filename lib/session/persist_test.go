// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"testing"

	"github.com/mlsgov/platform/lib/config"
)

func TestSaveGroupsLoadGroups_RoundTrips(t *testing.T) {
	stateDir := t.TempDir()
	id := newTestIdentity(t, "alice")
	cfg := config.ClientConfig{
		ASAddr:       "127.0.0.1:0",
		DSAddr:       "127.0.0.1:0",
		StateDir:     stateDir,
		Mode:         config.GovernanceMode,
		SyncInterval: "20ms",
	}
	c := New(cfg, id, testLogger())

	g, err := c.CreateGroup("friends", "general", "General")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	g.History.Append(HistoryEntry{Position: 1, Text: "hello"})
	g.advancePosition(7)

	if err := c.SaveGroups(stateDir); err != nil {
		t.Fatalf("SaveGroups: %v", err)
	}

	restoredID := &LocalIdentity{
		UserID:     id.UserID,
		SigningKey: id.SigningKey,
		VerifyKey:  id.VerifyKey,
		Sealed:     id.Sealed,
		Credential: id.Credential,
	}
	restored := New(cfg, restoredID, testLogger())
	if err := restored.LoadGroups(stateDir); err != nil {
		t.Fatalf("LoadGroups: %v", err)
	}

	got, ok := restored.GroupByName("friends", "general")
	if !ok {
		t.Fatal("LoadGroups did not restore the community/channel index")
	}
	if !got.Group.ID().Equal(g.Group.ID()) {
		t.Fatalf("restored group ID = %v, want %v", got.Group.ID(), g.Group.ID())
	}
	if got.SyncPosition() != 7 {
		t.Fatalf("restored SyncPosition() = %d, want 7", got.SyncPosition())
	}

	history := got.History.Read(ReadAll)
	if len(history) != 1 || history[0].Text != "hello" {
		t.Fatalf("restored history = %+v, want one entry \"hello\"", history)
	}

	if !got.State.Roles.IsMember(id.UserID) {
		t.Fatal("restored governance state lost the owner's membership")
	}
}

func TestLoadGroups_MissingDirectoryIsNotAnError(t *testing.T) {
	c := newTestClient(t, "alice")
	if err := c.LoadGroups(t.TempDir()); err != nil {
		t.Fatalf("LoadGroups on a fresh state dir: %v", err)
	}
	if len(c.Groups()) != 0 {
		t.Fatalf("Groups() = %d, want 0", len(c.Groups()))
	}
}
