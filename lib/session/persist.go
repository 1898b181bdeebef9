// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mlsgov/platform/lib/actionpipeline"
	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/mlsadapter"
)

const groupsDir = "groups"

// persistedGroup is one GroupSession's on-disk form: the MLS group's
// exported epoch secret and ratchet state, the governance snapshot
// taken at that same epoch (the same bytes an UpdateGroupState
// broadcast carries, reused here as a local snapshot format), and the
// locally recorded message history and sync cursor.
//
// The Policy Engine's in-flight proposal queue is not part of this
// record: proposals still queued when a CLI invocation exits are lost
// on reload. They are not rebuilt on the next sync either, since the
// Delivery Service does not deliver ordered-log entries a second time
// once a member's sync pointer has passed them.
type persistedGroup struct {
	Community       string              `cbor:"1,keyasint"`
	Channel         string              `cbor:"2,keyasint"`
	Group           mlsadapter.Exported `cbor:"3,keyasint"`
	GovernanceState []byte              `cbor:"4,keyasint"`
	GovernanceEpoch uint64              `cbor:"5,keyasint"`
	History         []HistoryEntry      `cbor:"6,keyasint"`
	SyncPosition    uint64              `cbor:"7,keyasint"`
}

func groupFilePath(stateDir string, id string) string {
	return filepath.Join(stateDir, groupsDir, id+".cbor")
}

// SaveGroup persists one GroupSession to stateDir, overwriting any
// prior snapshot for the same group.
func (c *Client) SaveGroup(stateDir string, g *GroupSession) error {
	g.mu.Lock()
	epoch := g.Group.Epoch()
	snapshot, err := g.State.Snapshot(epoch)
	if err != nil {
		g.mu.Unlock()
		return fmt.Errorf("session: snapshotting group state: %w", err)
	}
	exported := g.Group.Export()
	history := g.History.Read(ReadAll)
	syncPosition := g.syncPosition
	g.mu.Unlock()

	record := persistedGroup{
		Community:       g.Community,
		Channel:         g.Channel,
		Group:           exported,
		GovernanceState: snapshot,
		GovernanceEpoch: epoch,
		History:         history,
		SyncPosition:    syncPosition,
	}
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("session: encoding group snapshot: %w", err)
	}

	dir := filepath.Join(stateDir, groupsDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("session: creating groups directory: %w", err)
	}
	path := groupFilePath(stateDir, g.Group.ID().String())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("session: writing group snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// SaveGroups persists every known GroupSession.
func (c *Client) SaveGroups(stateDir string) error {
	for _, g := range c.Groups() {
		if err := c.SaveGroup(stateDir, g); err != nil {
			return err
		}
	}
	return nil
}

// LoadGroups restores every GroupSession previously saved to
// stateDir's groups directory, registering each with c. A missing
// groups directory means a fresh client with no groups yet — not an
// error.
func (c *Client) LoadGroups(stateDir string) error {
	dir := filepath.Join(stateDir, groupsDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("session: reading groups directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("session: reading group snapshot %s: %w", entry.Name(), err)
		}
		var record persistedGroup
		if err := codec.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("session: decoding group snapshot %s: %w", entry.Name(), err)
		}
		if err := c.restoreGroup(record); err != nil {
			return fmt.Errorf("session: restoring group snapshot %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func (c *Client) restoreGroup(record persistedGroup) error {
	group, err := mlsadapter.Import(record.Group)
	if err != nil {
		return fmt.Errorf("importing MLS group: %w", err)
	}

	state := newGovernanceState(record.Channel, c.Config.Mode, c.Clock)
	if err := state.ApplyUpdateGroupState(record.GovernanceState, record.GovernanceEpoch); err != nil {
		return fmt.Errorf("restoring governance state: %w", err)
	}

	pipeline := &actionpipeline.Pipeline{
		Self:       c.Identity.UserID,
		SigningKey: c.Identity.SigningKey,
		VerifyKey:  c.VerifyKeys.Lookup,
		Mode:       c.Config.Mode,
		Clock:      c.Clock,
	}

	history := NewHistory()
	for _, entry := range record.History {
		history.Append(entry)
	}

	session := &GroupSession{
		Community:    record.Community,
		Channel:      record.Channel,
		Group:        group,
		State:        state,
		Pipeline:     pipeline,
		History:      history,
		syncPosition: record.SyncPosition,
	}
	c.AddGroup(record.Community, record.Channel, session)
	return nil
}
