// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package mlsadapter

import (
	"fmt"

	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/secret"
)

// Exported is a Group's state in a form safe to persist to disk
// between client process runs: the epoch secret travels in the clear
// (the caller is responsible for writing it to a file with the same
// restrictive permissions lib/secret.ReadFromPath expects), since
// there is no server-side copy of this state to fall back to.
type Exported struct {
	ID                 identity.GroupID          `cbor:"1,keyasint"`
	Epoch              uint64                    `cbor:"2,keyasint"`
	EpochSecret        []byte                    `cbor:"3,keyasint"`
	Members            []identity.UserID         `cbor:"4,keyasint"`
	SenderCounters     map[identity.UserID]uint64 `cbor:"5,keyasint"`
	HighestCounterSeen map[identity.UserID]uint64 `cbor:"6,keyasint"`
}

// Export snapshots group's current state for persistence. The
// returned secret bytes are a copy independent of group's own
// epochSecret buffer.
func (g *Group) Export() Exported {
	g.mu.Lock()
	defer g.mu.Unlock()

	secretCopy := make([]byte, len(g.epochSecret.Bytes()))
	copy(secretCopy, g.epochSecret.Bytes())

	counters := make(map[identity.UserID]uint64, len(g.senderCounters))
	for user, counter := range g.senderCounters {
		counters[user] = counter
	}
	seen := make(map[identity.UserID]uint64, len(g.highestCounterSeen))
	for user, counter := range g.highestCounterSeen {
		seen[user] = counter
	}

	return Exported{
		ID:                 g.id,
		Epoch:              g.epoch,
		EpochSecret:        secretCopy,
		Members:            append([]identity.UserID{}, g.members...),
		SenderCounters:     counters,
		HighestCounterSeen: seen,
	}
}

// Import rebuilds a Group from a snapshot previously produced by
// Export, taking ownership of a fresh secret-protected copy of the
// epoch secret.
func Import(exported Exported) (*Group, error) {
	epochSecret, err := secret.NewFromBytes(exported.EpochSecret)
	if err != nil {
		return nil, fmt.Errorf("mlsadapter: protecting imported epoch secret: %w", err)
	}

	counters := make(map[identity.UserID]uint64, len(exported.SenderCounters))
	for user, counter := range exported.SenderCounters {
		counters[user] = counter
	}
	seen := make(map[identity.UserID]uint64, len(exported.HighestCounterSeen))
	for user, counter := range exported.HighestCounterSeen {
		seen[user] = counter
	}

	return &Group{
		id:                 exported.ID,
		epoch:              exported.Epoch,
		epochSecret:        epochSecret,
		members:            append([]identity.UserID{}, exported.Members...),
		senderCounters:     counters,
		highestCounterSeen: seen,
	}, nil
}
