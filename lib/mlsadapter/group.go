// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package mlsadapter

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/secret"
)

// Ciphersuite names the single concrete construction this adapter
// implements. NewGroup rejects any other value, so a future adapter
// swap (e.g., a real TreeKEM implementation) can detect groups created
// under the wrong suite rather than silently misinterpreting them.
const Ciphersuite = "mlsgov-x25519-hkdf-sha256-aes256gcm-v1"

// epochSecretSize is the size in bytes of an epoch secret and of every
// key HKDF-derives from it.
const epochSecretSize = 32

// Group is a client's local view of one MLS-style group: the current
// epoch secret, the epoch number, the member list, and per-sender
// ratchet counters for application message keys. Every member holds
// an independent Group value; there is no server-side group state
// beyond the Delivery Service's opaque relay.
//
// A Group must not be copied after creation. Call Close to release
// its epoch secret.
type Group struct {
	mu sync.Mutex

	id                 identity.GroupID
	epoch              uint64
	epochSecret        *secret.Buffer
	members            []identity.UserID
	senderCounters     map[identity.UserID]uint64
	highestCounterSeen map[identity.UserID]uint64
}

// ID returns the group's identifier.
func (g *Group) ID() identity.GroupID {
	return g.id
}

// Epoch returns the group's current epoch number.
func (g *Group) Epoch() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.epoch
}

// Members returns a copy of the group's current member list.
func (g *Group) Members() []identity.UserID {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]identity.UserID, len(g.members))
	copy(out, g.members)
	return out
}

// hasMember reports whether user is currently a member. Caller must
// hold g.mu.
func (g *Group) hasMember(user identity.UserID) bool {
	for _, member := range g.members {
		if member.Equal(user) {
			return true
		}
	}
	return false
}

// Close releases the group's epoch secret. Idempotent.
func (g *Group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.epochSecret != nil {
		return g.epochSecret.Close()
	}
	return nil
}

// NewGroup creates a fresh group with a random epoch-0 secret and
// creator as its sole member. Returns an error if ciphersuite does not
// match [Ciphersuite].
func NewGroup(id identity.GroupID, creator identity.UserID, ciphersuite string) (*Group, error) {
	if ciphersuite != Ciphersuite {
		return nil, fmt.Errorf("mlsadapter: unsupported ciphersuite %q (expected %q)", ciphersuite, Ciphersuite)
	}
	if creator.IsZero() {
		return nil, fmt.Errorf("mlsadapter: creator is required")
	}

	raw := make([]byte, epochSecretSize)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("mlsadapter: generating epoch secret: %w", err)
	}
	epochSecret, err := secret.NewFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("mlsadapter: protecting epoch secret: %w", err)
	}

	return &Group{
		id:             id,
		epoch:          0,
		epochSecret:    epochSecret,
		members:        []identity.UserID{creator},
		senderCounters: map[identity.UserID]uint64{creator: 0},
	}, nil
}
