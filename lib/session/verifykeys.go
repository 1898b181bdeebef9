// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"crypto/ed25519"
	"sync"

	"github.com/mlsgov/platform/lib/credential"
	"github.com/mlsgov/platform/lib/identity"
)

// VerifyKeyCache is a client-local mirror of the Authentication
// Service's credential store, built by replaying [credential.Delta]
// entries from UserSyncCredentials. It is the concrete
// [actionpipeline.VerifyKeyLookup] every group's Pipeline is wired to.
type VerifyKeyCache struct {
	mu     sync.RWMutex
	byUser map[identity.UserID]ed25519.PublicKey
	cursor int64
}

// NewVerifyKeyCache creates an empty cache with cursor -1, requesting
// a full sync on first use.
func NewVerifyKeyCache() *VerifyKeyCache {
	return &VerifyKeyCache{
		byUser: make(map[identity.UserID]ed25519.PublicKey),
		cursor: -1,
	}
}

// Cursor returns the highest applied Delta sequence, or -1 if none
// has been applied yet.
func (c *VerifyKeyCache) Cursor() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cursor
}

// Apply replays deltas in order, advancing the cursor. A deplatformed
// delta removes the affected user's verify key from the cache — a
// deplatformed credential is indistinguishable from one that never
// registered, matching [credential.Store.Lookup]'s own behavior.
func (c *VerifyKeyCache) Apply(deltas []credential.Delta) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, delta := range deltas {
		userID, err := identity.ParseUserID(delta.Credential.UserID)
		if err != nil {
			continue
		}
		if delta.Deplatformed {
			delete(c.byUser, userID)
		} else {
			c.byUser[userID] = delta.Credential.VerifyKey
		}
		if delta.Sequence > c.cursor {
			c.cursor = delta.Sequence
		}
	}
}

// Lookup resolves user's verification key. It satisfies
// [actionpipeline.VerifyKeyLookup].
func (c *VerifyKeyCache) Lookup(user identity.UserID) (ed25519.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.byUser[user]
	return key, ok
}
