// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import "sync"

// BlockList is a thread-safe set of deplatformed Credential
// fingerprints. The Delivery Service consults its BlockList (through
// its per-user fingerprint cache) before accepting a reliable send: a
// sender whose fingerprint is blocked is rejected with an Auth error.
// KeyPackage uploads, standard sends, and invites are not checked
// against it.
//
// Deplatforming has no natural expiry: a fingerprint stays blocked until an operator takes
// the (currently unmodeled) action of re-admitting the user under a
// new Credential. Entries are therefore never cleaned up automatically.
type BlockList struct {
	mu      sync.RWMutex
	entries map[[32]byte]struct{}
}

// NewBlockList creates an empty block list.
func NewBlockList() *BlockList {
	return &BlockList{
		entries: make(map[[32]byte]struct{}),
	}
}

// Add marks a fingerprint as blocked.
func (b *BlockList) Add(fingerprint [32]byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[fingerprint] = struct{}{}
}

// Contains reports whether fingerprint has been blocked.
func (b *BlockList) Contains(fingerprint [32]byte) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, blocked := b.entries[fingerprint]
	return blocked
}

// Len returns the number of blocked fingerprints.
func (b *BlockList) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Snapshot returns every blocked fingerprint, in no particular order,
// for periodic persistence to disk.
func (b *BlockList) Snapshot() [][32]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([][32]byte, 0, len(b.entries))
	for fp := range b.entries {
		out = append(out, fp)
	}
	return out
}

// Restore adds every fingerprint in fingerprints as blocked. Intended
// to be called once, against a freshly constructed BlockList, when a
// service loads its persisted snapshot at startup.
func (b *BlockList) Restore(fingerprints [][32]byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, fp := range fingerprints {
		b.entries[fp] = struct{}{}
	}
}
