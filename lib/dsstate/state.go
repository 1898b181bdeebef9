// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package dsstate

import (
	"sync"
	"time"

	"github.com/mlsgov/platform/lib/clock"
	"github.com/mlsgov/platform/lib/credential"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/keypackage"
)

// State is the Delivery Service's complete in-memory model: group
// slots, user slots, the shared key package pool, and the block list
// of deplatformed credential fingerprints. A single State is shared
// by every accepted connection.
type State struct {
	KeyPackages *keypackage.Pool
	BlockList   *credential.BlockList

	groupsMu sync.RWMutex
	groups   map[identity.GroupID]*GroupSlot

	usersMu sync.RWMutex
	users   map[identity.UserID]*UserSlot

	// fingerprints caches each user's current credential fingerprint,
	// kept in sync from the Authentication Service's credential
	// deltas, so a reliable send can check the sender's fingerprint
	// against BlockList without round-tripping to the AS.
	fingerprintsMu sync.RWMutex
	fingerprints   map[identity.UserID][32]byte
}

// New creates an empty State. maxKeyPackagesPerUser is forwarded to
// the underlying keypackage.Pool (DSConfig.MaxKeyPackagesPerUser).
func New(maxKeyPackagesPerUser int) *State {
	return &State{
		KeyPackages:  keypackage.NewPool(maxKeyPackagesPerUser),
		BlockList:    credential.NewBlockList(),
		groups:       make(map[identity.GroupID]*GroupSlot),
		users:        make(map[identity.UserID]*UserSlot),
		fingerprints: make(map[identity.UserID][32]byte),
	}
}

// Group returns id's GroupSlot, creating it on first reference.
func (s *State) Group(id identity.GroupID) *GroupSlot {
	s.groupsMu.RLock()
	slot, ok := s.groups[id]
	s.groupsMu.RUnlock()
	if ok {
		return slot
	}

	s.groupsMu.Lock()
	defer s.groupsMu.Unlock()
	if slot, ok := s.groups[id]; ok {
		return slot
	}
	slot = newGroupSlot()
	s.groups[id] = slot
	return slot
}

// User returns user's UserSlot, creating it on first reference.
func (s *State) User(id identity.UserID) *UserSlot {
	s.usersMu.RLock()
	slot, ok := s.users[id]
	s.usersMu.RUnlock()
	if ok {
		return slot
	}

	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if slot, ok := s.users[id]; ok {
		return slot
	}
	slot = newUserSlot()
	s.users[id] = slot
	return slot
}

// SetFingerprint records user's current credential fingerprint, as
// observed from an Authentication Service credential delta.
func (s *State) SetFingerprint(user identity.UserID, fingerprint [32]byte) {
	s.fingerprintsMu.Lock()
	defer s.fingerprintsMu.Unlock()
	s.fingerprints[user] = fingerprint
}

// IsBlocked reports whether user's cached fingerprint is on the block
// list. A user with no cached fingerprint yet is never blocked.
func (s *State) IsBlocked(user identity.UserID) bool {
	s.fingerprintsMu.RLock()
	fingerprint, ok := s.fingerprints[user]
	s.fingerprintsMu.RUnlock()
	if !ok {
		return false
	}
	return s.BlockList.Contains(fingerprint)
}

// Deplatform adds user's cached fingerprint to the block list (if
// known) and purges every pending message sent by user from every
// other user's queues, per the deplatforming scenario's invariant
// that blocking is retroactive as well as prospective.
func (s *State) Deplatform(user identity.UserID) {
	s.fingerprintsMu.Lock()
	fingerprint, ok := s.fingerprints[user]
	s.fingerprintsMu.Unlock()
	if ok {
		s.BlockList.Add(fingerprint)
	}

	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	for _, slot := range s.users {
		slot.PurgeFrom(user)
	}
}

// BlockFingerprint adds fingerprint to the block list directly, for
// applying a signed DeplatformNotice from the Authentication Service
// (which identifies the deplatformed credential by fingerprint, not
// UserID). Any currently known user whose cached fingerprint matches
// has their pending messages purged, same as Deplatform.
func (s *State) BlockFingerprint(fingerprint [32]byte) {
	s.BlockList.Add(fingerprint)

	s.fingerprintsMu.RLock()
	var matched []identity.UserID
	for user, fp := range s.fingerprints {
		if fp == fingerprint {
			matched = append(matched, user)
		}
	}
	s.fingerprintsMu.RUnlock()

	if len(matched) == 0 {
		return
	}

	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	for _, user := range matched {
		for _, slot := range s.users {
			slot.PurgeFrom(user)
		}
	}
}

// RunGCSweeps runs a periodic sweep of every group's ordered log on
// c's ticker until stop is closed. It is the only place ordered logs
// are trimmed; each sweep drops only the prefix every current member
// has synced past.
func (s *State) RunGCSweeps(c clock.Clock, interval time.Duration, stop <-chan struct{}) {
	ticker := c.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sweepAllGroups()
		}
	}
}

func (s *State) sweepAllGroups() {
	s.groupsMu.RLock()
	slots := make([]*GroupSlot, 0, len(s.groups))
	for _, slot := range s.groups {
		slots = append(slots, slot)
	}
	s.groupsMu.RUnlock()

	for _, slot := range slots {
		slot.Sweep()
	}
}
