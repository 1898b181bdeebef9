// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"errors"
	"sync"
)

// Errors returned by Store methods.
var (
	ErrAlreadyRegistered = errors.New("credential: user already registered")
	ErrUnknownUser       = errors.New("credential: unknown user")
)

// Delta is one entry in the Authentication Service's append-only
// registration log. UserSyncCredentials replays deltas with Sequence
// greater than the caller's cursor so that late-joining Delivery
// Service instances and clients can catch up without replaying the
// entire credential map on every reconnect.
type Delta struct {
	// Sequence is the monotonically increasing position of this
	// delta in the log. Callers persist the highest Sequence they
	// have applied and pass it back as the "since" cursor.
	Sequence int64

	// Credential is the affected user's credential.
	Credential Credential

	// Deplatformed reports whether this delta represents a
	// deplatforming event rather than a fresh registration. A
	// deplatformed entry's Credential is the credential that was
	// removed, so observers can compute its Fingerprint.
	Deplatformed bool
}

// record is the Store's internal bookkeeping for one registered user.
type record struct {
	credential   Credential
	deplatformed bool
}

// Store is the Authentication Service's username-to-credential map
// (C2 in the governance design): register, lookup, and bulk
// synchronization, plus deplatforming. It is the system's sole source
// of truth for "who is this UserId, and is it still trusted" — the
// Delivery Service and clients cache what Store tells them but never
// originate identity decisions themselves.
//
// Store is safe for concurrent use. Like the reference delivery-state
// tables it is modeled after, it favors one coarse mutex over a
// striped or sharded design: registration and deplatforming are rare
// compared to lookups, and a single RWMutex lets lookups proceed
// without contention.
type Store struct {
	mu      sync.RWMutex
	byUser  map[string]*record
	log     []Delta
	nextSeq int64
}

// NewStore creates an empty credential store.
func NewStore() *Store {
	return &Store{
		byUser: make(map[string]*record),
	}
}

// Register adds a new Credential to the store. Returns
// ErrAlreadyRegistered if the UserId already has a credential —
// credentials are immutable for the lifetime of a UserId.
func (s *Store) Register(cred Credential) (Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUser[cred.UserID]; exists {
		return Delta{}, ErrAlreadyRegistered
	}

	s.byUser[cred.UserID] = &record{credential: cred}
	delta := Delta{Sequence: s.nextSeq, Credential: cred}
	s.nextSeq++
	s.log = append(s.log, delta)
	return delta, nil
}

// Lookup returns the Credential registered for userID. The second
// return value is false if the user is unknown or has been
// deplatformed — from the caller's perspective, a deplatformed user
// is indistinguishable from one who never registered.
func (s *Store) Lookup(userID string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.byUser[userID]
	if !exists || rec.deplatformed {
		return Credential{}, false
	}
	return rec.credential, true
}

// SyncSince returns every Delta with Sequence strictly greater than
// since, in log order. Pass since = -1 for a full initial sync.
func (s *Store) SyncSince(since int64) []Delta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Delta
	for _, delta := range s.log {
		if delta.Sequence > since {
			result = append(result, delta)
		}
	}
	return result
}

// Deplatform removes userID's credential mapping and returns the
// removed Credential's Fingerprint so the caller can propagate it to
// the Delivery Service's block list. Returns ErrUnknownUser if userID
// was never registered or has already been deplatformed.
func (s *Store) Deplatform(userID string) ([32]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.byUser[userID]
	if !exists || rec.deplatformed {
		return [32]byte{}, ErrUnknownUser
	}

	rec.deplatformed = true
	delta := Delta{Sequence: s.nextSeq, Credential: rec.credential, Deplatformed: true}
	s.nextSeq++
	s.log = append(s.log, delta)

	return rec.credential.Fingerprint(), nil
}

// Len returns the number of currently active (non-deplatformed)
// credentials in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, rec := range s.byUser {
		if !rec.deplatformed {
			count++
		}
	}
	return count
}

// Export returns every Delta in the store's log, in order — the
// complete state a periodic snapshot needs to reconstruct the store
// via Restore.
func (s *Store) Export() []Delta {
	return s.SyncSince(-1)
}

// Restore replays deltas (as produced by Export) into the store,
// preserving each entry's Sequence and Deplatformed flag exactly, so
// the restored store resumes assigning new Sequence numbers from
// where the snapshot left off. Intended to be called once, against a
// freshly constructed Store, when a service loads its persisted
// snapshot at startup.
func (s *Store) Restore(deltas []Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, delta := range deltas {
		rec, exists := s.byUser[delta.Credential.UserID]
		if !exists {
			rec = &record{credential: delta.Credential}
			s.byUser[delta.Credential.UserID] = rec
		}
		if delta.Deplatformed {
			rec.deplatformed = true
		}
		s.log = append(s.log, delta)
		if delta.Sequence >= s.nextSeq {
			s.nextSeq = delta.Sequence + 1
		}
	}
}
