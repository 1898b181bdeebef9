// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package dsstate

import (
	"sync"

	"github.com/mlsgov/platform/lib/identity"
)

// GroupSlot is one group's ordered-log state: the FIFO log itself,
// current membership, and each member's last-delivered position. All
// three are mutated only while holding mu, which is the Delivery
// Service's sole serialization point for a reliable send — per
// Invariant, two concurrent reliable sends to the same group observe
// a deterministic total order chosen by mutex arrival.
type GroupSlot struct {
	mu sync.Mutex

	members     map[identity.UserID]struct{}
	orderedLog  []*PendingMessage
	// logOffset is the Position of orderedLog[0]; entries before it
	// have been GC'd. Zero until the first sweep trims anything.
	logOffset uint64
	pointers  map[identity.UserID]uint64
}

func newGroupSlot() *GroupSlot {
	return &GroupSlot{
		members:  make(map[identity.UserID]struct{}),
		pointers: make(map[identity.UserID]uint64),
	}
}

// AddMember admits user, starting their ordered-log pointer at the
// slot's current length so a newly added member is not expected to
// have observed pre-membership history.
func (g *GroupSlot) AddMember(user identity.UserID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registerParticipant(user)
}

// registerParticipant is AddMember's body, reusable by appendReliable
// so any send/recipient the DS observes implicitly establishes
// membership for sweep and pointer-initialization purposes, without
// requiring a separate membership-registration call the client-side
// protocol never makes explicit. Caller must hold g.mu.
func (g *GroupSlot) registerParticipant(user identity.UserID) {
	g.members[user] = struct{}{}
	if _, ok := g.pointers[user]; !ok {
		g.pointers[user] = g.logOffset + uint64(len(g.orderedLog))
	}
}

// RemoveMember drops user from membership and pointer tracking.
func (g *GroupSlot) RemoveMember(user identity.UserID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.members, user)
	delete(g.pointers, user)
}

// IsMember reports whether user currently belongs to the group.
func (g *GroupSlot) IsMember(user identity.UserID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.members[user]
	return ok
}

// MemberCount reports the current membership size.
func (g *GroupSlot) MemberCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// AppendReliable appends a new ordered PendingMessage from sender to
// the log and returns it along with the suffix of entries sender had
// not yet observed (per its current pointer), in order — the
// unseen-then-new sequence a DSResult reports back to the sender.
// Caller must hold g.mu (AppendReliable takes it).
func (g *GroupSlot) appendReliable(sender identity.UserID, ciphertext []byte, recipients []identity.UserID) (entry *PendingMessage, precedingAndSent []*PendingMessage) {
	g.registerParticipant(sender)
	for _, r := range recipients {
		g.registerParticipant(r)
	}

	unseenFrom := g.pointers[sender]
	var unseen []*PendingMessage
	for _, msg := range g.orderedLog {
		if msg.Position >= unseenFrom {
			unseen = append(unseen, msg)
		}
	}

	position := g.logOffset + uint64(len(g.orderedLog))
	msg := newPendingMessage(sender, ciphertext, recipients)
	msg.Position = position
	g.orderedLog = append(g.orderedLog, msg)

	// Only the sender's pointer advances here — they have just
	// observed this position via the inline preceding_and_sent reply,
	// not via a later sync. Recipients learn of it the same way they
	// learn of any other ordered message: their next SyncOrdered call.
	g.pointers[sender] = position + 1

	return msg, append(unseen, msg)
}

// AppendReliable is lib/dsdispatch's single critical section for
// user_reliable_send: reject-on-block-list happens just before this
// call, then under g.mu it computes the unseen suffix, appends the
// new message, and advances the sender's pointer past it.
func (g *GroupSlot) AppendReliable(sender identity.UserID, ciphertext []byte, recipients []identity.UserID) (entry *PendingMessage, precedingAndSent []*PendingMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.appendReliable(sender, ciphertext, recipients)
}

// Sweep trims the log prefix every current member has passed.
func (g *GroupSlot) Sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweep()
}

// SyncOrdered returns every ordered entry with Position at or after
// user's current pointer, and advances the pointer past them.
func (g *GroupSlot) SyncOrdered(user identity.UserID) []*PendingMessage {
	g.mu.Lock()
	defer g.mu.Unlock()

	from := g.pointers[user]
	var out []*PendingMessage
	for _, msg := range g.orderedLog {
		if msg.Position >= from {
			out = append(out, msg)
		}
	}
	if len(g.orderedLog) > 0 {
		last := g.orderedLog[len(g.orderedLog)-1]
		g.pointers[user] = last.Position + 1
	}
	return out
}

// sweep trims the log prefix every current member has already passed,
// per the GC-correctness invariant: a message is absent from DS state
// once every intended recipient has synced past it. Caller must hold
// g.mu.
func (g *GroupSlot) sweep() {
	if len(g.orderedLog) == 0 || len(g.members) == 0 {
		return
	}

	min := uint64(0)
	first := true
	for member := range g.members {
		p := g.pointers[member]
		if first || p < min {
			min = p
			first = false
		}
	}

	trim := 0
	for trim < len(g.orderedLog) && g.orderedLog[trim].Position < min {
		trim++
	}
	if trim == 0 {
		return
	}
	g.logOffset += uint64(trim)
	g.orderedLog = g.orderedLog[trim:]
}
