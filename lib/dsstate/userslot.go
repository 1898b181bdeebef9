// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package dsstate

import (
	"sync"

	"github.com/mlsgov/platform/lib/identity"
)

// UserSlot is one user's unordered-delivery state: their invite and
// unordered-send queues. Key package storage is handled by
// lib/keypackage.Pool directly (it already shards per user); a
// UserSlot does not duplicate that queue.
type UserSlot struct {
	mu sync.Mutex

	unorderedQueue []*PendingMessage
	inviteQueue    []*PendingMessage

	// connected reports whether this user currently has a live
	// session (transport connection) the DS could push to instead of
	// waiting for the next poll-driven UserSync. Dispatch wires the
	// actual handle; dsstate only tracks presence.
	connected bool
}

func newUserSlot() *UserSlot {
	return &UserSlot{}
}

// Enqueue appends msg to the invite queue if invite is true, else the
// unordered queue.
func (u *UserSlot) Enqueue(msg *PendingMessage, invite bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if invite {
		u.inviteQueue = append(u.inviteQueue, msg)
	} else {
		u.unorderedQueue = append(u.unorderedQueue, msg)
	}
}

// QueueDepth reports the current length of the invite queue (invite
// true) or unordered queue (invite false), for back-pressure checks
// before enqueuing a new message.
func (u *UserSlot) QueueDepth(invite bool) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	if invite {
		return len(u.inviteQueue)
	}
	return len(u.unorderedQueue)
}

// drainLocked empties queue and marks self retrieved on every message
// it held. Caller must hold u.mu.
func (u *UserSlot) drainLocked(queue *[]*PendingMessage, self identity.UserID) []*PendingMessage {
	drained := *queue
	*queue = nil
	for _, msg := range drained {
		msg.markRetrieved(self)
	}
	return drained
}

// Drain removes and returns every queued unordered and invite message
// for self, marking self as having retrieved each.
func (u *UserSlot) Drain(self identity.UserID) (unordered, invites []*PendingMessage) {
	u.mu.Lock()
	defer u.mu.Unlock()
	unordered = u.drainLocked(&u.unorderedQueue, self)
	invites = u.drainLocked(&u.inviteQueue, self)
	return unordered, invites
}

// SetConnected records whether self currently holds a live session.
func (u *UserSlot) SetConnected(connected bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.connected = connected
}

// Connected reports the last value set by SetConnected.
func (u *UserSlot) Connected() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.connected
}

// PurgeFrom removes every queued message sent by sender (used by
// deplatforming, per Invariant 6: pending messages from a blocked
// sender are purged, not merely refused going forward).
func (u *UserSlot) PurgeFrom(sender identity.UserID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.unorderedQueue = purge(u.unorderedQueue, sender)
	u.inviteQueue = purge(u.inviteQueue, sender)
}

func purge(queue []*PendingMessage, sender identity.UserID) []*PendingMessage {
	kept := queue[:0]
	for _, msg := range queue {
		if !msg.Sender.Equal(sender) {
			kept = append(kept, msg)
		}
	}
	return kept
}
