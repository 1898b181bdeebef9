// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package dsstate

import (
	"sync"

	"github.com/mlsgov/platform/lib/identity"
)

// PendingMessage is one ciphertext the Delivery Service is holding for
// delivery. Position is meaningful only for entries in a GroupSlot's
// ordered log (zero for unordered/invite queue entries). Unretrieved
// tracks which recipients have not yet drained this message from
// their per-user queue; once empty, the message has no further
// reason to exist.
//
// A single unordered or invite PendingMessage is referenced by every
// recipient's queue simultaneously (one enqueue, many readers), so its
// own mutex guards Unretrieved independently of any per-user or
// per-group lock a caller may also be holding.
type PendingMessage struct {
	Position        uint64
	Sender          identity.UserID
	CiphertextBytes []byte

	mu          sync.Mutex
	unretrieved map[identity.UserID]struct{}
}

// NewPendingMessage creates a PendingMessage addressed to recipients,
// for lib/dsdispatch to enqueue into each recipient's UserSlot.
func NewPendingMessage(sender identity.UserID, ciphertext []byte, recipients []identity.UserID) *PendingMessage {
	return newPendingMessage(sender, ciphertext, recipients)
}

// newPendingMessage creates a PendingMessage addressed to recipients.
func newPendingMessage(sender identity.UserID, ciphertext []byte, recipients []identity.UserID) *PendingMessage {
	unretrieved := make(map[identity.UserID]struct{}, len(recipients))
	for _, r := range recipients {
		unretrieved[r] = struct{}{}
	}
	return &PendingMessage{
		Sender:          sender,
		CiphertextBytes: ciphertext,
		unretrieved:     unretrieved,
	}
}

// markRetrieved removes user from the unretrieved set and reports
// whether the message has now been retrieved by every recipient.
func (m *PendingMessage) markRetrieved(user identity.UserID) (fullyConsumed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.unretrieved, user)
	return len(m.unretrieved) == 0
}

// stillOwedTo reports whether user has not yet retrieved this message.
func (m *PendingMessage) stillOwedTo(user identity.UserID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, owed := m.unretrieved[user]
	return owed
}
