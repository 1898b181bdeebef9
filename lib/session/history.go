// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"sync"
	"time"

	"github.com/mlsgov/platform/lib/identity"
)

// HistoryEntry is one locally recorded message in a group's history,
// in application-visible form (already decrypted and, in governance
// mode, signature-verified).
type HistoryEntry struct {
	Position uint64
	Sender   identity.UserID
	Text     string
	At       time.Time
}

// History is a GroupSession's local, append-only record of delivered
// text messages, along with a read cursor tracking how far the user
// has caught up. It holds no server-side counterpart — every member's
// History is built purely from what its own Pipeline applies.
type History struct {
	mu      sync.Mutex
	entries []HistoryEntry
	readPos uint64
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{}
}

// Append records entry after every earlier one, in arrival order;
// Append does not re-sort. Entries delivered outside the ordered log
// carry Position 0.
func (h *History) Append(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
}

// ReadMode selects which slice of history Read returns.
type ReadMode string

const (
	// ReadAll returns every recorded entry.
	ReadAll ReadMode = "all"
	// ReadLast returns only the most recent entry, if any.
	ReadLast ReadMode = "last"
	// ReadUnread returns every entry after the read cursor, then
	// advances the cursor past them.
	ReadUnread ReadMode = "unread"
)

// Read returns entries per mode. ReadUnread is the only mode with a
// side effect: it advances the read cursor to the end of what it
// returns, so a second call in the same mode returns nothing new
// until more messages arrive.
func (h *History) Read(mode ReadMode) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch mode {
	case ReadLast:
		if len(h.entries) == 0 {
			return nil
		}
		return []HistoryEntry{h.entries[len(h.entries)-1]}
	case ReadUnread:
		// readPos counts entries already returned, so unordered
		// entries (Position 0) are returned like any other.
		if h.readPos >= uint64(len(h.entries)) {
			return nil
		}
		unread := make([]HistoryEntry, uint64(len(h.entries))-h.readPos)
		copy(unread, h.entries[h.readPos:])
		h.readPos = uint64(len(h.entries))
		return unread
	default:
		out := make([]HistoryEntry, len(h.entries))
		copy(out, h.entries)
		return out
	}
}
