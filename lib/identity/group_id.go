// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// GroupID is a 128-bit UUID uniquely identifying a group, globally
// unique. GroupIDs are minted
// client-side by [NewGroupID] when a group is created — there is no
// central allocator, since UUID collision probability is negligible.
//
// The zero value is not valid; use IsZero to check.
type GroupID struct {
	id uuid.UUID
}

// NewGroupID mints a fresh random (version 4) GroupID.
func NewGroupID() GroupID {
	return GroupID{id: uuid.New()}
}

// ParseGroupID parses a canonical UUID string (e.g.,
// "f47ac10b-58cc-4372-a567-0e02b2c3d479") into a GroupID.
func ParseGroupID(raw string) (GroupID, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return GroupID{}, fmt.Errorf("identity: invalid group ID %q: %w", raw, err)
	}
	return GroupID{id: parsed}, nil
}

// GroupIDFromBytes wraps 16 raw bytes (e.g., decoded from a wire
// message) as a GroupID.
func GroupIDFromBytes(raw [16]byte) GroupID {
	return GroupID{id: uuid.UUID(raw)}
}

// Bytes returns the GroupID's 16 raw bytes.
func (g GroupID) Bytes() [16]byte { return [16]byte(g.id) }

// String returns the canonical UUID string form.
func (g GroupID) String() string { return g.id.String() }

// IsZero reports whether g is the zero value (uninitialized).
func (g GroupID) IsZero() bool { return g.id == uuid.Nil }

// Equal reports whether g and other identify the same group.
func (g GroupID) Equal(other GroupID) bool { return g.id == other.id }

// MarshalText implements encoding.TextMarshaler.
func (g GroupID) MarshalText() ([]byte, error) {
	if g.IsZero() {
		return []byte{}, nil
	}
	return []byte(g.id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value.
func (g *GroupID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*g = GroupID{}
		return nil
	}
	parsed, err := ParseGroupID(string(data))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
