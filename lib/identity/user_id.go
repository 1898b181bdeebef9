// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import "fmt"

// maxUserIDLength bounds UserID so it remains safe to embed in
// filesystem paths (the Delivery Service names per-user queue state
// after it) and in log lines.
const maxUserIDLength = 256

// UserID is an opaque, validated handle uniquely identifying a
// registered user. UserIDs are assigned by callers at registration
// time (no particular allocation scheme is mandated) and become
// immutable once bound to a [credential.Credential].
//
// The zero value is not valid; use IsZero to check.
type UserID struct {
	id string
}

// ParseUserID validates and wraps a raw user ID string. Returns an
// error if the string is empty, exceeds maxUserIDLength, or contains
// a control character, '/', or NUL byte.
func ParseUserID(raw string) (UserID, error) {
	if raw == "" {
		return UserID{}, fmt.Errorf("identity: user ID is empty")
	}
	if len(raw) > maxUserIDLength {
		return UserID{}, fmt.Errorf("identity: user ID %q is %d bytes, maximum is %d", raw, len(raw), maxUserIDLength)
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c < ' ' || c == 0x7f || c == '/' {
			return UserID{}, fmt.Errorf("identity: user ID %q contains invalid byte %q at position %d", raw, c, i)
		}
	}
	return UserID{id: raw}, nil
}

// String returns the raw user ID.
func (u UserID) String() string { return u.id }

// IsZero reports whether u is the zero value (uninitialized).
func (u UserID) IsZero() bool { return u.id == "" }

// Equal reports whether u and other identify the same user.
func (u UserID) Equal(other UserID) bool { return u.id == other.id }

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) {
	return []byte(u.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value.
func (u *UserID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = UserID{}
		return nil
	}
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
