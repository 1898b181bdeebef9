// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity provides strongly typed, immutable identifiers for
// mlsgov's two identity spaces: users and groups.
//
// [UserID] wraps an opaque UTF-8 handle issued at registration time.
// Unlike a Matrix user ID, a UserID carries no server or namespace
// structure — it is unique platform-wide by construction of the
// Authentication Service's [lib/credential] store, not by any
// syntactic convention. This package only enforces that a UserID is
// non-empty and free of control characters and path-hostile bytes, so
// it can safely appear in filesystem paths and log lines.
//
// [GroupID] wraps a 128-bit UUID (RFC 9562). Groups are created
// client-side with a fresh random UUID and never need central
// allocation — the collision probability is astronomically low, so no
// registration step is required before a GroupID can be used.
//
// Both types implement encoding.TextMarshaler/TextUnmarshaler so they
// round-trip through [lib/codec]'s CBOR encoding as the types
// themselves, not as nested structs.
package identity
