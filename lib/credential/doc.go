// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential implements the Authentication Service's identity
// records and the Ed25519-signed wire formats built on top of them.
//
// A Credential binds a UserId to a long-lived Ed25519 verification key.
// The Authentication Service signs each Credential at registration time
// with its own signing key; clients and the Delivery Service verify
// credentials against the AS's well-known public key without a round
// trip to the AS for every lookup.
//
// # Wire format
//
// A Credential carries its Ed25519 signature in its own Signature
// field; the signature covers the CBOR encoding of UserID and
// VerifyKey alone. A signed DeplatformNotice is raw bytes: a
// CBOR-encoded payload followed by a 64-byte Ed25519 signature over
// the payload.
//
//	[CBOR payload bytes] [64-byte Ed25519 signature]
//
// The split point is always len(data) - 64. No header, no length
// prefix, no base64 — the algorithm is fixed and the signature size is
// constant.
//
// # Deplatforming
//
// Deplatforming a user removes its Credential from the Store and
// appends the Credential's fingerprint to a permanent block list. The
// Authentication Service broadcasts a signed DeplatformNotice to the
// Delivery Service, which verifies it and adds the fingerprint to its
// own block list so that KeyPackages and messages bearing a blocked
// credential are rejected without consulting the Authentication
// Service again.
//
// # Dependencies
//
// This package depends on crypto/ed25519 for signing and lib/codec for
// CBOR encoding. It does not depend on any other mlsgov subsystem.
package credential
