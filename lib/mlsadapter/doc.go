// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package mlsadapter implements the narrow group-keying interface the
// rest of the stack programs against: create a group, add or remove a
// member, encrypt and process application traffic, and hide
// everything about epochs except the one invariant the higher layers
// must honor — a Welcome and the UpdateGroupState snapshot that
// follows it carry matching epoch numbers.
//
// The real MLS protocol (TreeKEM ratchet trees, transcript hashes, the
// full wire encoding) is treated as an opaque library to wrap. No
// production-grade Go TreeKEM implementation is available in this
// project's dependency pool, so this package
// implements a self-contained group-keying scheme with the same
// externally visible shape, built the way this stack builds its other
// crypto wrappers — a thin layer over a handful of audited primitives,
// not a hand-rolled protocol:
//
//   - [NewGroup] creates a fresh 32-byte epoch secret.
//   - [Add] advances the epoch: HKDF-SHA256 over the current epoch
//     secret and a fresh random commit nonce produces the next epoch
//     secret; the committer signs a [Commit] naming the previous
//     epoch, the new epoch's hash, the nonce, and the resulting
//     member list; a [Welcome] encrypts the new epoch secret to the
//     invitee's X25519 public key with filippo.io/age (lib/sealed) —
//     the same primitive already used elsewhere in this stack to wrap
//     a payload for a single recipient.
//   - [Remove] advances the epoch the same way, without a Welcome.
//     [Leave] only returns a [Proposal]; it does not advance the epoch
//     or change the member list.
//   - [EncryptApp] and [ProcessApp] derive a per-message AES-256-GCM
//     key via HKDF over the current epoch secret, the sender, and a
//     monotonically increasing per-sender counter — a minimal ratchet
//     giving forward secrecy across epochs without TreeKEM's tree.
//
// Every epoch secret and derived key lives in a [lib/secret.Buffer]
// (mmap-backed, locked against swap) for as long as the Group holds
// it. Commit and Welcome messages are plaintext, signed structures on
// the wire, not opaque ciphertext blobs — existing members verify and
// apply a Commit directly, and only application traffic passes through
// [EncryptApp]/[ProcessApp]'s AEAD layer.
package mlsadapter
