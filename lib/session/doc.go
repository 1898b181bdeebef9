// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package session implements the Client actor (C9): a per-user
// session holding one identity, a connection to the Authentication
// Service and the Delivery Service, and one [GroupSession] per group
// the user belongs to.
//
// A send flows C6 -> (C7) -> C5 -> C1 -> C9 -> DS -> recipients' C9
// -> C1 -> C5 -> C6 -> (C7 re-evaluate) -> local history: [Client]
// builds an [actionmsg.ActionMsg], hands it to the group's
// [actionpipeline.Pipeline] for signing/RBAC/policy/MLS-encryption,
// writes the resulting ciphertext to the Delivery Service over
// [transport.Conn], and on the DSResult applies every entry the
// pipeline decrypts (including the sender's own echoed message) to
// local governance state and message history. Receiving a relayed
// message runs the same pipeline in reverse.
//
// The sync loop (sync.go) polls the Delivery Service's UserSync at
// Config.SyncInterval, following the reconnect-with-backoff shape
// used elsewhere in this codebase for long-lived network loops, and
// applies every drained message the same way a direct reliable send's
// own echo is applied. It also refreshes the verify-key cache from
// the Authentication Service on the same cadence.
package session
