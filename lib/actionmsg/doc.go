// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package actionmsg defines the tagged union of actions group members
// exchange and the signed envelope that carries them.
//
// An [ActionMsg] is one of a fixed set of variants — TextMsg,
// RenameGroup, Invite, Accept, Decline, Kick, Remove, DefRole,
// SetUserRole, UpdateGroupState, Report, or CustomAction — represented
// as a single struct with a Kind discriminator and only the fields
// relevant to that Kind populated. UpdateGroupState carries its
// payload as a pre-encoded CBOR blob ([lib/codec.RawMessage]) and
// Report carries the reported action as plain bytes, rather than as
// typed governance structs, so this package has no import-cycle
// dependency on lib/governance; the governance layer decodes the blob
// itself.
//
// A [VerifiableAction] binds a Sender to an ActionMsg with an Ed25519
// signature over their canonical CBOR encoding, mirroring
// [lib/credential]'s sign-with-signature-field-cleared convention.
// The action pipeline does not send VerifiableAction: it wraps every
// action, ordered or unordered, in its own actionpipeline.SignedAction
// and encrypts it with [lib/mlsadapter.EncryptApp], so the action and
// its signed Sender are hidden from anyone but group members.
package actionmsg
