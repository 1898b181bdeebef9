// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package actionpipeline turns an actionmsg.ActionMsg into group
// traffic on the way out, and group traffic back into an applied
// actionmsg.ActionMsg on the way in.
//
// Outgoing (PrepareOutgoing): canonicalize and validate, sign (in
// governance mode only, wrapping the action in a SignedAction so it
// remains independently verifiable after the group's MLS epoch
// rotates — see Report), check the sender's RBAC capability, run the
// Policy Engine, classify the action as ordered or unordered, and
// MLS-encrypt the result. Baseline mode short-circuits straight from
// validate to classify, skipping sign/RBAC/policy entirely — it is
// the mode used to confirm governance changes behavior rather than
// silently altering it.
//
// Incoming (ProcessIncoming): MLS-decrypt, unwrap and verify the
// signature (governance mode), gate through RBAC and the Policy
// Engine symmetrically with the outgoing path, and apply the result
// to SharedGroupState. A receiver whose RBAC check fails never
// applies the action locally, but the Delivery Service has already
// assigned it a log position — rejection does not roll that back.
//
// Both paths funnel ordered-action state changes through applyEffect,
// also used by EvaluateAllProposed's resolution loop so a
// policy-queued proposal that later resolves to Passed is applied the
// same way a first-pass Passed decision would have been.
package actionpipeline
