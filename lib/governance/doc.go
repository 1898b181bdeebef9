// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package governance holds SharedGroupState — the replicated,
// client-side view of a group's name, topic, role table, pending
// policy queue, and community/invite candidate states — and the
// Absent -> PreApproved -> Added -> (Accepted | Declined | Removed)
// state machine that governs how a candidate moves through those
// states.
//
// SharedGroupState converges by every honest client applying the same
// sequence of ordered actions in the order the Delivery Service
// assigned them, not by any server holding authoritative state. Two
// clients that have applied the same action sequence hold identical
// SharedGroupState.
package governance
