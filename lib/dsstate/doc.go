// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package dsstate holds the Delivery Service's in-memory state: one
// GroupSlot per group (the ordered log and its own mutex), one
// UserSlot per user (key package queue, unordered queue, invite
// queue), and a shared block list of deplatformed credential
// fingerprints. lib/dsdispatch implements the DS operations on top of
// this state; this package only owns storage, locking, and garbage
// collection.
//
// Locking follows the same shape used elsewhere in this tree for
// many-independent-state-machines-behind-one-map: a sync.RWMutex in
// State guards each top-level map from concurrent slot
// creation, while each slot carries its own sync.Mutex for the state
// inside it — so two requests touching different groups, or different
// users, never contend with each other.
package dsstate
