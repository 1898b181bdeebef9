// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package keypackage implements mlsgov's one-shot public keying
// material and the Delivery Service's per-user pool of it.
//
// A [KeyPackage] carries an MLS-style public keying hint (the X25519
// public key [lib/mlsadapter] encrypts a group's Welcome to) alongside
// the credential fingerprint it is bound to, so the Delivery Service
// and receiving clients can tell which registered user a KeyPackage
// belongs to without trusting the upload itself — upload is
// unauthenticated at the DS; authenticity is verified downstream by
// the inviting client against the Authentication Service's credential
// record via signature verification.
//
// [Pool] holds, per user, a FIFO of KeyPackages. [Pool.Retrieve] pops
// the front entry and never returns the same KeyPackage twice, so
// every KeyPackage is delivered to at most one recipient entirely
// through the pop-once semantics of the underlying queue, with no
// separate "consumed" bookkeeping needed once an entry leaves the pool.
package keypackage
