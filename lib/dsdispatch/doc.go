// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package dsdispatch implements the Delivery Service's operations —
// upload_keypackages, retrieve_keypackage, user_standard_send,
// user_reliable_send, user_sync, and deplatform — on top of the
// storage and locking lib/dsstate provides. Each operation here is a
// thin translation between a lib/wire.OnWireMessage request and the
// corresponding lib/dsstate call; none of them hold a lock directly,
// that discipline belongs entirely to lib/dsstate.
package dsdispatch
