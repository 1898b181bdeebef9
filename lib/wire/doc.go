// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines OnWireMessage, the tagged union carried over a
// transport.Conn between Client, Authentication Service, and Delivery
// Service. It plays the same role for actor-to-actor traffic that
// lib/actionmsg's ActionMsg plays for group actions: a Kind
// discriminator plus only-relevant fields, CBOR-encoded with Core
// Deterministic Encoding via lib/codec.
//
// transport.Conn only knows about length-prefixed byte frames; this
// package is what gives those frames meaning. WriteMessage/ReadMessage
// marshal/unmarshal a single OnWireMessage per frame.
//
// # Sealed sender
//
// UserStandardSend (unordered) omits any sender field from the
// envelope — the Delivery Service's dispatch code never reads a
// sender identity for that path, only the recipient set. Unordered
// sends rely on this to keep the sender's identity out of Delivery
// Service logs and routing decisions. UserReliableSend (ordered)
// carries ClearSender in the open, since the Delivery Service must
// know who sent an ordered message to compute the unseen-suffix
// returned in DSResult.
package wire
