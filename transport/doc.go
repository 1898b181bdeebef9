// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides a framed, persistent connection
// abstraction used by the Authentication Service, Delivery Service,
// and Client to exchange OnWireMessage traffic.
//
// [Listener] accepts inbound connections (Accept, Address, Close) and
// [Dialer] establishes outbound ones (DialContext). Both return a
// [Conn]: a length-prefixed framing layer over a net.Conn. Each frame
// is a 4-byte big-endian length followed by that many bytes of
// CBOR-encoded payload — an application-level analogue of a WebSocket
// binary frame. The WebSocket handshake and framing themselves are
// out of scope here; [Conn] is the interface such a transport
// (WebSocket over TCP, among others) would satisfy, and
// [TCPListener]/[TCPDialer] are the plain-TCP implementation used in
// development and in the test suite.
//
// Conn assumes a reliable, FIFO, per-connection channel: reads are
// not safe for concurrent use (callers run a single reader goroutine
// per connection and rely on frame order matching send order), while
// writes are serialized internally so multiple goroutines may share
// one Conn for sending.
//
// lib/wire builds the OnWireMessage CBOR encoding on top of Conn's
// raw frames; this package has no knowledge of message contents.
package transport
