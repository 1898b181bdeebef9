// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// lengthPrefixSize is the size of the big-endian frame length prefix.
const lengthPrefixSize = 4

// MaxFrameSize bounds the size of a single frame's payload. A peer that
// claims a length prefix beyond this is rejected before any allocation
// happens — this is the TCP-framing analogue of the Delivery Service's
// "per-group lock + suffix-return" design: reject malformed input
// cheaply instead of trusting a client-supplied size.
const MaxFrameSize = 16 * 1024 * 1024 // 16 MiB

// ErrFrameTooLarge is returned by ReadFrame when a peer's length prefix
// exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("transport: frame exceeds MaxFrameSize")

// Listener accepts inbound framed connections. The Authentication
// Service, Delivery Service, and Client each create one Listener (the
// Client's is optional — it only needs a Dialer) and call Accept in a
// loop, dispatching each resulting [Conn] to a per-connection handler.
type Listener interface {
	// Accept blocks until a new connection arrives or ctx is
	// cancelled. Returns a framed Conn ready for ReadFrame/WriteFrame.
	Accept(ctx context.Context) (*Conn, error)

	// Address returns the address other actors dial to reach this
	// listener (e.g., "192.168.1.10:7002" for the Delivery Service).
	Address() string

	// Close shuts down the listener. Subsequent Accept calls return
	// immediately with an error.
	Close() error
}

// Dialer opens framed connections to a peer actor. The Client uses a
// Dialer to connect to the Authentication Service and the Delivery
// Service; the Delivery Service uses one to sync credentials from the
// Authentication Service.
type Dialer interface {
	// DialContext opens a connection to address and returns a framed
	// Conn ready for ReadFrame/WriteFrame.
	DialContext(ctx context.Context, address string) (*Conn, error)
}

// Conn wraps a net.Conn with length-prefixed framing: each frame is a
// 4-byte big-endian length followed by exactly that many bytes of
// CBOR-encoded payload (lib/wire handles the OnWireMessage encoding
// itself; Conn only deals in raw frame bytes). This is the
// application-level analogue of a WebSocket binary frame — the actual
// WebSocket handshake and framing are out of scope; any transport
// satisfying this interface, WebSocket included, can sit underneath
// the rest of the stack unchanged.
//
// Reads are not safe for concurrent use (the caller should have a
// single reader goroutine per connection, relying on FIFO per-connection
// message ordering). Writes are safe for concurrent
// use — WriteFrame holds an internal mutex so multiple goroutines
// (e.g., a Delivery Service relaying to several recipients sharing a
// connection-multiplexed session) can write without corrupting frames.
type Conn struct {
	conn net.Conn

	writeMu sync.Mutex
}

// NewConn wraps conn in a framed Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// ReadFrame reads one length-prefixed frame and returns its payload.
// Returns io.EOF when the peer closes the connection cleanly between
// frames, and ErrFrameTooLarge if the advertised length exceeds
// MaxFrameSize.
func (c *Conn) ReadFrame() ([]byte, error) {
	var lengthBytes [lengthPrefixSize]byte
	if _, err := io.ReadFull(c.conn, lengthBytes[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lengthBytes[:])
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return nil, fmt.Errorf("transport: reading frame payload: %w", err)
	}
	return payload, nil
}

// WriteFrame writes payload as one length-prefixed frame. Returns
// ErrFrameTooLarge without touching the connection if payload exceeds
// MaxFrameSize.
func (c *Conn) WriteFrame(payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var lengthBytes [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBytes[:], uint32(len(payload)))

	if _, err := c.conn.Write(lengthBytes[:]); err != nil {
		return fmt.Errorf("transport: writing frame length: %w", err)
	}
	if _, err := c.conn.Write(payload); err != nil {
		return fmt.Errorf("transport: writing frame payload: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote network address of the connection.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
