// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
	"time"
)

// Compile-time interface checks.
var (
	_ Listener = (*TCPListener)(nil)
	_ Dialer   = (*TCPDialer)(nil)
)

// TCPListener accepts inbound TCP connections and wraps each in a
// framed [Conn]. This is the only Listener implementation mlsgov
// ships — it assumes direct reachability between the Authentication
// Service, the Delivery Service, and Clients (no NAT traversal, no
// relay).
type TCPListener struct {
	listener net.Listener
}

// NewTCPListener creates a TCP transport listener on the specified
// address (e.g., ":7002" or "192.168.1.10:7002"). Use ":0" for a
// random available port.
func NewTCPListener(address string) (*TCPListener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &TCPListener{listener: listener}, nil
}

// Accept blocks until a new connection arrives or ctx is cancelled.
func (l *TCPListener) Accept(ctx context.Context) (*Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := l.listener.Accept()
		done <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return NewConn(r.conn), nil
	}
}

// Address returns the TCP address in "host:port" format.
func (l *TCPListener) Address() string {
	return l.listener.Addr().String()
}

// Close shuts down the TCP listener. Any Accept call blocked in its
// own goroutine will fail once the underlying net.Listener closes.
func (l *TCPListener) Close() error {
	return l.listener.Close()
}

// TCPDialer opens TCP connections and wraps each in a framed [Conn].
type TCPDialer struct {
	// Timeout is the maximum time to wait for a TCP connection to be
	// established. Zero means no standalone timeout — only the
	// context deadline applies.
	Timeout time.Duration
}

// DialContext opens a TCP connection to the given address (host:port)
// and returns it wrapped as a framed Conn.
func (d *TCPDialer) DialContext(ctx context.Context, address string) (*Conn, error) {
	conn, err := (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return NewConn(conn), nil
}
