// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"

	"github.com/mlsgov/platform/lib/asdispatch"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/netutil"
	"github.com/mlsgov/platform/lib/wire"
	"github.com/mlsgov/platform/transport"
)

// serve accepts connections on listener until ctx is cancelled,
// dispatching each to handle in its own goroutine. Mirrors the
// accept-loop shape the Delivery Service binary uses.
func serve(ctx context.Context, listener transport.Listener, handle func(*transport.Conn), logger *slog.Logger) {
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("accept failed", "error", err)
			continue
		}
		go handle(conn)
	}
}

// handleClientConn services the client-facing listener: registration,
// credential lookup, and bulk sync. One goroutine per connection,
// reading frames until the peer disconnects.
func handleClientConn(conn *transport.Conn, dispatcher *asdispatch.Dispatcher, logger *slog.Logger) {
	defer conn.Close()

	for {
		req, err := wire.ReadMessage(conn)
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				logger.Warn("read failed", "remote", conn.RemoteAddr(), "error", err)
			}
			return
		}

		var reply wire.OnWireMessage
		switch req.Kind {
		case wire.KindUserRegisterForAS:
			reply = dispatcher.Register(req)
		case wire.KindUserCredentialLookup:
			reply = dispatcher.Lookup(req)
		case wire.KindUserSyncCredentials:
			reply = dispatcher.SyncCredentials(req)
		default:
			reply = wire.Ack(wire.KindAck, wire.OutcomeCodec, "unsupported request kind: "+string(req.Kind))
		}

		if err := wire.WriteMessage(conn, reply); err != nil {
			logger.Warn("write failed", "remote", conn.RemoteAddr(), "error", err)
			return
		}
	}
}

// handleAdminConn services the operator-only admin listener:
// AdminDeplatform is the only request it accepts. On success it
// signs a DeplatformNotice and pushes it to dsAddr before replying.
func handleAdminConn(ctx context.Context, conn *transport.Conn, dispatcher *asdispatch.Dispatcher, dialer transport.Dialer, dsAddr string, clockNow func() int64, logger *slog.Logger) {
	defer conn.Close()

	for {
		req, err := wire.ReadMessage(conn)
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				logger.Warn("admin read failed", "remote", conn.RemoteAddr(), "error", err)
			}
			return
		}

		if req.Kind != wire.KindAdminDeplatform {
			_ = wire.WriteMessage(conn, wire.Ack(wire.KindAck, wire.OutcomeCodec, "admin listener only accepts AdminDeplatform"))
			continue
		}

		reply := deplatform(ctx, dispatcher, dialer, dsAddr, req.User, clockNow(), logger)
		if err := wire.WriteMessage(conn, reply); err != nil {
			logger.Warn("admin write failed", "remote", conn.RemoteAddr(), "error", err)
			return
		}
	}
}

// deplatform removes user's credential and, on success, pushes the
// resulting signed DeplatformNotice to the Delivery Service at
// dsAddr. The Delivery Service's own block list is the enforcement
// point; the Authentication Service's store is just the source of
// truth for who is still trusted.
func deplatform(ctx context.Context, dispatcher *asdispatch.Dispatcher, dialer transport.Dialer, dsAddr string, user identity.UserID, now int64, logger *slog.Logger) wire.OnWireMessage {
	notice, err := dispatcher.Deplatform(user.String(), now)
	if err != nil {
		return wire.Ack(wire.KindAck, wire.OutcomeAuth, err.Error())
	}

	conn, err := dialer.DialContext(ctx, dsAddr)
	if err != nil {
		logger.Error("deplatform notice: dialing delivery service failed", "error", err)
		return wire.Ack(wire.KindAck, wire.OutcomeTransport, "deplatformed but failed to notify delivery service: "+err.Error())
	}
	defer conn.Close()

	noticeMsg := wire.OnWireMessage{Kind: wire.KindDeplatformNotice, SignedDeplatformNotice: notice}
	if err := wire.WriteMessage(conn, noticeMsg); err != nil {
		return wire.Ack(wire.KindAck, wire.OutcomeTransport, "deplatformed but failed to notify delivery service: "+err.Error())
	}
	ack, err := wire.ReadMessage(conn)
	if err != nil {
		return wire.Ack(wire.KindAck, wire.OutcomeTransport, "deplatformed but delivery service did not acknowledge: "+err.Error())
	}
	if ack.Outcome != wire.OutcomeNone {
		return wire.Ack(wire.KindAck, ack.Outcome, "deplatformed but delivery service rejected notice: "+ack.Reason)
	}

	return wire.Ack(wire.KindAck, wire.OutcomeNone, "")
}
