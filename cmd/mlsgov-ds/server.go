// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/ed25519"
	"log/slog"

	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/dsdispatch"
	"github.com/mlsgov/platform/lib/netutil"
	"github.com/mlsgov/platform/lib/wire"
	"github.com/mlsgov/platform/transport"
)

// serve accepts connections on listener until ctx is cancelled,
// dispatching each to handle in its own goroutine.
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

// handleConn services one connection for the lifetime of its
// underlying TCP socket, dispatching every frame it reads to the
// Dispatcher operation req.Kind names.
func handleConn(conn *transport.Conn, dispatcher *dsdispatch.Dispatcher, asPublicKey ed25519.PublicKey, logger *slog.Logger) {
	defer conn.Close()

	for {
		req, err := wire.ReadMessage(conn)
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				logger.Warn("read failed", "remote", conn.RemoteAddr(), "error", err)
			}
			return
		}

		reply := dispatch(dispatcher, asPublicKey, req)
		if err := wire.WriteMessage(conn, reply); err != nil {
			logger.Warn("write failed", "remote", conn.RemoteAddr(), "error", err)
			return
		}
	}
}

func dispatch(dispatcher *dsdispatch.Dispatcher, asPublicKey ed25519.PublicKey, req wire.OnWireMessage) wire.OnWireMessage {
	switch req.Kind {
	case wire.KindUserKeyPackagesForDS:
		return dispatcher.UploadKeyPackages(req)
	case wire.KindUserRetrieveKeyPackage:
		return dispatcher.RetrieveKeyPackage(req)
	case wire.KindUserStandardSend:
		return dispatcher.UserStandardSend(req)
	case wire.KindUserReliableSend:
		return dispatcher.UserReliableSend(req)
	case wire.KindWelcome:
		return dispatchWelcome(dispatcher, req)
	case wire.KindUserSync:
		return dispatchSync(dispatcher, req)
	case wire.KindDeplatformNotice:
		return dispatcher.ApplyDeplatformNotice(req, asPublicKey)
	default:
		return wire.Ack(wire.KindAck, wire.OutcomeCodec, "unsupported request kind: "+string(req.Kind))
	}
}

// dispatchWelcome re-encodes req.Welcome as the SendWelcome payload
// lib/dsdispatch expects: an opaque codec-encoded blob indistinguishable
// on the wire from any other queued message until the recipient
// decodes it.
func dispatchWelcome(dispatcher *dsdispatch.Dispatcher, req wire.OnWireMessage) wire.OnWireMessage {
	if req.Welcome == nil {
		return wire.Ack(wire.KindAck, wire.OutcomeCodec, "missing welcome")
	}
	welcomeBytes, err := codec.Marshal(req.Welcome)
	if err != nil {
		return wire.Ack(wire.KindAck, wire.OutcomeCodec, err.Error())
	}
	return dispatcher.SendWelcome(req.User, welcomeBytes)
}

// dispatchSync implements user_sync: when req.Group is set, the
// caller is asking for one group's ordered catch-up (lib/session's
// per-group poll); otherwise it is the combined unordered/invite
// drain.
func dispatchSync(dispatcher *dsdispatch.Dispatcher, req wire.OnWireMessage) wire.OnWireMessage {
	if !req.Group.IsZero() {
		entries := dispatcher.SyncGroup(req.User, req.Group)
		return wire.OnWireMessage{Kind: wire.KindDSResult, Accepted: true, Ordered: true, Unordered: entries}
	}
	return dispatcher.UserSync(req)
}
