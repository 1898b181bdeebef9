// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"crypto/ed25519"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mlsgov/platform/lib/asdispatch"
	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/config"
	"github.com/mlsgov/platform/lib/credential"
	"github.com/mlsgov/platform/lib/dsdispatch"
	"github.com/mlsgov/platform/lib/dsstate"
	"github.com/mlsgov/platform/lib/wire"
	"github.com/mlsgov/platform/transport"
)

// testLogger returns a slog.Logger that discards everything it is
// given; these tests assert on Client state, not log output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAS runs an Authentication Service dispatch loop against a
// loopback listener, the same shape cmd/mlsgov-as/server.go serves,
// so Client's dial-per-call AS round trips exercise the real wire
// codec and dispatcher rather than a mock.
type fakeAS struct {
	addr       string
	dispatcher *asdispatch.Dispatcher
	signingKey ed25519.PrivateKey
}

func newFakeAS(t *testing.T) *fakeAS {
	t.Helper()
	_, signingKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generating AS signing key: %v", err)
	}
	listener, err := transport.NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening for AS: %v", err)
	}
	s := &fakeAS{
		addr:       listener.Address(),
		dispatcher: asdispatch.New(credential.NewStore(), signingKey),
		signingKey: signingKey,
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		listener.Close()
	})
	go func() {
		for {
			conn, err := listener.Accept(ctx)
			if err != nil {
				return
			}
			go s.handle(conn)
		}
	}()
	return s
}

func (s *fakeAS) handle(conn *transport.Conn) {
	defer conn.Close()
	for {
		req, err := wire.ReadMessage(conn)
		if err != nil {
			return
		}
		var reply wire.OnWireMessage
		switch req.Kind {
		case wire.KindUserRegisterForAS:
			reply = s.dispatcher.Register(req)
		case wire.KindUserCredentialLookup:
			reply = s.dispatcher.Lookup(req)
		case wire.KindUserSyncCredentials:
			reply = s.dispatcher.SyncCredentials(req)
		default:
			reply = wire.Ack(wire.KindAck, wire.OutcomeCodec, "unsupported request kind: "+string(req.Kind))
		}
		if err := wire.WriteMessage(conn, reply); err != nil {
			return
		}
	}
}

// fakeDS runs a Delivery Service dispatch loop the same way, mirroring
// cmd/mlsgov-ds/server.go.
type fakeDS struct {
	addr       string
	dispatcher *dsdispatch.Dispatcher
}

func newFakeDS(t *testing.T) *fakeDS {
	t.Helper()
	listener, err := transport.NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening for DS: %v", err)
	}
	s := &fakeDS{
		addr:       listener.Address(),
		dispatcher: dsdispatch.New(dsstate.New(0), 0),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		listener.Close()
	})
	go func() {
		for {
			conn, err := listener.Accept(ctx)
			if err != nil {
				return
			}
			go s.handle(conn)
		}
	}()
	return s
}

func (s *fakeDS) handle(conn *transport.Conn) {
	defer conn.Close()
	for {
		req, err := wire.ReadMessage(conn)
		if err != nil {
			return
		}
		if err := wire.WriteMessage(conn, s.dispatch(req)); err != nil {
			return
		}
	}
}

func (s *fakeDS) dispatch(req wire.OnWireMessage) wire.OnWireMessage {
	switch req.Kind {
	case wire.KindUserKeyPackagesForDS:
		return s.dispatcher.UploadKeyPackages(req)
	case wire.KindUserRetrieveKeyPackage:
		return s.dispatcher.RetrieveKeyPackage(req)
	case wire.KindUserStandardSend:
		return s.dispatcher.UserStandardSend(req)
	case wire.KindUserReliableSend:
		return s.dispatcher.UserReliableSend(req)
	case wire.KindWelcome:
		if req.Welcome == nil {
			return wire.Ack(wire.KindAck, wire.OutcomeCodec, "missing welcome")
		}
		welcomeBytes, err := codec.Marshal(req.Welcome)
		if err != nil {
			return wire.Ack(wire.KindAck, wire.OutcomeCodec, err.Error())
		}
		return s.dispatcher.SendWelcome(req.User, welcomeBytes)
	case wire.KindUserSync:
		if !req.Group.IsZero() {
			entries := s.dispatcher.SyncGroup(req.User, req.Group)
			return wire.OnWireMessage{Kind: wire.KindDSResult, Accepted: true, Ordered: true, Unordered: entries}
		}
		return s.dispatcher.UserSync(req)
	default:
		return wire.Ack(wire.KindAck, wire.OutcomeCodec, "unsupported request kind: "+string(req.Kind))
	}
}

// testPair wires one fakeAS and one fakeDS together and constructs
// registered, credential-synced Clients against them.
type testPair struct {
	t  *testing.T
	as *fakeAS
	ds *fakeDS
}

func newTestPair(t *testing.T) *testPair {
	t.Helper()
	return &testPair{t: t, as: newFakeAS(t), ds: newFakeDS(t)}
}

// client builds, registers, and credential-syncs a Client for user.
func (p *testPair) client(user string) *Client {
	p.t.Helper()
	id := newTestIdentity(p.t, user)
	cfg := config.ClientConfig{
		ASAddr:       p.as.addr,
		DSAddr:       p.ds.addr,
		StateDir:     p.t.TempDir(),
		Mode:         config.GovernanceMode,
		SyncInterval: "20ms",
	}
	c := New(cfg, id, testLogger())

	ctx := context.Background()
	if err := c.Register(ctx); err != nil {
		p.t.Fatalf("Register(%s): %v", user, err)
	}
	if err := c.SyncCredentials(ctx); err != nil {
		p.t.Fatalf("SyncCredentials(%s): %v", user, err)
	}
	return c
}

// waitFor polls cond until it returns true or timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}
