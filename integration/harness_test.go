// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package integration_test drives the Authentication Service, Delivery
// Service, and Client session stacks together over real loopback TCP
// connections, the same dial-per-call transport every cmd/ binary
// uses. It is the end-to-end counterpart to the package-level tests
// living alongside each component.
package integration_test

import (
	"context"
	"crypto/ed25519"
	"log/slog"
	"testing"
	"time"

	"github.com/mlsgov/platform/lib/asdispatch"
	"github.com/mlsgov/platform/lib/clock"
	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/config"
	"github.com/mlsgov/platform/lib/credential"
	"github.com/mlsgov/platform/lib/dsdispatch"
	"github.com/mlsgov/platform/lib/dsstate"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/netutil"
	"github.com/mlsgov/platform/lib/session"
	"github.com/mlsgov/platform/lib/wire"
	"github.com/mlsgov/platform/transport"
)

// asServer runs an Authentication Service dispatch loop against a
// loopback listener, mirroring cmd/mlsgov-as/server.go's handler
// without the binary's own config/flag plumbing.
type asServer struct {
	addr       string
	dispatcher *asdispatch.Dispatcher
	signingKey ed25519.PrivateKey
	listener   *transport.TCPListener
}

func newASServer(t *testing.T) *asServer {
	t.Helper()
	_, signingKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generating AS signing key: %v", err)
	}
	listener, err := transport.NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening for AS: %v", err)
	}
	s := &asServer{
		addr:       listener.Address(),
		dispatcher: asdispatch.New(credential.NewStore(), signingKey),
		signingKey: signingKey,
		listener:   listener,
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

func (s *asServer) handle(conn *transport.Conn) {
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

// deplatform issues an operator deplatform request directly against
// the dispatcher (standing in for the admin-listener round trip
// cmd/mlsgov-as/server.go serves) and pushes the resulting notice to
// ds.
func (s *asServer) deplatform(t *testing.T, ds *dsServer, user identity.UserID) {
	t.Helper()
	notice, err := s.dispatcher.Deplatform(user.String(), time.Now().Unix())
	if err != nil {
		t.Fatalf("Deplatform(%s): %v", user, err)
	}
	ds.applyDeplatformNotice(t, notice)
}

// dsServer runs a Delivery Service dispatch loop against a loopback
// listener, mirroring cmd/mlsgov-ds/server.go's handler.
type dsServer struct {
	addr        string
	dispatcher  *dsdispatch.Dispatcher
	asPublicKey ed25519.PublicKey
	listener    *transport.TCPListener
}

func newDSServer(t *testing.T, asPublicKey ed25519.PublicKey) *dsServer {
	t.Helper()
	listener, err := transport.NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening for DS: %v", err)
	}
	s := &dsServer{
		addr:        listener.Address(),
		dispatcher:  dsdispatch.New(dsstate.New(0), 0),
		asPublicKey: asPublicKey,
		listener:    listener,
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

func (s *dsServer) handle(conn *transport.Conn) {
	defer conn.Close()
	for {
		req, err := wire.ReadMessage(conn)
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				return
			}
			return
		}
		reply := s.dispatch(req)
		if err := wire.WriteMessage(conn, reply); err != nil {
			return
		}
	}
}

func (s *dsServer) dispatch(req wire.OnWireMessage) wire.OnWireMessage {
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
	case wire.KindDeplatformNotice:
		return s.dispatcher.ApplyDeplatformNotice(req, s.asPublicKey)
	default:
		return wire.Ack(wire.KindAck, wire.OutcomeCodec, "unsupported request kind: "+string(req.Kind))
	}
}

func (s *dsServer) applyDeplatformNotice(t *testing.T, notice []byte) {
	t.Helper()
	conn, err := (&transport.TCPDialer{Timeout: 5 * time.Second}).DialContext(context.Background(), s.addr)
	if err != nil {
		t.Fatalf("dialing DS to apply deplatform notice: %v", err)
	}
	defer conn.Close()
	req := wire.OnWireMessage{Kind: wire.KindDeplatformNotice, SignedDeplatformNotice: notice}
	if err := wire.WriteMessage(conn, req); err != nil {
		t.Fatalf("sending deplatform notice: %v", err)
	}
	reply, err := wire.ReadMessage(conn)
	if err != nil {
		t.Fatalf("reading deplatform notice ack: %v", err)
	}
	if reply.Outcome != wire.OutcomeNone {
		t.Fatalf("deplatform notice rejected: %s: %s", reply.Outcome, reply.Reason)
	}
}

// testHarness wires one Authentication Service and one Delivery
// Service together and constructs named clients against them, each in
// its own temporary state directory.
type testHarness struct {
	t  *testing.T
	as *asServer
	ds *dsServer
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	as := newASServer(t)
	ds := newDSServer(t, as.signingKey.Public().(ed25519.PublicKey))
	return &testHarness{t: t, as: as, ds: ds}
}

// newClient builds and registers a Client for userID, with a fast
// sync interval suited to polling in tests.
func (h *testHarness) newClient(userID string) *session.Client {
	h.t.Helper()
	user, err := identity.ParseUserID(userID)
	if err != nil {
		h.t.Fatalf("ParseUserID(%q): %v", userID, err)
	}

	stateDir := h.t.TempDir()
	id, err := session.LoadOrCreateIdentity(stateDir, user)
	if err != nil {
		h.t.Fatalf("LoadOrCreateIdentity(%s): %v", userID, err)
	}

	cfg := config.ClientConfig{
		ASAddr:       h.as.addr,
		DSAddr:       h.ds.addr,
		StateDir:     stateDir,
		Mode:         config.GovernanceMode,
		SyncInterval: "20ms",
	}

	c := session.New(cfg, id, slog.New(slog.NewTextHandler(noopWriter{}, nil)))
	c.Clock = clock.Real()

	ctx := context.Background()
	if err := c.Register(ctx); err != nil {
		h.t.Fatalf("Register(%s): %v", userID, err)
	}
	if err := c.SyncCredentials(ctx); err != nil {
		h.t.Fatalf("SyncCredentials(%s): %v", userID, err)
	}
	return c
}

// run starts c's background sync loop, stopping it on test cleanup.
func (h *testHarness) run(c *session.Client) {
	h.t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Run(ctx); err != nil {
		h.t.Fatalf("Run: %v", err)
	}
	h.t.Cleanup(func() {
		cancel()
		c.Close()
	})
}

// uploadKeyPackage publishes one KeyPackage for c so another member
// can Invite it.
func uploadKeyPackage(t *testing.T, ctx context.Context, c *session.Client) {
	t.Helper()
	if err := c.UploadOwnKeyPackage(ctx); err != nil {
		t.Fatalf("UploadOwnKeyPackage: %v", err)
	}
}

// waitFor polls cond at a short interval until it returns true or
// timeout elapses, the idiom every sync-loop-driven assertion in this
// package uses in place of a fixed sleep.
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

// noopWriter discards every log line; these tests assert on state,
// not log output.
type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
