// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/mlsgov/platform/lib/clock"
	"github.com/mlsgov/platform/lib/dsstate"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/wire"
	"github.com/mlsgov/platform/transport"
)

// credentialCursor tracks the highest credential.Delta Sequence this
// Delivery Service has applied, so each poll only asks the
// Authentication Service for what changed since last time.
type credentialCursor struct {
	since int64
}

func newCredentialCursor() *credentialCursor {
	return &credentialCursor{since: -1}
}

// runCredentialSyncLoop polls the Authentication Service for
// credential deltas at interval, applying each to state's fingerprint
// cache so user_reliable_send can check a sender's block-list status
// without round-tripping to the Authentication Service on every send.
func runCredentialSyncLoop(ctx context.Context, c clock.Clock, dialer transport.Dialer, asAddr string, state *dsstate.State, interval time.Duration, logger *slog.Logger) {
	cursor := newCredentialCursor()

	sync := func() {
		if err := syncCredentialsOnce(ctx, dialer, asAddr, state, cursor); err != nil {
			logger.Error("credential sync failed", "error", err)
		}
	}

	sync()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.After(interval):
			sync()
		}
	}
}

func syncCredentialsOnce(ctx context.Context, dialer transport.Dialer, asAddr string, state *dsstate.State, cursor *credentialCursor) error {
	conn, err := dialer.DialContext(ctx, asAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	req := wire.OnWireMessage{Kind: wire.KindUserSyncCredentials, Since: cursor.since}
	if err := wire.WriteMessage(conn, req); err != nil {
		return err
	}
	reply, err := wire.ReadMessage(conn)
	if err != nil {
		return err
	}

	for _, delta := range reply.CredentialDeltas {
		user, err := identity.ParseUserID(delta.Credential.UserID)
		if err != nil {
			continue
		}
		state.SetFingerprint(user, delta.Credential.Fingerprint())
		if delta.Deplatformed {
			state.Deplatform(user)
		}
		if delta.Sequence > cursor.since {
			cursor.since = delta.Sequence
		}
	}
	return nil
}
