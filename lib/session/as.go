// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"

	"github.com/mlsgov/platform/lib/credential"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/wire"
)

// roundTripAS dials the Authentication Service, writes req, reads one
// reply, and closes.
func (c *Client) roundTripAS(ctx context.Context, req wire.OnWireMessage) (wire.OnWireMessage, error) {
	conn, err := c.dialAS(ctx)
	if err != nil {
		return wire.OnWireMessage{}, err
	}
	defer conn.Close()

	if err := wire.WriteMessage(conn, req); err != nil {
		return wire.OnWireMessage{}, err
	}
	return wire.ReadMessage(conn)
}

// Register submits this client's Ed25519 public key to the
// Authentication Service under its UserID and persists the signed
// Credential it returns.
func (c *Client) Register(ctx context.Context) error {
	req := wire.OnWireMessage{
		Kind: wire.KindUserRegisterForAS,
		User: c.Identity.UserID,
		Credential: &credential.Credential{
			UserID:    c.Identity.UserID.String(),
			VerifyKey: c.Identity.VerifyKey,
		},
	}

	reply, err := c.roundTripAS(ctx, req)
	if err != nil {
		return err
	}
	if reply.Outcome != wire.OutcomeNone {
		return fmt.Errorf("session: registration rejected: %s: %s", reply.Outcome, reply.Reason)
	}
	if reply.Credential == nil {
		return fmt.Errorf("session: registration reply missing credential")
	}
	return c.Identity.SaveCredential(c.Config.StateDir, reply.Credential)
}

// LookupCredential asks the Authentication Service for user's current
// credential.
func (c *Client) LookupCredential(ctx context.Context, user identity.UserID) (*credential.Credential, error) {
	reply, err := c.roundTripAS(ctx, wire.OnWireMessage{Kind: wire.KindUserCredentialLookup, User: user})
	if err != nil {
		return nil, err
	}
	if !reply.Found {
		return nil, nil
	}
	return reply.Credential, nil
}

// SyncCredentials fetches every credential delta since the verify-key
// cache's cursor and applies them, keeping the cache (and therefore
// every group's actionpipeline.Pipeline signature verification) up to
// date. Call this on startup and periodically thereafter.
func (c *Client) SyncCredentials(ctx context.Context) error {
	reply, err := c.roundTripAS(ctx, wire.OnWireMessage{
		Kind:  wire.KindUserSyncCredentials,
		Since: c.VerifyKeys.Cursor(),
	})
	if err != nil {
		return err
	}
	c.VerifyKeys.Apply(reply.CredentialDeltas)
	return nil
}
