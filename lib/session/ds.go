// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"

	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/keypackage"
	"github.com/mlsgov/platform/lib/mlsadapter"
	"github.com/mlsgov/platform/lib/wire"
)

// roundTripDS dials the Delivery Service, writes req, reads one
// reply, and closes — the same dial-per-call discipline as
// roundTripAS, including the periodic polls sync.go issues.
func (c *Client) roundTripDS(ctx context.Context, req wire.OnWireMessage) (wire.OnWireMessage, error) {
	conn, err := c.dialDS(ctx)
	if err != nil {
		return wire.OnWireMessage{}, err
	}
	defer conn.Close()

	if err := wire.WriteMessage(conn, req); err != nil {
		return wire.OnWireMessage{}, err
	}
	return wire.ReadMessage(conn)
}

// UploadKeyPackages publishes pkgs to the Delivery Service so other
// members can invite this user into a group.
func (c *Client) UploadKeyPackages(ctx context.Context, pkgs []keypackage.KeyPackage) error {
	reply, err := c.roundTripDS(ctx, wire.OnWireMessage{
		Kind:        wire.KindUserKeyPackagesForDS,
		User:        c.Identity.UserID,
		KeyPackages: pkgs,
	})
	if err != nil {
		return err
	}
	if reply.Outcome != wire.OutcomeNone {
		return fmt.Errorf("session: uploading key packages: %s: %s", reply.Outcome, reply.Reason)
	}
	return nil
}

// RetrieveKeyPackage pops a single queued KeyPackage for user, for use
// in an Invite. Returns ok=false if none is available (Capacity).
func (c *Client) RetrieveKeyPackage(ctx context.Context, user identity.UserID) (keypackage.KeyPackage, bool, error) {
	reply, err := c.roundTripDS(ctx, wire.OnWireMessage{Kind: wire.KindUserRetrieveKeyPackage, User: user})
	if err != nil {
		return keypackage.KeyPackage{}, false, err
	}
	if !reply.Found {
		return keypackage.KeyPackage{}, false, nil
	}
	return *reply.KeyPackage, true, nil
}

// sendUnordered posts ciphertext to every recipient's unordered
// queue.
func (c *Client) sendUnordered(ctx context.Context, recipients []identity.UserID, ciphertext []byte) error {
	reply, err := c.roundTripDS(ctx, wire.OnWireMessage{
		Kind:            wire.KindUserStandardSend,
		Recipients:      recipients,
		CiphertextBytes: ciphertext,
	})
	if err != nil {
		return err
	}
	if reply.Outcome != wire.OutcomeNone && reply.Outcome != wire.OutcomeCapacity {
		return fmt.Errorf("session: standard send: %s: %s", reply.Outcome, reply.Reason)
	}
	return nil
}

// sendReliable posts ciphertext into group's ordered log, returning
// the DSResult so the caller's actionpipeline.Pipeline can apply the
// preceding entries plus the sender's own echoed message.
func (c *Client) sendReliable(ctx context.Context, group identity.GroupID, recipients []identity.UserID, ciphertext []byte) (wire.OnWireMessage, error) {
	return c.roundTripDS(ctx, wire.OnWireMessage{
		Kind:            wire.KindUserReliableSend,
		Group:           group,
		ClearSender:     c.Identity.UserID,
		Recipients:      recipients,
		CiphertextBytes: ciphertext,
	})
}

// sendWelcome delivers a newly-admitted member's Welcome through the
// Delivery Service's dedicated invite queue (KindWelcome), kept apart
// from ordinary unordered traffic so it is never interleaved with
// messages the recipient is not yet positioned to process.
func (c *Client) sendWelcome(ctx context.Context, recipient identity.UserID, welcome mlsadapter.Welcome) error {
	reply, err := c.roundTripDS(ctx, wire.OnWireMessage{
		Kind:    wire.KindWelcome,
		User:    recipient,
		Welcome: &welcome,
	})
	if err != nil {
		return err
	}
	if reply.Outcome != wire.OutcomeNone {
		return fmt.Errorf("session: sending welcome: %s: %s", reply.Outcome, reply.Reason)
	}
	return nil
}

// syncOnce drains this user's unordered/invite queues at the Delivery
// Service; sync.go's poll loop calls it once per tick. Per-group
// ordered catch-up happens separately, one KindUserSync request per
// known group with Group set, mirroring dsdispatch.Dispatcher.SyncGroup's
// documented expectation that lib/session drives that loop.
func (c *Client) syncOnce(ctx context.Context) (wire.OnWireMessage, error) {
	return c.roundTripDS(ctx, wire.OnWireMessage{Kind: wire.KindUserSync, User: c.Identity.UserID})
}

// syncGroupOnce requests group's ordered catch-up for this user.
func (c *Client) syncGroupOnce(ctx context.Context, group identity.GroupID) (wire.OnWireMessage, error) {
	return c.roundTripDS(ctx, wire.OnWireMessage{Kind: wire.KindUserSync, User: c.Identity.UserID, Group: group})
}
