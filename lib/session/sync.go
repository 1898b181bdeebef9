// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/mlsadapter"
	"github.com/mlsgov/platform/lib/wire"
)

// minSyncBackoff and maxSyncBackoff bound the exponential retry delay
// a failed sync tick backs off by, mirroring the 1s-to-MaxBackoff
// shape of a long-poll retry loop even though the Delivery Service
// here is polled rather than held open: every sync round is a fresh
// dial-per-call round trip, not a persistent push stream.
const (
	minSyncBackoff = time.Second
	maxSyncBackoff = 30 * time.Second
)

// Run starts the background sync loop: it polls the Delivery Service
// for this user's queued unordered and invite traffic plus every
// known group's ordered catch-up, at Config.SyncInterval, applying
// each result through the same incoming path a reliable send's own
// echo uses. Run returns immediately; Close stops the loop and waits
// for it to exit.
func (c *Client) Run(ctx context.Context) error {
	interval, err := time.ParseDuration(c.Config.SyncInterval)
	if err != nil {
		return fmt.Errorf("session: parsing sync_interval: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.syncCancel = cancel
	c.syncDone = make(chan struct{})

	go c.runSyncLoop(runCtx, interval)
	return nil
}

func (c *Client) runSyncLoop(ctx context.Context, interval time.Duration) {
	defer close(c.syncDone)

	backoff := minSyncBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.syncTick(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.Logger.Error("sync tick failed, retrying", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-c.Clock.After(backoff):
			}
			backoff *= 2
			if backoff > maxSyncBackoff {
				backoff = maxSyncBackoff
			}
			continue
		}

		backoff = minSyncBackoff
		select {
		case <-ctx.Done():
			return
		case <-c.Clock.After(interval):
		}
	}
}

// SyncOnce runs a single sync tick without starting the background
// loop Run installs — the one-shot poll a short-lived CLI invocation
// needs before exiting.
func (c *Client) SyncOnce(ctx context.Context) error {
	return c.syncTick(ctx)
}

// syncTick drains this user's unordered/invite queues and every known
// group's ordered catch-up, applying each result in turn. A single
// unprocessable entry (a stale Welcome for a group already joined, an
// action whose RBAC check the receiver fails) is logged and skipped
// rather than failing the whole tick — the Delivery Service's log
// position has already moved past it either way.
func (c *Client) syncTick(ctx context.Context) error {
	if err := c.SyncCredentials(ctx); err != nil {
		return err
	}

	reply, err := c.syncOnce(ctx)
	if err != nil {
		return err
	}
	if reply.Outcome != wire.OutcomeNone {
		return fmt.Errorf("session: sync: %s: %s", reply.Outcome, reply.Reason)
	}
	c.applyUnordered(reply.Unordered)

	for _, g := range c.Groups() {
		groupReply, err := c.syncGroupOnce(ctx, g.Group.ID())
		if err != nil {
			return err
		}
		if groupReply.Outcome != wire.OutcomeNone {
			return fmt.Errorf("session: group sync: %s: %s", groupReply.Outcome, groupReply.Reason)
		}
		for _, entry := range groupReply.Unordered {
			if err := c.applyOrderedEntry(g, entry); err != nil {
				c.Logger.Warn("dropping unprocessable ordered entry",
					"group", g.Group.ID(), "position", entry.Position, "error", err)
			}
		}
	}
	return nil
}

// applyUnordered routes each drained entry to its Welcome or
// unordered-message handling, logging and skipping whatever fails
// rather than losing the rest of the batch.
func (c *Client) applyUnordered(entries []wire.OrderedEntry) {
	for _, entry := range entries {
		if entry.IsWelcome {
			if err := c.applyWelcomeEntry(entry); err != nil {
				c.Logger.Warn("dropping unprocessable welcome", "error", err)
			}
			continue
		}

		var ct mlsadapter.Ciphertext
		if err := codec.Unmarshal(entry.CiphertextBytes, &ct); err != nil {
			c.Logger.Warn("dropping undecodable unordered entry", "error", err)
			continue
		}
		g, ok := c.Group(ct.GroupID)
		if !ok {
			c.Logger.Warn("dropping unordered entry for unknown group", "group", ct.GroupID)
			continue
		}
		if err := c.applyUnorderedEntry(g, entry); err != nil {
			c.Logger.Warn("dropping unprocessable unordered entry",
				"group", ct.GroupID, "error", err)
		}
	}
}

// applyWelcomeEntry decodes entry as a Welcome and, unless this client
// has already joined the group it names (a duplicate invite-queue
// delivery), opens the group with mlsadapter.ApplyWelcome and
// registers a new GroupSession for it. The session's human-readable
// channel name is unknown until the inviter's paired
// UpdateGroupState snapshot arrives on the group's ordered log; until
// then it is indexed under its raw group ID.
func (c *Client) applyWelcomeEntry(entry wire.OrderedEntry) error {
	var welcome mlsadapter.Welcome
	if err := codec.Unmarshal(entry.CiphertextBytes, &welcome); err != nil {
		return fmt.Errorf("session: decoding welcome: %w", err)
	}
	if _, ok := c.Group(welcome.GroupID); ok {
		return nil
	}

	group, err := mlsadapter.ApplyWelcome(c.Identity.Sealed.PrivateKey, welcome)
	if err != nil {
		return fmt.Errorf("session: applying welcome: %w", err)
	}
	c.JoinGroup("", welcome.GroupID.String(), group)
	return nil
}
