// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/mlsgov/platform/lib/actionmsg"
	"github.com/mlsgov/platform/lib/actionpipeline"
	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/keypackage"
	"github.com/mlsgov/platform/lib/mlsadapter"
	"github.com/mlsgov/platform/lib/rbac"
	"github.com/mlsgov/platform/lib/wire"
)

// ErrActionDeferred reports that an action was queued pending policy
// resolution (e.g. a RenameGroup awaiting a majority vote) rather than
// applied immediately. It is not a failure — the caller learns the
// eventual resolution the same way every other member does, as a Vote
// or Report arrives and is applied.
var ErrActionDeferred = errors.New("session: action deferred pending policy resolution")

// send runs action through g's Pipeline and, unless the Policy Engine
// dropped or deferred it, delivers it to the Delivery Service —
// ordered actions via reliable send (applying the DSResult's
// preceding entries plus the echoed send through the same incoming
// path every receiver uses), unordered ones via standard send with an
// immediate local echo.
func (c *Client) send(ctx context.Context, g *GroupSession, action actionmsg.ActionMsg) error {
	g.mu.Lock()
	out, err := g.Pipeline.PrepareOutgoing(g.Group, g.State, action)
	g.mu.Unlock()
	if err != nil {
		if errors.Is(err, actionpipeline.ErrPolicyDeferred) {
			return ErrActionDeferred
		}
		return err
	}

	recipients := g.State.Roles.Members()

	if !out.Ordered {
		if err := c.sendUnordered(ctx, recipients, out.CiphertextBytes); err != nil {
			return err
		}
		if action.Kind == actionmsg.KindTextMsg {
			g.History.Append(HistoryEntry{Sender: c.Identity.UserID, Text: action.Text, At: c.Clock.Now()})
		}
		return nil
	}

	result, err := c.sendReliable(ctx, g.Group.ID(), recipients, out.CiphertextBytes)
	if err != nil {
		return err
	}
	return c.applyDSResult(g, result)
}

// applyDSResult applies a reliable send's DSResult (the preceding log
// suffix plus the sender's own just-accepted entry) to g, recording
// any TextMsg entries in History.
func (c *Client) applyDSResult(g *GroupSession, result wire.OnWireMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	applied, err := g.Pipeline.HandleDSResult(g.Group, g.State, result)
	if err != nil {
		return err
	}
	for i, action := range applied {
		if action.Kind == actionmsg.KindTextMsg {
			position := uint64(0)
			if i < len(result.PrecedingAndSent) {
				position = result.PrecedingAndSent[i].Position
			}
			g.History.Append(HistoryEntry{Position: position, Text: action.Text, At: c.Clock.Now()})
		}
	}
	if len(result.PrecedingAndSent) > 0 {
		// g.mu is already held here, so update syncPosition directly
		// rather than through advancePosition, which takes the lock.
		if position := result.PrecedingAndSent[len(result.PrecedingAndSent)-1].Position; position > g.syncPosition {
			g.syncPosition = position
		}
	}
	return nil
}

// applyOrderedEntry decrypts and applies a single ordered-log entry
// received via sync or a push, recording History and advancing the
// session's sync position.
func (c *Client) applyOrderedEntry(g *GroupSession, entry wire.OrderedEntry) error {
	g.mu.Lock()
	action, sender, err := g.Pipeline.ProcessIncoming(g.Group, g.State, entry, true)
	g.mu.Unlock()
	if err != nil {
		return err
	}
	if action != nil && action.Kind == actionmsg.KindTextMsg {
		g.History.Append(HistoryEntry{Position: entry.Position, Sender: sender, Text: action.Text, At: c.Clock.Now()})
	}
	g.advancePosition(entry.Position)
	return nil
}

// applyUnorderedEntry decrypts and applies a single unordered-queue
// entry (e.g. a TextMsg or Accept delivered via standard send). Unlike
// applyOrderedEntry, it does not advance any ordered-log position —
// unordered entries have none — and the group it belongs to is found
// by the caller from the decrypted ciphertext's GroupID rather than
// threaded through in advance.
func (c *Client) applyUnorderedEntry(g *GroupSession, entry wire.OrderedEntry) error {
	g.mu.Lock()
	action, sender, err := g.Pipeline.ProcessIncoming(g.Group, g.State, entry, false)
	g.mu.Unlock()
	if err != nil {
		return err
	}
	if action != nil && action.Kind == actionmsg.KindTextMsg {
		g.History.Append(HistoryEntry{Sender: sender, Text: action.Text, At: c.Clock.Now()})
	}
	return nil
}

// SendText sends a plain-text message to every current member of g.
func (c *Client) SendText(ctx context.Context, g *GroupSession, text string) error {
	return c.send(ctx, g, actionmsg.NewTextMsg(text))
}

// Rename proposes renaming g. In governance mode this is gated by
// MajorityVoteOnNameChange and may return ErrActionDeferred pending a
// vote.
func (c *Client) Rename(ctx context.Context, g *GroupSession, name string) error {
	return c.send(ctx, g, actionmsg.NewRenameGroup(name))
}

// DefRole defines or replaces a role's capability set.
func (c *Client) DefRole(ctx context.Context, g *GroupSession, role string, capabilities []string) error {
	return c.send(ctx, g, actionmsg.NewDefRole(rbacRole(role), capabilities))
}

// SetUserRole assigns role to user.
func (c *Client) SetUserRole(ctx context.Context, g *GroupSession, user identity.UserID, role string) error {
	return c.send(ctx, g, actionmsg.NewSetUserRole(user, rbacRole(role)))
}

// Decline declines this client's own pending invite, authorizing its
// eventual MLS Leave.
func (c *Client) Decline(ctx context.Context, g *GroupSession) error {
	return c.send(ctx, g, actionmsg.NewDecline())
}

// Kick marks target for removal by a privileged member; a subsequent
// call to Remove by any authorized member commits the actual MLS
// expulsion.
func (c *Client) Kick(ctx context.Context, g *GroupSession, target identity.UserID) error {
	return c.send(ctx, g, actionmsg.NewKick(target))
}

// Accept notifies the group that this client has joined, transitioning
// its candidate state from Added to Accepted.
func (c *Client) Accept(ctx context.Context, g *GroupSession) error {
	return c.send(ctx, g, actionmsg.NewAccept())
}

// Vote casts a yes/no vote on proposalID, a CustomAction consumed by
// the Policy Engine's Vote path.
func (c *Client) Vote(ctx context.Context, g *GroupSession, proposalID string, yes bool) error {
	action, err := actionpipeline.NewVote(proposalID, yes)
	if err != nil {
		return err
	}
	return c.send(ctx, g, action)
}

// Report flags entry's message as evidence against its sender,
// re-signing the witnessed action under the reporter's own key and
// attaching reason. Repeated reports against the same content hash
// accumulate toward ReportThreshold's escalation.
func (c *Client) Report(ctx context.Context, g *GroupSession, entry HistoryEntry, reason string) error {
	witnessed, err := actionmsg.Sign(c.Identity.SigningKey, entry.Sender, actionmsg.NewTextMsg(entry.Text))
	if err != nil {
		return fmt.Errorf("session: signing reported action: %w", err)
	}
	evidence, err := witnessed.Encode()
	if err != nil {
		return fmt.Errorf("session: encoding reported action: %w", err)
	}
	return c.send(ctx, g, actionmsg.NewReport(evidence, reason))
}

// rbacRole converts a plain string into rbac.Role without importing
// lib/rbac directly into every caller.
func rbacRole(role string) rbac.Role { return rbac.Role(role) }

// Invite admits recipient into g: it publishes the ordered Invite
// action pre-approving them, produces and applies the MLS Add commit,
// broadcasts the resulting governance snapshot, and delivers the
// Welcome. Invite requires recipient to have a KeyPackage queued at
// the Delivery Service.
func (c *Client) Invite(ctx context.Context, g *GroupSession, recipient identity.UserID) error {
	pkg, ok, err := c.RetrieveKeyPackage(ctx, recipient)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session: no key package queued for %s", recipient)
	}

	if err := c.send(ctx, g, actionmsg.NewInvite(pkg, recipient)); err != nil {
		return err
	}

	g.mu.Lock()
	commit, welcome, err := mlsadapter.Add(g.Group, c.Identity.UserID, c.Identity.SigningKey, recipient, pkg.X25519PublicKey, g.State.PreApprovedList())
	if err != nil {
		g.mu.Unlock()
		return fmt.Errorf("session: committing add: %w", err)
	}
	if err := g.State.MergeAdd(recipient); err != nil {
		g.mu.Unlock()
		return fmt.Errorf("session: merging add: %w", err)
	}
	snapshot, err := g.State.Snapshot(g.Group.Epoch())
	g.mu.Unlock()
	if err != nil {
		return fmt.Errorf("session: snapshotting group state: %w", err)
	}

	commitBytes, err := codec.Marshal(commit)
	if err != nil {
		return fmt.Errorf("session: encoding commit: %w", err)
	}
	if err := c.send(ctx, g, actionmsg.NewUpdateGroupStateWithCommit(snapshot, commitBytes)); err != nil {
		return err
	}

	return c.sendWelcome(ctx, recipient, welcome)
}

// Remove commits target's MLS expulsion (after a prior Kick or
// Decline authorized it) and broadcasts the Remove/UpdateGroupState
// pair that tells every member — including ones that never held the
// authorization — to drop target's role assignment.
func (c *Client) Remove(ctx context.Context, g *GroupSession, target identity.UserID) error {
	g.mu.Lock()
	if err := g.State.AuthorizeLeave(target); err != nil {
		g.mu.Unlock()
		return fmt.Errorf("session: authorizing removal: %w", err)
	}
	commit, err := mlsadapter.Remove(g.Group, c.Identity.UserID, c.Identity.SigningKey, target)
	if err != nil {
		g.mu.Unlock()
		return fmt.Errorf("session: committing remove: %w", err)
	}
	snapshot, err := g.State.Snapshot(g.Group.Epoch())
	g.mu.Unlock()
	if err != nil {
		return fmt.Errorf("session: snapshotting group state: %w", err)
	}

	if err := c.send(ctx, g, actionmsg.NewRemove(target)); err != nil {
		return err
	}

	commitBytes, err := codec.Marshal(commit)
	if err != nil {
		return fmt.Errorf("session: encoding commit: %w", err)
	}
	return c.send(ctx, g, actionmsg.NewUpdateGroupStateWithCommit(snapshot, commitBytes))
}

// UploadOwnKeyPackage generates and publishes a fresh KeyPackage for
// this client, for another member to Invite them with.
func (c *Client) UploadOwnKeyPackage(ctx context.Context) error {
	cred := c.Identity.Credential
	if cred == nil {
		return fmt.Errorf("session: cannot publish a key package before registering")
	}
	pkg, err := keypackage.New(c.Identity.UserID, cred.Fingerprint(), c.Identity.Sealed.PublicKey)
	if err != nil {
		return err
	}
	return c.UploadKeyPackages(ctx, []keypackage.KeyPackage{pkg})
}

// Read returns g's local message history per mode.
func (c *Client) Read(g *GroupSession, mode ReadMode) []HistoryEntry {
	return g.History.Read(mode)
}
