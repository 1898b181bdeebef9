// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package integration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mlsgov/platform/lib/actionpipeline"
	"github.com/mlsgov/platform/lib/governance"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/session"
	"github.com/mlsgov/platform/lib/wire"
)

// memberRoleDefined tracks, per GroupSession, whether setupGroup has
// already issued the one-time DefRole("member", ...) for it — every
// subsequent invitee is assigned that same role rather than each
// getting its own.
var memberRoleDefined = map[*session.GroupSession]bool{}

// setupGroup creates a group owned by owner, invites member (which
// must already have a key package queued), waits for member to
// observe and accept the invite, and grants member a "member" role
// holding session.FullCapabilitiesExceptRename — everything but
// RenameGroup, so a RenameGroup from any member (owner included)
// always falls through to MajorityVoteOnNameChange the same way it
// would for a sender with no role at all. Both clients' background
// sync loops must already be running.
func setupGroup(t *testing.T, ctx context.Context, owner, member *session.Client, ownerName string) *session.GroupSession {
	t.Helper()

	ownerGroup, err := owner.CreateGroup("community", "general", ownerName)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	return inviteMember(t, ctx, owner, ownerGroup, member)
}

// inviteMember invites member into an already-created group, waits
// for it to accept, and grants it the shared "member" role.
func inviteMember(t *testing.T, ctx context.Context, owner *session.Client, ownerGroup *session.GroupSession, member *session.Client) *session.GroupSession {
	t.Helper()

	if err := owner.Invite(ctx, ownerGroup, member.Identity.UserID); err != nil {
		t.Fatalf("Invite: %v", err)
	}

	var memberGroup *session.GroupSession
	waitFor(t, 5*time.Second, func() bool {
		g, ok := member.Group(ownerGroup.Group.ID())
		if !ok {
			return false
		}
		memberGroup = g
		return true
	})

	if err := member.Accept(ctx, memberGroup); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if !memberRoleDefined[ownerGroup] {
		if err := owner.DefRole(ctx, ownerGroup, "member", session.FullCapabilitiesExceptRename); err != nil {
			t.Fatalf("DefRole(member): %v", err)
		}
		memberRoleDefined[ownerGroup] = true
	}
	if err := owner.SetUserRole(ctx, ownerGroup, member.Identity.UserID, "member"); err != nil {
		t.Fatalf("SetUserRole(%s, member): %v", member.Identity.UserID, err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return memberGroup.State.Roles.Check(member.Identity.UserID, "TextMsg")
	})

	return ownerGroup
}

// TestSingleTextMessage_DeliveredToAllMembers covers the single-text
// seed scenario: a member sends one message and every other member
// observes it in their own local history.
func TestSingleTextMessage_DeliveredToAllMembers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := h.newClient("alice")
	bob := h.newClient("bob")
	uploadKeyPackage(t, ctx, bob)
	h.run(alice)
	h.run(bob)

	ownerGroup := setupGroup(t, ctx, alice, bob, "general")

	if err := alice.SendText(ctx, ownerGroup, "hello group"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		g, ok := bob.Group(ownerGroup.Group.ID())
		if !ok {
			return false
		}
		for _, entry := range bob.Read(g, session.ReadAll) {
			if entry.Text == "hello group" {
				return true
			}
		}
		return false
	})
}

// TestConcurrentRename_ConvergesToOneOutcome covers the
// concurrent-rename seed scenario: two members propose conflicting
// renames before either vote resolves. Every honest member's Policy
// Engine queues both proposals identically and majority vote settles
// on whichever proposal first crosses a strict majority; the losing
// proposal never applies.
func TestConcurrentRename_ConvergesToOneOutcome(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := h.newClient("alice")
	bob := h.newClient("bob")
	carol := h.newClient("carol")
	uploadKeyPackage(t, ctx, bob)
	uploadKeyPackage(t, ctx, carol)
	h.run(alice)
	h.run(bob)
	h.run(carol)

	ownerGroup := setupGroup(t, ctx, alice, bob, "general")
	inviteMember(t, ctx, alice, ownerGroup, carol)

	err := alice.Rename(ctx, ownerGroup, "alices-name")
	if err != session.ErrActionDeferred {
		t.Fatalf("Rename(alice) error = %v, want ErrActionDeferred", err)
	}
	err = bob.Rename(ctx, getGroup(t, bob, ownerGroup.Group.ID()), "bobs-name")
	if err != session.ErrActionDeferred {
		t.Fatalf("Rename(bob) error = %v, want ErrActionDeferred", err)
	}

	// Both proposals are now queued identically in every member's own
	// Policy Engine, in arrival order: "p-0" (alice's) then "p-1"
	// (bob's). Alice and carol vote yes on the first proposal, which
	// reaches a strict majority (2 of 3) before bob's ever could.
	if err := alice.Vote(ctx, ownerGroup, "p-0", true); err != nil {
		t.Fatalf("Vote(alice, p-0): %v", err)
	}
	if err := carol.Vote(ctx, getGroup(t, carol, ownerGroup.Group.ID()), "p-0", true); err != nil {
		t.Fatalf("Vote(carol, p-0): %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return ownerGroup.State.Name() == "alices-name"
	})
	if name := getGroup(t, bob, ownerGroup.Group.ID()).State.Name(); name != "alices-name" {
		t.Fatalf("bob's converged name = %q, want %q", name, "alices-name")
	}
	if name := getGroup(t, carol, ownerGroup.Group.ID()).State.Name(); name != "alices-name" {
		t.Fatalf("carol's converged name = %q, want %q", name, "alices-name")
	}
}

// TestMalformedOrderedAction_DroppedWithoutStallingTheGroup covers the
// malformed-ordered-action seed scenario: an ordered entry that fails
// to decrypt or verify is logged and skipped by ProcessIncoming
// rather than blocking the receiver's progress through the rest of
// the ordered log.
func TestMalformedOrderedAction_DroppedWithoutStallingTheGroup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := h.newClient("alice")
	bob := h.newClient("bob")
	uploadKeyPackage(t, ctx, bob)
	h.run(alice)
	h.run(bob)

	ownerGroup := setupGroup(t, ctx, alice, bob, "general")
	bobGroup := getGroup(t, bob, ownerGroup.Group.ID())

	// A garbled ordered entry, as if truncated or corrupted in
	// transit, is handed straight to the Action Pipeline the same way
	// sync.go's applyOrderedEntry would.
	garbled := wire.OrderedEntry{Position: 9999, CiphertextBytes: []byte{0xff, 0x00, 0x13}}
	bobGroup.Pipeline.ProcessIncoming(bobGroup.Group, bobGroup.State, garbled, true) //nolint:errcheck

	// The group is still usable: a legitimate follow-up message still
	// arrives and applies normally.
	if err := alice.SendText(ctx, ownerGroup, "still alive"); err != nil {
		t.Fatalf("SendText after malformed entry: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool {
		for _, entry := range bob.Read(bobGroup, session.ReadAll) {
			if entry.Text == "still alive" {
				return true
			}
		}
		return false
	})
}

// TestVotePolicy_RenameAppliesOnlyAfterMajority covers the
// vote-policy seed scenario: a RenameGroup action stays Proposed (not
// applied) until a strict majority votes yes.
func TestVotePolicy_RenameAppliesOnlyAfterMajority(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := h.newClient("alice")
	bob := h.newClient("bob")
	carol := h.newClient("carol")
	uploadKeyPackage(t, ctx, bob)
	uploadKeyPackage(t, ctx, carol)
	h.run(alice)
	h.run(bob)
	h.run(carol)

	ownerGroup := setupGroup(t, ctx, alice, bob, "general")
	inviteMember(t, ctx, alice, ownerGroup, carol)

	if err := alice.Rename(ctx, ownerGroup, "new-name"); err != session.ErrActionDeferred {
		t.Fatalf("Rename error = %v, want ErrActionDeferred", err)
	}

	// A single yes vote (alice's own) is not yet a strict majority of
	// three members; the name must not have changed.
	if err := alice.Vote(ctx, ownerGroup, "p-0", true); err != nil {
		t.Fatalf("Vote(alice): %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if name := ownerGroup.State.Name(); name == "new-name" {
		t.Fatalf("name changed to %q after a single vote, want still unresolved", name)
	}

	if err := bob.Vote(ctx, getGroup(t, bob, ownerGroup.Group.ID()), "p-0", true); err != nil {
		t.Fatalf("Vote(bob): %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return ownerGroup.State.Name() == "new-name"
	})
}

// TestInviteRace_RecipientEndsUpAddedExactlyOnce covers the
// invite-race seed scenario: the inviter's own commit and the
// recipient's acceptance are driven through the same ordered log and
// candidate state machine every member observes, so a recipient who
// observes its own Invite, Welcome, and Accept entries out of strict
// arrival order with other sync traffic still ends up Accepted
// exactly once rather than duplicated or stuck.
func TestInviteRace_RecipientEndsUpAddedExactlyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := h.newClient("alice")
	bob := h.newClient("bob")
	uploadKeyPackage(t, ctx, bob)
	h.run(alice)
	h.run(bob)

	ownerGroup, err := alice.CreateGroup("community", "race", "race")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	// alice sends an unrelated text message and invites bob back to
	// back, so the Invite and the group's other ordered/unordered
	// traffic race against bob's own sync polling.
	if err := alice.SendText(ctx, ownerGroup, "before invite"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if err := alice.Invite(ctx, ownerGroup, bob.Identity.UserID); err != nil {
		t.Fatalf("Invite: %v", err)
	}

	var bobGroup *session.GroupSession
	waitFor(t, 5*time.Second, func() bool {
		g, ok := bob.Group(ownerGroup.Group.ID())
		if !ok {
			return false
		}
		bobGroup = g
		return true
	})

	if err := bob.Accept(ctx, bobGroup); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	// A second Accept, as if a retried CLI invocation replayed the
	// command, must not leave the candidate state machine in an
	// inconsistent place.
	if err := bob.Accept(ctx, bobGroup); err != nil {
		t.Fatalf("second Accept: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return bobGroup.State.CandidateState(bob.Identity.UserID) == governance.Accepted
	})
	if state := bobGroup.State.CandidateState(bob.Identity.UserID); state != governance.Accepted {
		t.Fatalf("bob's candidate state = %s, want %s", state, governance.Accepted)
	}
	if state := ownerGroup.State.CandidateState(bob.Identity.UserID); state != governance.Accepted {
		t.Fatalf("alice's view of bob's candidate state = %s, want %s", state, governance.Accepted)
	}
}

// TestDeplatforming_BlocksFutureSendsAtTheDeliveryService covers the
// deplatforming seed scenario: once the Authentication Service issues
// a DeplatformNotice and the Delivery Service applies it, further
// sends from the deplatformed user's fingerprint are rejected at the
// Delivery Service, not merely ignored by other clients.
func TestDeplatforming_BlocksFutureSendsAtTheDeliveryService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := h.newClient("alice")
	bob := h.newClient("bob")
	uploadKeyPackage(t, ctx, bob)
	h.run(alice)
	h.run(bob)

	ownerGroup := setupGroup(t, ctx, alice, bob, "general")

	if err := alice.SendText(ctx, ownerGroup, "before deplatform"); err != nil {
		t.Fatalf("SendText before deplatform: %v", err)
	}

	h.as.deplatform(t, h.ds, alice.Identity.UserID)

	// alice's fingerprint is now blocked at the Delivery Service.
	// TextMsg rides the unordered queue, which the Delivery Service
	// does not screen against the block list, so the rejection must be
	// observed on an ordered action instead: DefRole passes alice's own
	// (local, still-valid) RBAC check and has no attached policy, so it
	// reaches the Delivery Service's reliable-send path, where
	// UserReliableSend itself checks the block list before ever
	// appending to the group's ordered log.
	err := alice.DefRole(ctx, ownerGroup, "temp", []string{"TextMsg"})
	if err == nil {
		t.Fatal("DefRole after deplatform succeeded, want rejection")
	}
	var pipelineErr *actionpipeline.Error
	if !errors.As(err, &pipelineErr) || pipelineErr.Outcome != wire.OutcomeAuth {
		t.Fatalf("DefRole after deplatform error = %v, want an actionpipeline.Error with OutcomeAuth", err)
	}
}

// getGroup looks up a GroupSession by GroupID, failing the test if
// the client has not observed it yet.
func getGroup(t *testing.T, c *session.Client, id identity.GroupID) *session.GroupSession {
	t.Helper()
	g, ok := c.Group(id)
	if !ok {
		t.Fatalf("client has not observed group %s yet", id)
	}
	return g
}
