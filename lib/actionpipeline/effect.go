// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package actionpipeline

import (
	"github.com/mlsgov/platform/lib/actionmsg"
	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/governance"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/mlsadapter"
	"github.com/mlsgov/platform/lib/policyengine"
)

// applyEffect mutates govState per action.Kind. It is the single
// place both the first-pass Passed path and EvaluateAllProposed's
// resolution loop go through, so a proposal that resolves to Passed
// later has exactly the same effect as one that passed immediately.
func applyEffect(group *mlsadapter.Group, govState *governance.SharedGroupState, action actionmsg.ActionMsg, sender identity.UserID, verifyKey VerifyKeyLookup) error {
	switch action.Kind {
	case actionmsg.KindRenameGroup:
		govState.SetName(action.GroupName)
	case actionmsg.KindInvite:
		if action.KeyPackage != nil {
			govState.MergeInvite(action.TargetUser, *action.KeyPackage)
		}
	case actionmsg.KindDecline:
		govState.MergeDecline(sender)
	case actionmsg.KindKick:
		govState.MergeKick(action.TargetUser)
	case actionmsg.KindRemove:
		govState.FinalizeRemoval(action.TargetUser)
	case actionmsg.KindDefRole:
		govState.Roles.DefineRole(action.Role, action.Capabilities)
	case actionmsg.KindSetUserRole:
		govState.Roles.SetUserRole(action.TargetUser, action.Role)
	case actionmsg.KindAccept:
		govState.MergeAccept(sender)
	case actionmsg.KindUpdateGroupState:
		applyCommitIfNew(group, action.Commit, verifyKey)
		if err := govState.ApplyUpdateGroupState(action.GroupState, group.Epoch()); err != nil {
			return err
		}
		group.SetMembers(govState.Roles.Members())
	case actionmsg.KindTextMsg, actionmsg.KindReport, actionmsg.KindCustomAction:
		// No governance-state effect: TextMsg is delivered by the
		// caller, Report only feeds the Policy Engine's queue, and
		// a non-Vote CustomAction is application-defined.
	}
	return nil
}

// applyCommitIfNew decodes and applies a membership-changing Commit
// carried alongside an UpdateGroupState snapshot. The committer's own
// client already advanced its epoch when it produced the Commit (via
// mlsadapter.Add/Remove), so this is a no-op for them — detected by
// the group's epoch already having moved past the Commit's
// PreviousEpoch. A missing verify key or a signature/epoch mismatch
// is logged nowhere here; the subsequent ApplyUpdateGroupState epoch
// check will then fail loudly for a genuine disagreement.
func applyCommitIfNew(group *mlsadapter.Group, commitBytes []byte, verifyKey VerifyKeyLookup) {
	if len(commitBytes) == 0 {
		return
	}
	var commit mlsadapter.Commit
	if err := codec.Unmarshal(commitBytes, &commit); err != nil {
		return
	}
	if group.Epoch() != commit.PreviousEpoch {
		return
	}
	vk, ok := verifyKey(commit.Committer)
	if !ok {
		return
	}
	_ = mlsadapter.ApplyCommit(group, vk, commit)
}

// evaluateAllProposed re-runs the group's proposal queue against its
// current view and applies every resolution that came back Passed.
func evaluateAllProposed(group *mlsadapter.Group, govState *governance.SharedGroupState, verifyKey VerifyKeyLookup) {
	if govState.Policies == nil {
		return
	}
	for _, resolution := range govState.Policies.EvaluateAllProposed(govState.Roles) {
		if resolution.Decision == policyengine.Passed {
			_ = applyEffect(group, govState, resolution.Proposal.Action, resolution.Proposal.Sender, verifyKey)
		}
	}
}
