// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package policyengine

import (
	"time"

	"github.com/mlsgov/platform/lib/actionmsg"
	"github.com/mlsgov/platform/lib/identity"
)

// MajorityVoteOnNameChange proposes every RenameGroup action on first
// sight and passes it once strictly more than half the group's
// members have voted yes. It implements VotePolicy: a CustomAction
// with CustomTag "vote" referencing the proposal is how members cast
// a ballot.
type MajorityVoteOnNameChange struct{}

func (MajorityVoteOnNameChange) Name() string { return "MajorityVoteOnNameChange" }

func (MajorityVoteOnNameChange) Filter(kind actionmsg.Kind) bool {
	return kind == actionmsg.KindRenameGroup
}

func (MajorityVoteOnNameChange) Check(action actionmsg.ActionMsg, sender identity.UserID, _ GroupView, scratch map[string]any, _ time.Time) Decision {
	if _, seen := scratch["votes"]; !seen {
		scratch["proposer"] = sender
		scratch["name"] = action.GroupName
		scratch["votes"] = make(map[identity.UserID]bool)
	}
	return Proposed
}

func (MajorityVoteOnNameChange) Vote(scratch map[string]any, voter identity.UserID, yes bool, view GroupView) Decision {
	votes, _ := scratch["votes"].(map[identity.UserID]bool)
	if votes == nil {
		votes = make(map[identity.UserID]bool)
		scratch["votes"] = votes
	}
	votes[voter] = yes

	yesCount := 0
	for _, v := range votes {
		if v {
			yesCount++
		}
	}

	if yesCount > view.MemberCount()/2 {
		return Passed
	}
	return Proposed
}

func (MajorityVoteOnNameChange) Pass(actionmsg.ActionMsg, identity.UserID, map[string]any) {}
func (MajorityVoteOnNameChange) Fail(actionmsg.ActionMsg, identity.UserID, map[string]any) {}
