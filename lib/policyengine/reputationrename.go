// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package policyengine

import (
	"time"

	"github.com/mlsgov/platform/lib/actionmsg"
	"github.com/mlsgov/platform/lib/identity"
)

// ReputationRename immediately passes or fails a RenameGroup action
// based on the sender's reputation score, never proposing. Score is
// injected rather than owned by the policy, since reputation tracking
// belongs to whatever maintains it across the group's history.
type ReputationRename struct {
	// Threshold is the minimum score required to pass.
	Threshold int

	// Score returns the current reputation score for user. A nil
	// Score treats every sender as scoring zero.
	Score func(user identity.UserID) int
}

func (ReputationRename) Name() string { return "ReputationRename" }

func (ReputationRename) Filter(kind actionmsg.Kind) bool {
	return kind == actionmsg.KindRenameGroup
}

func (p ReputationRename) Check(_ actionmsg.ActionMsg, sender identity.UserID, _ GroupView, _ map[string]any, _ time.Time) Decision {
	score := 0
	if p.Score != nil {
		score = p.Score(sender)
	}
	if score >= p.Threshold {
		return Passed
	}
	return Failed
}

func (ReputationRename) Pass(actionmsg.ActionMsg, identity.UserID, map[string]any) {}
func (ReputationRename) Fail(actionmsg.ActionMsg, identity.UserID, map[string]any) {}
