// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package actionpipeline

import (
	"fmt"

	"github.com/mlsgov/platform/lib/actionmsg"
	"github.com/mlsgov/platform/lib/codec"
)

// voteTag is the CustomTag recognized as an explicit Vote action
// (see policyengine.VotePolicy).
const voteTag = "vote"

// votePayload is CustomBytes' encoding for a Vote CustomAction.
type votePayload struct {
	ProposalID string `cbor:"1,keyasint"`
	Yes        bool   `cbor:"2,keyasint"`
}

// NewVote constructs a CustomAction casting a vote on proposalID.
func NewVote(proposalID string, yes bool) (actionmsg.ActionMsg, error) {
	payload, err := codec.Marshal(votePayload{ProposalID: proposalID, Yes: yes})
	if err != nil {
		return actionmsg.ActionMsg{}, fmt.Errorf("actionpipeline: encoding vote payload: %w", err)
	}
	return actionmsg.NewCustomAction(voteTag, payload), nil
}

// decodeVote reports whether action is a Vote CustomAction and, if
// so, decodes its payload.
func decodeVote(action actionmsg.ActionMsg) (proposalID string, yes bool, ok bool) {
	if action.Kind != actionmsg.KindCustomAction || action.CustomTag != voteTag {
		return "", false, false
	}
	var payload votePayload
	if err := codec.Unmarshal(action.CustomBytes, &payload); err != nil {
		return "", false, false
	}
	return payload.ProposalID, payload.Yes, true
}
