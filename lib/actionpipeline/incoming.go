// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package actionpipeline

import (
	"github.com/mlsgov/platform/lib/actionmsg"
	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/config"
	"github.com/mlsgov/platform/lib/governance"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/mlsadapter"
	"github.com/mlsgov/platform/lib/policyengine"
	"github.com/mlsgov/platform/lib/wire"
)

// ProcessIncoming decrypts entry, unwraps and verifies its signature
// (governance mode), and — for gated kinds — runs the same RBAC and
// Policy Engine gate the sender's own PrepareOutgoing did: a sender
// holding the capability is an immediate pass with the Policy Engine
// never consulted; a sender lacking it falls through to the Policy
// Engine, whose Passed/Failed/Proposed verdict (or, absent any
// covering policy, an outright drop) is what actually decides whether
// the action applies. A receiver that does not apply the action
// locally reports an *Error with OutcomeRBAC or OutcomePolicy, but the
// caller must still treat entry's log position as consumed: there is
// no rollback of the Delivery Service's ordering.
//
// On a resolved effect, the decoded action is returned for the
// caller to hand to application code (e.g. to render a TextMsg). A
// queued (Proposed) or rejected (Failed) governance action returns a
// nil action alongside a non-nil error.
func (p *Pipeline) ProcessIncoming(group *mlsadapter.Group, govState *governance.SharedGroupState, entry wire.OrderedEntry, ordered bool) (*actionmsg.ActionMsg, identity.UserID, error) {
	var ct mlsadapter.Ciphertext
	if err := codec.Unmarshal(entry.CiphertextBytes, &ct); err != nil {
		return nil, identity.UserID{}, errf(wire.OutcomeCodec, "decoding ciphertext: %v", err)
	}

	plaintext, err := mlsadapter.ProcessApp(group, ct)
	if err != nil {
		return nil, ct.Sender, errf(wire.OutcomeCrypto, "%v", err)
	}

	var action actionmsg.ActionMsg
	sender := ct.Sender
	if p.Mode == config.GovernanceMode {
		var signed SignedAction
		if err := codec.Unmarshal(plaintext, &signed); err != nil {
			return nil, sender, errf(wire.OutcomeCodec, "decoding signed action: %v", err)
		}
		verifyKey, ok := p.VerifyKey(signed.Sender)
		if !ok {
			return nil, sender, errf(wire.OutcomeAuth, "unknown credential for %s", signed.Sender)
		}
		if err := signed.Verify(verifyKey); err != nil {
			return nil, sender, errf(wire.OutcomeAuth, "%v", err)
		}
		action = signed.Action
		sender = signed.Sender
	} else {
		if err := codec.Unmarshal(plaintext, &action); err != nil {
			return nil, sender, errf(wire.OutcomeCodec, "decoding action: %v", err)
		}
	}

	if err := action.Validate(); err != nil {
		return nil, sender, errf(wire.OutcomeCodec, "%v", err)
	}

	if proposalID, yes, isVote := decodeVote(action); isVote && govState.Policies != nil {
		resolution, found := govState.Policies.Vote(proposalID, sender, yes, govState.Roles)
		if found && resolution.Decision == policyengine.Passed {
			_ = applyEffect(group, govState, resolution.Proposal.Action, resolution.Proposal.Sender, p.VerifyKey)
		}
		if ordered {
			evaluateAllProposed(group, govState, p.VerifyKey)
		}
		return &action, sender, nil
	}

	if p.Mode == config.GovernanceMode && isGated(action.Kind) && !govState.Roles.Check(sender, string(action.Kind)) {
		// RBAC capability absent: fall through to the Policy Engine
		// instead of rejecting outright, symmetric with
		// PrepareOutgoing. A capability holder never reaches this
		// branch — RBAC passing is an immediate pass that skips the
		// engine entirely.
		if !govState.Policies.Filters(action.Kind) {
			if ordered {
				evaluateAllProposed(group, govState, p.VerifyKey)
			}
			return nil, sender, errf(wire.OutcomeRBAC, "sender lacks capability for %s and no policy covers it", action.Kind)
		}

		decision, _ := govState.Policies.EvaluateWithView(action, sender, govState.Roles)
		switch decision {
		case policyengine.Failed:
			if ordered {
				evaluateAllProposed(group, govState, p.VerifyKey)
			}
			return nil, sender, ErrPolicyDropped
		case policyengine.Proposed:
			if ordered {
				evaluateAllProposed(group, govState, p.VerifyKey)
			}
			return nil, sender, ErrPolicyDeferred
		}
	}

	if err := applyEffect(group, govState, action, sender, p.VerifyKey); err != nil {
		return nil, sender, errf(wire.OutcomeConflict, "%v", err)
	}
	if ordered {
		evaluateAllProposed(group, govState, p.VerifyKey)
	}

	return &action, sender, nil
}
