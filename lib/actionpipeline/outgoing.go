// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package actionpipeline

import (
	"github.com/mlsgov/platform/lib/actionmsg"
	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/config"
	"github.com/mlsgov/platform/lib/governance"
	"github.com/mlsgov/platform/lib/mlsadapter"
	"github.com/mlsgov/platform/lib/policyengine"
	"github.com/mlsgov/platform/lib/wire"
)

// Outgoing is the result of PrepareOutgoing: the encrypted wire
// payload to hand to lib/session's dispatch, classified as ordered
// (UserReliableSend) or unordered (UserStandardSend).
type Outgoing struct {
	Ordered         bool
	CiphertextBytes []byte
}

// ErrPolicyDropped is returned when the Policy Engine rejects an
// outgoing action outright; it is never sent.
var ErrPolicyDropped = errf(wire.OutcomePolicy, "action rejected by policy")

// ErrPolicyDeferred is returned when the Policy Engine queues an
// outgoing action for later resolution; it is not sent now. The
// sender learns the resolution the same way every other member does,
// through a subsequent EvaluateAllProposed pass.
var ErrPolicyDeferred = errf(wire.OutcomePolicy, "action queued pending policy resolution")

// PrepareOutgoing validates action, runs governance-mode signing and
// the RBAC/Policy Engine gate (skipped entirely in baseline mode), and
// MLS-encrypts the result for transmission. The gate: a sender
// holding the capability for action.Kind is an immediate pass, with
// the Policy Engine never consulted; a sender lacking it falls
// through to the Policy Engine, and the engine's verdict (or, absent
// any policy covering the kind, an outright drop) decides whether the
// action is sent at all. Apart from the Policy Engine's own
// bookkeeping in govState.Policies (a Proposed verdict leaves the
// action in its queue), it does not mutate govState — outgoing state
// changes are applied only once the Delivery Service's DSResult
// confirms a position, via HandleDSResult, to keep every member's
// view converging on the same DS-assigned order.
func (p *Pipeline) PrepareOutgoing(group *mlsadapter.Group, govState *governance.SharedGroupState, action actionmsg.ActionMsg) (Outgoing, error) {
	if err := action.Validate(); err != nil {
		return Outgoing{}, errf(wire.OutcomeCodec, "%v", err)
	}

	var plaintext []byte
	if p.Mode == config.GovernanceMode {
		if isGated(action.Kind) && !govState.Roles.Check(p.Self, string(action.Kind)) {
			// RBAC capability absent: fall through to the Policy
			// Engine instead of rejecting outright. A capability
			// holder never reaches this branch at all — RBAC passing
			// is an immediate pass that skips the engine entirely.
			if !govState.Policies.Filters(action.Kind) {
				return Outgoing{}, errf(wire.OutcomeRBAC, "sender lacks capability for %s and no policy covers it", action.Kind)
			}
			decision, _ := govState.Policies.EvaluateWithView(action, p.Self, govState.Roles)
			switch decision {
			case policyengine.Failed:
				return Outgoing{}, ErrPolicyDropped
			case policyengine.Proposed:
				return Outgoing{}, ErrPolicyDeferred
			}
		}

		signed, err := SignAction(p.SigningKey, p.Self, group.ID(), action)
		if err != nil {
			return Outgoing{}, err
		}
		plaintext, err = codec.Marshal(signed)
		if err != nil {
			return Outgoing{}, errf(wire.OutcomeCodec, "encoding signed action: %v", err)
		}
	} else {
		var err error
		plaintext, err = codec.Marshal(action)
		if err != nil {
			return Outgoing{}, errf(wire.OutcomeCodec, "encoding action: %v", err)
		}
	}

	ciphertext, err := mlsadapter.EncryptApp(group, p.Self, plaintext)
	if err != nil {
		return Outgoing{}, errf(wire.OutcomeCrypto, "%v", err)
	}
	ciphertextBytes, err := codec.Marshal(ciphertext)
	if err != nil {
		return Outgoing{}, errf(wire.OutcomeCodec, "encoding ciphertext: %v", err)
	}

	return Outgoing{Ordered: IsOrdered(action.Kind), CiphertextBytes: ciphertextBytes}, nil
}

// HandleDSResult applies a UserReliableSend's DSResult: every
// preceding entry the sender had not yet observed, followed by the
// sender's own just-accepted message, processed through the same
// incoming path any other member uses (including the sender's own
// message — MLS's symmetric decrypt-your-own-ciphertext property
// keeps one code path responsible for every governance-state
// mutation instead of a separate optimistic-apply branch). Returns
// the decoded actions in DS order, skipping any that failed RBAC,
// policy, or decryption rather than aborting the whole batch.
func (p *Pipeline) HandleDSResult(group *mlsadapter.Group, govState *governance.SharedGroupState, result wire.OnWireMessage) ([]actionmsg.ActionMsg, error) {
	if !result.Accepted {
		return nil, errf(result.Outcome, "%s", result.Reason)
	}

	var applied []actionmsg.ActionMsg
	for _, entry := range result.PrecedingAndSent {
		action, _, err := p.ProcessIncoming(group, govState, entry, true)
		if err != nil {
			continue
		}
		if action != nil {
			applied = append(applied, *action)
		}
	}
	return applied, nil
}
