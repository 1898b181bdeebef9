// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package policyengine

import (
	"fmt"
	"sync"
	"time"

	"github.com/mlsgov/platform/lib/actionmsg"
	"github.com/mlsgov/platform/lib/clock"
	"github.com/mlsgov/platform/lib/identity"
)

// Decision is a Policy's verdict on one action.
type Decision int

const (
	// Failed means the action is rejected outright.
	Failed Decision = iota
	// Passed means the action may proceed.
	Passed
	// Proposed means the verdict is not yet known; the action is
	// queued and re-evaluated until it resolves or expires.
	Proposed
)

func (d Decision) String() string {
	switch d {
	case Passed:
		return "Passed"
	case Proposed:
		return "Proposed"
	default:
		return "Failed"
	}
}

// GroupView is the read-only slice of SharedGroupState a Policy needs
// to make its decision, implemented by lib/governance without
// creating an import cycle back into this package.
type GroupView interface {
	MemberCount() int
	IsMember(identity.UserID) bool

	// Check reports whether user currently holds capability — the
	// same RBAC gate lib/actionpipeline consults directly. A policy
	// that needs to reserve part of its own surface to a role (e.g.
	// WordFilterPolicy restricting who may update the filter list)
	// consults this instead of a separate mechanism, since role
	// assignment is the only notion of privilege SharedGroupState has.
	Check(user identity.UserID, capability string) bool
}

// Policy is the filter/check/pass/fail interface every reference and
// custom policy implements.
type Policy interface {
	// Name identifies the policy in logs and in a ProposedAction's
	// PolicyName field.
	Name() string

	// Filter reports whether this policy applies to actions of kind.
	Filter(kind actionmsg.Kind) bool

	// Check decides the action, given its sender, the current group
	// view, persistent per-proposal scratch state, and the current
	// time (for TTL-style bookkeeping inside a policy).
	Check(action actionmsg.ActionMsg, sender identity.UserID, view GroupView, scratch map[string]any, now time.Time) Decision

	// Pass runs the policy's side effect for an action that resolved
	// to Passed.
	Pass(action actionmsg.ActionMsg, sender identity.UserID, scratch map[string]any)

	// Fail runs the policy's side effect for an action that resolved
	// to Failed (including TTL expiry).
	Fail(action actionmsg.ActionMsg, sender identity.UserID, scratch map[string]any)
}

// KeyedPolicy is implemented by policies whose proposals should merge
// by a grouping key instead of always creating a new ProposedAction —
// ReportThreshold uses this so repeated Report actions against the
// same reported action accumulate into one proposal.
type KeyedPolicy interface {
	Policy
	Key(action actionmsg.ActionMsg) string
}

// VotePolicy is implemented by policies that resolve an existing
// proposal in response to an explicit Vote reference (CustomAction
// with CustomTag "vote") rather than by re-filtering ordinary
// traffic — MajorityVoteOnNameChange uses this.
type VotePolicy interface {
	Policy
	Vote(scratch map[string]any, voter identity.UserID, yes bool, view GroupView) Decision
}

// ProposedAction is an action whose Policy Engine verdict is not yet
// final. It lives in Engine's queue until EvaluateAllProposed (or an
// explicit Vote) resolves it, or its TTL expires.
type ProposedAction struct {
	ID         string
	Action     actionmsg.ActionMsg
	Sender     identity.UserID
	PolicyName string
	FirstSeen  time.Time
	Scratch    map[string]any
}

// Engine holds the ordered policy list and the queue of proposed
// actions awaiting resolution.
type Engine struct {
	mu       sync.Mutex
	policies []Policy
	byName   map[string]Policy
	queue    []*ProposedAction
	nextSeq  uint64
	clock    clock.Clock
	ttl      time.Duration
}

// New creates an Engine running policies in the given order. ttl
// bounds how long a Proposed action may sit in the queue before
// EvaluateAllProposed expires it with Fail.
func New(c clock.Clock, ttl time.Duration, policies ...Policy) *Engine {
	byName := make(map[string]Policy, len(policies))
	for _, p := range policies {
		byName[p.Name()] = p
	}
	return &Engine{
		policies: policies,
		byName:   byName,
		clock:    c,
		ttl:      ttl,
	}
}

// Evaluate runs action through every policy that filters it, in list
// order. The first Passed wins; otherwise, if any policy proposed,
// the action is enqueued (or merged into an existing keyed proposal)
// and Proposed is returned, unless that merge brings the keyed
// proposal to Passed, in which case its Pass hook runs, it leaves the
// queue and Passed is returned; otherwise Failed is returned and every
// evaluated policy's Fail hook runs. An action no policy filters
// passes by default — policies are opt-in scoping, not a default-deny
// gate.
func (e *Engine) Evaluate(action actionmsg.ActionMsg, sender identity.UserID) (Decision, *ProposedAction) {
	return e.evaluate(action, sender, noopView{})
}

// EvaluateWithView is Evaluate with an explicit GroupView; production
// callers (lib/actionpipeline) always have a real SharedGroupState to
// pass.
func (e *Engine) EvaluateWithView(action actionmsg.ActionMsg, sender identity.UserID, view GroupView) (Decision, *ProposedAction) {
	return e.evaluate(action, sender, view)
}

// Filters reports whether any registered policy applies to actions of
// kind. lib/actionpipeline's RBAC-fallback gate consults this to tell
// "no policy covers this action" (a drop, since an action that cannot
// reach any capability and has no policy backstop must not pass
// silently) apart from Evaluate's own no-applicable-policy default of
// Passed, which is the right default for a direct/library caller with
// no RBAC gate of its own.
func (e *Engine) Filters(kind actionmsg.Kind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.policies {
		if p.Filter(kind) {
			return true
		}
	}
	return false
}

func (e *Engine) evaluate(action actionmsg.ActionMsg, sender identity.UserID, view GroupView) (Decision, *ProposedAction) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var applicable []Policy
	for _, p := range e.policies {
		if p.Filter(action.Kind) {
			applicable = append(applicable, p)
		}
	}
	if len(applicable) == 0 {
		return Passed, nil
	}

	now := e.clock.Now()
	var proposingPolicy Policy
	anyProposed := false

	for _, p := range applicable {
		scratch := map[string]any{}
		decision := p.Check(action, sender, view, scratch, now)
		switch decision {
		case Passed:
			p.Pass(action, sender, scratch)
			return Passed, nil
		case Proposed:
			if !anyProposed {
				proposingPolicy = p
				anyProposed = true
			}
		}
	}

	if anyProposed {
		return e.enqueue(proposingPolicy, action, sender, now)
	}

	for _, p := range applicable {
		p.Fail(action, sender, map[string]any{})
	}
	return Failed, nil
}

// enqueue adds action as a new ProposedAction under policy, or merges
// it into an existing one if policy is a KeyedPolicy and a matching
// entry is already queued. A merge that makes the existing entry's
// Check return Passed runs its Pass hook, removes it from the queue
// and returns Passed with a nil proposal. Caller holds e.mu.
func (e *Engine) enqueue(policy Policy, action actionmsg.ActionMsg, sender identity.UserID, now time.Time) (Decision, *ProposedAction) {
	if keyed, ok := policy.(KeyedPolicy); ok {
		key := keyed.Key(action)
		for i, existing := range e.queue {
			if existing.PolicyName == policy.Name() && keyed.Key(existing.Action) == key {
				if policy.Check(action, sender, noopView{}, existing.Scratch, now) == Passed {
					policy.Pass(existing.Action, existing.Sender, existing.Scratch)
					e.queue = append(e.queue[:i:i], e.queue[i+1:]...)
					return Passed, nil
				}
				return Proposed, existing
			}
		}
	}

	scratch := map[string]any{}
	policy.Check(action, sender, noopView{}, scratch, now)

	proposal := &ProposedAction{
		ID:         fmt.Sprintf("p-%d", e.nextSeq),
		Action:     action,
		Sender:     sender,
		PolicyName: policy.Name(),
		FirstSeen:  now,
		Scratch:    scratch,
	}
	e.nextSeq++
	e.queue = append(e.queue, proposal)
	return Proposed, proposal
}

// Resolution is one proposal's outcome from EvaluateAllProposed.
type Resolution struct {
	Proposal *ProposedAction
	Decision Decision
}

// EvaluateAllProposed re-runs every queued proposal's originating
// policy against the current view, in queue insertion order. Entries
// that resolve to Passed or Failed (including TTL expiry) are removed
// from the queue and their side effects run; entries still Proposed
// remain queued.
func (e *Engine) EvaluateAllProposed(view GroupView) []Resolution {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	var resolutions []Resolution
	var remaining []*ProposedAction

	for _, proposal := range e.queue {
		policy, ok := e.byName[proposal.PolicyName]
		if !ok {
			continue
		}

		if e.ttl > 0 && now.Sub(proposal.FirstSeen) > e.ttl {
			policy.Fail(proposal.Action, proposal.Sender, proposal.Scratch)
			resolutions = append(resolutions, Resolution{Proposal: proposal, Decision: Failed})
			continue
		}

		decision := policy.Check(proposal.Action, proposal.Sender, view, proposal.Scratch, now)
		switch decision {
		case Passed:
			policy.Pass(proposal.Action, proposal.Sender, proposal.Scratch)
			resolutions = append(resolutions, Resolution{Proposal: proposal, Decision: Passed})
		case Failed:
			policy.Fail(proposal.Action, proposal.Sender, proposal.Scratch)
			resolutions = append(resolutions, Resolution{Proposal: proposal, Decision: Failed})
		default:
			remaining = append(remaining, proposal)
		}
	}

	e.queue = remaining
	return resolutions
}

// Vote resolves an existing proposal in response to an explicit Vote
// action (CustomAction{CustomTag: "vote"} whose CustomBytes names
// proposalID). Returns ok=false if proposalID is unknown or its
// policy does not implement VotePolicy.
func (e *Engine) Vote(proposalID string, voter identity.UserID, yes bool, view GroupView) (Resolution, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, proposal := range e.queue {
		if proposal.ID != proposalID {
			continue
		}
		policy, ok := e.byName[proposal.PolicyName]
		if !ok {
			return Resolution{}, false
		}
		votePolicy, ok := policy.(VotePolicy)
		if !ok {
			return Resolution{}, false
		}

		decision := votePolicy.Vote(proposal.Scratch, voter, yes, view)
		switch decision {
		case Passed:
			policy.Pass(proposal.Action, proposal.Sender, proposal.Scratch)
		case Failed:
			policy.Fail(proposal.Action, proposal.Sender, proposal.Scratch)
		default:
			return Resolution{Proposal: proposal, Decision: Proposed}, true
		}

		e.queue = append(e.queue[:i:i], e.queue[i+1:]...)
		return Resolution{Proposal: proposal, Decision: decision}, true
	}
	return Resolution{}, false
}

// QueueLen reports how many proposals are currently queued.
func (e *Engine) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// noopView is the zero GroupView used when a caller (or an internal
// re-check during enqueue, before any view-dependent decision
// matters) has none to offer.
type noopView struct{}

func (noopView) MemberCount() int                    { return 0 }
func (noopView) IsMember(identity.UserID) bool       { return false }
func (noopView) Check(identity.UserID, string) bool  { return false }
