// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"sync"
	"time"

	"github.com/mlsgov/platform/lib/actionmsg"
	"github.com/mlsgov/platform/lib/actionpipeline"
	"github.com/mlsgov/platform/lib/clock"
	"github.com/mlsgov/platform/lib/config"
	"github.com/mlsgov/platform/lib/governance"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/mlsadapter"
	"github.com/mlsgov/platform/lib/policyengine"
)

// proposalTTL bounds how long a Proposed governance action (a pending
// vote, an accumulating report) stays queued before it is failed for
// staleness, per policyengine.Engine's ttl parameter.
const proposalTTL = 7 * 24 * time.Hour

// defaultPolicies returns the Policy set every group's Engine runs
// regardless of who created it: group convergence requires every
// honest member to evaluate the identical policy list in the
// identical order, so this is not configurable per group.
func defaultPolicies() []policyengine.Policy {
	return []policyengine.Policy{
		policyengine.MajorityVoteOnNameChange{},
		&policyengine.ReportThreshold{K: 2},
		policyengine.NewWordFilter(),
	}
}

// FullCapabilitiesExceptRename grants every gated action kind
// immediately except RenameGroup: RenameGroup is always subject to
// MajorityVoteOnNameChange, so no role — including a group's own
// creator — gets to bypass that vote by holding a blanket capability.
// CreateGroup's "owner" role uses this, and callers that need an
// equivalently privileged non-owner role (e.g. a moderator) should
// too rather than reaching for a wildcard capability.
var FullCapabilitiesExceptRename = []string{
	string(actionmsg.KindInvite),
	string(actionmsg.KindDecline),
	string(actionmsg.KindKick),
	string(actionmsg.KindRemove),
	string(actionmsg.KindDefRole),
	string(actionmsg.KindSetUserRole),
	string(actionmsg.KindReport),
	string(actionmsg.KindCustomAction),
	string(actionmsg.KindTextMsg),
}

// GroupSession is one client's local state for a single group: its
// MLS group, its replicated governance state, the Action Pipeline
// wired to both, and the community/channel name it is known by
// locally. Every member holds an independent GroupSession; there is
// no shared mutable state beyond what the Delivery Service relays.
type GroupSession struct {
	Community string
	Channel   string

	mu       sync.Mutex
	Group    *mlsadapter.Group
	State    *governance.SharedGroupState
	Pipeline *actionpipeline.Pipeline

	History *History

	// syncPosition is the last ordered-log position this session has
	// applied, advanced by HandleDSResult and by a per-group sync
	// pass (sync.go/syncGroupOnce).
	syncPosition uint64
}

// newGovernanceState builds a SharedGroupState wired with the
// standard policy set in governance mode, or nil Policies in baseline
// mode (a Pipeline whose Mode is baseline skips RBAC and policy
// evaluation entirely in PrepareOutgoing/ProcessIncoming, so Policies
// is never consulted there).
func newGovernanceState(name string, mode config.FeatureMode, c clock.Clock) *governance.SharedGroupState {
	state := governance.New(name)
	if mode == config.GovernanceMode {
		state.Policies = policyengine.New(c, proposalTTL, defaultPolicies()...)
	}
	return state
}

// CreateGroup creates a brand-new group owned by this client,
// installs an "owner" role with FullCapabilitiesExceptRename, and
// assigns this client that role.
func (c *Client) CreateGroup(community, channel, name string) (*GroupSession, error) {
	id := identity.NewGroupID()
	group, err := mlsadapter.NewGroup(id, c.Identity.UserID, mlsadapter.Ciphersuite)
	if err != nil {
		return nil, err
	}

	state := newGovernanceState(name, c.Config.Mode, c.Clock)
	state.Roles.DefineRole("owner", FullCapabilitiesExceptRename)
	state.Roles.SetUserRole(c.Identity.UserID, "owner")

	pipeline := &actionpipeline.Pipeline{
		Self:       c.Identity.UserID,
		SigningKey: c.Identity.SigningKey,
		VerifyKey:  c.VerifyKeys.Lookup,
		Mode:       c.Config.Mode,
		Clock:      c.Clock,
	}

	session := &GroupSession{
		Community: community,
		Channel:   channel,
		Group:     group,
		State:     state,
		Pipeline:  pipeline,
		History:   NewHistory(),
	}
	c.AddGroup(community, channel, session)
	return session, nil
}

// JoinGroup initializes a GroupSession from a Welcome accepted via
// mlsadapter.ApplyWelcome, ahead of the paired UpdateGroupState
// snapshot that populates its real member list and governance state.
// The caller must apply that snapshot (via Pipeline.ProcessIncoming)
// before the session is usable.
func (c *Client) JoinGroup(community, channel string, group *mlsadapter.Group) *GroupSession {
	state := newGovernanceState("", c.Config.Mode, c.Clock)
	pipeline := &actionpipeline.Pipeline{
		Self:       c.Identity.UserID,
		SigningKey: c.Identity.SigningKey,
		VerifyKey:  c.VerifyKeys.Lookup,
		Mode:       c.Config.Mode,
		Clock:      c.Clock,
	}

	session := &GroupSession{
		Community: community,
		Channel:   channel,
		Group:     group,
		State:     state,
		Pipeline:  pipeline,
		History:   NewHistory(),
	}
	c.AddGroup(community, channel, session)
	return session
}

// SyncPosition returns the last ordered-log position this session has
// applied.
func (g *GroupSession) SyncPosition() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.syncPosition
}

// advancePosition records position as applied if it is newer than
// what is already recorded.
func (g *GroupSession) advancePosition(position uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if position > g.syncPosition {
		g.syncPosition = position
	}
}

// Close releases the session's MLS epoch secret.
func (g *GroupSession) Close() error {
	return g.Group.Close()
}
