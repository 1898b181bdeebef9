// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package rbac

import (
	"sync"

	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/match"
)

// Role names a position in a group's role table (e.g., "owner",
// "moderator", "member"). Roles are defined per group by a DefRole
// action and carry no meaning outside that group.
type Role string

// RoleTable holds a group's role definitions and member assignments.
// It is the in-memory form of the role-table component of
// SharedGroupState — replicated by client convergence, not server
// authority, so every member keeps an independent copy and
// applies the same sequence of DefRole/SetUserRole actions to it.
type RoleTable struct {
	mu sync.RWMutex

	// capabilities maps a role to its glob-pattern capability set, as
	// supplied by the most recent DefRole action defining that role.
	capabilities map[Role][]string

	// members maps a member to their currently assigned role.
	members map[identity.UserID]Role
}

// NewRoleTable returns an empty RoleTable.
func NewRoleTable() *RoleTable {
	return &RoleTable{
		capabilities: make(map[Role][]string),
		members:      make(map[identity.UserID]Role),
	}
}

// DefineRole records or replaces a role's capability set, applying a
// DefRole(Role, capabilities) action. Capabilities are glob patterns
// matched with [lib/match.MatchAction] (e.g., "member/**", "policy/vote").
func (t *RoleTable) DefineRole(role Role, capabilities []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stored := make([]string, len(capabilities))
	copy(stored, capabilities)
	t.capabilities[role] = stored
}

// SetUserRole assigns role to user, applying a SetUserRole(UserId,
// Role) action. Assigning the zero Role clears the member's role.
func (t *RoleTable) SetUserRole(user identity.UserID, role Role) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if role == "" {
		delete(t.members, user)
		return
	}
	t.members[user] = role
}

// RemoveUser removes user from the role table entirely, e.g. on Kick
// or Remove.
func (t *RoleTable) RemoveUser(user identity.UserID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.members, user)
}

// RoleOf returns the role currently assigned to user, and whether one
// is assigned at all.
func (t *RoleTable) RoleOf(user identity.UserID) (Role, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	role, ok := t.members[user]
	return role, ok
}

// Capabilities returns the capability patterns defined for role. The
// returned slice is a copy; mutating it has no effect on the table.
func (t *RoleTable) Capabilities(role Role) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	patterns := t.capabilities[role]
	if patterns == nil {
		return nil
	}
	out := make([]string, len(patterns))
	copy(out, patterns)
	return out
}

// MemberCount returns the number of members currently assigned a
// role, satisfying policyengine.GroupView.
func (t *RoleTable) MemberCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.members)
}

// IsMember reports whether user currently has any role assigned,
// satisfying policyengine.GroupView.
func (t *RoleTable) IsMember(user identity.UserID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.members[user]
	return ok
}

// Members returns every user currently assigned a role, in no
// particular order — used to hand mlsadapter.Group.SetMembers a
// snapshot's membership list.
func (t *RoleTable) Members() []identity.UserID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]identity.UserID, 0, len(t.members))
	for user := range t.members {
		out = append(out, user)
	}
	return out
}

// RoleOfMembers returns every member and their assigned role, for
// snapshotting a RoleTable into a SharedGroupState broadcast.
func (t *RoleTable) RoleOfMembers() map[identity.UserID]Role {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[identity.UserID]Role, len(t.members))
	for user, role := range t.members {
		out[user] = role
	}
	return out
}

// RoleDefinitions returns every defined role and its capability set,
// for snapshotting a RoleTable into a SharedGroupState broadcast.
func (t *RoleTable) RoleDefinitions() map[Role][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[Role][]string, len(t.capabilities))
	for role, caps := range t.capabilities {
		copied := make([]string, len(caps))
		copy(copied, caps)
		out[role] = copied
	}
	return out
}

// Check is the RBAC "immediate pass" gate: it
// reports whether user's assigned role's capability set includes
// actionKind. A user with no assigned role never passes — groups must
// assign every member a role (typically at Accept time) for RBAC to
// admit their actions.
func (t *RoleTable) Check(user identity.UserID, actionKind string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	role, ok := t.members[user]
	if !ok {
		return false
	}
	return match.MatchAnyAction(t.capabilities[role], actionKind)
}
