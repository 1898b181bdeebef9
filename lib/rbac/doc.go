// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package rbac implements the role-based "immediate pass" gate that
// the Action Pipeline consults before handing an action to the Policy
// Engine: look up the sender's role in the group's role table, and if
// that role's capability set covers the action kind, admit the action
// immediately; otherwise fall through to policy evaluation.
//
// A [RoleTable] is per-group state, replicated client-side as part of
// SharedGroupState (convergent, not server-authoritative). It holds
// two maps: a role's glob-pattern capability set
// (defined by [DefRole] actions) and each member's assigned role
// (assigned by [SetUserRole] actions). [RoleTable.Check] is the gate
// itself: it resolves the sender's role and matches the action kind
// against that role's capabilities using [lib/match]'s hierarchical
// glob semantics ("member/**" grants every member-management action).
//
// RoleTable is a plain, single-group structure guarded by a mutex —
// there is no cross-principal grant/denial/allowance model here,
// because this RBAC question is scoped to "does this member's role
// cover this action kind in this group", not "can this principal act
// on that principal".
package rbac
