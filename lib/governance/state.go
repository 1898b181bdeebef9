// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/keypackage"
	"github.com/mlsgov/platform/lib/policyengine"
	"github.com/mlsgov/platform/lib/rbac"
)

// CandidateState is where a (group, candidate) pair sits in the
// invite state machine.
type CandidateState int

const (
	Absent CandidateState = iota
	PreApproved
	Added
	Accepted
	Declined
	Removed
)

func (s CandidateState) String() string {
	switch s {
	case PreApproved:
		return "PreApproved"
	case Added:
		return "Added"
	case Accepted:
		return "Accepted"
	case Declined:
		return "Declined"
	case Removed:
		return "Removed"
	default:
		return "Absent"
	}
}

// ErrNotPreApproved mirrors mlsadapter.ErrNotPreApproved at the
// governance layer, for callers checking before attempting a commit.
var ErrNotPreApproved = errors.New("governance: candidate is not pre-approved")

// ErrSnapshotEpochMismatch is returned by ApplyUpdateGroupState when a
// snapshot's epoch does not match the epoch the caller expected (the
// paired Welcome's epoch, for a joining member; the local MlsGroup's
// current epoch, for an existing member) — the snapshot is discarded,
// not merged, per the Welcome/UpdateGroupState pairing invariant.
var ErrSnapshotEpochMismatch = errors.New("governance: snapshot epoch does not match expected epoch")

// ErrLeaveNotAuthorized is returned when an MLS Leave/Remove proposal
// names a subject that is not in the to-remove list — honest peers
// must reject such a Remove rather than merge it.
var ErrLeaveNotAuthorized = errors.New("governance: leave subject is not authorized for removal")

// SharedGroupState is one group's replicated governance state: name,
// topic, role table, community metadata, and the invite state machine
// for every candidate the group has ever Invited. Every method is
// safe for concurrent use; callers serialize per-group access through
// lib/actionpipeline's single logical critical section regardless, but
// the lock here keeps SharedGroupState safe standalone (e.g. from
// tests, or a future concurrent-read path).
type SharedGroupState struct {
	mu sync.Mutex

	name  string
	topic string

	Roles     *rbac.RoleTable
	Community map[string]string

	// Policies is this client's local Policy Engine instance for the
	// group, nil in baseline mode. Every honest client runs its own
	// instance over the identical ordered-action sequence, so their
	// proposal queues converge without any instance exchanging state
	// with another directly.
	Policies *policyengine.Engine

	preApproved    map[identity.UserID]keypackage.KeyPackage
	toRemove       map[identity.UserID]struct{}
	candidateState map[identity.UserID]CandidateState
}

// New creates an empty SharedGroupState for a freshly created group.
func New(name string) *SharedGroupState {
	return &SharedGroupState{
		name:           name,
		Roles:          rbac.NewRoleTable(),
		Community:      make(map[string]string),
		preApproved:    make(map[identity.UserID]keypackage.KeyPackage),
		toRemove:       make(map[identity.UserID]struct{}),
		candidateState: make(map[identity.UserID]CandidateState),
	}
}

// Name returns the group's current display name.
func (s *SharedGroupState) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetName applies a merged RenameGroup action.
func (s *SharedGroupState) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

// Topic returns the group's current topic.
func (s *SharedGroupState) Topic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic
}

// SetTopic applies a merged topic-change action.
func (s *SharedGroupState) SetTopic(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topic = topic
}

// CandidateState reports candidate's current invite-state-machine
// state, Absent if never referenced.
func (s *SharedGroupState) CandidateState(candidate identity.UserID) CandidateState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.candidateState[candidate]
}

// MergeInvite applies an ordered Invite(pkg, candidate) action,
// transitioning Absent -> PreApproved and stashing pkg for whichever
// member later produces the Add commit. A candidate already at or
// past PreApproved is left unchanged — Invite is idempotent.
func (s *SharedGroupState) MergeInvite(candidate identity.UserID, pkg keypackage.KeyPackage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candidateState[candidate] != Absent {
		return
	}
	s.preApproved[candidate] = pkg
	s.candidateState[candidate] = PreApproved
}

// StashedKeyPackage returns the KeyPackage cached for candidate by
// MergeInvite, for a member producing the MLS Add commit. The invite
// race scenario (a candidate uploads a fresher KeyPackage before the
// Add commits) is resolved entirely inside mlsadapter.ApplyWelcome:
// if the invitee no longer holds the private half matching this
// stashed package, decryption fails and the invitee reports a
// capacity error rather than joining.
func (s *SharedGroupState) StashedKeyPackage(candidate identity.UserID) (keypackage.KeyPackage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.preApproved[candidate]
	return pkg, ok
}

// PreApprovedList returns every candidate currently pre-approved, for
// passing to mlsadapter.Add's preApprovedUsers parameter.
func (s *SharedGroupState) PreApprovedList() []identity.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]identity.UserID, 0, len(s.preApproved))
	for candidate, state := range s.candidateState {
		if state == PreApproved {
			out = append(out, candidate)
		}
	}
	return out
}

// MergeAdd records that candidate's MLS Add commit has been verified
// and merged (by mlsadapter.ApplyCommit, called separately), popping
// them from the pre-approved list and transitioning PreApproved ->
// Added. Returns ErrNotPreApproved if candidate was not pre-approved —
// callers must treat that as Invariant 4's fatal "reject commit and
// continue", never merging the commit in the first place.
func (s *SharedGroupState) MergeAdd(candidate identity.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candidateState[candidate] != PreApproved {
		return ErrNotPreApproved
	}
	delete(s.preApproved, candidate)
	s.candidateState[candidate] = Added
	return nil
}

// MergeAccept applies candidate's unordered Accept notification,
// transitioning Added -> Accepted. Accept carries no state beyond the
// notification itself.
func (s *SharedGroupState) MergeAccept(candidate identity.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candidateState[candidate] == Added {
		s.candidateState[candidate] = Accepted
	}
}

// MergeDecline applies an ordered Decline(self) action from candidate,
// appending them to the to-remove list and transitioning to Declined.
// The candidate's own client additionally emits an MLS Leave for
// itself; this method only updates the bookkeeping every honest peer
// performs to authorize that Leave once it arrives.
func (s *SharedGroupState) MergeDecline(candidate identity.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toRemove[candidate] = struct{}{}
	s.candidateState[candidate] = Declined
}

// MergeKick applies an ordered Kick(target) action from a privileged
// member (RBAC already checked by the caller before merging),
// appending target to the to-remove list so any authorized member may
// subsequently emit the MLS Remove.
func (s *SharedGroupState) MergeKick(target identity.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toRemove[target] = struct{}{}
}

// AuthorizeLeave reports whether subject is in the to-remove list —
// honest peers must check this before merging an MLS Leave/Remove
// proposal for subject, per the Declined/Kick invariant. On success,
// subject is popped from the list and marked Removed so a replayed
// Leave for the same subject is not re-authorized.
func (s *SharedGroupState) AuthorizeLeave(subject identity.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.toRemove[subject]; !ok {
		return ErrLeaveNotAuthorized
	}
	delete(s.toRemove, subject)
	s.candidateState[subject] = Removed
	return nil
}

// FinalizeRemoval applies an ordered Remove(target) action: the
// committer has already merged the corresponding MLS Remove commit
// (authorized via AuthorizeLeave or a Kick's to-remove entry), and
// this ordered broadcast tells every peer — including ones that never
// held the authorization themselves — to drop target's role
// assignment and mark them Removed.
func (s *SharedGroupState) FinalizeRemoval(target identity.UserID) {
	s.Roles.RemoveUser(target)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.toRemove, target)
	s.candidateState[target] = Removed
}

// snapshot is the CBOR-encoded form of SharedGroupState carried inside
// an UpdateGroupState action's GroupState field.
type snapshot struct {
	Epoch           uint64                        `cbor:"1,keyasint"`
	Name            string                        `cbor:"2,keyasint"`
	Topic           string                        `cbor:"3,keyasint"`
	RoleDefs        map[rbac.Role][]string         `cbor:"4,keyasint"`
	RoleAssignments map[identity.UserID]rbac.Role  `cbor:"5,keyasint"`
	Community       map[string]string              `cbor:"6,keyasint"`
	PreApproved     map[identity.UserID]keypackage.KeyPackage `cbor:"7,keyasint"`
	ToRemove        []identity.UserID             `cbor:"8,keyasint"`
}

// Snapshot encodes the current state, tagged with epoch (the
// committer's MlsGroup epoch immediately after the Add commit that
// prompted this broadcast), for NewUpdateGroupState's GroupState
// field.
func (s *SharedGroupState) Snapshot(epoch uint64) ([]byte, error) {
	s.mu.Lock()
	toRemove := make([]identity.UserID, 0, len(s.toRemove))
	for user := range s.toRemove {
		toRemove = append(toRemove, user)
	}
	preApproved := make(map[identity.UserID]keypackage.KeyPackage, len(s.preApproved))
	for candidate, pkg := range s.preApproved {
		preApproved[candidate] = pkg
	}
	community := make(map[string]string, len(s.Community))
	for k, v := range s.Community {
		community[k] = v
	}
	snap := snapshot{
		Epoch:           epoch,
		Name:            s.name,
		Topic:           s.topic,
		RoleDefs:        s.Roles.RoleDefinitions(),
		RoleAssignments: s.Roles.RoleOfMembers(),
		Community:       community,
		PreApproved:     preApproved,
		ToRemove:        toRemove,
	}
	s.mu.Unlock()

	data, err := codec.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("governance: encoding snapshot: %w", err)
	}
	return data, nil
}

// ApplyUpdateGroupState decodes data and, if its epoch matches
// expectedEpoch, replaces this state's name/topic/roles/community/
// pre-approved/to-remove fields wholesale. A mismatched epoch leaves
// the receiver's state untouched and returns
// ErrSnapshotEpochMismatch, per the Welcome/UpdateGroupState pairing
// invariant — a snapshot from the wrong epoch must be discarded, not
// merged.
func (s *SharedGroupState) ApplyUpdateGroupState(data []byte, expectedEpoch uint64) error {
	var snap snapshot
	if err := codec.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("governance: decoding snapshot: %w", err)
	}
	if snap.Epoch != expectedEpoch {
		return ErrSnapshotEpochMismatch
	}

	roles := rbac.NewRoleTable()
	for role, caps := range snap.RoleDefs {
		roles.DefineRole(role, caps)
	}
	for user, role := range snap.RoleAssignments {
		roles.SetUserRole(user, role)
	}

	candidateState := make(map[identity.UserID]CandidateState, len(snap.PreApproved)+len(snap.ToRemove))
	for candidate := range snap.PreApproved {
		candidateState[candidate] = PreApproved
	}
	toRemove := make(map[identity.UserID]struct{}, len(snap.ToRemove))
	for _, user := range snap.ToRemove {
		toRemove[user] = struct{}{}
		if _, already := candidateState[user]; !already {
			candidateState[user] = Declined
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = snap.Name
	s.topic = snap.Topic
	s.Roles = roles
	s.Community = snap.Community
	s.preApproved = snap.PreApproved
	s.toRemove = toRemove
	for candidate, state := range candidateState {
		s.candidateState[candidate] = state
	}
	return nil
}
