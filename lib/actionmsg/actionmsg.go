// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package actionmsg

import (
	"errors"
	"fmt"

	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/keypackage"
	"github.com/mlsgov/platform/lib/rbac"
)

// Kind discriminates which variant of ActionMsg is populated.
type Kind string

const (
	KindTextMsg          Kind = "TextMsg"
	KindRenameGroup       Kind = "RenameGroup"
	KindInvite            Kind = "Invite"
	KindAccept            Kind = "Accept"
	KindDecline           Kind = "Decline"
	KindKick              Kind = "Kick"
	KindRemove            Kind = "Remove"
	KindDefRole           Kind = "DefRole"
	KindSetUserRole       Kind = "SetUserRole"
	KindUpdateGroupState  Kind = "UpdateGroupState"
	KindReport            Kind = "Report"
	KindCustomAction      Kind = "CustomAction"
)

// ErrUnknownKind is returned when an ActionMsg carries a Kind this
// package does not recognize.
var ErrUnknownKind = errors.New("actionmsg: unknown action kind")

// ActionMsg is the tagged union of every action a group member can
// send. Only the fields relevant to Kind are meaningful; the rest are
// left at their zero value and omitted from the wire encoding.
type ActionMsg struct {
	Kind Kind `cbor:"1,keyasint"`

	// Text carries TextMsg's body.
	Text string `cbor:"2,keyasint,omitempty"`

	// GroupName carries RenameGroup's proposed name.
	GroupName string `cbor:"3,keyasint,omitempty"`

	// KeyPackage carries Invite's key package for the invitee.
	KeyPackage *keypackage.KeyPackage `cbor:"4,keyasint,omitempty"`

	// TargetUser carries Invite/Kick/Remove/SetUserRole's subject.
	TargetUser identity.UserID `cbor:"5,keyasint,omitempty"`

	// Role carries DefRole/SetUserRole's role name.
	Role rbac.Role `cbor:"6,keyasint,omitempty"`

	// Capabilities carries DefRole's glob-pattern capability set.
	Capabilities []string `cbor:"7,keyasint,omitempty"`

	// GroupState carries UpdateGroupState's pre-encoded
	// governance-state snapshot.
	GroupState codec.RawMessage `cbor:"8,keyasint,omitempty"`

	// ReportedAction carries Report's pre-encoded, signed
	// VerifiableAction bytes being reported.
	ReportedAction []byte `cbor:"9,keyasint,omitempty"`

	// ReportReason carries Report's human-readable reason.
	ReportReason string `cbor:"10,keyasint,omitempty"`

	// CustomTag carries CustomAction's application-defined tag (e.g.
	// "vote", used by policy engine reference policies to carry
	// Vote(proposal_id, yes|no) payloads).
	CustomTag string `cbor:"11,keyasint,omitempty"`

	// CustomBytes carries CustomAction's application-defined payload.
	CustomBytes []byte `cbor:"12,keyasint,omitempty"`

	// Commit carries UpdateGroupState's pre-encoded lib/mlsadapter.Commit
	// bytes when the snapshot follows a membership-changing Add or
	// Remove, so receivers other than the committer can independently
	// verify and apply the same epoch advance before merging the
	// snapshot. Empty for a snapshot that changed no membership.
	Commit []byte `cbor:"13,keyasint,omitempty"`
}

// NewTextMsg constructs a TextMsg action.
func NewTextMsg(text string) ActionMsg {
	return ActionMsg{Kind: KindTextMsg, Text: text}
}

// NewRenameGroup constructs a RenameGroup action.
func NewRenameGroup(name string) ActionMsg {
	return ActionMsg{Kind: KindRenameGroup, GroupName: name}
}

// NewInvite constructs an Invite action admitting invitee using pkg.
func NewInvite(pkg keypackage.KeyPackage, invitee identity.UserID) ActionMsg {
	return ActionMsg{Kind: KindInvite, KeyPackage: &pkg, TargetUser: invitee}
}

// NewAccept constructs an Accept notification action.
func NewAccept() ActionMsg {
	return ActionMsg{Kind: KindAccept}
}

// NewDecline constructs a Decline action for the sender itself.
func NewDecline() ActionMsg {
	return ActionMsg{Kind: KindDecline}
}

// NewKick constructs a Kick action targeting target.
func NewKick(target identity.UserID) ActionMsg {
	return ActionMsg{Kind: KindKick, TargetUser: target}
}

// NewRemove constructs a Remove action targeting target.
func NewRemove(target identity.UserID) ActionMsg {
	return ActionMsg{Kind: KindRemove, TargetUser: target}
}

// NewDefRole constructs a DefRole action defining role's capabilities.
func NewDefRole(role rbac.Role, capabilities []string) ActionMsg {
	return ActionMsg{Kind: KindDefRole, Role: role, Capabilities: capabilities}
}

// NewSetUserRole constructs a SetUserRole action assigning role to user.
func NewSetUserRole(user identity.UserID, role rbac.Role) ActionMsg {
	return ActionMsg{Kind: KindSetUserRole, TargetUser: user, Role: role}
}

// NewUpdateGroupState constructs an UpdateGroupState action carrying a
// pre-encoded governance-state snapshot.
func NewUpdateGroupState(stateCBOR []byte) ActionMsg {
	return ActionMsg{Kind: KindUpdateGroupState, GroupState: codec.RawMessage(stateCBOR)}
}

// NewUpdateGroupStateWithCommit is NewUpdateGroupState plus a
// pre-encoded mlsadapter.Commit, for a snapshot following a
// membership-changing Add or Remove.
func NewUpdateGroupStateWithCommit(stateCBOR, commitCBOR []byte) ActionMsg {
	return ActionMsg{Kind: KindUpdateGroupState, GroupState: codec.RawMessage(stateCBOR), Commit: commitCBOR}
}

// NewReport constructs a Report action flagging reportedActionCBOR
// (the signed VerifiableAction bytes being reported) with reason.
func NewReport(reportedActionCBOR []byte, reason string) ActionMsg {
	return ActionMsg{Kind: KindReport, ReportedAction: reportedActionCBOR, ReportReason: reason}
}

// NewCustomAction constructs a CustomAction carrying an
// application-defined tag and payload.
func NewCustomAction(tag string, payload []byte) ActionMsg {
	return ActionMsg{Kind: KindCustomAction, CustomTag: tag, CustomBytes: payload}
}

// Validate reports whether m's Kind is recognized and its required
// fields for that Kind are present.
func (m ActionMsg) Validate() error {
	switch m.Kind {
	case KindTextMsg, KindRenameGroup, KindAccept, KindDecline:
		return nil
	case KindInvite:
		if m.KeyPackage == nil || m.TargetUser.IsZero() {
			return fmt.Errorf("actionmsg: Invite requires KeyPackage and TargetUser")
		}
		return nil
	case KindKick, KindRemove:
		if m.TargetUser.IsZero() {
			return fmt.Errorf("actionmsg: %s requires TargetUser", m.Kind)
		}
		return nil
	case KindDefRole:
		if m.Role == "" {
			return fmt.Errorf("actionmsg: DefRole requires Role")
		}
		return nil
	case KindSetUserRole:
		if m.TargetUser.IsZero() {
			return fmt.Errorf("actionmsg: SetUserRole requires TargetUser")
		}
		return nil
	case KindUpdateGroupState:
		if len(m.GroupState) == 0 {
			return fmt.Errorf("actionmsg: UpdateGroupState requires GroupState")
		}
		return nil
	case KindReport:
		if len(m.ReportedAction) == 0 {
			return fmt.Errorf("actionmsg: Report requires ReportedAction")
		}
		return nil
	case KindCustomAction:
		if m.CustomTag == "" {
			return fmt.Errorf("actionmsg: CustomAction requires CustomTag")
		}
		return nil
	default:
		return ErrUnknownKind
	}
}
