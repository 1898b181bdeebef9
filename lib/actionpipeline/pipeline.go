// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package actionpipeline

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mlsgov/platform/lib/actionmsg"
	"github.com/mlsgov/platform/lib/clock"
	"github.com/mlsgov/platform/lib/config"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/wire"
)

// VerifyKeyLookup resolves a user's long-lived Ed25519 verification
// key, e.g. from a locally cached set of Authentication Service
// credentials. It returns ok=false for an unknown user.
type VerifyKeyLookup func(identity.UserID) (ed25519.PublicKey, bool)

// Pipeline holds one client's outgoing/incoming action processing
// configuration. A Pipeline is shared across every group the client
// is a member of; per-group mutable state lives in the
// *mlsadapter.Group and *governance.SharedGroupState passed into each
// call.
type Pipeline struct {
	Self       identity.UserID
	SigningKey ed25519.PrivateKey
	VerifyKey  VerifyKeyLookup
	Mode       config.FeatureMode
	Clock      clock.Clock
}

// Error wraps a processing failure with the wire.Outcome it should be
// reported to the caller as.
type Error struct {
	Outcome wire.Outcome
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("actionpipeline: %s: %s", e.Outcome, e.Reason)
}

func errf(outcome wire.Outcome, format string, args ...any) error {
	return &Error{Outcome: outcome, Reason: fmt.Sprintf(format, args...)}
}

// orderedKinds are actions that must be globally ordered across the
// group (governance state changes, votes, and reports) — sent via
// UserReliableSend and re-triggering policy evaluation on arrival.
var orderedKinds = map[actionmsg.Kind]bool{
	actionmsg.KindRenameGroup: true,
	actionmsg.KindInvite:      true,
	actionmsg.KindDecline:     true,
	actionmsg.KindKick:        true,
	actionmsg.KindRemove:      true,
	actionmsg.KindDefRole:     true,
	actionmsg.KindSetUserRole: true,
	actionmsg.KindReport:      true,
	actionmsg.KindCustomAction: true,
}

// IsOrdered reports whether kind requires total ordering. TextMsg,
// Accept, and UpdateGroupState are unordered: a text message needs
// only delivery, Accept is a notification with no ordering
// dependency, and UpdateGroupState is deliberately broadcast outside
// the ordered log since it carries a point-in-time snapshot tagged
// with its own epoch rather than a delta to merge in sequence.
func IsOrdered(kind actionmsg.Kind) bool {
	return orderedKinds[kind]
}

// gatedKinds pass through RBAC and the Policy Engine. This is a
// separate set from orderedKinds in both directions: every ordered
// kind is gated, but TextMsg is gated too despite being unordered
// (WordFilter needs a pass/fail disposition for it), and a future
// ordered kind could in principle need total order without
// governance gating.
var gatedKinds = func() map[actionmsg.Kind]bool {
	kinds := make(map[actionmsg.Kind]bool, len(orderedKinds)+1)
	for k, v := range orderedKinds {
		kinds[k] = v
	}
	kinds[actionmsg.KindTextMsg] = true
	return kinds
}()

func isGated(kind actionmsg.Kind) bool {
	return gatedKinds[kind]
}
