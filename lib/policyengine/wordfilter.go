// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package policyengine

import (
	"strings"
	"sync"
	"time"

	"github.com/mlsgov/platform/lib/actionmsg"
	"github.com/mlsgov/platform/lib/identity"
)

// UpdateWordFilterTag is the CustomTag a CustomAction carries when it
// updates a WordFilter's banned-word set.
const UpdateWordFilterTag = "word-filter-update"

// WordFilter maintains a community's banned-word list: a TextMsg
// containing any banned word fails outright, and the list itself is
// updated by a CustomAction{CustomTag: UpdateWordFilterTag} gated on
// the UpdateWordFilterCapability RBAC capability. It never proposes —
// both TextMsg and the filter update resolve immediately.
type WordFilter struct {
	mu     sync.Mutex
	banned map[string]struct{}
}

// UpdateWordFilterCapability is the RBAC capability string
// WordFilter requires of the sender of an update CustomAction, the
// same way the original benchmark gated the equivalent action on a
// Mod role.
const UpdateWordFilterCapability = "UpdateWordFilter"

// NewWordFilter constructs a WordFilter starting with the given
// banned words.
func NewWordFilter(banned ...string) *WordFilter {
	w := &WordFilter{banned: make(map[string]struct{}, len(banned))}
	for _, word := range banned {
		w.banned[word] = struct{}{}
	}
	return w
}

func (*WordFilter) Name() string { return "WordFilter" }

func (*WordFilter) Filter(kind actionmsg.Kind) bool {
	return kind == actionmsg.KindTextMsg || kind == actionmsg.KindCustomAction
}

func (w *WordFilter) Check(action actionmsg.ActionMsg, sender identity.UserID, view GroupView, _ map[string]any, _ time.Time) Decision {
	switch action.Kind {
	case actionmsg.KindTextMsg:
		w.mu.Lock()
		defer w.mu.Unlock()
		for _, word := range strings.Fields(action.Text) {
			if _, ok := w.banned[word]; ok {
				return Failed
			}
		}
		return Passed
	case actionmsg.KindCustomAction:
		if action.CustomTag != UpdateWordFilterTag {
			return Failed
		}
		if !view.Check(sender, UpdateWordFilterCapability) {
			return Failed
		}
		return Passed
	default:
		return Failed
	}
}

// Pass applies a passed filter-update CustomAction's word list. A
// passed TextMsg has no additional side effect here — lib/governance
// applies the message itself once the Policy Engine clears it.
func (w *WordFilter) Pass(action actionmsg.ActionMsg, _ identity.UserID, _ map[string]any) {
	if action.Kind != actionmsg.KindCustomAction {
		return
	}
	words := strings.Fields(string(action.CustomBytes))
	w.mu.Lock()
	defer w.mu.Unlock()
	w.banned = make(map[string]struct{}, len(words))
	for _, word := range words {
		w.banned[word] = struct{}{}
	}
}

func (*WordFilter) Fail(actionmsg.ActionMsg, identity.UserID, map[string]any) {}

// NewUpdateWordFilter builds the CustomAction a holder of
// UpdateWordFilterCapability sends to replace a WordFilter's banned
// word list.
func NewUpdateWordFilter(words []string) actionmsg.ActionMsg {
	return actionmsg.NewCustomAction(UpdateWordFilterTag, []byte(strings.Join(words, " ")))
}
