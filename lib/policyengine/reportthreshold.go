// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package policyengine

import (
	"time"

	"github.com/mlsgov/platform/lib/actionmsg"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/zeebo/blake3"
)

// reportKeyDomainKey is the BLAKE3 keyed-hash domain separator for
// ReportThreshold.Key, so the reported-action grouping key can never
// collide with a hash computed for an unrelated purpose elsewhere in
// this codebase even over identical input bytes.
var reportKeyDomainKey = [32]byte{
	'm', 'l', 's', 'g', 'o', 'v', '.', 'p', 'o', 'l', 'i', 'c', 'y', 'e', 'n', 'g',
	'i', 'n', 'e', '.', 'r', 'e', 'p', 'o', 'r', 't', '-', 'k', 'e', 'y', 0, 0,
}

// ReportThreshold escalates a reported action once K distinct
// reporters have flagged it. It implements KeyedPolicy so repeated
// Report actions against the same reported bytes merge into one
// ProposedAction's reporter set instead of spawning a new proposal
// per report.
type ReportThreshold struct {
	// K is the number of distinct reporters required to escalate.
	K int

	// Escalate runs when the threshold is reached, receiving the
	// reported action's bytes and the accumulated reasons. A nil
	// Escalate is a no-op; lib/actionpipeline wires this to emit a
	// moderation CustomAction.
	Escalate func(reportedAction []byte, reasons []string)
}

func (r *ReportThreshold) Name() string { return "ReportThreshold" }

func (r *ReportThreshold) Filter(kind actionmsg.Kind) bool {
	return kind == actionmsg.KindReport
}

// Key groups reports by the reported action's content hash.
func (r *ReportThreshold) Key(action actionmsg.ActionMsg) string {
	hasher, err := blake3.NewKeyed(reportKeyDomainKey[:])
	if err != nil {
		panic("policyengine: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(action.ReportedAction)
	return string(hasher.Sum(nil))
}

func (r *ReportThreshold) Check(action actionmsg.ActionMsg, sender identity.UserID, _ GroupView, scratch map[string]any, _ time.Time) Decision {
	reporters, _ := scratch["reporters"].(map[identity.UserID]struct{})
	if reporters == nil {
		reporters = make(map[identity.UserID]struct{})
		scratch["reporters"] = reporters
	}
	reporters[sender] = struct{}{}

	reasons, _ := scratch["reasons"].([]string)
	if action.ReportReason != "" {
		reasons = append(reasons, action.ReportReason)
		scratch["reasons"] = reasons
	}

	if len(reporters) >= r.K {
		return Passed
	}
	return Proposed
}

func (r *ReportThreshold) Pass(action actionmsg.ActionMsg, _ identity.UserID, scratch map[string]any) {
	if r.Escalate == nil {
		return
	}
	reasons, _ := scratch["reasons"].([]string)
	r.Escalate(action.ReportedAction, reasons)
}

func (r *ReportThreshold) Fail(actionmsg.ActionMsg, identity.UserID, map[string]any) {}
