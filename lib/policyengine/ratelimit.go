// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package policyengine

import (
	"sync"
	"time"

	"github.com/mlsgov/platform/lib/actionmsg"
	"github.com/mlsgov/platform/lib/identity"
)

// RateLimit rejects a sender's ordered actions once more than Limit
// have arrived from them within Window. It never proposes: Check is
// an immediate Passed/Failed decision backed by the policy's own
// per-sender window state rather than the Engine's per-proposal
// scratch, since a rate limit has no notion of a single action
// awaiting resolution.
type RateLimit struct {
	Limit  int
	Window time.Duration

	mu      sync.Mutex
	windows map[identity.UserID][]time.Time
}

// NewRateLimit constructs a RateLimit allowing at most limit actions
// per sender in any rolling window of the given duration.
func NewRateLimit(limit int, window time.Duration) *RateLimit {
	return &RateLimit{
		Limit:   limit,
		Window:  window,
		windows: make(map[identity.UserID][]time.Time),
	}
}

func (r *RateLimit) Name() string { return "RateLimit" }

// Filter applies RateLimit to every action kind.
func (r *RateLimit) Filter(actionmsg.Kind) bool { return true }

func (r *RateLimit) Check(_ actionmsg.ActionMsg, sender identity.UserID, _ GroupView, _ map[string]any, now time.Time) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.Window)
	timestamps := r.windows[sender]
	kept := timestamps[:0]
	for _, t := range timestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= r.Limit {
		r.windows[sender] = kept
		return Failed
	}

	r.windows[sender] = append(kept, now)
	return Passed
}

func (r *RateLimit) Pass(actionmsg.ActionMsg, identity.UserID, map[string]any) {}
func (r *RateLimit) Fail(actionmsg.ActionMsg, identity.UserID, map[string]any) {}
