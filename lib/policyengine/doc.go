// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package policyengine implements the client-side Policy Engine: a
// pluggable registry of Policy values, each able to filter the
// actions it cares about and decide Passed, Failed, or Proposed for
// one. An action a policy marks Proposed is held in a bounded queue
// and re-checked — on every ordered-message arrival, on a periodic
// tick, or when an explicit Vote action references it — until it
// resolves to Passed or Failed, or its time-to-live expires.
//
// Determinism matters here: two honest clients holding the same
// SharedGroupState and running the same re-evaluation must reach the
// same verdict for the same proposal at the same logical point, since
// the Engine's decisions (not server authority) are what keeps
// governance state converged. Evaluate always walks policies in the
// caller-supplied list order, and EvaluateAllProposed always walks
// queued proposals in insertion order.
//
// Five reference policies ship in this package, three ported directly
// from the benchmark harness this system is modeled on
// (original_source/corelib/src/policyengine/policies.rs) and two
// added for this platform's own moderation surface:
//
//   - MajorityVoteOnNameChange: ports VoteOnNameChangePolicy. A
//     RenameGroup proposal passes once strictly more than half the
//     group votes yes.
//   - ReputationRename: ports ReputationNameChangePolicy. An
//     immediate pass/fail gate keyed on sender reputation.
//   - WordFilter: ports WordFilterPolicy. Filters TextMsg against a
//     banned-word set and updates that set via a CustomAction gated
//     on the UpdateWordFilterCapability RBAC capability (the
//     original gates the same update on a Mod role).
//   - RateLimit and ReportThreshold are this platform's own
//     additions, not present in the benchmark harness: RateLimit
//     never proposes — it is an immediate pass/fail gate keyed on a
//     rolling per-sender window — while ReportThreshold accumulates
//     distinct reporters for the same reported action as a Proposed
//     entry, the same shape MajorityVoteOnNameChange uses for votes.
package policyengine
