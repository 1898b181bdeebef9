// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mlsgov/platform/lib/actionpipeline"
	"github.com/mlsgov/platform/lib/session"
	"github.com/mlsgov/platform/lib/wire"
)

// exitCode values. 0 is success; the rest classify a failure so a
// calling script (or the benchmark harness) can branch on outcome
// without parsing stderr text.
const (
	exitOK           = 0
	exitUserError    = 1
	exitNetworkError = 2
	exitPolicyReject = 3
	exitRBACReject   = 4
)

// exitCodeFor classifies err into one of the CLI's exit codes. A nil
// err means success and is never passed in.
func exitCodeFor(err error) int {
	if errors.Is(err, session.ErrActionDeferred) {
		return exitOK
	}

	var pipelineErr *actionpipeline.Error
	if errors.As(err, &pipelineErr) {
		switch pipelineErr.Outcome {
		case wire.OutcomeRBAC:
			return exitRBACReject
		case wire.OutcomePolicy, wire.OutcomeConflict:
			return exitPolicyReject
		case wire.OutcomeTransport:
			return exitNetworkError
		default:
			return exitUserError
		}
	}

	return exitUserError
}

// result is the JSON shape every subcommand emits with --json. Fields
// are omitted when not meaningful for that subcommand.
type result struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Deferred bool   `json:"deferred,omitempty"`

	User     string `json:"user,omitempty"`
	Group    string `json:"group,omitempty"`
	Position uint64 `json:"position,omitempty"`

	Messages []messageJSON `json:"messages,omitempty"`
}

type messageJSON struct {
	Position uint64 `json:"position"`
	Sender   string `json:"sender"`
	Text     string `json:"text"`
}

// emit prints res as either a human-readable line or JSON, per
// jsonOut, and returns the exit code the caller should use.
func emit(jsonOut bool, res result, err error) int {
	if err != nil {
		res.OK = false
		res.Error = err.Error()
		res.Deferred = errors.Is(err, session.ErrActionDeferred)
	} else {
		res.OK = true
	}

	if jsonOut {
		encoded, marshalErr := json.Marshal(res)
		if marshalErr != nil {
			fmt.Fprintf(os.Stderr, "error: encoding result: %v\n", marshalErr)
			return exitUserError
		}
		fmt.Println(string(encoded))
	} else {
		printHuman(res)
	}

	if err != nil {
		if res.Deferred {
			return exitOK
		}
		return exitCodeFor(err)
	}
	return exitOK
}

func printHuman(res result) {
	if !res.OK {
		if res.Deferred {
			fmt.Fprintln(os.Stderr, "deferred: action queued pending policy resolution")
			return
		}
		fmt.Fprintf(os.Stderr, "error: %s\n", res.Error)
		return
	}
	if res.Group != "" {
		fmt.Printf("group: %s\n", res.Group)
	}
	if res.Position != 0 {
		fmt.Printf("position: %d\n", res.Position)
	}
	for _, m := range res.Messages {
		fmt.Printf("[%d] %s: %s\n", m.Position, m.Sender, m.Text)
	}
	if res.Group == "" && res.Position == 0 && len(res.Messages) == 0 {
		fmt.Println("ok")
	}
}
