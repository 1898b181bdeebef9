// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mlsgov/platform/lib/identity"
)

const whoamiFile = "whoami"

// saveWhoAmI records the registered username in stateDir so later
// invocations of this binary (which each run as a fresh process) know
// whose identity to load without requiring the username on every
// command line.
func saveWhoAmI(stateDir string, userID identity.UserID) error {
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(stateDir, whoamiFile), []byte(userID.String()), 0600)
}

// loadWhoAmI reads the username saved by a prior "register" call.
func loadWhoAmI(stateDir string) (identity.UserID, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, whoamiFile))
	if err != nil {
		if os.IsNotExist(err) {
			return identity.UserID{}, fmt.Errorf("no identity found in %s; run %q first", stateDir, "register <user>")
		}
		return identity.UserID{}, err
	}
	return identity.ParseUserID(strings.TrimSpace(string(data)))
}
