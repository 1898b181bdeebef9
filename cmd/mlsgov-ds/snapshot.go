// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mlsgov/platform/lib/clock"
	"github.com/mlsgov/platform/lib/credential"
	"github.com/mlsgov/platform/lib/snapshotio"
)

const blockListFile = "blocklist.cbor.zst"

// loadBlockList restores a BlockList from stateDir's persisted
// snapshot, if one exists. Groups, queues, and the ordered log are
// deliberately not persisted — they are bounded by delivery, not
// membership, and a restart simply loses in-flight traffic the same
// way a network partition would: clients recover through a fresh
// Welcome or UpdateGroupState catch-up, per the documented failure
// semantics for Delivery Service state. The block list is the one
// piece of Delivery Service state whose loss has a lasting security
// consequence — a deplatformed user regaining delivery after a
// restart — so it alone is snapshotted.
func loadBlockList(stateDir string) (*credential.BlockList, error) {
	list := credential.NewBlockList()

	var fingerprints [][32]byte
	if err := snapshotio.Load(filepath.Join(stateDir, blockListFile), &fingerprints); err != nil {
		return nil, fmt.Errorf("mlsgov-ds: loading block list snapshot: %w", err)
	}
	list.Restore(fingerprints)
	return list, nil
}

func saveBlockList(stateDir string, list *credential.BlockList) error {
	if err := snapshotio.Save(filepath.Join(stateDir, blockListFile), list.Snapshot()); err != nil {
		return fmt.Errorf("mlsgov-ds: saving block list snapshot: %w", err)
	}
	return nil
}

// runSnapshotLoop persists list to stateDir every interval until ctx
// is cancelled, and once more on the way out.
func runSnapshotLoop(ctx context.Context, c clock.Clock, stateDir string, list *credential.BlockList, interval time.Duration, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			if err := saveBlockList(stateDir, list); err != nil {
				logger.Error("final block list snapshot failed", "error", err)
			}
			return
		case <-c.After(interval):
			if err := saveBlockList(stateDir, list); err != nil {
				logger.Error("block list snapshot failed", "error", err)
			}
		}
	}
}
