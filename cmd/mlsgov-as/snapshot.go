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

const snapshotFile = "credentials.cbor.zst"

// loadSnapshot restores a credential.Store from stateDir's persisted
// snapshot, if one exists. A missing snapshot is not an error — it
// means a fresh store with no registrations yet.
func loadSnapshot(stateDir string) (*credential.Store, error) {
	store := credential.NewStore()

	var deltas []credential.Delta
	if err := snapshotio.Load(filepath.Join(stateDir, snapshotFile), &deltas); err != nil {
		return nil, fmt.Errorf("mlsgov-as: loading credential snapshot: %w", err)
	}
	store.Restore(deltas)
	return store, nil
}

// saveSnapshot persists store's complete delta log to stateDir,
// overwriting any prior snapshot.
func saveSnapshot(stateDir string, store *credential.Store) error {
	if err := snapshotio.Save(filepath.Join(stateDir, snapshotFile), store.Export()); err != nil {
		return fmt.Errorf("mlsgov-as: saving credential snapshot: %w", err)
	}
	return nil
}

// runSnapshotLoop persists store to stateDir every interval until ctx
// is cancelled, and once more on the way out so a clean shutdown never
// loses the last interval's registrations.
func runSnapshotLoop(ctx context.Context, c clock.Clock, stateDir string, store *credential.Store, interval time.Duration, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			if err := saveSnapshot(stateDir, store); err != nil {
				logger.Error("final credential snapshot failed", "error", err)
			}
			return
		case <-c.After(interval):
			if err := saveSnapshot(stateDir, store); err != nil {
				logger.Error("credential snapshot failed", "error", err)
			}
		}
	}
}
