// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"testing"
	"time"

	"github.com/mlsgov/platform/lib/testutil"
)

func TestRun_DeliversQueuedWelcomeInBackground(t *testing.T) {
	pair := newTestPair(t)
	alice := pair.client("alice")
	bob := pair.client("bob")
	ctx := context.Background()

	ownerGroup, err := alice.CreateGroup("friends", "general", "General")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := bob.UploadOwnKeyPackage(ctx); err != nil {
		t.Fatalf("UploadOwnKeyPackage: %v", err)
	}
	if err := alice.Invite(ctx, ownerGroup, bob.Identity.UserID); err != nil {
		t.Fatalf("Invite: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := bob.Run(runCtx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer func() {
		cancel()
		bob.Close()
	}()

	waitFor(t, 2*time.Second, func() bool {
		_, ok := bob.Group(ownerGroup.Group.ID())
		return ok
	})
}

func TestSyncOnce_NetworkErrorSurfacesToCaller(t *testing.T) {
	pair := newTestPair(t)
	alice := pair.client("alice")
	alice.Config.DSAddr = "127.0.0.1:1"

	if err := alice.SyncOnce(context.Background()); err == nil {
		t.Fatal("SyncOnce against an unreachable Delivery Service address returned nil error")
	}
}

func TestRunSyncLoop_ClosesSyncDoneOnContextCancel(t *testing.T) {
	pair := newTestPair(t)
	alice := pair.client("alice")

	runCtx, cancel := context.WithCancel(context.Background())
	if err := alice.Run(runCtx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	cancel()

	testutil.RequireClosed(t, alice.syncDone, 2*time.Second, "runSyncLoop exiting after its context is canceled")
}

func TestClose_StopsBackgroundLoopAndReleasesIdentity(t *testing.T) {
	pair := newTestPair(t)
	alice := pair.client("alice")

	runCtx, cancel := context.WithCancel(context.Background())
	if err := alice.Run(runCtx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	cancel()

	done := make(chan error, 1)
	go func() { done <- alice.Close() }()

	if err := testutil.RequireReceive(t, done, 2*time.Second, "Close returning after the sync loop's context is canceled"); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
