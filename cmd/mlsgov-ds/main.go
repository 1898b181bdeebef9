// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Command mlsgov-ds runs the Delivery Service (C3/C4): key package
// storage, ordered and unordered message relay, and block-list
// enforcement against deplatformed users.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mlsgov/platform/lib/clock"
	"github.com/mlsgov/platform/lib/config"
	"github.com/mlsgov/platform/lib/dsdispatch"
	"github.com/mlsgov/platform/lib/dsstate"
	"github.com/mlsgov/platform/lib/version"
	"github.com/mlsgov/platform/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to mlsgov config file (overrides MLSGOV_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("mlsgov-ds %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	asPublicKeyBytes, err := hex.DecodeString(cfg.DS.ASPublicKey)
	if err != nil {
		return fmt.Errorf("mlsgov-ds: decoding ds.as_public_key: %w", err)
	}
	asPublicKey := ed25519.PublicKey(asPublicKeyBytes)

	blockList, err := loadBlockList(cfg.DS.StateDir)
	if err != nil {
		return err
	}
	logger.Info("block list snapshot loaded", "blocked", blockList.Len())

	state := dsstate.New(cfg.DS.MaxKeyPackagesPerUser)
	state.BlockList = blockList

	dispatcher := dsdispatch.New(state, cfg.DS.MaxQueueDepth)

	listener, err := transport.NewTCPListener(cfg.DS.ListenAddr)
	if err != nil {
		return fmt.Errorf("mlsgov-ds: listening on %s: %w", cfg.DS.ListenAddr, err)
	}
	defer listener.Close()

	snapshotInterval, err := time.ParseDuration(cfg.DS.SnapshotInterval)
	if err != nil {
		return fmt.Errorf("mlsgov-ds: parsing snapshot_interval: %w", err)
	}
	gcSweepInterval, err := time.ParseDuration(cfg.DS.GCSweepInterval)
	if err != nil {
		return fmt.Errorf("mlsgov-ds: parsing gc_sweep_interval: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	realClock := clock.Real()
	dialer := &transport.TCPDialer{Timeout: 10 * time.Second}

	snapshotDone := make(chan struct{})
	go func() {
		defer close(snapshotDone)
		runSnapshotLoop(ctx, realClock, cfg.DS.StateDir, blockList, snapshotInterval, logger)
	}()

	gcStop := make(chan struct{})
	gcDone := make(chan struct{})
	go func() {
		defer close(gcDone)
		state.RunGCSweeps(realClock, gcSweepInterval, gcStop)
	}()
	go func() {
		<-ctx.Done()
		close(gcStop)
	}()

	go runCredentialSyncLoop(ctx, realClock, dialer, cfg.DS.ASAddr, state, snapshotInterval, logger)

	go serve(ctx, listener, func(conn *transport.Conn) {
		handleConn(conn, dispatcher, asPublicKey, logger)
	}, logger)

	logger.Info("delivery service running",
		"listen_addr", listener.Address(),
		"environment", cfg.Environment,
	)

	<-ctx.Done()
	logger.Info("shutting down")
	<-snapshotDone
	<-gcDone

	return nil
}

func loadConfig(flagPath string) (*config.Config, error) {
	if flagPath != "" {
		return config.LoadFile(flagPath)
	}
	return config.Load()
}
