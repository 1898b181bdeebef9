// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Command mlsgov-as runs the Authentication Service (C2): credential
// registration, lookup, bulk sync, and operator-issued deplatforming.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mlsgov/platform/lib/asdispatch"
	"github.com/mlsgov/platform/lib/clock"
	"github.com/mlsgov/platform/lib/config"
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
		fmt.Printf("mlsgov-as %s\n", version.Info())
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

	signingKey, err := loadOrCreateSigningKey(cfg.AS.StateDir)
	if err != nil {
		return err
	}

	store, err := loadSnapshot(cfg.AS.StateDir)
	if err != nil {
		return err
	}
	logger.Info("credential snapshot loaded", "registered", store.Len())

	dispatcher := asdispatch.New(store, signingKey)

	listener, err := transport.NewTCPListener(cfg.AS.ListenAddr)
	if err != nil {
		return fmt.Errorf("mlsgov-as: listening on %s: %w", cfg.AS.ListenAddr, err)
	}
	defer listener.Close()

	var adminListener *transport.TCPListener
	if cfg.AS.AdminListenAddr != "" {
		adminListener, err = transport.NewTCPListener(cfg.AS.AdminListenAddr)
		if err != nil {
			return fmt.Errorf("mlsgov-as: listening on admin address %s: %w", cfg.AS.AdminListenAddr, err)
		}
		defer adminListener.Close()
	}

	snapshotInterval, err := time.ParseDuration(cfg.AS.SnapshotInterval)
	if err != nil {
		return fmt.Errorf("mlsgov-as: parsing snapshot_interval: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	realClock := clock.Real()
	dialer := &transport.TCPDialer{Timeout: 10 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		runSnapshotLoop(ctx, realClock, cfg.AS.StateDir, store, snapshotInterval, logger)
	}()

	go serve(ctx, listener, func(conn *transport.Conn) {
		handleClientConn(conn, dispatcher, logger)
	}, logger)

	if adminListener != nil {
		logger.Warn("admin deplatform listener enabled — ensure it is not reachable from ordinary clients",
			"admin_addr", cfg.AS.AdminListenAddr)
		go serve(ctx, adminListener, func(conn *transport.Conn) {
			handleAdminConn(ctx, conn, dispatcher, dialer, cfg.AS.DSAddr, func() int64 { return realClock.Now().Unix() }, logger)
		}, logger)
	}

	logger.Info("authentication service running",
		"listen_addr", listener.Address(),
		"environment", cfg.Environment,
	)

	<-ctx.Done()
	logger.Info("shutting down")
	<-done

	return nil
}

// loadConfig resolves the config file path from --config or
// MLSGOV_CONFIG, matching lib/config's "no fallback" discipline.
func loadConfig(flagPath string) (*config.Config, error) {
	if flagPath != "" {
		return config.LoadFile(flagPath)
	}
	return config.Load()
}
