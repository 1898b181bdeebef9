// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Command mlsgov-client is the Client Session (C9) reference CLI: a
// short-lived process per invocation, reading and writing its
// identity and group state from a local state directory rather than
// holding a long-running session open.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mlsgov/platform/lib/clock"
	"github.com/mlsgov/platform/lib/config"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/session"
	"github.com/mlsgov/platform/lib/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		printUsage()
		return exitUserError
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	switch subcommand {
	case "register":
		return runRegister(args)
	case "create":
		return runCreate(args)
	case "invite":
		return runInvite(args)
	case "accept":
		return runAccept(args)
	case "send":
		return runSend(args)
	case "sync":
		return runSync(args)
	case "read":
		return runRead(args)
	case "version":
		fmt.Printf("mlsgov-client %s\n", version.Info())
		return exitOK
	case "-h", "--help", "help":
		printUsage()
		return exitOK
	default:
		printUsage()
		fmt.Fprintf(os.Stderr, "error: unknown subcommand: %q\n", subcommand)
		return exitUserError
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: mlsgov-client <subcommand> [flags] [args]

Subcommands:
  register <user>                          Register a new identity with the Authentication Service
  create <community> <channel> <name>      Create a group owned by this client
  invite <community> <channel> <user>      Invite user into an existing group
  accept <community> <channel> <group-id>  Accept a pending invite, naming it community/channel locally
  send <community> <channel> <text>        Send a text message to a group
  sync                                      Poll the Delivery Service once for new traffic
  read <community> <channel> [all|last|unread]  Print locally recorded history
  version                                   Print version information

Flags (any subcommand):
  --state-dir <path>   client state directory (default: $MLSGOV_STATE_DIR or ~/.mlsgov/client)
  --as-addr <addr>     Authentication Service address (default: 127.0.0.1:7001)
  --ds-addr <addr>     Delivery Service address (default: 127.0.0.1:7002)
  --json               emit structured JSON instead of human-readable output

Exit codes: 0 success, 1 user error, 2 network error, 3 policy rejection, 4 RBAC rejection.
`)
}

// clientFlags holds the flags every subcommand, "register" included,
// shares: where to find state, which services to dial, and how to
// format output.
type clientFlags struct {
	stateDir string
	asAddr   string
	dsAddr   string
	jsonOut  bool
}

func parseClientFlags(fs *flag.FlagSet) *clientFlags {
	cf := &clientFlags{}
	defaultStateDir := os.Getenv("MLSGOV_STATE_DIR")
	if defaultStateDir == "" {
		defaultStateDir = defaultClientStateDir()
	}
	fs.StringVar(&cf.stateDir, "state-dir", defaultStateDir, "client state directory")
	fs.StringVar(&cf.asAddr, "as-addr", "127.0.0.1:7001", "authentication service address")
	fs.StringVar(&cf.dsAddr, "ds-addr", "127.0.0.1:7002", "delivery service address")
	fs.BoolVar(&cf.jsonOut, "json", false, "emit structured JSON output")
	return cf
}

func defaultClientStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mlsgov/client"
	}
	return home + "/.mlsgov/client"
}

// openClient loads the identity saved by a prior "register" call and
// every previously persisted group, wiring a Client against cf's
// service addresses. It does not start the background sync loop —
// every subcommand here is a single round trip (or a single sync
// tick) within one short-lived process.
func openClient(cf *clientFlags) (*session.Client, error) {
	userID, err := loadWhoAmI(cf.stateDir)
	if err != nil {
		return nil, err
	}

	id, err := session.LoadOrCreateIdentity(cf.stateDir, userID)
	if err != nil {
		return nil, fmt.Errorf("loading identity: %w", err)
	}

	cfg := config.ClientConfig{
		ASAddr:       cf.asAddr,
		DSAddr:       cf.dsAddr,
		StateDir:     cf.stateDir,
		Mode:         config.GovernanceMode,
		SyncInterval: "30s",
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := session.New(cfg, id, logger)
	c.Clock = clock.Real()

	if err := c.LoadGroups(cf.stateDir); err != nil {
		return nil, fmt.Errorf("loading groups: %w", err)
	}
	return c, nil
}

// closeClient persists every known group before releasing c's key
// material, so the next invocation of this short-lived process picks
// up where this one left off.
func closeClient(c *session.Client, cf *clientFlags) error {
	if err := c.SaveGroups(cf.stateDir); err != nil {
		return fmt.Errorf("saving groups: %w", err)
	}
	return c.Close()
}

func runRegister(args []string) int {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	cf := parseClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitUserError
	}
	rest := fs.Args()
	if len(rest) != 1 {
		fs.Usage()
		return emit(cf.jsonOut, result{}, fmt.Errorf("register requires exactly one argument: <user>"))
	}

	userID, err := identity.ParseUserID(rest[0])
	if err != nil {
		return emit(cf.jsonOut, result{}, fmt.Errorf("invalid user id %q: %w", rest[0], err))
	}

	id, err := session.LoadOrCreateIdentity(cf.stateDir, userID)
	if err != nil {
		return emit(cf.jsonOut, result{}, fmt.Errorf("creating identity: %w", err))
	}
	defer id.Close()

	cfg := config.ClientConfig{ASAddr: cf.asAddr, DSAddr: cf.dsAddr, StateDir: cf.stateDir, Mode: config.GovernanceMode, SyncInterval: "30s"}
	c := session.New(cfg, id, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.Clock = clock.Real()

	ctx := context.Background()
	if err := c.Register(ctx); err != nil {
		return emit(cf.jsonOut, result{}, err)
	}
	if err := saveWhoAmI(cf.stateDir, userID); err != nil {
		return emit(cf.jsonOut, result{}, fmt.Errorf("saving identity: %w", err))
	}
	return emit(cf.jsonOut, result{User: userID.String()}, nil)
}

func runCreate(args []string) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	cf := parseClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitUserError
	}
	rest := fs.Args()
	if len(rest) != 3 {
		fs.Usage()
		return emit(cf.jsonOut, result{}, fmt.Errorf("create requires exactly three arguments: <community> <channel> <name>"))
	}
	community, channel, name := rest[0], rest[1], rest[2]

	c, err := openClient(cf)
	if err != nil {
		return emit(cf.jsonOut, result{}, err)
	}
	defer func() {
		if err := closeClient(c, cf); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}()

	g, err := c.CreateGroup(community, channel, name)
	if err != nil {
		return emit(cf.jsonOut, result{}, err)
	}
	return emit(cf.jsonOut, result{Group: g.Group.ID().String()}, nil)
}

func runInvite(args []string) int {
	fs := flag.NewFlagSet("invite", flag.ContinueOnError)
	cf := parseClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitUserError
	}
	rest := fs.Args()
	if len(rest) != 3 {
		fs.Usage()
		return emit(cf.jsonOut, result{}, fmt.Errorf("invite requires exactly three arguments: <community> <channel> <user>"))
	}
	community, channel, userArg := rest[0], rest[1], rest[2]

	recipient, err := identity.ParseUserID(userArg)
	if err != nil {
		return emit(cf.jsonOut, result{}, fmt.Errorf("invalid user id %q: %w", userArg, err))
	}

	c, err := openClient(cf)
	if err != nil {
		return emit(cf.jsonOut, result{}, err)
	}
	defer func() {
		if err := closeClient(c, cf); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}()

	g, ok := c.GroupByName(community, channel)
	if !ok {
		return emit(cf.jsonOut, result{}, fmt.Errorf("no known group %s/%s", community, channel))
	}

	ctx := context.Background()
	if err := c.SyncCredentials(ctx); err != nil {
		return emit(cf.jsonOut, result{}, err)
	}
	if err := c.Invite(ctx, g, recipient); err != nil {
		return emit(cf.jsonOut, result{Group: g.Group.ID().String()}, err)
	}
	return emit(cf.jsonOut, result{Group: g.Group.ID().String()}, nil)
}

// runAccept accepts a pending invite identified by its raw MLS group
// ID (the id the inviter printed when it ran "invite", and the key
// the recipient's sync loop indexed the session under before the
// inviter's UpdateGroupState snapshot arrived) and re-indexes it under
// the given community/channel for later subcommands to address by
// name.
func runAccept(args []string) int {
	fs := flag.NewFlagSet("accept", flag.ContinueOnError)
	cf := parseClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitUserError
	}
	rest := fs.Args()
	if len(rest) != 3 {
		fs.Usage()
		return emit(cf.jsonOut, result{}, fmt.Errorf("accept requires exactly three arguments: <community> <channel> <group-id>"))
	}
	community, channel, groupIDArg := rest[0], rest[1], rest[2]

	groupID, err := identity.ParseGroupID(groupIDArg)
	if err != nil {
		return emit(cf.jsonOut, result{}, fmt.Errorf("invalid group id %q: %w", groupIDArg, err))
	}

	c, err := openClient(cf)
	if err != nil {
		return emit(cf.jsonOut, result{}, err)
	}
	defer func() {
		if err := closeClient(c, cf); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}()

	ctx := context.Background()
	if err := c.SyncOnce(ctx); err != nil {
		return emit(cf.jsonOut, result{}, err)
	}

	g, ok := c.Group(groupID)
	if !ok {
		return emit(cf.jsonOut, result{}, fmt.Errorf("no pending invite for group %s", groupIDArg))
	}
	if err := c.Accept(ctx, g); err != nil {
		return emit(cf.jsonOut, result{Group: g.Group.ID().String()}, err)
	}

	g.Community = community
	g.Channel = channel
	c.AddGroup(community, channel, g)
	return emit(cf.jsonOut, result{Group: g.Group.ID().String()}, nil)
}

func runSend(args []string) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	cf := parseClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitUserError
	}
	rest := fs.Args()
	if len(rest) != 3 {
		fs.Usage()
		return emit(cf.jsonOut, result{}, fmt.Errorf("send requires exactly three arguments: <community> <channel> <text>"))
	}
	community, channel, text := rest[0], rest[1], rest[2]

	c, err := openClient(cf)
	if err != nil {
		return emit(cf.jsonOut, result{}, err)
	}
	defer func() {
		if err := closeClient(c, cf); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}()

	g, ok := c.GroupByName(community, channel)
	if !ok {
		return emit(cf.jsonOut, result{}, fmt.Errorf("no known group %s/%s", community, channel))
	}

	ctx := context.Background()
	if err := c.SendText(ctx, g, text); err != nil {
		return emit(cf.jsonOut, result{Group: g.Group.ID().String()}, err)
	}
	return emit(cf.jsonOut, result{Group: g.Group.ID().String(), Position: g.SyncPosition()}, nil)
}

func runSync(args []string) int {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	cf := parseClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitUserError
	}

	c, err := openClient(cf)
	if err != nil {
		return emit(cf.jsonOut, result{}, err)
	}
	defer func() {
		if err := closeClient(c, cf); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}()

	ctx := context.Background()
	if err := c.SyncOnce(ctx); err != nil {
		return emit(cf.jsonOut, result{}, err)
	}
	return emit(cf.jsonOut, result{}, nil)
}

func runRead(args []string) int {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	cf := parseClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitUserError
	}
	rest := fs.Args()
	if len(rest) < 2 || len(rest) > 3 {
		fs.Usage()
		return emit(cf.jsonOut, result{}, fmt.Errorf("read requires <community> <channel> [all|last|unread]"))
	}
	community, channel := rest[0], rest[1]
	mode := session.ReadAll
	if len(rest) == 3 {
		mode = session.ReadMode(rest[2])
	}

	c, err := openClient(cf)
	if err != nil {
		return emit(cf.jsonOut, result{}, err)
	}
	defer func() {
		if err := closeClient(c, cf); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}()

	g, ok := c.GroupByName(community, channel)
	if !ok {
		return emit(cf.jsonOut, result{}, fmt.Errorf("no known group %s/%s", community, channel))
	}

	entries := c.Read(g, mode)
	messages := make([]messageJSON, len(entries))
	for i, entry := range entries {
		messages[i] = messageJSON{Position: entry.Position, Sender: entry.Sender.String(), Text: entry.Text}
	}
	return emit(cf.jsonOut, result{Group: g.Group.ID().String(), Messages: messages}, nil)
}
