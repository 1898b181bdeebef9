// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mlsgov/platform/lib/clock"
	"github.com/mlsgov/platform/lib/config"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/transport"
)

// Client is one user's runtime: their identity, a verify-key cache
// mirroring the Authentication Service, and one GroupSession per group
// they belong to. A Client is safe for concurrent use.
type Client struct {
	Config config.ClientConfig
	Clock  clock.Clock
	Dialer transport.Dialer
	Logger *slog.Logger

	Identity   *LocalIdentity
	VerifyKeys *VerifyKeyCache

	mu     sync.RWMutex
	groups map[identity.GroupID]*GroupSession
	byName map[string]identity.GroupID

	syncCancel context.CancelFunc
	syncDone   chan struct{}
}

// New constructs a Client for identity, dialing the Authentication
// Service and Delivery Service addresses in cfg. It does not itself
// start the background sync loop — call Run for that.
func New(cfg config.ClientConfig, id *LocalIdentity, logger *slog.Logger) *Client {
	return &Client{
		Config:     cfg,
		Clock:      clock.Real(),
		Dialer:     &transport.TCPDialer{Timeout: 10 * time.Second},
		Logger:     logger,
		Identity:   id,
		VerifyKeys: NewVerifyKeyCache(),
		groups:     make(map[identity.GroupID]*GroupSession),
		byName:     make(map[string]identity.GroupID),
	}
}

// groupKey forms the community/channel lookup key used by byName.
func groupKey(community, channel string) string {
	return community + "/" + channel
}

// AddGroup registers session under community/channel, indexing it by
// both its GroupID and its human-readable name.
func (c *Client) AddGroup(community, channel string, session *GroupSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[session.Group.ID()] = session
	c.byName[groupKey(community, channel)] = session.Group.ID()
}

// Group looks up a known GroupSession by ID.
func (c *Client) Group(id identity.GroupID) (*GroupSession, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.groups[id]
	return g, ok
}

// GroupByName looks up a known GroupSession by its community/channel
// name.
func (c *Client) GroupByName(community, channel string) (*GroupSession, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[groupKey(community, channel)]
	if !ok {
		return nil, false
	}
	g, ok := c.groups[id]
	return g, ok
}

// Groups returns every known GroupSession, in no particular order.
func (c *Client) Groups() []*GroupSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*GroupSession, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, g)
	}
	return out
}

// dialAS opens a fresh connection to the Authentication Service. Every
// AS/DS call in lib/session — including sync.go's periodic polling —
// dials once, writes one frame, reads one reply, and closes; there is
// no long-lived request/response connection.
func (c *Client) dialAS(ctx context.Context) (*transport.Conn, error) {
	conn, err := c.Dialer.DialContext(ctx, c.Config.ASAddr)
	if err != nil {
		return nil, fmt.Errorf("session: dialing authentication service: %w", err)
	}
	return conn, nil
}

// dialDS opens a fresh connection to the Delivery Service.
func (c *Client) dialDS(ctx context.Context) (*transport.Conn, error) {
	conn, err := c.Dialer.DialContext(ctx, c.Config.DSAddr)
	if err != nil {
		return nil, fmt.Errorf("session: dialing delivery service: %w", err)
	}
	return conn, nil
}

// Close shuts down the client's background sync loop (if running) and
// releases its identity's key material.
func (c *Client) Close() error {
	if c.syncCancel != nil {
		c.syncCancel()
		<-c.syncDone
	}
	return c.Identity.Close()
}
