// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package asdispatch implements the Authentication Service's
// operations (C2's handler surface): registration, credential lookup,
// bulk sync, and deplatforming. It plays the same role for the
// Authentication Service that lib/dsdispatch plays for the Delivery
// Service — a thin adapter from [wire.OnWireMessage] requests to a
// shared [credential.Store].
package asdispatch

import (
	"crypto/ed25519"

	"github.com/mlsgov/platform/lib/credential"
	"github.com/mlsgov/platform/lib/wire"
)

// Dispatcher runs the Authentication Service's operations against a
// shared Store, signing new credentials and deplatform notices with
// SigningKey.
type Dispatcher struct {
	store      *credential.Store
	signingKey ed25519.PrivateKey
}

// New creates a Dispatcher backed by store, signing issued credentials
// and deplatform notices with signingKey.
func New(store *credential.Store, signingKey ed25519.PrivateKey) *Dispatcher {
	return &Dispatcher{store: store, signingKey: signingKey}
}

// Register implements register(user, verify_key): req.User names the
// user and req.Credential carries the caller's VerifyKey, unsigned
// (its UserID and Signature fields are ignored). On success the reply's Credential
// is the Authentication Service's signed record; the caller persists
// it and presents it to the Delivery Service and to other clients
// going forward.
func (d *Dispatcher) Register(req wire.OnWireMessage) wire.OnWireMessage {
	if req.Credential == nil {
		return wire.Ack(wire.KindAck, wire.OutcomeCodec, "missing credential")
	}

	signed, err := credential.Sign(d.signingKey, req.User.String(), req.Credential.VerifyKey)
	if err != nil {
		return wire.Ack(wire.KindAck, wire.OutcomeFatal, err.Error())
	}

	if _, err := d.store.Register(*signed); err != nil {
		return wire.Ack(wire.KindAck, wire.OutcomeAuth, err.Error())
	}

	return wire.OnWireMessage{Kind: wire.KindAck, User: req.User, Credential: signed}
}

// Lookup implements lookup_credential(user).
func (d *Dispatcher) Lookup(req wire.OnWireMessage) wire.OnWireMessage {
	cred, ok := d.store.Lookup(req.User.String())
	if !ok {
		return wire.OnWireMessage{Kind: wire.KindCredentialLookupResult, User: req.User, Found: false}
	}
	return wire.OnWireMessage{Kind: wire.KindCredentialLookupResult, User: req.User, Found: true, Credential: &cred}
}

// SyncCredentials implements sync_credentials(since): every Delta with
// Sequence strictly greater than req.Since, in log order. req.Since
// = -1 requests a full sync.
func (d *Dispatcher) SyncCredentials(req wire.OnWireMessage) wire.OnWireMessage {
	deltas := d.store.SyncSince(req.Since)
	return wire.OnWireMessage{Kind: wire.KindCredentialSyncResult, CredentialDeltas: deltas}
}

// Deplatform implements deplatform(user): removes user's credential
// from the store and returns a signed [credential.DeplatformNotice]
// bearing their fingerprint, ready to be broadcast to the Delivery
// Service over KindDeplatformNotice. Returns an error if user was
// never registered or has already been deplatformed — callers decide
// whether that is worth surfacing to an operator.
func (d *Dispatcher) Deplatform(user string, now int64) ([]byte, error) {
	fingerprint, err := d.store.Deplatform(user)
	if err != nil {
		return nil, err
	}

	notice := &credential.DeplatformNotice{
		Fingerprints: [][32]byte{fingerprint},
		IssuedAt:     now,
	}
	return credential.SignDeplatformNotice(d.signingKey, notice)
}
