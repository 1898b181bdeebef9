// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package actionmsg

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/identity"
)

// ErrInvalidActionSignature is returned by Verify when a
// VerifiableAction's signature does not match the claimed sender's
// verify key.
var ErrInvalidActionSignature = errors.New("actionmsg: invalid action signature")

// VerifiableAction binds a Sender to an ActionMsg with the sender's
// Ed25519 signature over their canonical CBOR encoding.
type VerifiableAction struct {
	Sender    identity.UserID `cbor:"1,keyasint"`
	Action    ActionMsg       `cbor:"2,keyasint"`
	Signature []byte          `cbor:"3,keyasint"`
}

// signingBytes returns the canonical CBOR encoding of va with
// Signature cleared.
func (va VerifiableAction) signingBytes() ([]byte, error) {
	unsigned := va
	unsigned.Signature = nil
	payload, err := codec.Marshal(unsigned)
	if err != nil {
		return nil, fmt.Errorf("actionmsg: encoding signing payload: %w", err)
	}
	return payload, nil
}

// Sign constructs a signed VerifiableAction naming sender as the
// action's author, using senderKey to produce the signature.
func Sign(senderKey ed25519.PrivateKey, sender identity.UserID, action ActionMsg) (*VerifiableAction, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}
	va := VerifiableAction{Sender: sender, Action: action}
	payload, err := va.signingBytes()
	if err != nil {
		return nil, err
	}
	va.Signature = ed25519.Sign(senderKey, payload)
	return &va, nil
}

// Verify checks that va's signature was produced by the holder of
// senderVerifyKey over va's Sender and Action.
func Verify(senderVerifyKey ed25519.PublicKey, va *VerifiableAction) error {
	payload, err := va.signingBytes()
	if err != nil {
		return err
	}
	if !ed25519.Verify(senderVerifyKey, payload, va.Signature) {
		return ErrInvalidActionSignature
	}
	return nil
}

// Encode returns va's canonical CBOR encoding, including its
// signature — the form embedded in a Report action's ReportedAction
// field, which travels MLS-encrypted like every other action.
func (va *VerifiableAction) Encode() ([]byte, error) {
	encoded, err := codec.Marshal(va)
	if err != nil {
		return nil, fmt.Errorf("actionmsg: encoding verifiable action: %w", err)
	}
	return encoded, nil
}

// Decode parses a CBOR-encoded VerifiableAction previously produced by
// Encode. It does not verify the signature; callers must call Verify
// separately once they know which key to verify against.
func Decode(data []byte) (*VerifiableAction, error) {
	var va VerifiableAction
	if err := codec.Unmarshal(data, &va); err != nil {
		return nil, fmt.Errorf("actionmsg: decoding verifiable action: %w", err)
	}
	return &va, nil
}
