// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package actionpipeline

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mlsgov/platform/lib/actionmsg"
	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/identity"
)

// ErrInvalidActionSignature is returned by SignedAction.Verify when
// the signature does not match the claimed sender's verification key.
var ErrInvalidActionSignature = errors.New("actionpipeline: invalid action signature")

// SignedAction wraps an ActionMsg with its sender's own Ed25519
// signature, independent of the MLS group key that encrypts it in
// transit. A group's symmetric epoch secret authenticates senders
// only to current members of that epoch; a SignedAction stays
// verifiable by anyone holding the sender's Credential even after the
// group has since rotated past that epoch, which is what lets a
// Report action carry a past action as portable evidence.
type SignedAction struct {
	Sender    identity.UserID    `cbor:"1,keyasint"`
	GroupID   identity.GroupID   `cbor:"2,keyasint"`
	Action    actionmsg.ActionMsg `cbor:"3,keyasint"`
	Signature []byte             `cbor:"4,keyasint"`
}

// signingBytes returns the canonical encoding of s with Signature
// cleared.
func (s SignedAction) signingBytes() ([]byte, error) {
	unsigned := s
	unsigned.Signature = nil
	return codec.Marshal(unsigned)
}

// SignAction constructs a SignedAction over action, signed by
// signerKey on behalf of sender in group.
func SignAction(signerKey ed25519.PrivateKey, sender identity.UserID, group identity.GroupID, action actionmsg.ActionMsg) (SignedAction, error) {
	signed := SignedAction{Sender: sender, GroupID: group, Action: action}
	payload, err := signed.signingBytes()
	if err != nil {
		return SignedAction{}, fmt.Errorf("actionpipeline: canonicalizing signed action: %w", err)
	}
	signed.Signature = ed25519.Sign(signerKey, payload)
	return signed, nil
}

// Verify checks s.Signature against verifyKey.
func (s SignedAction) Verify(verifyKey ed25519.PublicKey) error {
	payload, err := s.signingBytes()
	if err != nil {
		return fmt.Errorf("actionpipeline: canonicalizing signed action: %w", err)
	}
	if !ed25519.Verify(verifyKey, payload, s.Signature) {
		return ErrInvalidActionSignature
	}
	return nil
}
