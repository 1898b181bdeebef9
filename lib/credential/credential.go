// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mlsgov/platform/lib/codec"
	"github.com/zeebo/blake3"
)

// signatureSize is the fixed size of an Ed25519 signature.
const signatureSize = ed25519.SignatureSize // 64 bytes

// fingerprintDomainKey is the BLAKE3 keyed-hash domain separator for
// Credential.Fingerprint, so a fingerprint can never collide with a
// hash computed for an unrelated purpose over the same bytes elsewhere
// in this codebase.
var fingerprintDomainKey = [32]byte{
	'm', 'l', 's', 'g', 'o', 'v', '.', 'c', 'r', 'e', 'd', 'e', 'n', 't', 'i', 'a',
	'l', '.', 'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0,
}

// Credential is the immutable identity record created at registration:
// a UserId bound to a verification key by the Authentication Service's
// own signature. Once signed, a Credential never changes — a user who
// wants a new verification key must register a new UserId.
type Credential struct {
	// UserID is the registering user's identifier.
	UserID string `cbor:"1,keyasint"`

	// VerifyKey is the user's long-lived Ed25519 public key. Clients
	// use it to verify the user's signed actions; the Delivery
	// Service never inspects it directly.
	VerifyKey ed25519.PublicKey `cbor:"2,keyasint"`

	// Signature is the Authentication Service's Ed25519 signature
	// over the CBOR encoding of UserID and VerifyKey (with Signature
	// itself zeroed). It proves the AS, not the user, vouches for
	// the UserID-to-key binding.
	Signature []byte `cbor:"3,keyasint"`
}

// signingPayload returns the canonical bytes the Authentication
// Service signs: the CBOR encoding of UserID and VerifyKey alone.
func signingPayload(userID string, verifyKey ed25519.PublicKey) ([]byte, error) {
	unsigned := struct {
		UserID    string            `cbor:"1,keyasint"`
		VerifyKey ed25519.PublicKey `cbor:"2,keyasint"`
	}{userID, verifyKey}
	payload, err := codec.Marshal(unsigned)
	if err != nil {
		return nil, fmt.Errorf("credential: encoding signing payload: %w", err)
	}
	return payload, nil
}

// Sign creates a new Credential, signed by the Authentication
// Service's private key, binding userID to verifyKey.
func Sign(asPrivateKey ed25519.PrivateKey, userID string, verifyKey ed25519.PublicKey) (*Credential, error) {
	payload, err := signingPayload(userID, verifyKey)
	if err != nil {
		return nil, err
	}
	return &Credential{
		UserID:    userID,
		VerifyKey: verifyKey,
		Signature: ed25519.Sign(asPrivateKey, payload),
	}, nil
}

// ErrInvalidCredentialSignature is returned by Verify when a
// Credential's signature does not match the Authentication Service's
// public key.
var ErrInvalidCredentialSignature = errors.New("credential: invalid Authentication Service signature")

// Verify checks that cred was signed by the Authentication Service
// holding asPublicKey.
func Verify(asPublicKey ed25519.PublicKey, cred *Credential) error {
	payload, err := signingPayload(cred.UserID, cred.VerifyKey)
	if err != nil {
		return err
	}
	if !ed25519.Verify(asPublicKey, payload, cred.Signature) {
		return ErrInvalidCredentialSignature
	}
	return nil
}

// Fingerprint returns a stable 32-byte digest of the Credential,
// suitable for use as a block-list key. Two credentials for different
// UserIds or different VerifyKeys always have different fingerprints;
// a reissued Credential for the same UserId and VerifyKey has the same
// fingerprint (the Signature field is excluded on purpose, since a
// resigned credential for the same identity should still be
// recognized as the same entity for deplatforming purposes).
func (c *Credential) Fingerprint() [32]byte {
	payload, err := signingPayload(c.UserID, c.VerifyKey)
	if err != nil {
		// signingPayload only fails on CBOR encoding errors, which
		// cannot happen for the fixed shape above.
		panic(fmt.Sprintf("credential: fingerprint encoding: %v", err))
	}
	hasher, err := blake3.NewKeyed(fingerprintDomainKey[:])
	if err != nil {
		panic("credential: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(payload)
	var fingerprint [32]byte
	copy(fingerprint[:], hasher.Sum(nil))
	return fingerprint
}
