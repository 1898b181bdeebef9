// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package keypackage

import (
	"errors"

	"github.com/mlsgov/platform/lib/identity"
)

// ErrInvalidKeyPackage is returned when a KeyPackage fails structural
// validation (missing owner or public key).
var ErrInvalidKeyPackage = errors.New("keypackage: invalid key package")

// KeyPackage is the one-shot public material a user uploads to the
// Delivery Service so other members can add them to a group. It is
// owned by the DS pool and consumed at most once.
type KeyPackage struct {
	// Owner is the user this KeyPackage was uploaded for.
	Owner identity.UserID `cbor:"1,keyasint"`

	// CredentialFingerprint binds this KeyPackage to the Owner's
	// Credential (the BLAKE3 keyed-hash fingerprint produced by
	// credential.Credential.Fingerprint), so a receiving client can
	// confirm the package belongs to whoever it believes Owner to be
	// before committing an Add referencing it.
	CredentialFingerprint [32]byte `cbor:"2,keyasint"`

	// X25519PublicKey is the age-format recipient public key
	// (lib/sealed.Keypair.PublicKey) this package's epoch secrets are
	// encrypted to when a Welcome is produced for Owner.
	X25519PublicKey string `cbor:"3,keyasint"`
}

// New constructs a KeyPackage, validating that owner and the X25519
// public key are both present.
func New(owner identity.UserID, credentialFingerprint [32]byte, x25519PublicKey string) (KeyPackage, error) {
	if owner.IsZero() {
		return KeyPackage{}, errors.New("keypackage: owner is required")
	}
	if x25519PublicKey == "" {
		return KeyPackage{}, errors.New("keypackage: X25519 public key is required")
	}
	return KeyPackage{
		Owner:                 owner,
		CredentialFingerprint: credentialFingerprint,
		X25519PublicKey:       x25519PublicKey,
	}, nil
}
