// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mlsgov/platform/lib/codec"
)

// DeplatformNotice is the payload of a signed broadcast from the
// Authentication Service to the Delivery Service, informing it that a
// set of Credential fingerprints must be added to the Delivery
// Service's BlockList. The Authentication Service signs the
// CBOR-encoded notice with its credential-signing key; the Delivery
// Service verifies it using the same public key it uses for
// Credential verification.
type DeplatformNotice struct {
	// Fingerprints lists the Credential fingerprints to block.
	Fingerprints [][32]byte `cbor:"1,keyasint"`

	// IssuedAt is a Unix timestamp (seconds) of when the
	// Authentication Service created this notice.
	IssuedAt int64 `cbor:"2,keyasint"`
}

// Errors returned by VerifyDeplatformNotice.
var (
	ErrNoticeTooShort  = errors.New("credential: deplatform notice too short for signature")
	ErrNoticeBadSig    = errors.New("credential: invalid deplatform notice signature")
	ErrNoticeNoEntries = errors.New("credential: deplatform notice has no fingerprints")
)

// SignDeplatformNotice signs a DeplatformNotice with the
// Authentication Service's private key. The wire format mirrors
// Credential signing: CBOR payload followed by a 64-byte Ed25519
// signature.
func SignDeplatformNotice(asPrivateKey ed25519.PrivateKey, notice *DeplatformNotice) ([]byte, error) {
	payload, err := codec.Marshal(notice)
	if err != nil {
		return nil, fmt.Errorf("credential: encoding deplatform notice: %w", err)
	}

	signature := ed25519.Sign(asPrivateKey, payload)

	result := make([]byte, len(payload)+signatureSize)
	copy(result, payload)
	copy(result[len(payload):], signature)

	return result, nil
}

// VerifyDeplatformNotice verifies the Ed25519 signature on a signed
// deplatform notice and decodes the payload. Returns an error if the
// signature is invalid, the data is too short, or the notice lists no
// fingerprints.
func VerifyDeplatformNotice(asPublicKey ed25519.PublicKey, data []byte) (*DeplatformNotice, error) {
	if len(data) <= signatureSize {
		return nil, ErrNoticeTooShort
	}

	splitPoint := len(data) - signatureSize
	payload := data[:splitPoint]
	signature := data[splitPoint:]

	if !ed25519.Verify(asPublicKey, payload, signature) {
		return nil, ErrNoticeBadSig
	}

	var notice DeplatformNotice
	if err := codec.Unmarshal(payload, &notice); err != nil {
		return nil, fmt.Errorf("credential: decoding deplatform notice: %w", err)
	}

	if len(notice.Fingerprints) == 0 {
		return nil, ErrNoticeNoEntries
	}

	return &notice, nil
}

// Apply adds every fingerprint in a verified DeplatformNotice to list.
func (notice *DeplatformNotice) Apply(list *BlockList) {
	for _, fingerprint := range notice.Fingerprints {
		list.Add(fingerprint)
	}
}
