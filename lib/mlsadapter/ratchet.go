// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package mlsadapter

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/secret"
)

// HKDF info strings, providing domain separation between the two
// derivation paths that share an epoch secret as input key material.
// Changing either invalidates every key ever derived along that path.
var (
	hkdfInfoNextEpoch  = []byte("mlsgov.mls.epoch.v1")
	hkdfInfoMessageKey = []byte("mlsgov.mls.msgkey.v1")
)

// deriveNextEpochSecret derives the next epoch secret from the
// current one and a fresh, public commit nonce via HKDF-SHA256. Any
// current member can repeat
// this derivation once it learns the nonce from a Commit — no Welcome
// is needed for members who already hold the previous epoch secret.
func deriveNextEpochSecret(currentEpochSecret []byte, commitNonce [32]byte) (*secret.Buffer, error) {
	info := make([]byte, len(hkdfInfoNextEpoch)+len(commitNonce))
	copy(info, hkdfInfoNextEpoch)
	copy(info[len(hkdfInfoNextEpoch):], commitNonce[:])

	reader := hkdf.New(sha256.New, currentEpochSecret, nil, info)
	derived := make([]byte, epochSecretSize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("mlsadapter: deriving next epoch secret: %w", err)
	}
	return secret.NewFromBytes(derived)
}

// deriveMessageKey derives a one-time AES-256-GCM key for a single
// application message from the current epoch secret, the sender, and
// a monotonically increasing per-sender counter (a minimal ratchet).
// Distinct senders, or the same sender at a different counter, always
// derive distinct keys.
func deriveMessageKey(epochSecret []byte, sender identity.UserID, counter uint64) (*secret.Buffer, error) {
	senderBytes := []byte(sender.String())
	info := make([]byte, 0, len(hkdfInfoMessageKey)+len(senderBytes)+8)
	info = append(info, hkdfInfoMessageKey...)
	info = append(info, senderBytes...)
	var counterBytes [8]byte
	binary.BigEndian.PutUint64(counterBytes[:], counter)
	info = append(info, counterBytes[:]...)

	reader := hkdf.New(sha256.New, epochSecret, nil, info)
	derived := make([]byte, epochSecretSize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("mlsadapter: deriving message key: %w", err)
	}
	return secret.NewFromBytes(derived)
}
