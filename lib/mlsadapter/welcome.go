// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package mlsadapter

import (
	"errors"
	"fmt"

	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/sealed"
	"github.com/mlsgov/platform/lib/secret"
)

// ErrWelcomeEpochMismatch is returned by ApplyWelcome when the
// decrypted payload's epoch does not match the Welcome's advertised
// epoch — a tamper or encoding bug, since both values are produced
// together by the same Add call.
var ErrWelcomeEpochMismatch = errors.New("mlsadapter: welcome payload epoch does not match welcome epoch")

// welcomePayload is the CBOR-encoded, age-encrypted body of a Welcome:
// everything a new member needs to initialize their local Group.
type welcomePayload struct {
	GroupID     identity.GroupID `cbor:"1,keyasint"`
	Epoch       uint64           `cbor:"2,keyasint"`
	EpochSecret []byte           `cbor:"3,keyasint"`
}

// Welcome carries a new member's entry point into a group: the epoch
// they are joining at and an age-encrypted blob only they can open.
// The epoch number here must equal the epoch of the UpdateGroupState
// snapshot broadcast immediately after the Commit that produced this
// Welcome — receivers discard snapshots with a mismatched epoch.
type Welcome struct {
	GroupID    identity.GroupID `cbor:"1,keyasint"`
	Epoch      uint64           `cbor:"2,keyasint"`
	Recipient  identity.UserID  `cbor:"3,keyasint"`
	Ciphertext string           `cbor:"4,keyasint"`
}

// newWelcome encrypts epochSecretBytes to recipientX25519PublicKey and
// wraps it with group/epoch metadata.
func newWelcome(groupID identity.GroupID, epoch uint64, recipient identity.UserID, recipientX25519PublicKey string, epochSecretBytes []byte) (Welcome, error) {
	payload := welcomePayload{
		GroupID:     groupID,
		Epoch:       epoch,
		EpochSecret: epochSecretBytes,
	}
	payloadBytes, err := codec.Marshal(payload)
	if err != nil {
		return Welcome{}, fmt.Errorf("mlsadapter: encoding welcome payload: %w", err)
	}

	ciphertext, err := sealed.EncryptWelcome(payloadBytes, []string{recipientX25519PublicKey})
	if err != nil {
		return Welcome{}, fmt.Errorf("mlsadapter: encrypting welcome: %w", err)
	}

	return Welcome{
		GroupID:    groupID,
		Epoch:      epoch,
		Recipient:  recipient,
		Ciphertext: ciphertext,
	}, nil
}

// ApplyWelcome decrypts welcome with the recipient's X25519 private
// key and returns a fresh Group initialized at the Welcome's epoch.
// The new Group's member list initially contains only Recipient —
// the caller must populate it from the paired UpdateGroupState
// snapshot once received, via [Group.SetMembers].
func ApplyWelcome(privateKey *secret.Buffer, welcome Welcome) (*Group, error) {
	decrypted, err := sealed.DecryptWelcome(welcome.Ciphertext, privateKey)
	if err != nil {
		return nil, fmt.Errorf("mlsadapter: decrypting welcome: %w", err)
	}
	defer decrypted.Close()

	var payload welcomePayload
	if err := codec.Unmarshal(decrypted.Bytes(), &payload); err != nil {
		return nil, fmt.Errorf("mlsadapter: decoding welcome payload: %w", err)
	}
	if payload.Epoch != welcome.Epoch {
		return nil, ErrWelcomeEpochMismatch
	}

	epochSecretCopy := make([]byte, len(payload.EpochSecret))
	copy(epochSecretCopy, payload.EpochSecret)
	epochSecret, err := secret.NewFromBytes(epochSecretCopy)
	if err != nil {
		return nil, fmt.Errorf("mlsadapter: protecting joined epoch secret: %w", err)
	}

	return &Group{
		id:             payload.GroupID,
		epoch:          payload.Epoch,
		epochSecret:    epochSecret,
		members:        []identity.UserID{welcome.Recipient},
		senderCounters: map[identity.UserID]uint64{welcome.Recipient: 0},
	}, nil
}

// SetMembers replaces the group's member list, e.g. from a received
// UpdateGroupState snapshot whose epoch matches this Group's current
// epoch. Sender counters for members no longer present are dropped;
// new members start at counter 0.
func (g *Group) SetMembers(members []identity.UserID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := make(map[identity.UserID]uint64, len(members))
	for _, member := range members {
		if counter, ok := g.senderCounters[member]; ok {
			next[member] = counter
		} else {
			next[member] = 0
		}
	}
	g.senderCounters = next
	g.members = append([]identity.UserID{}, members...)
}
