// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package mlsadapter

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mlsgov/platform/lib/identity"
)

// ErrSenderNotMember is returned by EncryptApp/ProcessApp when the
// message's sender is not a current group member.
var ErrSenderNotMember = errors.New("mlsadapter: sender is not a group member")

// ErrReplayedCounter is returned by ProcessApp when a message's
// counter is not greater than the highest counter already seen for
// that sender — protecting against replay of a captured Ciphertext.
var ErrReplayedCounter = errors.New("mlsadapter: message counter already seen for this sender")

// Ciphertext is one AES-256-GCM encrypted application message. Epoch,
// Sender, and Counter are carried in the clear and bound into the
// AEAD's additional authenticated data, so tampering with any of them
// causes decryption to fail rather than silently misattributing the
// message.
type Ciphertext struct {
	GroupID identity.GroupID `cbor:"1,keyasint"`
	Epoch   uint64           `cbor:"2,keyasint"`
	Sender  identity.UserID  `cbor:"3,keyasint"`
	Counter uint64           `cbor:"4,keyasint"`
	Nonce   [12]byte         `cbor:"5,keyasint"`
	Bytes   []byte           `cbor:"6,keyasint"`
}

// additionalData binds a Ciphertext's clear-text fields into its AEAD
// tag, so swapping them between messages (even ones encrypted under
// the same key) is detected as a decryption failure.
func additionalData(groupID identity.GroupID, epoch uint64, sender identity.UserID, counter uint64) []byte {
	groupBytes := groupID.Bytes()
	senderBytes := []byte(sender.String())

	aad := make([]byte, 0, len(groupBytes)+8+len(senderBytes)+8)
	aad = append(aad, groupBytes[:]...)
	var epochBytes [8]byte
	binary.BigEndian.PutUint64(epochBytes[:], epoch)
	aad = append(aad, epochBytes[:]...)
	aad = append(aad, senderBytes...)
	var counterBytes [8]byte
	binary.BigEndian.PutUint64(counterBytes[:], counter)
	aad = append(aad, counterBytes[:]...)
	return aad
}

// EncryptApp encrypts plaintext as an application message sent by
// sender in group's current epoch, advancing sender's ratchet
// counter. sender must be a current group member.
func EncryptApp(group *Group, sender identity.UserID, plaintext []byte) (Ciphertext, error) {
	group.mu.Lock()
	defer group.mu.Unlock()

	if !group.hasMember(sender) {
		return Ciphertext{}, ErrSenderNotMember
	}

	counter := group.senderCounters[sender]
	messageKey, err := deriveMessageKey(group.epochSecret.Bytes(), sender, counter)
	if err != nil {
		return Ciphertext{}, err
	}
	defer messageKey.Close()

	block, err := aes.NewCipher(messageKey.Bytes())
	if err != nil {
		return Ciphertext{}, fmt.Errorf("mlsadapter: creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Ciphertext{}, fmt.Errorf("mlsadapter: creating GCM mode: %w", err)
	}

	var nonce [12]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return Ciphertext{}, fmt.Errorf("mlsadapter: generating nonce: %w", err)
	}

	aad := additionalData(group.id, group.epoch, sender, counter)
	sealed := gcm.Seal(nil, nonce[:], plaintext, aad)

	group.senderCounters[sender] = counter + 1

	return Ciphertext{
		GroupID: group.id,
		Epoch:   group.epoch,
		Sender:  sender,
		Counter: counter,
		Nonce:   nonce,
		Bytes:   sealed,
	}, nil
}

// ProcessApp decrypts ct, verifying it was produced for group's
// current epoch by a current member and that its counter has not been
// seen before for that sender (replay protection).
func ProcessApp(group *Group, ct Ciphertext) ([]byte, error) {
	group.mu.Lock()
	defer group.mu.Unlock()

	if ct.Epoch != group.epoch {
		return nil, fmt.Errorf("mlsadapter: ciphertext epoch %d does not match group epoch %d", ct.Epoch, group.epoch)
	}
	if !group.hasMember(ct.Sender) {
		return nil, ErrSenderNotMember
	}

	highestSeen, everSeen := group.highestCounterSeen[ct.Sender]
	if everSeen && ct.Counter <= highestSeen {
		return nil, ErrReplayedCounter
	}

	messageKey, err := deriveMessageKey(group.epochSecret.Bytes(), ct.Sender, ct.Counter)
	if err != nil {
		return nil, err
	}
	defer messageKey.Close()

	block, err := aes.NewCipher(messageKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("mlsadapter: creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("mlsadapter: creating GCM mode: %w", err)
	}

	aad := additionalData(ct.GroupID, ct.Epoch, ct.Sender, ct.Counter)
	plaintext, err := gcm.Open(nil, ct.Nonce[:], ct.Bytes, aad)
	if err != nil {
		return nil, fmt.Errorf("mlsadapter: decrypting application message: %w", err)
	}

	if group.highestCounterSeen == nil {
		group.highestCounterSeen = make(map[identity.UserID]uint64)
	}
	group.highestCounterSeen[ct.Sender] = ct.Counter

	return plaintext, nil
}
