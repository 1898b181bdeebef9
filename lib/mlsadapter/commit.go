// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package mlsadapter

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/secret"
	"github.com/zeebo/blake3"
)

// epochHashDomainKey is the BLAKE3 keyed-hash domain separator for
// epochHash, keeping a commit's epoch-consistency fingerprint out of
// any other hash domain in this codebase even though both happen to
// hash derived epoch secret bytes.
var epochHashDomainKey = [32]byte{
	'm', 'l', 's', 'g', 'o', 'v', '.', 'm', 'l', 's', 'a', 'd', 'a', 'p', 't', 'e',
	'r', '.', 'e', 'p', 'o', 'c', 'h', '-', 'h', 'a', 's', 'h', 0, 0, 0, 0,
}

// epochHash fingerprints a derived epoch secret for the
// commit-consistency check in NewEpochHash: every honest member
// re-derives the same next-epoch secret independently and must agree
// on its hash without ever putting the secret itself on the wire.
func epochHash(secretBytes []byte) [32]byte {
	hasher, err := blake3.NewKeyed(epochHashDomainKey[:])
	if err != nil {
		panic("mlsadapter: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(secretBytes)
	var hash [32]byte
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// ErrInvalidCommitSignature is returned by ApplyCommit when the
// committer's signature does not verify.
var ErrInvalidCommitSignature = errors.New("mlsadapter: invalid commit signature")

// ErrEpochHashMismatch is returned by ApplyCommit when the locally
// derived epoch secret's hash does not match the Commit's claimed
// hash — a fatal disagreement about group state that the caller must
// treat by rejecting the commit and continuing, not by crashing.
var ErrEpochHashMismatch = errors.New("mlsadapter: derived epoch secret does not match commit's epoch hash")

// ErrNotPreApproved is returned by Add when the invitee is not in
// preApprovedUsers: a membership change via MLS Add is authorized only
// if the added UserID appears in the group's pre-approved list.
var ErrNotPreApproved = errors.New("mlsadapter: invitee is not in the group's pre-approved list")

// ErrAlreadyMember is returned by Add when the invitee is already a
// group member.
var ErrAlreadyMember = errors.New("mlsadapter: user is already a member")

// ErrNotMember is returned by Remove when the target is not a member.
var ErrNotMember = errors.New("mlsadapter: user is not a member")

// Commit is a signed handshake message advancing a group's epoch,
// produced by [Add] or [Remove]. Every current member can verify and
// apply a Commit independently by deriving the same next epoch secret
// from their own copy of the previous one plus the Commit's public
// nonce.
type Commit struct {
	GroupID       identity.GroupID  `cbor:"1,keyasint"`
	PreviousEpoch uint64            `cbor:"2,keyasint"`
	NewEpochHash  [32]byte          `cbor:"3,keyasint"`
	CommitNonce   [32]byte          `cbor:"4,keyasint"`
	Members       []identity.UserID `cbor:"5,keyasint"`
	Committer     identity.UserID   `cbor:"6,keyasint"`
	Signature     []byte            `cbor:"7,keyasint"`
}

// signingBytes returns the canonical CBOR encoding of c with Signature
// cleared — the bytes the committer signs and verifiers re-derive.
func (c Commit) signingBytes() ([]byte, error) {
	unsigned := c
	unsigned.Signature = nil
	return codec.Marshal(unsigned)
}

// sign computes and sets c.Signature using committerKey.
func (c *Commit) sign(committerKey ed25519.PrivateKey) error {
	payload, err := c.signingBytes()
	if err != nil {
		return fmt.Errorf("mlsadapter: canonicalizing commit: %w", err)
	}
	c.Signature = ed25519.Sign(committerKey, payload)
	return nil
}

// verify checks c.Signature against verifyKey.
func (c Commit) verify(verifyKey ed25519.PublicKey) error {
	payload, err := c.signingBytes()
	if err != nil {
		return fmt.Errorf("mlsadapter: canonicalizing commit: %w", err)
	}
	if !ed25519.Verify(verifyKey, payload, c.Signature) {
		return ErrInvalidCommitSignature
	}
	return nil
}

// Add advances group's epoch and produces a Commit admitting invitee,
// plus a Welcome encrypting the new epoch secret to invitee's X25519
// public key. invitee must appear in preApprovedUsers.
func Add(group *Group, committer identity.UserID, committerKey ed25519.PrivateKey, invitee identity.UserID, inviteeX25519PublicKey string, preApprovedUsers []identity.UserID) (Commit, Welcome, error) {
	group.mu.Lock()
	defer group.mu.Unlock()

	if !containsUser(preApprovedUsers, invitee) {
		return Commit{}, Welcome{}, ErrNotPreApproved
	}
	if group.hasMember(invitee) {
		return Commit{}, Welcome{}, ErrAlreadyMember
	}

	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return Commit{}, Welcome{}, fmt.Errorf("mlsadapter: generating commit nonce: %w", err)
	}

	nextEpochSecret, err := deriveNextEpochSecret(group.epochSecret.Bytes(), nonce)
	if err != nil {
		return Commit{}, Welcome{}, err
	}
	defer nextEpochSecret.Close()

	newMembers := append(append([]identity.UserID{}, group.members...), invitee)

	commit := Commit{
		GroupID:       group.id,
		PreviousEpoch: group.epoch,
		NewEpochHash:  epochHash(nextEpochSecret.Bytes()),
		CommitNonce:   nonce,
		Members:       newMembers,
		Committer:     committer,
	}
	if err := commit.sign(committerKey); err != nil {
		return Commit{}, Welcome{}, err
	}

	welcome, err := newWelcome(group.id, group.epoch+1, invitee, inviteeX25519PublicKey, nextEpochSecret.Bytes())
	if err != nil {
		return Commit{}, Welcome{}, err
	}

	if err := group.advanceEpoch(nextEpochSecret.Bytes(), newMembers); err != nil {
		return Commit{}, Welcome{}, err
	}
	group.senderCounters[invitee] = 0

	return commit, welcome, nil
}

// Remove advances group's epoch and produces a Commit expelling
// target, without a Welcome.
func Remove(group *Group, committer identity.UserID, committerKey ed25519.PrivateKey, target identity.UserID) (Commit, error) {
	group.mu.Lock()
	defer group.mu.Unlock()

	if !group.hasMember(target) {
		return Commit{}, ErrNotMember
	}

	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return Commit{}, fmt.Errorf("mlsadapter: generating commit nonce: %w", err)
	}

	nextEpochSecret, err := deriveNextEpochSecret(group.epochSecret.Bytes(), nonce)
	if err != nil {
		return Commit{}, err
	}
	defer nextEpochSecret.Close()

	newMembers := make([]identity.UserID, 0, len(group.members))
	for _, member := range group.members {
		if !member.Equal(target) {
			newMembers = append(newMembers, member)
		}
	}

	commit := Commit{
		GroupID:       group.id,
		PreviousEpoch: group.epoch,
		NewEpochHash:  epochHash(nextEpochSecret.Bytes()),
		CommitNonce:   nonce,
		Members:       newMembers,
		Committer:     committer,
	}
	if err := commit.sign(committerKey); err != nil {
		return Commit{}, err
	}

	if err := group.advanceEpoch(nextEpochSecret.Bytes(), newMembers); err != nil {
		return Commit{}, err
	}
	delete(group.senderCounters, target)

	return commit, nil
}

// Proposal is a member's signed intent to leave a group. Unlike a
// Commit, a Proposal does not itself advance the epoch — another member (or the
// leaving member rejoining as committer of their own removal) must
// still produce a Remove Commit for the epoch to actually roll
// forward, matching MLS's separation of "propose" from "commit".
type Proposal struct {
	GroupID identity.GroupID `cbor:"1,keyasint"`
	Epoch   uint64           `cbor:"2,keyasint"`
	Member  identity.UserID  `cbor:"3,keyasint"`
}

// Leave produces a Proposal recording member's intent to leave group
// at its current epoch.
func Leave(group *Group, member identity.UserID) (Proposal, error) {
	group.mu.Lock()
	defer group.mu.Unlock()

	if !group.hasMember(member) {
		return Proposal{}, ErrNotMember
	}

	return Proposal{
		GroupID: group.id,
		Epoch:   group.epoch,
		Member:  member,
	}, nil
}

// ApplyCommit verifies and applies commit to group on behalf of an
// existing member who already holds the previous epoch secret. The
// member independently re-derives the next epoch secret from
// commit.CommitNonce and compares its hash against commit.NewEpochHash
// — a mismatch means the commit does not correspond to this member's
// view of the group and is rejected as a fatal disagreement.
func ApplyCommit(group *Group, verifyKey ed25519.PublicKey, commit Commit) error {
	group.mu.Lock()
	defer group.mu.Unlock()

	if err := commit.verify(verifyKey); err != nil {
		return err
	}
	if commit.PreviousEpoch != group.epoch {
		return fmt.Errorf("mlsadapter: commit previous epoch %d does not match group epoch %d", commit.PreviousEpoch, group.epoch)
	}

	nextEpochSecret, err := deriveNextEpochSecret(group.epochSecret.Bytes(), commit.CommitNonce)
	if err != nil {
		return err
	}
	defer nextEpochSecret.Close()

	if epochHash(nextEpochSecret.Bytes()) != commit.NewEpochHash {
		return ErrEpochHashMismatch
	}

	if err := group.advanceEpoch(nextEpochSecret.Bytes(), commit.Members); err != nil {
		return err
	}

	present := make(map[identity.UserID]struct{}, len(commit.Members))
	for _, member := range commit.Members {
		present[member] = struct{}{}
		if _, ok := group.senderCounters[member]; !ok {
			group.senderCounters[member] = 0
		}
	}
	for member := range group.senderCounters {
		if _, ok := present[member]; !ok {
			delete(group.senderCounters, member)
		}
	}

	return nil
}

// advanceEpoch replaces the group's epoch secret and member list.
// Caller must hold group.mu.
func (g *Group) advanceEpoch(nextEpochSecretBytes []byte, members []identity.UserID) error {
	nextCopy := make([]byte, len(nextEpochSecretBytes))
	copy(nextCopy, nextEpochSecretBytes)
	next, err := secret.NewFromBytes(nextCopy)
	if err != nil {
		return fmt.Errorf("mlsadapter: protecting next epoch secret: %w", err)
	}

	if err := g.epochSecret.Close(); err != nil {
		next.Close()
		return fmt.Errorf("mlsadapter: releasing previous epoch secret: %w", err)
	}
	g.epochSecret = next
	g.epoch++
	g.members = members
	return nil
}

func containsUser(users []identity.UserID, target identity.UserID) bool {
	for _, user := range users {
		if user.Equal(target) {
			return true
		}
	}
	return false
}
