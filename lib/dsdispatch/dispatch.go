// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package dsdispatch

import (
	"crypto/ed25519"

	"github.com/mlsgov/platform/lib/credential"
	"github.com/mlsgov/platform/lib/dsstate"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/wire"
)

// Dispatcher runs the Delivery Service's operations against a shared
// State. It holds no state itself beyond the MaxQueueDepth it was
// configured with.
type Dispatcher struct {
	state *dsstate.State

	// MaxQueueDepth bounds a recipient's unordered/invite queue
	// length; user_standard_send rejects individual recipients over
	// the bound rather than failing the whole send. Zero means
	// unbounded.
	MaxQueueDepth int
}

// New creates a Dispatcher backed by state.
func New(state *dsstate.State, maxQueueDepth int) *Dispatcher {
	return &Dispatcher{state: state, MaxQueueDepth: maxQueueDepth}
}

func entryOf(msg *dsstate.PendingMessage) wire.OrderedEntry {
	return wire.OrderedEntry{
		Position:        msg.Position,
		Sender:          msg.Sender,
		CiphertextBytes: msg.CiphertextBytes,
	}
}

func entriesOf(msgs []*dsstate.PendingMessage) []wire.OrderedEntry {
	entries := make([]wire.OrderedEntry, len(msgs))
	for i, msg := range msgs {
		entries[i] = entryOf(msg)
	}
	return entries
}

// welcomeEntriesOf is entriesOf with IsWelcome set, for invite-queue
// drains whose CiphertextBytes are actually an encoded Welcome.
func welcomeEntriesOf(msgs []*dsstate.PendingMessage) []wire.OrderedEntry {
	entries := entriesOf(msgs)
	for i := range entries {
		entries[i].IsWelcome = true
	}
	return entries
}

// UploadKeyPackages implements upload_keypackages. Unauthenticated at
// the DS by design — authenticity is checked downstream by the
// inviting client against the Authentication Service's credential
// record.
func (d *Dispatcher) UploadKeyPackages(req wire.OnWireMessage) wire.OnWireMessage {
	if err := d.state.KeyPackages.Upload(req.User, req.KeyPackages); err != nil {
		return wire.Ack(wire.KindAck, wire.OutcomeCapacity, err.Error())
	}
	return wire.Ack(wire.KindAck, wire.OutcomeNone, "")
}

// RetrieveKeyPackage implements retrieve_keypackage.
func (d *Dispatcher) RetrieveKeyPackage(req wire.OnWireMessage) wire.OnWireMessage {
	pkg, ok := d.state.KeyPackages.Retrieve(req.User)
	if !ok {
		return wire.OnWireMessage{Kind: wire.KindDSKeyPackageResponse, User: req.User, Found: false, Outcome: wire.OutcomeCapacity, Reason: "no key package available"}
	}
	return wire.OnWireMessage{Kind: wire.KindDSKeyPackageResponse, User: req.User, Found: true, KeyPackage: &pkg}
}

// UserStandardSend implements user_standard_send: one PendingMessage
// enqueued into every recipient's unordered queue. It never takes a
// GroupSlot lock — that serialization point exists only for reliable
// sends. The message is enqueued with a zero sender (req.ClearSender
// is never read for this path, by construction).
func (d *Dispatcher) UserStandardSend(req wire.OnWireMessage) wire.OnWireMessage {
	accepted, rejected := d.enqueueUnordered(req.Recipients, identity.UserID{}, req.CiphertextBytes, false)
	if len(accepted) == 0 && len(req.Recipients) > 0 {
		return wire.Ack(wire.KindAck, wire.OutcomeCapacity, "all recipients over queue depth")
	}
	reason := ""
	if len(rejected) > 0 {
		reason = "some recipients rejected for capacity"
	}
	return wire.Ack(wire.KindAck, outcomeFor(reason), reason)
}

func outcomeFor(reason string) wire.Outcome {
	if reason == "" {
		return wire.OutcomeNone
	}
	return wire.OutcomeCapacity
}

// enqueueUnordered creates one PendingMessage shared by every
// recipient whose queue is not already at MaxQueueDepth, and returns
// the accepted and rejected recipient lists.
func (d *Dispatcher) enqueueUnordered(recipients []identity.UserID, sender identity.UserID, ciphertext []byte, invite bool) (accepted, rejected []identity.UserID) {
	for _, r := range recipients {
		slot := d.state.User(r)
		if d.MaxQueueDepth > 0 && slot.QueueDepth(invite) >= d.MaxQueueDepth {
			rejected = append(rejected, r)
			continue
		}
		accepted = append(accepted, r)
	}

	if len(accepted) == 0 {
		return accepted, rejected
	}

	msg := dsstate.NewPendingMessage(sender, ciphertext, accepted)
	for _, r := range accepted {
		d.state.User(r).Enqueue(msg, invite)
	}
	return accepted, rejected
}

// SendWelcome delivers a Welcome to recipient via the invite queue,
// kept separate from the ordinary unordered queue so a new member's
// Welcome is never interleaved with unrelated unordered traffic (e.g.
// UpdateGroupState broadcasts they are not yet positioned to process).
func (d *Dispatcher) SendWelcome(recipient identity.UserID, welcomeBytes []byte) wire.OnWireMessage {
	accepted, _ := d.enqueueUnordered([]identity.UserID{recipient}, identity.UserID{}, welcomeBytes, true)
	if len(accepted) == 0 {
		return wire.Ack(wire.KindAck, wire.OutcomeCapacity, "recipient invite queue full")
	}
	return wire.Ack(wire.KindAck, wire.OutcomeNone, "")
}

// UserReliableSend implements user_reliable_send.
func (d *Dispatcher) UserReliableSend(req wire.OnWireMessage) wire.OnWireMessage {
	if d.state.IsBlocked(req.ClearSender) {
		return wire.OnWireMessage{Kind: wire.KindDSResult, Accepted: false, Outcome: wire.OutcomeAuth, Reason: "sender is deplatformed"}
	}

	slot := d.state.Group(req.Group)
	_, precedingAndSent := slot.AppendReliable(req.ClearSender, req.CiphertextBytes, req.Recipients)

	return wire.OnWireMessage{
		Kind:             wire.KindDSResult,
		Accepted:         true,
		PrecedingAndSent: entriesOf(precedingAndSent),
	}
}

// UserSync implements user_sync: drains the unordered and invite
// queues and returns their entries. It returns no ordered messages;
// those come from SyncGroup. Group pointers are tracked by
// lib/dsstate itself (keyed by user), and req.SyncPointers is not
// read.
func (d *Dispatcher) UserSync(req wire.OnWireMessage) wire.OnWireMessage {
	userSlot := d.state.User(req.User)
	unordered, invites := userSlot.Drain(req.User)

	combined := make([]wire.OrderedEntry, 0, len(unordered)+len(invites))
	combined = append(combined, entriesOf(unordered)...)
	combined = append(combined, welcomeEntriesOf(invites)...)

	return wire.OnWireMessage{
		Kind:      wire.KindDSResult,
		Accepted:  true,
		Unordered: combined,
	}
}

// SyncGroup returns the ordered messages group has for user since
// their last delivered position, advancing that position. Called
// once per group the user belongs to when assembling a full UserSync
// reply (lib/session drives the loop over known groups).
func (d *Dispatcher) SyncGroup(user identity.UserID, group identity.GroupID) []wire.OrderedEntry {
	slot := d.state.Group(group)
	return entriesOf(slot.SyncOrdered(user))
}

// Deplatform implements deplatform(cred): adds the deplatformed user's
// cached fingerprint to the block list and purges their pending
// messages from every recipient's queue.
func (d *Dispatcher) Deplatform(user identity.UserID) {
	d.state.Deplatform(user)
}

// ApplyDeplatformNotice handles a KindDeplatformNotice pushed by the
// Authentication Service: verifies req.SignedDeplatformNotice against
// asPublicKey and blocks every fingerprint it names.
func (d *Dispatcher) ApplyDeplatformNotice(req wire.OnWireMessage, asPublicKey ed25519.PublicKey) wire.OnWireMessage {
	notice, err := credential.VerifyDeplatformNotice(asPublicKey, req.SignedDeplatformNotice)
	if err != nil {
		return wire.Ack(wire.KindAck, wire.OutcomeAuth, err.Error())
	}
	for _, fingerprint := range notice.Fingerprints {
		d.state.BlockFingerprint(fingerprint)
	}
	return wire.Ack(wire.KindAck, wire.OutcomeNone, "")
}
