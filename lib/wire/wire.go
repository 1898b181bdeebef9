// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"

	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/credential"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/keypackage"
	"github.com/mlsgov/platform/lib/mlsadapter"
	"github.com/mlsgov/platform/transport"
)

// Kind discriminates which variant of OnWireMessage is populated.
type Kind string

const (
	// Client <-> Authentication Service.
	KindUserRegisterForAS      Kind = "UserRegisterForAS"
	KindUserCredentialLookup   Kind = "UserCredentialLookup"
	KindCredentialLookupResult Kind = "CredentialLookupResult"
	KindUserSyncCredentials    Kind = "UserSyncCredentials"
	KindCredentialSyncResult   Kind = "CredentialSyncResult"

	// Authentication Service -> Delivery Service.
	KindDeplatformNotice Kind = "DeplatformNotice"

	// Operator -> Authentication Service, on the AS's separate admin
	// listener only. req.User names the account to deplatform; the
	// wire protocol has no client-facing equivalent because deplatform
	// is an MS-DS operation, not something an ordinary user can issue
	// against themselves or anyone else.
	KindAdminDeplatform Kind = "AdminDeplatform"

	// Client <-> Delivery Service.
	KindUserKeyPackagesForDS Kind = "UserKeyPackagesForDS"
	KindUserRetrieveKeyPackage Kind = "UserRetrieveKeyPackage"
	KindDSKeyPackageResponse Kind = "DSKeyPackageResponse"
	KindUserStandardSend     Kind = "UserStandardSend"
	KindUserReliableSend     Kind = "UserReliableSend"
	KindUserSync             Kind = "UserSync"
	KindDSResult             Kind = "DSResult"
	KindDSRelayedUserMsg     Kind = "DSRelayedUserMsg"
	KindWelcome              Kind = "Welcome"

	// Generic acknowledgement, reused by UserRegisterForAS and
	// UserKeyPackagesForDS — both either succeed or fail with an
	// Outcome, carrying no other payload.
	KindAck Kind = "Ack"
)

// Outcome classifies a failure reported back to a caller. The zero
// value, OutcomeNone, means the operation succeeded.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeTransport Outcome = "transport"
	OutcomeCodec     Outcome = "codec"
	OutcomeAuth      Outcome = "auth"
	OutcomeCrypto    Outcome = "crypto"
	OutcomeRBAC      Outcome = "rbac"
	OutcomePolicy    Outcome = "policy"
	OutcomeConflict  Outcome = "conflict"
	OutcomeCapacity  Outcome = "capacity"
	OutcomeFatal     Outcome = "fatal"
)

// OrderedEntry is one message from a group's ordered log, as returned
// in DSResult's PrecedingAndSent and in DSRelayedUserMsg when Ordered
// is true.
type OrderedEntry struct {
	Position        uint64          `cbor:"1,keyasint"`
	Sender          identity.UserID `cbor:"2,keyasint"`
	CiphertextBytes []byte          `cbor:"3,keyasint"`

	// IsWelcome reports that CiphertextBytes is a codec-encoded
	// mlsadapter.Welcome rather than a mlsadapter.Ciphertext, set on
	// entries UserSync drained from a recipient's invite queue so the
	// combined Unordered batch stays self-describing.
	IsWelcome bool `cbor:"4,keyasint,omitempty"`
}

// OnWireMessage is the tagged union of every message exchanged between
// Client, Authentication Service, and Delivery Service. Only the
// fields relevant to Kind are meaningful.
type OnWireMessage struct {
	Kind Kind `cbor:"1,keyasint"`

	// User identifies the subject of an AS/DS operation: the
	// registering/looked-up user, the KeyPackage owner, or the
	// syncing user.
	User identity.UserID `cbor:"2,keyasint,omitempty"`

	// Credential carries UserRegisterForAS's new credential and
	// CredentialLookupResult's found credential.
	Credential *credential.Credential `cbor:"3,keyasint,omitempty"`

	// Found reports whether CredentialLookupResult/DSKeyPackageResponse
	// located what was requested.
	Found bool `cbor:"4,keyasint,omitempty"`

	// Since is UserSyncCredentials's cursor (-1 requests a full sync).
	Since int64 `cbor:"5,keyasint,omitempty"`

	// CredentialDeltas carries CredentialSyncResult's batch.
	CredentialDeltas []credential.Delta `cbor:"6,keyasint,omitempty"`

	// SignedDeplatformNotice carries DeplatformNotice's signed,
	// CBOR-encoded payload (lib/credential.SignDeplatformNotice).
	SignedDeplatformNotice []byte `cbor:"7,keyasint,omitempty"`

	// KeyPackages carries UserKeyPackagesForDS's uploaded batch.
	KeyPackages []keypackage.KeyPackage `cbor:"8,keyasint,omitempty"`

	// KeyPackage carries DSKeyPackageResponse's retrieved package.
	// Found=false means the pool was empty for User.
	KeyPackage *keypackage.KeyPackage `cbor:"9,keyasint,omitempty"`

	// Group identifies the group a send/sync/relay concerns.
	Group identity.GroupID `cbor:"10,keyasint,omitempty"`

	// Recipients lists UserStandardSend/UserReliableSend's addressees.
	Recipients []identity.UserID `cbor:"11,keyasint,omitempty"`

	// ClearSender carries UserReliableSend's sender. UserStandardSend
	// leaves this unset — see the sealed-sender note in doc.go.
	ClearSender identity.UserID `cbor:"12,keyasint,omitempty"`

	// CiphertextBytes carries the pre-encoded (codec.Marshal)
	// mlsadapter.Ciphertext for UserStandardSend/UserReliableSend.
	// The Delivery Service relays it without decoding.
	CiphertextBytes []byte `cbor:"13,keyasint,omitempty"`

	// Ordered reports whether DSRelayedUserMsg's payload came from
	// the group's ordered log (true) or an unordered/invite queue
	// (false).
	Ordered bool `cbor:"14,keyasint,omitempty"`

	// Entry carries DSRelayedUserMsg's single relayed message.
	Entry *OrderedEntry `cbor:"15,keyasint,omitempty"`

	// SyncPointers carries UserSync's last-delivered ordered-log
	// position per group, keyed by GroupID's canonical string form.
	SyncPointers map[string]uint64 `cbor:"16,keyasint,omitempty"`

	// Accepted reports DSResult's outcome for a UserReliableSend.
	Accepted bool `cbor:"17,keyasint,omitempty"`

	// PrecedingAndSent carries DSResult's ordered-log suffix the
	// sender had not yet observed, followed by the message this
	// result answers for (empty when Accepted is false).
	PrecedingAndSent []OrderedEntry `cbor:"18,keyasint,omitempty"`

	// Welcome carries a new member's entry point into a group.
	Welcome *mlsadapter.Welcome `cbor:"19,keyasint,omitempty"`

	// Unordered carries a batch of queued unordered or invite
	// messages delivered by UserSync's response.
	Unordered []OrderedEntry `cbor:"20,keyasint,omitempty"`

	// Outcome classifies a failure per the error-handling taxonomy;
	// the zero value means no error.
	Outcome Outcome `cbor:"21,keyasint,omitempty"`

	// Reason is a short human-readable explanation accompanying a
	// non-zero Outcome.
	Reason string `cbor:"22,keyasint,omitempty"`
}

// WriteMessage CBOR-encodes msg and writes it as a single frame on conn.
func WriteMessage(conn *transport.Conn, msg OnWireMessage) error {
	payload, err := codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("wire: encoding %s: %w", msg.Kind, err)
	}
	if err := conn.WriteFrame(payload); err != nil {
		return fmt.Errorf("wire: writing frame: %w", err)
	}
	return nil
}

// ReadMessage reads one frame from conn and decodes it as an
// OnWireMessage.
func ReadMessage(conn *transport.Conn) (OnWireMessage, error) {
	payload, err := conn.ReadFrame()
	if err != nil {
		return OnWireMessage{}, err
	}
	var msg OnWireMessage
	if err := codec.Unmarshal(payload, &msg); err != nil {
		return OnWireMessage{}, fmt.Errorf("wire: decoding frame: %w", err)
	}
	return msg, nil
}

// Ack builds a generic success/failure reply. outcome == OutcomeNone
// means success.
func Ack(kind Kind, outcome Outcome, reason string) OnWireMessage {
	return OnWireMessage{Kind: kind, Outcome: outcome, Reason: reason}
}
