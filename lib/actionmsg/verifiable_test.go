// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package actionmsg

import (
	"crypto/ed25519"
	"testing"
)

func TestSign_Verify_RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey() error: %v", err)
	}
	sender := mustUserID(t, "alice")

	va, err := Sign(priv, sender, NewTextMsg("hi"))
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if !va.Sender.Equal(sender) {
		t.Errorf("Sender = %v, want %v", va.Sender, sender)
	}

	if err := Verify(pub, va); err != nil {
		t.Errorf("Verify() error: %v", err)
	}
}

func TestSign_InvalidAction(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey() error: %v", err)
	}
	sender := mustUserID(t, "alice")

	_, err = Sign(priv, sender, ActionMsg{Kind: KindInvite})
	if err == nil {
		t.Error("Sign() with invalid action should return error")
	}
}

func TestVerify_WrongKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey() error: %v", err)
	}
	wrongPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey() error: %v", err)
	}
	sender := mustUserID(t, "alice")

	va, err := Sign(priv, sender, NewTextMsg("hi"))
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	if err := Verify(wrongPub, va); err != ErrInvalidActionSignature {
		t.Errorf("Verify() error = %v, want ErrInvalidActionSignature", err)
	}
}

func TestVerify_TamperedAction(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey() error: %v", err)
	}
	sender := mustUserID(t, "alice")

	va, err := Sign(priv, sender, NewTextMsg("hi"))
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	va.Action.Text = "tampered"

	if err := Verify(pub, va); err != ErrInvalidActionSignature {
		t.Errorf("Verify() error = %v, want ErrInvalidActionSignature", err)
	}
}

func TestEncode_Decode_RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey() error: %v", err)
	}
	sender := mustUserID(t, "alice")

	va, err := Sign(priv, sender, NewRenameGroup("new name"))
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	encoded, err := va.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if err := Verify(pub, decoded); err != nil {
		t.Errorf("Verify(decoded) error: %v", err)
	}
	if decoded.Action.GroupName != "new name" {
		t.Errorf("decoded.Action.GroupName = %q, want %q", decoded.Action.GroupName, "new name")
	}
}
