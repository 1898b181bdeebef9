// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mlsgov/platform/lib/codec"
	"github.com/mlsgov/platform/lib/credential"
	"github.com/mlsgov/platform/lib/identity"
	"github.com/mlsgov/platform/lib/sealed"
	"github.com/mlsgov/platform/lib/secret"
)

const (
	signingKeyFile   = "signing.key"
	sealedKeyFile    = "sealed.key"
	sealedPublicFile = "sealed.pub"
	credentialFile   = "credential.cbor"
	secretFilePerm   = 0600
)

// LocalIdentity holds one user's long-lived keys: the Ed25519 key
// pair signing their actions and Commits, the age/X25519 key pair
// Welcomes are encrypted to, and the Credential the Authentication
// Service issued for the Ed25519 public half. Credential is nil until
// [Client.Register] completes.
type LocalIdentity struct {
	UserID     identity.UserID
	SigningKey ed25519.PrivateKey
	VerifyKey  ed25519.PublicKey
	Sealed     *sealed.Keypair
	Credential *credential.Credential
}

// Close releases the age private key's mmap-backed memory.
func (id *LocalIdentity) Close() error {
	if id.Sealed != nil {
		return id.Sealed.Close()
	}
	return nil
}

// LoadOrCreateIdentity loads a previously persisted identity from
// stateDir, or generates a fresh Ed25519 and age key pair and
// persists them if none exists yet. The Credential field is loaded
// from disk if present; it remains nil until the caller registers
// with the Authentication Service.
func LoadOrCreateIdentity(stateDir string, userID identity.UserID) (*LocalIdentity, error) {
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("session: creating state directory: %w", err)
	}

	signingKey, verifyKey, err := loadOrCreateSigningKey(stateDir)
	if err != nil {
		return nil, err
	}

	sealedKeypair, err := loadOrCreateSealedKeypair(stateDir)
	if err != nil {
		return nil, err
	}

	id := &LocalIdentity{
		UserID:     userID,
		SigningKey: signingKey,
		VerifyKey:  verifyKey,
		Sealed:     sealedKeypair,
	}

	if cred, err := loadCredential(stateDir); err == nil {
		id.Credential = cred
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return id, nil
}

// SaveCredential persists cred to stateDir and sets it on id.
func (id *LocalIdentity) SaveCredential(stateDir string, cred *credential.Credential) error {
	data, err := codec.Marshal(cred)
	if err != nil {
		return fmt.Errorf("session: encoding credential: %w", err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, credentialFile), data, secretFilePerm); err != nil {
		return fmt.Errorf("session: persisting credential: %w", err)
	}
	id.Credential = cred
	return nil
}

func loadCredential(stateDir string) (*credential.Credential, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, credentialFile))
	if err != nil {
		return nil, err
	}
	var cred credential.Credential
	if err := codec.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("session: decoding persisted credential: %w", err)
	}
	return &cred, nil
}

func loadOrCreateSigningKey(stateDir string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	path := filepath.Join(stateDir, signingKeyFile)

	if buf, err := secret.ReadFromPath(path); err == nil {
		defer buf.Close()
		raw, decodeErr := hex.DecodeString(buf.String())
		if decodeErr != nil {
			return nil, nil, fmt.Errorf("session: decoding signing key: %w", decodeErr)
		}
		key := ed25519.PrivateKey(raw)
		return key, key.Public().(ed25519.PublicKey), nil
	} else if !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("session: reading signing key: %w", err)
	}

	verifyKey, signingKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("session: generating signing key: %w", err)
	}
	encoded := hex.EncodeToString(signingKey)
	if err := os.WriteFile(path, []byte(encoded), secretFilePerm); err != nil {
		return nil, nil, fmt.Errorf("session: persisting signing key: %w", err)
	}
	return signingKey, verifyKey, nil
}

// loadOrCreateSealedKeypair loads the persisted age key pair from
// stateDir, or generates and persists a new one. The public half is
// kept alongside the private key in a plain file (it is safe to
// publish — clients advertise it in their KeyPackage) so it does not
// need to be re-derived from the private key on every load.
func loadOrCreateSealedKeypair(stateDir string) (*sealed.Keypair, error) {
	privatePath := filepath.Join(stateDir, sealedKeyFile)
	publicPath := filepath.Join(stateDir, sealedPublicFile)

	if privateKey, err := secret.ReadFromPath(privatePath); err == nil {
		if err := sealed.ParsePrivateKey(privateKey); err != nil {
			privateKey.Close()
			return nil, fmt.Errorf("session: parsing persisted sealed key: %w", err)
		}
		publicKeyBytes, err := os.ReadFile(publicPath)
		if err != nil {
			privateKey.Close()
			return nil, fmt.Errorf("session: reading persisted sealed public key: %w", err)
		}
		return &sealed.Keypair{PrivateKey: privateKey, PublicKey: string(publicKeyBytes)}, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("session: reading sealed key: %w", err)
	}

	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("session: generating sealed key pair: %w", err)
	}
	if err := os.WriteFile(privatePath, []byte(keypair.PrivateKey.String()), secretFilePerm); err != nil {
		keypair.Close()
		return nil, fmt.Errorf("session: persisting sealed key: %w", err)
	}
	if err := os.WriteFile(publicPath, []byte(keypair.PublicKey), 0644); err != nil {
		keypair.Close()
		return nil, fmt.Errorf("session: persisting sealed public key: %w", err)
	}
	return keypair, nil
}
