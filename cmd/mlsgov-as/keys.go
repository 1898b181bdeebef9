// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mlsgov/platform/lib/secret"
)

const (
	signingKeyFile = "signing.key"
	secretFilePerm = 0600
)

// loadOrCreateSigningKey loads the Authentication Service's long-lived
// Ed25519 credential-signing key from stateDir, generating and
// persisting a new one on first run. Losing this key means every
// Credential the service has ever issued becomes unverifiable, so it
// is never regenerated once present.
func loadOrCreateSigningKey(stateDir string) (ed25519.PrivateKey, error) {
	path := filepath.Join(stateDir, signingKeyFile)

	if buf, err := secret.ReadFromPath(path); err == nil {
		defer buf.Close()
		raw, decodeErr := hex.DecodeString(buf.String())
		if decodeErr != nil {
			return nil, fmt.Errorf("mlsgov-as: decoding signing key: %w", decodeErr)
		}
		return ed25519.PrivateKey(raw), nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("mlsgov-as: reading signing key: %w", err)
	}

	_, signingKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("mlsgov-as: generating signing key: %w", err)
	}
	encoded := hex.EncodeToString(signingKey)
	if err := os.WriteFile(path, []byte(encoded), secretFilePerm); err != nil {
		return nil, fmt.Errorf("mlsgov-as: persisting signing key: %w", err)
	}
	return signingKey, nil
}
