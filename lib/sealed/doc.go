// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption and decryption for MLS Welcome
// payloads. It wraps filippo.io/age for the specific operations the MLS
// adapter needs: generate x25519 keypairs, encrypt an epoch secret to
// multiple recipients, and decrypt with a private key.
//
// Ciphertext is base64-encoded for embedding in a Welcome OnWireMessage.
// Callers pass plaintext []byte to [Encrypt] and receive a base64 string;
// [Decrypt] accepts a base64 string and returns plaintext. Private keys
// and decrypted plaintext are returned as [secret.Buffer] values backed
// by mmap memory outside the Go heap (locked against swap, excluded from
// core dumps, zeroed on Close).
//
// Key exports:
//
//   - [GenerateKeypair] -- new age x25519 keypair in a secret.Buffer
//   - [Encrypt] / [EncryptWelcome] -- encrypt to age public key recipients
//   - [Decrypt] / [DecryptWelcome] -- decrypt with a secret.Buffer key
//   - [ParsePublicKey] / [ParsePrivateKey] -- key validation
//
// Used by the MLS adapter (encrypt epoch secrets for added members) and
// the Client (decrypt the epoch secret from a received Welcome).
//
// Depends on lib/secret for secure memory allocation.
package sealed
