// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshotio persists CBOR-encoded state snapshots to disk,
// zstd-compressed, via an atomic write-then-rename. Both mlsgov-as
// (credential store) and mlsgov-ds (block list) periodically flush
// their durable state through this package instead of each rolling
// its own compress-then-write path.
package snapshotio

import (
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/mlsgov/platform/lib/codec"
)

// encoder and decoder are reused across calls to avoid repeated
// initialization overhead. Both are safe for concurrent use.
var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapshotio: zstd encoder initialization failed: " + err.Error())
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("snapshotio: zstd decoder initialization failed: " + err.Error())
	}
}

// Load decodes a zstd-compressed CBOR snapshot from path into v. A
// missing file is not an error: v is left untouched, so a caller that
// passes a fresh value starts fresh, matching a first run with no
// prior state.
func Load(path string, v any) error {
	compressed, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("snapshotio: reading %s: %w", path, err)
	}

	data, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return fmt.Errorf("snapshotio: decompressing %s: %w", path, err)
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("snapshotio: decoding %s: %w", path, err)
	}
	return nil
}

// Save CBOR-encodes v, compresses it with zstd, and atomically
// installs it at path through a same-directory write-then-rename so a
// crash mid-write never leaves a truncated snapshot in place of a
// good one.
func Save(path string, v any) error {
	data, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("snapshotio: encoding %s: %w", path, err)
	}
	compressed := encoder.EncodeAll(data, nil)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0600); err != nil {
		return fmt.Errorf("snapshotio: writing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("snapshotio: installing %s: %w", path, err)
	}
	return nil
}
