// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for mlsgov packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. They bound
// waits in real wall-clock time; tests that need simulated time use
// lib/clock's fake clock instead.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when tests need unique
// transaction IDs, request IDs, or message bodies distinguishable in
// shared rooms.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no mlsgov-internal dependencies.
package testutil
