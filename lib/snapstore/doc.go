// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapstore persists power-state snapshots in a local SQLite
// database.
//
// The database is content addressed: the canonical state bytes of a
// snapshot live in the blobs table keyed by their fingerprint, and
// each capture adds a row to the snapshots table pointing at its
// blob. Capturing the same state twice stores the state once. Blobs
// are compressed when a probe says it pays; the state documents are
// YAML, so zstd is the usual outcome.
//
// Connections come from a sqlitepool.Pool (WAL journal, immediate
// write transactions), so a Store is safe for concurrent use. Fleet
// captures save from one goroutine per host against the same Store.
package snapstore
