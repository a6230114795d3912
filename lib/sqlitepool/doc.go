// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens pooled SQLite connections with the pragmas
// the snapshot archive runs on.
//
// The package is a thin layer over zombiezen.com/go/sqlite: it fixes
// the journal configuration, sizes the pool, and otherwise hands the
// underlying connection type straight to the caller. There is no
// query builder and no transaction wrapper; callers write SQL against
// sqlitex the way the library documents it.
//
// Every connection comes up with journal_mode=WAL, so a fleet capture
// can insert snapshot rows from several goroutines while a list query
// reads; synchronous=NORMAL, trading OS-crash durability for commit
// speed, which fits an archive whose contents can always be
// re-captured from the hardware; and a five-second busy timeout so a
// briefly-held write lock queues instead of failing.
//
// A connection is a single-goroutine resource:
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//		return err
//	}
//	defer pool.Put(conn)
//
// Schema setup runs through Config.OnConnect, once per connection;
// idempotent CREATE IF NOT EXISTS scripts keep that simple.
package sqlitepool
