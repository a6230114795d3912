// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package snapstore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/powerfleet/powerfleet/snapshot"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "snapshots.db"),
		ToolVersion: "1.2.3-test",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

// testSnap builds a small two-property snapshot whose state varies
// only with the EPP value.
func testSnap(host string, at time.Time, epp string) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Host:       host,
		CapturedAt: at,
		Properties: []snapshot.PropertyState{
			{Name: "epp", Scope: "cpu", Units: []snapshot.UnitValue{
				{Unit: "cpu:0", Value: epp},
				{Unit: "cpu:1", Value: epp},
			}},
			{Name: "turbo", Scope: "global", Units: []snapshot.UnitValue{
				{Unit: "global", Value: "on"},
			}},
		},
	}
}

// execTest runs a statement on a store's own pool, for checks that
// reach beneath the public surface.
func execTest(t *testing.T, s *Store, query string, opts *sqlitex.ExecOptions) {
	t.Helper()
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer s.pool.Put(conn)
	if err := sqlitex.ExecuteTransient(conn, query, opts); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
}

func blobCount(t *testing.T, s *Store) int {
	t.Helper()
	var count int
	execTest(t, s, "SELECT COUNT(*) FROM blobs", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	return count
}

var (
	timeA = time.Date(2026, 8, 22, 10, 0, 0, 0, time.UTC)
	timeB = time.Date(2026, 8, 22, 11, 30, 0, 0, time.UTC)
)

func TestSaveAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := t.Context()

	first, err := store.Save(ctx, testSnap("node1", timeA, "performance"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first.ID <= 0 {
		t.Errorf("record ID = %d, want positive", first.ID)
	}
	if len(first.Fingerprint) != 64 {
		t.Errorf("fingerprint %q is not 64 hex digits", first.Fingerprint)
	}
	if first.ToolVersion != "1.2.3-test" {
		t.Errorf("tool version = %q", first.ToolVersion)
	}
	if first.Summary != "2 properties, 3 units" {
		t.Errorf("summary = %q", first.Summary)
	}

	if _, err := store.Save(ctx, testSnap("node1", timeB, "power")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Save(ctx, testSnap("node2", timeA, "performance")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	records, err := store.List(ctx, "node1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("List(node1) returned %d records, want 2", len(records))
	}
	if !records[0].CapturedAt.Equal(timeB) || !records[1].CapturedAt.Equal(timeA) {
		t.Errorf("records not newest-first: %v, %v", records[0].CapturedAt, records[1].CapturedAt)
	}
	for _, rec := range records {
		if rec.Host != "node1" {
			t.Errorf("List(node1) returned a record for %q", rec.Host)
		}
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(\"\") returned %d records, want 3", len(all))
	}

	none, err := store.List(ctx, "node9")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("List(node9) returned %d records, want 0", len(none))
	}
}

func TestSaveDeduplicatesBlobs(t *testing.T) {
	store := openTestStore(t)
	ctx := t.Context()

	first, err := store.Save(ctx, testSnap("node1", timeA, "performance"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := store.Save(ctx, testSnap("node2", timeB, "performance"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if first.Fingerprint != second.Fingerprint {
		t.Fatalf("identical states got fingerprints %s and %s", first.Fingerprint, second.Fingerprint)
	}
	if got := blobCount(t, store); got != 1 {
		t.Errorf("blob count = %d after duplicate save, want 1", got)
	}

	records, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("%d records for 2 saves, want 2", len(records))
	}
}

func TestSaveRequiresMetadata(t *testing.T) {
	store := openTestStore(t)

	snap := testSnap("", timeA, "performance")
	if _, err := store.Save(t.Context(), snap); err == nil || !strings.Contains(err.Error(), "host") {
		t.Errorf("Save without host: %v", err)
	}

	snap = testSnap("node1", time.Time{}, "performance")
	if _, err := store.Save(t.Context(), snap); err == nil || !strings.Contains(err.Error(), "capture time") {
		t.Errorf("Save without capture time: %v", err)
	}
}

func TestResolve(t *testing.T) {
	store := openTestStore(t)
	ctx := t.Context()

	rec, err := store.Save(ctx, testSnap("node1", timeA, "performance"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	fingerprint := rec.Fingerprint

	for _, prefix := range []string{fingerprint, fingerprint[:10], strings.ToUpper(fingerprint[:10])} {
		got, err := store.Resolve(ctx, prefix)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", prefix, err)
		}
		if got != fingerprint {
			t.Errorf("Resolve(%q) = %s, want %s", prefix, got, fingerprint)
		}
	}

	// A single hex digit that differs from the fingerprint's first
	// digit cannot match the only stored blob.
	other := "0"
	if fingerprint[0] == '0' {
		other = "1"
	}
	if _, err := store.Resolve(ctx, other); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(%q): %v, want ErrNotFound", other, err)
	}
}

func TestResolveAmbiguous(t *testing.T) {
	store := openTestStore(t)

	// Two blobs sharing a one-digit prefix. Inserted directly: only
	// the fingerprint column matters to Resolve.
	for _, fingerprint := range []string{
		strings.Repeat("a", 64),
		"a" + strings.Repeat("b", 63),
	} {
		execTest(t, store,
			"INSERT INTO blobs (fingerprint, compression, uncompressed_size, data) VALUES (?, 0, 0, x'')",
			&sqlitex.ExecOptions{Args: []any{fingerprint}})
	}

	if _, err := store.Resolve(t.Context(), "a"); !errors.Is(err, ErrAmbiguousPrefix) {
		t.Errorf("Resolve(a): %v, want ErrAmbiguousPrefix", err)
	}
	if got, err := store.Resolve(t.Context(), "ab"); err != nil || got != "a"+strings.Repeat("b", 63) {
		t.Errorf("Resolve(ab) = %q, %v", got, err)
	}
}

func TestResolveRejectsBadPrefixes(t *testing.T) {
	store := openTestStore(t)

	for _, prefix := range []string{"", "xyz", "12g4", strings.Repeat("a", 65)} {
		if _, err := store.Resolve(t.Context(), prefix); err == nil {
			t.Errorf("Resolve(%q) should fail", prefix)
		}
	}
}

func TestLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := t.Context()

	original := testSnap("node1", timeA, "performance")
	saved, err := store.Save(ctx, original)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, rec, err := store.Load(ctx, saved.Fingerprint[:12])
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Host != "node1" || !loaded.CapturedAt.Equal(timeA) {
		t.Errorf("loaded metadata = %s at %v", loaded.Host, loaded.CapturedAt)
	}
	if loaded.ToolVersion != "1.2.3-test" {
		t.Errorf("loaded tool version = %q, want the record's", loaded.ToolVersion)
	}
	if rec.Fingerprint != saved.Fingerprint || rec.ID != saved.ID {
		t.Errorf("record = %+v, want the saved record", rec)
	}

	wantState, err := original.StateBytes()
	if err != nil {
		t.Fatalf("StateBytes: %v", err)
	}
	gotState, err := loaded.StateBytes()
	if err != nil {
		t.Fatalf("StateBytes: %v", err)
	}
	if string(gotState) != string(wantState) {
		t.Errorf("loaded state differs:\ngot:\n%s\nwant:\n%s", gotState, wantState)
	}
}

func TestLoadNewestRecordMetadata(t *testing.T) {
	store := openTestStore(t)
	ctx := t.Context()

	if _, err := store.Save(ctx, testSnap("node1", timeA, "performance")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	saved, err := store.Save(ctx, testSnap("node2", timeB, "performance"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, rec, err := store.Load(ctx, saved.Fingerprint)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Host != "node2" || !loaded.CapturedAt.Equal(timeB) {
		t.Errorf("loaded metadata = %s at %v, want the newest record's", loaded.Host, loaded.CapturedAt)
	}
	if rec.Host != "node2" {
		t.Errorf("record host = %s, want node2", rec.Host)
	}
}

func TestLoadUnknownPrefix(t *testing.T) {
	store := openTestStore(t)
	if _, _, err := store.Load(t.Context(), "abc123"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load on an empty store: %v, want ErrNotFound", err)
	}
}

func TestLoadCorruptBlob(t *testing.T) {
	store := openTestStore(t)
	ctx := t.Context()

	saved, err := store.Save(ctx, testSnap("node1", timeA, "performance"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Garbage in place of the stored bytes: whatever the recorded
	// compression tag, decompression or size verification fails.
	execTest(t, store,
		"UPDATE blobs SET data = ? WHERE fingerprint = ?",
		&sqlitex.ExecOptions{Args: []any{[]byte("{]{]{]"), saved.Fingerprint}})

	if _, _, err := store.Load(ctx, saved.Fingerprint); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load of garbage blob: %v, want ErrCorrupt", err)
	}
}

func TestLoadDetectsFingerprintMismatch(t *testing.T) {
	store := openTestStore(t)
	ctx := t.Context()

	saved, err := store.Save(ctx, testSnap("node1", timeA, "performance"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A well-formed blob holding some other state under this
	// fingerprint. Decoding succeeds; verification must not.
	impostor, err := testSnap("node1", timeA, "power").StateBytes()
	if err != nil {
		t.Fatalf("StateBytes: %v", err)
	}
	data, tag := compressBlob(impostor)
	execTest(t, store,
		"UPDATE blobs SET data = ?, compression = ?, uncompressed_size = ? WHERE fingerprint = ?",
		&sqlitex.ExecOptions{Args: []any{data, int(tag), len(impostor), saved.Fingerprint}})

	if _, _, err := store.Load(ctx, saved.Fingerprint); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load of mislabeled blob: %v, want ErrCorrupt", err)
	}
}

func TestDiffStored(t *testing.T) {
	store := openTestStore(t)
	ctx := t.Context()

	before, err := store.Save(ctx, testSnap("node1", timeA, "performance"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	after, err := store.Save(ctx, testSnap("node1", timeB, "power"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	changes, err := store.Diff(ctx, before.Fingerprint[:8], after.Fingerprint[:8])
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	want := []snapshot.Change{
		{Property: "epp", Unit: "cpu:0", From: "performance", To: "power"},
		{Property: "epp", Unit: "cpu:1", From: "performance", To: "power"},
	}
	if len(changes) != len(want) {
		t.Fatalf("Diff returned %d changes, want %d: %+v", len(changes), len(want), changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, changes[i], want[i])
		}
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("Open without a path should fail")
	}
}
