// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package snapstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/powerfleet/powerfleet/lib/sqlitepool"
	"github.com/powerfleet/powerfleet/lib/version"
	"github.com/powerfleet/powerfleet/snapshot"
)

// Store is a content-addressed snapshot database. State blobs are
// keyed by fingerprint and shared between captures; capture records
// carry the metadata (host, time, tool version) and point at their
// blob.
type Store struct {
	pool        *sqlitepool.Pool
	logger      *slog.Logger
	toolVersion string
}

// Config holds the parameters for opening a snapshot store.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// 4 if zero or negative.
	PoolSize int

	// Logger receives operational messages. Defaults to a discard
	// handler.
	Logger *slog.Logger

	// ToolVersion is recorded on every capture record. Defaults to
	// the running build's version.
	ToolVersion string
}

// schema is created on every connection; the statements are
// idempotent.
const schema = `
	CREATE TABLE IF NOT EXISTS blobs (
		fingerprint       TEXT PRIMARY KEY,
		compression       INTEGER NOT NULL,
		uncompressed_size INTEGER NOT NULL,
		data              BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id           INTEGER PRIMARY KEY,
		host         TEXT NOT NULL,
		captured_at  INTEGER NOT NULL,
		fingerprint  TEXT NOT NULL,
		tool_version TEXT NOT NULL,
		summary      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_host ON snapshots(host, captured_at);
	CREATE INDEX IF NOT EXISTS idx_snapshots_fingerprint ON snapshots(fingerprint);
`

// Open opens (creating if necessary) a snapshot store at the
// configured path.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("snapshot store: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	toolVersion := cfg.ToolVersion
	if toolVersion == "" {
		toolVersion = version.Short()
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}

	return &Store{
		pool:        pool,
		logger:      logger,
		toolVersion: toolVersion,
	}, nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Record is one row of the snapshots table: a capture of a host at a
// point in time, pointing at its state blob by fingerprint.
type Record struct {
	ID          int64
	Host        string
	CapturedAt  time.Time
	Fingerprint string
	ToolVersion string
	Summary     string
}

// Save stores a snapshot and returns its record. The state blob is
// deduplicated by fingerprint: capturing a state the store has
// already seen adds only a record row.
func (s *Store) Save(ctx context.Context, snap *snapshot.Snapshot) (rec Record, err error) {
	if snap.Host == "" {
		return Record{}, fmt.Errorf("snapshot store: snapshot has no host")
	}
	if snap.CapturedAt.IsZero() {
		return Record{}, fmt.Errorf("snapshot store: snapshot has no capture time")
	}

	stateBytes, err := snap.StateBytes()
	if err != nil {
		return Record{}, fmt.Errorf("snapshot store: encode state: %w", err)
	}
	fingerprint, err := snap.Fingerprint()
	if err != nil {
		return Record{}, fmt.Errorf("snapshot store: fingerprint: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("snapshot store: save: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return Record{}, fmt.Errorf("snapshot store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	var haveBlob bool
	err = sqlitex.Execute(conn,
		"SELECT 1 FROM blobs WHERE fingerprint = ?",
		&sqlitex.ExecOptions{
			Args: []any{fingerprint},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				haveBlob = true
				return nil
			},
		})
	if err != nil {
		return Record{}, fmt.Errorf("snapshot store: check blob: %w", err)
	}

	if !haveBlob {
		data, tag := compressBlob(stateBytes)
		err = sqlitex.Execute(conn,
			`INSERT INTO blobs (fingerprint, compression, uncompressed_size, data)
			 VALUES (?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{fingerprint, int(tag), len(stateBytes), data},
			})
		if err != nil {
			return Record{}, fmt.Errorf("snapshot store: insert blob: %w", err)
		}
		s.logger.Debug("snapshot blob stored",
			"fingerprint", fingerprint,
			"compression", tag.String(),
			"size", len(data),
			"uncompressed_size", len(stateBytes))
	}

	capturedAt := snap.CapturedAt.UTC().UnixNano()
	err = sqlitex.Execute(conn,
		`INSERT INTO snapshots (host, captured_at, fingerprint, tool_version, summary)
		 VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{snap.Host, capturedAt, fingerprint, s.toolVersion, snap.Summary()},
		})
	if err != nil {
		return Record{}, fmt.Errorf("snapshot store: insert record: %w", err)
	}

	return Record{
		ID:          conn.LastInsertRowID(),
		Host:        snap.Host,
		CapturedAt:  time.Unix(0, capturedAt).UTC(),
		Fingerprint: fingerprint,
		ToolVersion: s.toolVersion,
		Summary:     snap.Summary(),
	}, nil
}

// List returns capture records for one host, newest first. An empty
// host lists every host.
func (s *Store) List(ctx context.Context, host string) ([]Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: list: %w", err)
	}
	defer s.pool.Put(conn)

	query := `SELECT id, host, captured_at, fingerprint, tool_version, summary
		FROM snapshots ORDER BY captured_at DESC, id DESC`
	var args []any
	if host != "" {
		query = `SELECT id, host, captured_at, fingerprint, tool_version, summary
			FROM snapshots WHERE host = ? ORDER BY captured_at DESC, id DESC`
		args = []any{host}
	}

	var records []Record
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			records = append(records, recordFromRow(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot store: list: %w", err)
	}
	return records, nil
}

func recordFromRow(stmt *sqlite.Stmt) Record {
	return Record{
		ID:          stmt.ColumnInt64(0),
		Host:        stmt.ColumnText(1),
		CapturedAt:  time.Unix(0, stmt.ColumnInt64(2)).UTC(),
		Fingerprint: stmt.ColumnText(3),
		ToolVersion: stmt.ColumnText(4),
		Summary:     stmt.ColumnText(5),
	}
}

// Resolve expands a fingerprint prefix to the unique stored
// fingerprint it matches. Returns ErrNotFound when nothing matches
// and ErrAmbiguousPrefix when more than one blob does.
func (s *Store) Resolve(ctx context.Context, prefix string) (string, error) {
	prefix = strings.ToLower(prefix)
	if err := checkPrefix(prefix); err != nil {
		return "", fmt.Errorf("snapshot store: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot store: resolve: %w", err)
	}
	defer s.pool.Put(conn)

	var matches []string
	err = sqlitex.Execute(conn,
		"SELECT fingerprint FROM blobs WHERE fingerprint LIKE ? LIMIT 2",
		&sqlitex.ExecOptions{
			// checkPrefix limits the prefix to hex, so there are no
			// LIKE metacharacters to escape.
			Args: []any{prefix + "%"},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				matches = append(matches, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return "", fmt.Errorf("snapshot store: resolve: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("snapshot store: no snapshot matches %q: %w", prefix, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("snapshot store: %q matches multiple snapshots: %w", prefix, ErrAmbiguousPrefix)
	}
}

// checkPrefix rejects prefixes that could not be part of a
// fingerprint. Fingerprints are 64 lowercase hex digits.
func checkPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("empty fingerprint prefix")
	}
	if len(prefix) > 64 {
		return fmt.Errorf("fingerprint prefix %q is longer than a fingerprint", prefix)
	}
	for _, r := range prefix {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return fmt.Errorf("fingerprint prefix %q is not hex", prefix)
		}
	}
	return nil
}

// Load fetches a stored snapshot by fingerprint prefix. The returned
// snapshot carries the metadata of the newest record pointing at the
// blob; the model signature is not part of that metadata, so loaded
// snapshots leave it empty. The blob is verified against its
// fingerprint after decoding.
func (s *Store) Load(ctx context.Context, prefix string) (*snapshot.Snapshot, Record, error) {
	fingerprint, err := s.Resolve(ctx, prefix)
	if err != nil {
		return nil, Record{}, err
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, Record{}, fmt.Errorf("snapshot store: load: %w", err)
	}
	defer s.pool.Put(conn)

	var (
		found            bool
		tag              CompressionTag
		uncompressedSize int
		data             []byte
	)
	err = sqlitex.Execute(conn,
		"SELECT compression, uncompressed_size, data FROM blobs WHERE fingerprint = ?",
		&sqlitex.ExecOptions{
			Args: []any{fingerprint},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				tag = CompressionTag(stmt.ColumnInt64(0))
				uncompressedSize = stmt.ColumnInt(1)
				data = make([]byte, stmt.ColumnLen(2))
				stmt.ColumnBytes(2, data)
				return nil
			},
		})
	if err != nil {
		return nil, Record{}, fmt.Errorf("snapshot store: load blob: %w", err)
	}
	if !found {
		return nil, Record{}, fmt.Errorf("snapshot store: blob %s vanished: %w", fingerprint, ErrNotFound)
	}

	stateBytes, err := decompressBlob(data, tag, uncompressedSize)
	if err != nil {
		return nil, Record{}, fmt.Errorf("snapshot store: blob %s: %w: %w", fingerprint, ErrCorrupt, err)
	}
	properties, err := snapshot.DecodeState(stateBytes)
	if err != nil {
		return nil, Record{}, fmt.Errorf("snapshot store: blob %s: %w: %w", fingerprint, ErrCorrupt, err)
	}

	var (
		haveRecord bool
		rec        Record
	)
	err = sqlitex.Execute(conn,
		`SELECT id, host, captured_at, fingerprint, tool_version, summary
		 FROM snapshots WHERE fingerprint = ?
		 ORDER BY captured_at DESC, id DESC LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{fingerprint},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				haveRecord = true
				rec = recordFromRow(stmt)
				return nil
			},
		})
	if err != nil {
		return nil, Record{}, fmt.Errorf("snapshot store: load record: %w", err)
	}
	if !haveRecord {
		return nil, Record{}, fmt.Errorf("snapshot store: blob %s has no capture record: %w", fingerprint, ErrCorrupt)
	}

	snap := &snapshot.Snapshot{
		Host:        rec.Host,
		CapturedAt:  rec.CapturedAt,
		ToolVersion: rec.ToolVersion,
		Properties:  properties,
	}
	roundTrip, err := snap.Fingerprint()
	if err != nil {
		return nil, Record{}, fmt.Errorf("snapshot store: blob %s: %w: %w", fingerprint, ErrCorrupt, err)
	}
	if roundTrip != fingerprint {
		return nil, Record{}, fmt.Errorf("snapshot store: blob %s decodes to fingerprint %s: %w",
			fingerprint, roundTrip, ErrCorrupt)
	}
	return snap, rec, nil
}

// Diff loads two stored snapshots by prefix and returns the per-unit
// changes from the first to the second.
func (s *Store) Diff(ctx context.Context, fromPrefix, toPrefix string) ([]snapshot.Change, error) {
	from, _, err := s.Load(ctx, fromPrefix)
	if err != nil {
		return nil, err
	}
	to, _, err := s.Load(ctx, toPrefix)
	if err != nil {
		return nil, err
	}
	return snapshot.Diff(from, to), nil
}
