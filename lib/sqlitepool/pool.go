// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening a pool. Path is required.
type Config struct {
	// Path is the database file, created on first open. The parent
	// directory must already exist. ":memory:" gives an in-memory
	// database; pair it with PoolSize 1, because every in-memory
	// connection is a separate database.
	Path string

	// PoolSize is the number of connections. Zero or negative means 4,
	// enough for a handful of concurrent readers while SQLite
	// serializes the writes anyway.
	PoolSize int

	// Logger receives open and close messages. Nil discards them.
	Logger *slog.Logger

	// OnConnect runs once per connection after the standard pragmas,
	// before the connection serves its first statement. Schema setup
	// belongs here. An error discards the connection and surfaces
	// from Take.
	OnConnect func(conn *sqlite.Conn) error
}

// Pool hands out SQLite connections configured for write-ahead
// logging. It is safe for concurrent use; the connections it hands
// out are not, so every goroutine must Take its own and Put it back.
type Pool struct {
	db     *sqlitex.Pool
	path   string
	logger *slog.Logger
}

// walPragmas configure every connection. WAL keeps readers unblocked
// during writes; synchronous=NORMAL holds transactions across process
// crashes but not OS crashes, which suits data that can be
// re-captured from its source; the busy timeout covers writer
// handoff between pooled connections.
var walPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
}

// Open opens the database at cfg.Path, creating it if absent.
// Connections initialize lazily on first Take. The caller owns the
// returned pool and must Close it.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = 4
	}

	db, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: size,
		PrepareConn: func(conn *sqlite.Conn) error {
			for _, pragma := range walPragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
				}
			}
			if cfg.OnConnect == nil {
				return nil
			}
			if err := cfg.OnConnect(conn); err != nil {
				return fmt.Errorf("sqlitepool: connection setup: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: open %s: %w", cfg.Path, err)
	}

	logger.Info("database pool open", "path", cfg.Path, "connections", size)
	return &Pool{db: db, path: cfg.Path, logger: logger}, nil
}

// Take borrows a connection, blocking until one is free or ctx is
// done. Pair every successful Take with a Put, usually deferred.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.db.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a borrowed connection. A nil conn is a no-op.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.db.Put(conn)
}

// Close waits for borrowed connections to come back, then closes
// them all. Take fails afterwards.
func (p *Pool) Close() error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("sqlitepool: close %s: %w", p.path, err)
	}
	p.logger.Info("database pool closed", "path", p.path)
	return nil
}
