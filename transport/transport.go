// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
)

// Error kinds shared by all transport bindings. Callers classify
// failures with errors.Is; the concrete binding wraps these with
// operation and path context.
var (
	// ErrUnavailable reports a connection or process launch failure:
	// the host cannot be reached or the command cannot be started.
	// Operations are not retried automatically.
	ErrUnavailable = errors.New("transport unavailable")

	// ErrPermission reports insufficient privilege to access a path
	// or register. Surfaced verbatim, never retried.
	ErrPermission = errors.New("permission denied")

	// ErrNotFound reports a path or register that does not exist on
	// the host (missing sysfs node, msr module not loaded).
	ErrNotFound = errors.New("does not exist")
)

// RunResult holds the outcome of a completed command. A non-zero exit
// code is data, not an error: the command launched, ran, and reported
// a status. Launch failures surface as errors from Run instead.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Transport executes commands and reads or writes byte ranges on one
// host. Implementations are safe for concurrent use; shared session
// state is serialized internally.
type Transport interface {
	// Run executes argv on the host and returns its output and exit
	// code. The error is non-nil only when the command could not be
	// run at all (launch failure, lost connection, cancellation).
	Run(ctx context.Context, argv []string) (RunResult, error)

	// ReadBytes reads at most length bytes from path starting at
	// offset. It returns fewer bytes when the node is shorter, which
	// is the normal case for sysfs values.
	ReadBytes(ctx context.Context, path string, offset int64, length int) ([]byte, error)

	// WriteBytes writes data to path at offset. The write is complete
	// on nil return; short writes are reported as errors.
	WriteBytes(ctx context.Context, path string, offset int64, data []byte) error

	// Host returns the host identifier this transport is bound to,
	// for log and error messages.
	Host() string

	// Close releases the transport's resources. The transport must
	// not be used after Close.
	Close() error
}
