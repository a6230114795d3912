// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLocalRun(t *testing.T) {
	local := NewLocal()
	result, err := local.Run(t.Context(), []string{"sh", "-c", "printf out; printf err >&2; exit 3"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := result.Stdout, "out"; got != want {
		t.Errorf("Stdout = %q, want %q", got, want)
	}
	if got, want := result.Stderr, "err"; got != want {
		t.Errorf("Stderr = %q, want %q", got, want)
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
}

func TestLocalRunMissingCommand(t *testing.T) {
	local := NewLocal()
	missing := filepath.Join(t.TempDir(), "no-such-binary")
	if _, err := local.Run(t.Context(), []string{missing}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Run missing binary: err = %v, want ErrUnavailable", err)
	}
	if _, err := local.Run(t.Context(), nil); err == nil {
		t.Error("Run with empty argv succeeded")
	}
}

func TestLocalRunCancelled(t *testing.T) {
	local := NewLocal()
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := local.Run(ctx, []string{"sleep", "10"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run err = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run blocked for %v after cancellation", elapsed)
	}
}

func TestLocalReadBytes(t *testing.T) {
	local := NewLocal()
	path := filepath.Join(t.TempDir(), "node")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := local.ReadBytes(t.Context(), path, 0, 64)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if got, want := string(data), "0123456789"; got != want {
		t.Errorf("ReadBytes = %q, want %q", got, want)
	}

	data, err = local.ReadBytes(t.Context(), path, 4, 3)
	if err != nil {
		t.Fatalf("ReadBytes at offset: %v", err)
	}
	if got, want := string(data), "456"; got != want {
		t.Errorf("ReadBytes(4, 3) = %q, want %q", got, want)
	}

	if _, err := local.ReadBytes(t.Context(), path, 0, 0); err == nil {
		t.Error("ReadBytes with zero length succeeded")
	}
}

func TestLocalWriteBytes(t *testing.T) {
	local := NewLocal()
	path := filepath.Join(t.TempDir(), "node")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	// pwrite splices without truncating.
	if err := local.WriteBytes(t.Context(), path, 4, []byte("XY")); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), "0123XY6789"; got != want {
		t.Errorf("file after write = %q, want %q", got, want)
	}
}

func TestLocalPathErrorKinds(t *testing.T) {
	local := NewLocal()
	missing := filepath.Join(t.TempDir(), "missing")

	if _, err := local.ReadBytes(t.Context(), missing, 0, 8); !errors.Is(err, ErrNotFound) {
		t.Errorf("read missing path: err = %v, want ErrNotFound", err)
	}
	if err := local.WriteBytes(t.Context(), missing, 0, []byte("x")); !errors.Is(err, ErrNotFound) {
		t.Errorf("write missing path: err = %v, want ErrNotFound", err)
	}

	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	readOnly := filepath.Join(t.TempDir(), "readonly")
	if err := os.WriteFile(readOnly, []byte("x"), 0o444); err != nil {
		t.Fatal(err)
	}
	if err := local.WriteBytes(t.Context(), readOnly, 0, []byte("y")); !errors.Is(err, ErrPermission) {
		t.Errorf("write read-only path: err = %v, want ErrPermission", err)
	}
}

func TestLocalHost(t *testing.T) {
	if got, want := NewLocal().Host(), "localhost"; got != want {
		t.Errorf("Host() = %q, want %q", got, want)
	}
}
