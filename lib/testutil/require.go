// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil bounds channel waits in tests. A test that blocks
// on a goroutine's exit channel hangs the whole run when the
// goroutine wedges; these helpers turn that hang into a named
// failure. The relay session tests use them to wait on the serve
// loop.
package testutil

import "time"

// TB is the sliver of testing.TB the helpers need.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test
// with what if none arrives within timeout or the channel closes
// empty.
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, what string) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed before delivering: %s", what)
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("no value within %v: %s", timeout, what)
	}
	panic("unreachable")
}

// RequireClosed waits for ch to close (or deliver), failing the test
// with what after timeout.
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("still open after %v: %s", timeout, what)
	}
}
