// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock injects wall-clock reads so capture timestamps can be
// pinned under test.
package clock

import (
	"sync"
	"time"
)

// A Clock supplies the current time. Code that stamps snapshots takes
// one as a parameter instead of calling time.Now, so tests can hold
// time still.
type Clock interface {
	Now() time.Time
}

// Real returns the clock backed by time.Now.
func Real() Clock { return sysClock{} }

type sysClock struct{}

func (sysClock) Now() time.Time { return time.Now() }

// Fake returns a clock frozen at start. It moves only through
// Advance. Safe for concurrent use.
func Fake(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// FakeClock is a hand-driven Clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d. A negative d panics; a
// capture timeline never runs backward.
func (f *FakeClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: negative Advance")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
