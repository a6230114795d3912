// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Compile-time interface check.
var _ Transport = (*Emulated)(nil)

// Emulated serves transport operations from an in-memory node tree
// instead of a live machine. Tests and offline demos populate it with
// the sysfs nodes, register files, and command output of the host
// they model.
//
// Writes at offset zero replace the node's whole content, matching
// sysfs semantics; writes at a nonzero offset splice into the
// existing content, matching register files. Writes never create
// nodes: a write to an unknown path reports ErrNotFound, the same
// way a live host would.
type Emulated struct {
	host string

	mu       sync.Mutex
	nodes    map[string][]byte
	readOnly map[string]bool
	commands map[string]RunResult
}

// NewEmulated returns an empty emulated host with the given name.
func NewEmulated(host string) *Emulated {
	if host == "" {
		host = "emulated"
	}
	return &Emulated{
		host:     host,
		nodes:    make(map[string][]byte),
		readOnly: make(map[string]bool),
		commands: make(map[string]RunResult),
	}
}

// SetNode creates or replaces the node at path.
func (e *Emulated) SetNode(path string, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nodes[path] = append([]byte(nil), data...)
	delete(e.readOnly, path)
}

// SetReadOnly marks an existing node so that writes to it report
// ErrPermission.
func (e *Emulated) SetReadOnly(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.readOnly[path] = true
}

// RemoveNode deletes the node at path, modeling a sysfs subtree that
// vanished (an offlined CPU, an unloaded module).
func (e *Emulated) RemoveNode(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.nodes, path)
	delete(e.readOnly, path)
}

// Node returns a copy of the node's current content.
func (e *Emulated) Node(path string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.nodes[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// SetCommand registers the result Run returns for exactly argv.
func (e *Emulated) SetCommand(argv []string, result RunResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands[commandKey(argv)] = result
}

// Run returns the registered result for argv. Unregistered commands
// fail like a missing binary.
func (e *Emulated) Run(ctx context.Context, argv []string) (RunResult, error) {
	if err := ctx.Err(); err != nil {
		return RunResult{}, err
	}
	if len(argv) == 0 {
		return RunResult{}, fmt.Errorf("run: empty argv")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	result, ok := e.commands[commandKey(argv)]
	if !ok {
		return RunResult{}, fmt.Errorf("run %s: %w", argv[0], ErrUnavailable)
	}
	return result, nil
}

// ReadBytes reads at most length bytes from the node at path starting
// at offset. Reading past the end returns the bytes that exist, like
// pread.
func (e *Emulated) ReadBytes(ctx context.Context, path string, offset int64, length int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if length <= 0 {
		return nil, fmt.Errorf("read %s: non-positive length %d", path, length)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.nodes[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, ErrNotFound)
	}
	if offset >= int64(len(data)) {
		return nil, nil
	}
	end := min(offset+int64(length), int64(len(data)))
	return append([]byte(nil), data[offset:end]...), nil
}

// WriteBytes writes data to the node at path.
func (e *Emulated) WriteBytes(ctx context.Context, path string, offset int64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	current, ok := e.nodes[path]
	if !ok {
		return fmt.Errorf("write %s: %w", path, ErrNotFound)
	}
	if e.readOnly[path] {
		return fmt.Errorf("write %s: %w", path, ErrPermission)
	}
	if offset == 0 {
		e.nodes[path] = append([]byte(nil), data...)
		return nil
	}
	end := offset + int64(len(data))
	if end > int64(len(current)) {
		grown := make([]byte, end)
		copy(grown, current)
		current = grown
	}
	copy(current[offset:], data)
	e.nodes[path] = current
	return nil
}

// Host returns the emulated host's name.
func (e *Emulated) Host() string {
	return e.host
}

// Close is a no-op for the emulated binding.
func (e *Emulated) Close() error {
	return nil
}

func commandKey(argv []string) string {
	return strings.Join(argv, " ")
}
