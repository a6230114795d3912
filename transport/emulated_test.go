// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"errors"
	"testing"
)

func TestEmulatedReadBytes(t *testing.T) {
	emulated := NewEmulated("test")
	emulated.SetNode("/sys/devices/system/cpu/cpu0/online", []byte("1\n"))

	data, err := emulated.ReadBytes(t.Context(), "/sys/devices/system/cpu/cpu0/online", 0, 64)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if got, want := string(data), "1\n"; got != want {
		t.Errorf("ReadBytes = %q, want %q", got, want)
	}

	// Offset and length select a sub-range.
	emulated.SetNode("/node", []byte("0123456789"))
	data, err = emulated.ReadBytes(t.Context(), "/node", 4, 3)
	if err != nil {
		t.Fatalf("ReadBytes at offset: %v", err)
	}
	if got, want := string(data), "456"; got != want {
		t.Errorf("ReadBytes(4, 3) = %q, want %q", got, want)
	}

	// Reading past the end returns what exists, like pread.
	data, err = emulated.ReadBytes(t.Context(), "/node", 8, 16)
	if err != nil {
		t.Fatalf("ReadBytes past end: %v", err)
	}
	if got, want := string(data), "89"; got != want {
		t.Errorf("ReadBytes(8, 16) = %q, want %q", got, want)
	}
	data, err = emulated.ReadBytes(t.Context(), "/node", 32, 16)
	if err != nil {
		t.Fatalf("ReadBytes beyond end: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("ReadBytes beyond end = %q, want empty", data)
	}
}

func TestEmulatedWriteReplacesAtOffsetZero(t *testing.T) {
	emulated := NewEmulated("test")
	emulated.SetNode("/policy", []byte("balance_performance\n"))

	if err := emulated.WriteBytes(t.Context(), "/policy", 0, []byte("power")); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	data, ok := emulated.Node("/policy")
	if !ok {
		t.Fatal("node disappeared after write")
	}
	if got, want := string(data), "power"; got != want {
		t.Errorf("node after write = %q, want %q", got, want)
	}
}

func TestEmulatedWriteSplicesAtNonzeroOffset(t *testing.T) {
	emulated := NewEmulated("test")
	emulated.SetNode("/dev/cpu/0/msr", make([]byte, 8))

	// An 8-byte register write at a register offset must not disturb
	// the earlier content.
	if err := emulated.WriteBytes(t.Context(), "/dev/cpu/0/msr", 0x1fc, []byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatalf("WriteBytes at register offset: %v", err)
	}
	data, err := emulated.ReadBytes(t.Context(), "/dev/cpu/0/msr", 0x1fc, 8)
	if err != nil {
		t.Fatalf("ReadBytes at register offset: %v", err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("register readback = %v", data)
	}
	head, err := emulated.ReadBytes(t.Context(), "/dev/cpu/0/msr", 0, 8)
	if err != nil {
		t.Fatalf("ReadBytes head: %v", err)
	}
	if !bytes.Equal(head, make([]byte, 8)) {
		t.Errorf("head changed by register write: %v", head)
	}
}

func TestEmulatedErrorKinds(t *testing.T) {
	emulated := NewEmulated("test")
	emulated.SetNode("/locked", []byte("x"))
	emulated.SetReadOnly("/locked")

	if _, err := emulated.ReadBytes(t.Context(), "/missing", 0, 8); !errors.Is(err, ErrNotFound) {
		t.Errorf("read missing node: err = %v, want ErrNotFound", err)
	}
	if err := emulated.WriteBytes(t.Context(), "/missing", 0, []byte("x")); !errors.Is(err, ErrNotFound) {
		t.Errorf("write missing node: err = %v, want ErrNotFound", err)
	}
	if err := emulated.WriteBytes(t.Context(), "/locked", 0, []byte("y")); !errors.Is(err, ErrPermission) {
		t.Errorf("write read-only node: err = %v, want ErrPermission", err)
	}
	if _, err := emulated.Run(t.Context(), []string{"no-such-command"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("unknown command: err = %v, want ErrUnavailable", err)
	}
}

func TestEmulatedRun(t *testing.T) {
	emulated := NewEmulated("test")
	emulated.SetCommand([]string{"uname", "-r"}, RunResult{Stdout: "6.8.0\n"})
	emulated.SetCommand([]string{"false"}, RunResult{Stderr: "nope\n", ExitCode: 1})

	result, err := emulated.Run(t.Context(), []string{"uname", "-r"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := result.Stdout, "6.8.0\n"; got != want {
		t.Errorf("Stdout = %q, want %q", got, want)
	}

	result, err = emulated.Run(t.Context(), []string{"false"})
	if err != nil {
		t.Fatalf("Run false: %v", err)
	}
	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}
	if got, want := result.Stderr, "nope\n"; got != want {
		t.Errorf("Stderr = %q, want %q", got, want)
	}
}

func TestEmulatedRemoveNode(t *testing.T) {
	emulated := NewEmulated("test")
	emulated.SetNode("/sys/devices/system/cpu/cpu3/online", []byte("1\n"))
	emulated.RemoveNode("/sys/devices/system/cpu/cpu3/online")

	if _, err := emulated.ReadBytes(t.Context(), "/sys/devices/system/cpu/cpu3/online", 0, 8); !errors.Is(err, ErrNotFound) {
		t.Errorf("read removed node: err = %v, want ErrNotFound", err)
	}
}

func TestEmulatedHostName(t *testing.T) {
	if got, want := NewEmulated("node-7").Host(), "node-7"; got != want {
		t.Errorf("Host() = %q, want %q", got, want)
	}
	if got, want := NewEmulated("").Host(), "emulated"; got != want {
		t.Errorf("Host() with empty name = %q, want %q", got, want)
	}
}
