// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Compile-time interface check.
var _ Transport = (*Local)(nil)

// Local is the transport binding for the machine this process runs
// on. Commands run via os/exec; byte-range I/O uses pread/pwrite so
// register offsets into /dev/cpu/*/msr address the right register.
type Local struct{}

// NewLocal returns a transport bound to the local machine.
func NewLocal() *Local {
	return &Local{}
}

// Run executes argv locally and captures its output.
func (l *Local) Run(ctx context.Context, argv []string) (RunResult, error) {
	if len(argv) == 0 {
		return RunResult{}, errors.New("run: empty argv")
	}
	command := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	err := command.Run()
	if err != nil && ctx.Err() != nil {
		return RunResult{}, ctx.Err()
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		// Exit code 0.
	case errors.As(err, &exitErr):
		// The command ran and reported a status; that is data for
		// the caller, not a transport failure.
	case errors.Is(err, fs.ErrPermission):
		return RunResult{}, fmt.Errorf("run %s: %w", argv[0], ErrPermission)
	default:
		return RunResult{}, fmt.Errorf("run %s: %w: %v", argv[0], ErrUnavailable, err)
	}

	result := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if exitErr != nil {
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}

// ReadBytes reads at most length bytes from path starting at offset.
func (l *Local) ReadBytes(ctx context.Context, path string, offset int64, length int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if length <= 0 {
		return nil, fmt.Errorf("read %s: non-positive length %d", path, length)
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, wrapPathError("read", path, err)
	}
	defer unix.Close(fd)

	buffer := make([]byte, length)
	n, err := unix.Pread(fd, buffer, offset)
	if err != nil {
		return nil, wrapPathError("read", path, err)
	}
	return buffer[:n], nil
}

// WriteBytes writes data to path at offset. The file is opened
// write-only without truncation: sysfs nodes replace their value on
// write, and registers are not truncatable.
func (l *Local) WriteBytes(ctx context.Context, path string, offset int64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return wrapPathError("write", path, err)
	}
	defer unix.Close(fd)

	n, err := unix.Pwrite(fd, data, offset)
	if err != nil {
		return wrapPathError("write", path, err)
	}
	if n != len(data) {
		return fmt.Errorf("write %s: %w: %d of %d bytes", path, io.ErrShortWrite, n, len(data))
	}
	return nil
}

// Host returns "localhost".
func (l *Local) Host() string {
	return "localhost"
}

// Close is a no-op for the local binding.
func (l *Local) Close() error {
	return nil
}

// wrapPathError classifies a syscall failure on path into the shared
// transport error kinds, keeping the raw error for kinds it does not
// recognize.
func wrapPathError(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s %s: %w", op, path, ErrPermission)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s %s: %w", op, path, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}
