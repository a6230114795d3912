// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError signals a non-zero exit code without printing an extra
// error message. When a command returns an ExitError, main exits with
// the carried code and prints nothing; the command has already
// written its own report.
//
// Commands use it where a non-zero exit is a valid outcome rather
// than a failure: "snapshot diff" exiting 2 when the two states
// differ, or "restore" exiting 1 after printing which properties
// could not be applied.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code. main checks for this interface on
// returned errors to distinguish "handled non-zero exit" from
// "unexpected error to display".
func (e *ExitError) ExitCode() int {
	return e.Code
}
