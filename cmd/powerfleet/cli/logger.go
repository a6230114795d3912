// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewLogger creates the structured logger for command execution.
// When stderr is a terminal, it uses slog.TextHandler for
// human-readable output. When stderr is piped or redirected (scripts,
// CI, cron), it uses slog.JSONHandler so the lines stay
// machine-parseable.
//
// Commands scope the logger with command-specific context via With:
//
//	logger := cli.NewLogger(cfg.LogLevel()).With("command", "set", "host", hostName)
func NewLogger(level slog.Level) *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
