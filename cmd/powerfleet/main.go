// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli"
	"github.com/powerfleet/powerfleet/cmd/powerfleet/commands"
	"github.com/powerfleet/powerfleet/lib/config"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own report (restore, profile
		// apply, snapshot diff) return an exit-code error. Don't add
		// a redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The logger exists before flag parsing, so its level follows the
	// default config resolution (POWERFLEET_CONFIG or the default
	// path). A file named only by --config is still honored for
	// everything the command itself does.
	level := slog.LevelInfo
	if cfg, err := config.Load(""); err == nil {
		level = cfg.LogLevel()
	}
	logger := cli.NewLogger(level)

	return commands.Root().Execute(ctx, os.Args[1:], logger)
}
