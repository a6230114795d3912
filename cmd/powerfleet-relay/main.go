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

	"github.com/spf13/pflag"

	"github.com/powerfleet/powerfleet/lib/version"
	"github.com/powerfleet/powerfleet/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("powerfleet-relay", pflag.ContinueOnError)
	flags.SetOutput(os.Stderr)
	verbose := flags.Bool("verbose", false, "log every relay request to stderr")
	showVersion := flags.Bool("version", false, "print the version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Println(version.Info())
		return 0
	}

	// Stdout carries protocol frames; logs must stay on stderr.
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	local := transport.NewLocal()
	defer local.Close()
	if err := transport.ServeRelay(ctx, os.Stdin, os.Stdout, local, logger); err != nil {
		fmt.Fprintf(os.Stderr, "powerfleet-relay: %v\n", err)
		return 1
	}
	return 0
}
