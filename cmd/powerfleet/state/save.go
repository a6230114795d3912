// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package state implements the snapshot commands: "powerfleet save"
// and "powerfleet restore" for file-based snapshots, and the
// "powerfleet snapshot" tree for the content-addressed snapshot
// store.
package state

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli"
	"github.com/powerfleet/powerfleet/snapshot"
)

// SaveCommand returns the "powerfleet save" command.
func SaveCommand() *cli.Command {
	var target cli.Target
	var properties []string
	var output string

	return &cli.Command{
		Name:    "save",
		Summary: "Capture the host's power state to a snapshot file",
		Description: `Capture the host's writable properties at their effective scope and
write the snapshot document to stdout or a file. The snapshot can be
replayed later with "powerfleet restore", on the same host or another
host of the same shape.

By default every writable property the host supports is captured;
properties whose control interface the kernel does not expose are
skipped. With --properties, exactly the named properties are
captured, and a property that cannot be read fails the capture.`,
		Usage: "powerfleet save [flags]",
		Examples: []cli.Example{
			{
				Description: "Snapshot the local machine to a file",
				Command:     "powerfleet save --output before-tuning.yaml",
			},
			{
				Description: "Snapshot only the idle-related controls of a fleet host",
				Command:     "powerfleet save --host db3 --properties pkg_cstate_limit,c1e_autopromote",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("save", pflag.ContinueOnError)
			target.BindFlags(flags)
			flags.StringSliceVar(&properties, "properties", nil,
				"properties to capture (default: every writable property)")
			flags.StringVarP(&output, "output", "o", "",
				"write the snapshot to this file instead of stdout")
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			session, err := target.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()
			return runSave(ctx, session, properties, output, os.Stdout)
		},
	}
}

func runSave(ctx context.Context, session *cli.Session, properties []string, output string, w io.Writer) error {
	snap, err := snapshot.Capture(ctx, session.Engine, snapshot.CaptureOptions{Properties: properties})
	if err != nil {
		return err
	}
	data, err := snap.Encode()
	if err != nil {
		return err
	}

	if output == "" || output == "-" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	fmt.Fprintf(w, "wrote snapshot of %s (%s) to %s\n", snap.Host, snap.Summary(), output)
	return nil
}
