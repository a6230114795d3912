// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli"
	"github.com/powerfleet/powerfleet/snapshot"
)

// RestoreCommand returns the "powerfleet restore" command.
func RestoreCommand() *cli.Command {
	var target cli.Target

	return &cli.Command{
		Name:    "restore",
		Summary: "Replay a snapshot file onto the host",
		Description: `Apply a snapshot document to the host, one write per recorded scope
unit. Properties the target's model does not support, and read-only
properties, are skipped and reported. A unit that fails to apply does
not stop the rest; the command reports every outcome and exits 1 if
any property failed.

Reads the snapshot from the named file, or from stdin with "-".`,
		Usage: "powerfleet restore <file|-> [flags]",
		Examples: []cli.Example{
			{
				Description: "Restore the local machine from a file",
				Command:     "powerfleet restore before-tuning.yaml",
			},
			{
				Description: "Replay a stored snapshot onto another fleet host",
				Command:     "powerfleet snapshot show 4e1f | powerfleet restore --host db4 -",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("restore", pflag.ContinueOnError)
			target.BindFlags(flags)
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected a snapshot file (or - for stdin), got %d arguments", len(args))
			}
			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			session, err := target.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()
			return runRestore(ctx, session, snap, os.Stdout)
		},
	}
}

// readSnapshot loads and decodes a snapshot document from a file, or
// from stdin when path is "-".
func readSnapshot(path string) (*snapshot.Snapshot, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return snapshot.Decode(data)
}

func runRestore(ctx context.Context, session *cli.Session, snap *snapshot.Snapshot, w io.Writer) error {
	outcomes, applyErr := snapshot.Apply(ctx, session.Engine, snap)
	failures := printOutcomes(w, outcomes)
	if applyErr != nil {
		return applyErr
	}
	if failures > 0 {
		fmt.Fprintf(w, "\n%d of %d properties failed\n", failures, len(outcomes))
		return &cli.ExitError{Code: 1}
	}
	return nil
}

// printOutcomes renders an apply report and returns the number of
// failed properties.
func printOutcomes(w io.Writer, outcomes []snapshot.Outcome) int {
	failures := 0
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "PROPERTY\tRESULT\n")
	for _, outcome := range outcomes {
		switch {
		case outcome.Skipped:
			fmt.Fprintf(writer, "%s\tskipped (%s)\n", outcome.Property, outcome.Reason)
		case outcome.Err != nil:
			failures++
			fmt.Fprintf(writer, "%s\tfailed: %v\n", outcome.Property, outcome.Err)
		default:
			fmt.Fprintf(writer, "%s\tapplied\n", outcome.Property)
		}
	}
	writer.Flush()
	return failures
}
