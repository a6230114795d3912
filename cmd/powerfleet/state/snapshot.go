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
	"time"

	"github.com/spf13/pflag"

	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli"
	"github.com/powerfleet/powerfleet/lib/snapstore"
	"github.com/powerfleet/powerfleet/snapshot"
)

// SnapshotCommand returns the "powerfleet snapshot" command tree over
// the snapshot store.
func SnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:    "snapshot",
		Summary: "Manage the snapshot store",
		Description: `Capture host power state into the snapshot store and inspect what is
stored. Snapshots are content-addressed: the fingerprint is a digest
of the captured state, and identical states share one stored blob.
Commands taking a fingerprint accept any unambiguous prefix.`,
		Usage: "powerfleet snapshot <command> [flags]",
		Subcommands: []*cli.Command{
			captureCommand(),
			listCommand(),
			showCommand(),
			diffCommand(),
		},
	}
}

func captureCommand() *cli.Command {
	var target cli.Target
	var properties []string

	return &cli.Command{
		Name:    "capture",
		Summary: "Capture the host's power state into the store",
		Usage:   "powerfleet snapshot capture [flags]",
		Examples: []cli.Example{
			{
				Description: "Capture a fleet host",
				Command:     "powerfleet snapshot capture --host db3",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("capture", pflag.ContinueOnError)
			target.BindFlags(flags)
			flags.StringSliceVar(&properties, "properties", nil,
				"properties to capture (default: every writable property)")
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
			store, err := cli.OpenStore(session.Config, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			return runSnapshotCapture(ctx, session, store, properties, os.Stdout)
		},
	}
}

func runSnapshotCapture(ctx context.Context, session *cli.Session, store *snapstore.Store, properties []string, w io.Writer) error {
	snap, err := snapshot.Capture(ctx, session.Engine, snapshot.CaptureOptions{Properties: properties})
	if err != nil {
		return err
	}
	rec, err := store.Save(ctx, snap)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "captured %s: %s (%s)\n", rec.Host, shortFingerprint(rec.Fingerprint), rec.Summary)
	return nil
}

// recordRow is one store record in the JSON listing.
type recordRow struct {
	Fingerprint string    `json:"fingerprint"`
	Host        string    `json:"host"`
	CapturedAt  time.Time `json:"captured_at"`
	ToolVersion string    `json:"tool_version"`
	Summary     string    `json:"summary"`
}

func listCommand() *cli.Command {
	var target cli.Target
	var jsonOutput bool

	return &cli.Command{
		Name:    "list",
		Summary: "List stored snapshots, newest first",
		Usage:   "powerfleet snapshot list [flags]",
		Examples: []cli.Example{
			{
				Description: "List every stored snapshot",
				Command:     "powerfleet snapshot list",
			},
			{
				Description: "List one host's snapshots",
				Command:     "powerfleet snapshot list --host db3",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
			target.BindFlags(flags)
			flags.BoolVar(&jsonOutput, "json", false, "emit JSON instead of text")
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			cfg, err := target.LoadConfig()
			if err != nil {
				return err
			}
			if target.Host != "" {
				if _, err := cfg.Host(target.Host); err != nil {
					return err
				}
			}
			store, err := cli.OpenStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			return runSnapshotList(ctx, store, target.Host, jsonOutput, os.Stdout)
		},
	}
}

func runSnapshotList(ctx context.Context, store *snapstore.Store, host string, jsonOutput bool, w io.Writer) error {
	records, err := store.List(ctx, host)
	if err != nil {
		return err
	}

	if jsonOutput {
		rows := make([]recordRow, len(records))
		for i, rec := range records {
			rows[i] = recordRow{
				Fingerprint: rec.Fingerprint,
				Host:        rec.Host,
				CapturedAt:  rec.CapturedAt,
				ToolVersion: rec.ToolVersion,
				Summary:     rec.Summary,
			}
		}
		return cli.WriteJSON(w, rows)
	}

	if len(records) == 0 {
		fmt.Fprintf(w, "no snapshots stored\n")
		return nil
	}
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "FINGERPRINT\tHOST\tCAPTURED\tTOOL\tSUMMARY\n")
	for _, rec := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			shortFingerprint(rec.Fingerprint),
			rec.Host,
			rec.CapturedAt.Format(time.RFC3339),
			rec.ToolVersion,
			rec.Summary)
	}
	return writer.Flush()
}

func showCommand() *cli.Command {
	var target cli.Target

	return &cli.Command{
		Name:    "show",
		Summary: "Print a stored snapshot as a snapshot document",
		Description: `Fetch a stored snapshot by fingerprint prefix and print it in the
same document form "powerfleet save" writes, suitable for piping into
"powerfleet restore -".`,
		Usage: "powerfleet snapshot show <fingerprint> [flags]",
		Examples: []cli.Example{
			{
				Description: "Show a snapshot by prefix",
				Command:     "powerfleet snapshot show 4e1f",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("show", pflag.ContinueOnError)
			target.BindFlags(flags)
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected a fingerprint prefix, got %d arguments", len(args))
			}
			cfg, err := target.LoadConfig()
			if err != nil {
				return err
			}
			store, err := cli.OpenStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			return runSnapshotShow(ctx, store, args[0], os.Stdout)
		},
	}
}

func runSnapshotShow(ctx context.Context, store *snapstore.Store, prefix string, w io.Writer) error {
	snap, _, err := store.Load(ctx, prefix)
	if err != nil {
		return err
	}
	data, err := snap.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// changeRow is one diff entry in the JSON output.
type changeRow struct {
	Property string `json:"property"`
	Unit     string `json:"unit"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

func diffCommand() *cli.Command {
	var target cli.Target
	var jsonOutput bool

	return &cli.Command{
		Name:    "diff",
		Summary: "Compare two stored snapshots",
		Description: `List the (property, unit) pairs on which two stored snapshots
disagree. Exits 0 when the snapshots are identical and 2 when they
differ, so scripts can test for drift without parsing output.`,
		Usage: "powerfleet snapshot diff <from> <to> [flags]",
		Examples: []cli.Example{
			{
				Description: "Compare two snapshots by prefix",
				Command:     "powerfleet snapshot diff 4e1f 97a0",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("diff", pflag.ContinueOnError)
			target.BindFlags(flags)
			flags.BoolVar(&jsonOutput, "json", false, "emit JSON instead of text")
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <from> <to> fingerprint prefixes, got %d arguments", len(args))
			}
			cfg, err := target.LoadConfig()
			if err != nil {
				return err
			}
			store, err := cli.OpenStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			return runSnapshotDiff(ctx, store, args[0], args[1], jsonOutput, os.Stdout)
		},
	}
}

func runSnapshotDiff(ctx context.Context, store *snapstore.Store, fromPrefix, toPrefix string, jsonOutput bool, w io.Writer) error {
	changes, err := store.Diff(ctx, fromPrefix, toPrefix)
	if err != nil {
		return err
	}

	if jsonOutput {
		rows := make([]changeRow, len(changes))
		for i, change := range changes {
			rows[i] = changeRow(change)
		}
		if err := cli.WriteJSON(w, rows); err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		return &cli.ExitError{Code: 2}
	}

	if len(changes) == 0 {
		fmt.Fprintf(w, "snapshots are identical\n")
		return nil
	}
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "PROPERTY\tUNIT\tFROM\tTO\n")
	for _, change := range changes {
		from, to := change.From, change.To
		if from == "" {
			from = "-"
		}
		if to == "" {
			to = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", change.Property, change.Unit, from, to)
	}
	writer.Flush()
	return &cli.ExitError{Code: 2}
}

// shortFingerprint truncates a fingerprint for display. Store lookups
// accept prefixes, so the short form is directly usable.
func shortFingerprint(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}
