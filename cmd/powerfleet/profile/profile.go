// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package profile implements the tuning profile commands: show a
// profile's plan, apply it to a host.
package profile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli"
	"github.com/powerfleet/powerfleet/lib/profiledef"
	"github.com/powerfleet/powerfleet/topology"
)

// Command returns the "powerfleet profile" command tree.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "profile",
		Summary: "Show and apply tuning profiles",
		Description: `Work with tuning profiles: JSONC files naming a list of property
assignments. "show" prints a profile's plan without touching any
host; "apply" binds every assignment to the target host first and
writes nothing unless the whole profile resolves.`,
		Usage: "powerfleet profile <command> [flags]",
		Subcommands: []*cli.Command{
			showCommand(),
			applyCommand(),
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:    "show",
		Summary: "Print a profile's plan",
		Usage:   "powerfleet profile show <file>",
		Examples: []cli.Example{
			{
				Description: "Show what a profile would set",
				Command:     "powerfleet profile show efficiency.jsonc",
			},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected a profile file, got %d arguments", len(args))
			}
			profile, err := profiledef.ReadFile(args[0])
			if err != nil {
				return err
			}
			return runShow(profile, os.Stdout)
		},
	}
}

func runShow(profile *profiledef.Profile, w io.Writer) error {
	fmt.Fprintf(w, "Profile %s\n", profile.Name)
	if profile.Description != "" {
		fmt.Fprintf(w, "  %s\n", profile.Description)
	}
	fmt.Fprintf(w, "\n")

	if issues := profiledef.Validate(profile); len(issues) > 0 {
		fmt.Fprintf(w, "Problems:\n")
		for _, issue := range issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
		return fmt.Errorf("profile %q is not valid", profile.Name)
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "PROPERTY\tVALUE\tTARGETS\n")
	for _, assignment := range profile.Assignments {
		fmt.Fprintf(writer, "%s\t%s\t%s\n",
			assignment.Property, assignment.Value, formatTargets(assignment))
	}
	return writer.Flush()
}

// formatTargets renders an assignment's selector as authored, without
// resolving it against any topology.
func formatTargets(assignment profiledef.Assignment) string {
	switch {
	case assignment.All:
		return "all CPUs"
	case len(assignment.CPUs) > 0:
		return "CPUs " + joinInts(assignment.CPUs)
	case len(assignment.Packages) > 0:
		return "packages " + joinInts(assignment.Packages)
	case len(assignment.Dies) > 0:
		return "dies " + joinInts(assignment.Dies)
	}
	return "no targets"
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func applyCommand() *cli.Command {
	var target cli.Target

	return &cli.Command{
		Name:    "apply",
		Summary: "Apply a profile to a host",
		Description: `Apply a tuning profile. Every assignment is resolved against the
target host's model and topology before anything is written, so a
profile naming an unknown property, an unsupported property, or a
selector matching nothing changes no state at all.`,
		Usage: "powerfleet profile apply <file> [flags]",
		Examples: []cli.Example{
			{
				Description: "Apply a profile to a fleet host",
				Command:     "powerfleet profile apply efficiency.jsonc --host db3",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("apply", pflag.ContinueOnError)
			target.BindFlags(flags)
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected a profile file, got %d arguments", len(args))
			}
			profile, err := profiledef.ReadFile(args[0])
			if err != nil {
				return err
			}
			session, err := target.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()
			return runApply(ctx, session, profile, os.Stdout)
		},
	}
}

func runApply(ctx context.Context, session *cli.Session, profile *profiledef.Profile, w io.Writer) error {
	steps, err := profiledef.Resolve(profile, session.Engine)
	if err != nil {
		return err
	}

	outcomes, applyErr := profiledef.Apply(ctx, session.Engine, steps)

	failures := 0
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "PROPERTY\tCPUS\tRESULT\n")
	for _, outcome := range outcomes {
		result := "applied"
		if outcome.Err != nil {
			failures++
			result = fmt.Sprintf("failed: %v", outcome.Err)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n",
			outcome.Property, topology.FormatCPUList(outcome.CPUs), result)
	}
	writer.Flush()

	if applyErr != nil {
		return applyErr
	}
	if failures > 0 {
		fmt.Fprintf(w, "\n%d of %d assignments failed\n", failures, len(outcomes))
		return &cli.ExitError{Code: 1}
	}
	return nil
}
