// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package cstates implements the "powerfleet cstates" command tree:
// listing the idle states of a CPU selection and enabling or
// disabling them.
package cstates

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli"
	"github.com/powerfleet/powerfleet/power"
	"github.com/powerfleet/powerfleet/topology"
)

// Command returns the "powerfleet cstates" command tree.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "cstates",
		Summary: "Inspect and control CPU idle states",
		Description: `List the requestable idle states of the targeted CPUs, or enable and
disable individual states. Disabling a state keeps the idle governor
from requesting it; the special name "all" toggles every state.`,
		Usage: "powerfleet cstates <command> [flags]",
		Subcommands: []*cli.Command{
			listCommand(),
			toggleCommand("enable", true),
			toggleCommand("disable", false),
		},
	}
}

// cstateRow is one idle state aggregated over the targeted CPUs.
type cstateRow struct {
	Name         string `json:"name"`
	Desc         string `json:"desc"`
	LatencyUS    int    `json:"latency_us"`
	ResidencyUS  int    `json:"residency_us"`
	DisabledCPUs []int  `json:"disabled_cpus"`
}

func listCommand() *cli.Command {
	var target cli.Target
	var selection cli.CPUSelection
	var jsonOutput bool

	return &cli.Command{
		Name:    "list",
		Summary: "List idle states of the targeted CPUs",
		Description: `Show the idle state table of the targeted CPUs: name, exit latency,
minimum profitable residency, and which of the targeted CPUs have the
state disabled.`,
		Usage: "powerfleet cstates list [flags]",
		Examples: []cli.Example{
			{
				Description: "List idle states of the local machine",
				Command:     "powerfleet cstates list",
			},
			{
				Description: "List idle states of package 0 on a fleet host",
				Command:     "powerfleet cstates list --host db3 --packages 0",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
			target.BindFlags(flags)
			selection.BindFlags(flags)
			flags.BoolVar(&jsonOutput, "json", false, "emit JSON instead of text")
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
			return runList(ctx, session, &selection, jsonOutput, os.Stdout)
		},
	}
}

func runList(ctx context.Context, session *cli.Session, selection *cli.CPUSelection, jsonOutput bool, w io.Writer) error {
	cpus, err := selection.Resolve(session.Host.Topology())
	if err != nil {
		return err
	}

	var rows []cstateRow
	for _, cpu := range cpus {
		states, err := session.Engine.CStates(ctx, cpu)
		if err != nil {
			return err
		}
		for i, state := range states {
			if i == len(rows) {
				rows = append(rows, cstateRow{
					Name:        state.Name,
					Desc:        state.Desc,
					LatencyUS:   state.LatencyUS,
					ResidencyUS: state.ResidencyUS,
				})
			}
			if rows[i].Name != state.Name {
				return fmt.Errorf("CPU %d reports idle state %d as %s, other CPUs as %s",
					cpu, i, state.Name, rows[i].Name)
			}
			if state.Disabled {
				rows[i].DisabledCPUs = append(rows[i].DisabledCPUs, cpu)
			}
		}
	}

	if jsonOutput {
		return cli.WriteJSON(w, rows)
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "NAME\tLATENCY\tRESIDENCY\tDISABLED\tDESCRIPTION\n")
	for _, row := range rows {
		disabled := "-"
		if len(row.DisabledCPUs) > 0 {
			disabled = topology.FormatCPUList(row.DisabledCPUs)
		}
		fmt.Fprintf(writer, "%s\t%dus\t%dus\t%s\t%s\n",
			row.Name, row.LatencyUS, row.ResidencyUS, disabled, row.Desc)
	}
	return writer.Flush()
}

func toggleCommand(name string, enable bool) *cli.Command {
	var target cli.Target
	var selection cli.CPUSelection

	verb := "Enable"
	if !enable {
		verb = "Disable"
	}

	return &cli.Command{
		Name:    name,
		Summary: fmt.Sprintf("%s an idle state on the targeted CPUs", verb),
		Description: fmt.Sprintf(`%s the named idle state on the targeted CPUs. State names match
case-insensitively; "all" matches every state.`, verb),
		Usage: fmt.Sprintf("powerfleet cstates %s <state|all> [flags]", name),
		Examples: []cli.Example{
			{
				Description: fmt.Sprintf("%s C6 on every CPU", verb),
				Command:     fmt.Sprintf("powerfleet cstates %s C6", name),
			},
			{
				Description: fmt.Sprintf("%s every idle state on CPUs 2-3", verb),
				Command:     fmt.Sprintf("powerfleet cstates %s all --cpus 2-3", name),
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
			target.BindFlags(flags)
			selection.BindFlags(flags)
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected one state name, got %d arguments", len(args))
			}
			session, err := target.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()
			return runToggle(ctx, session, args[0], enable, &selection, os.Stdout)
		},
	}
}

func runToggle(ctx context.Context, session *cli.Session, state string, enable bool, selection *cli.CPUSelection, w io.Writer) error {
	cpus, err := selection.Resolve(session.Host.Topology())
	if err != nil {
		return err
	}
	if err := session.Engine.SetCState(ctx, cpus, state, enable); err != nil {
		return err
	}

	what := state
	if state == power.AllCStates {
		what = "all idle states"
	}
	verb := "enabled"
	if !enable {
		verb = "disabled"
	}
	fmt.Fprintf(w, "%s %s on CPUs %s\n", verb, what, topology.FormatCPUList(cpus))
	return nil
}
