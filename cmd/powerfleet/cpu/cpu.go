// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package cpu implements the "powerfleet cpu" command tree: taking
// logical CPUs offline and bringing them back online.
package cpu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli"
	"github.com/powerfleet/powerfleet/topology"
)

// Command returns the "powerfleet cpu" command tree.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "cpu",
		Summary: "Take CPUs offline and bring them online",
		Description: `Hotplug logical CPUs. Offline CPUs take no interrupts and run no
tasks; their package, die, and core placement is unknown until they
come back online. CPU 0 cannot be hotplugged.`,
		Usage: "powerfleet cpu <command> [flags]",
		Subcommands: []*cli.Command{
			hotplugCommand("online", true),
			hotplugCommand("offline", false),
		},
	}
}

func hotplugCommand(name string, online bool) *cli.Command {
	var target cli.Target

	verb := "Bring"
	direction := "online"
	if !online {
		verb = "Take"
		direction = "offline"
	}

	return &cli.Command{
		Name:    name,
		Summary: fmt.Sprintf("%s the listed CPUs %s", verb, direction),
		Usage:   fmt.Sprintf("powerfleet cpu %s <cpulist> [flags]", name),
		Examples: []cli.Example{
			{
				Description: fmt.Sprintf("%s CPUs 2 and 3 %s", verb, direction),
				Command:     fmt.Sprintf("powerfleet cpu %s 2-3", name),
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
			target.BindFlags(flags)
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected one CPU list, got %d arguments", len(args))
			}
			session, err := target.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()
			return runHotplug(ctx, session, args[0], online, os.Stdout)
		},
	}
}

func runHotplug(ctx context.Context, session *cli.Session, list string, online bool, w io.Writer) error {
	cpus, err := topology.ParseCPUList(list)
	if err != nil {
		return err
	}

	if err := session.Engine.SetOnline(ctx, cpus, online); err != nil {
		return err
	}

	// Hotplug changed which CPUs the kernel reports; rebuild so later
	// operations in this process see the new topology.
	if err := session.Host.Rebuild(ctx); err != nil {
		return fmt.Errorf("refreshing topology: %w", err)
	}

	if online {
		fmt.Fprintf(w, "brought CPUs %s online\n", topology.FormatCPUList(cpus))
	} else {
		fmt.Fprintf(w, "took CPUs %s offline\n", topology.FormatCPUList(cpus))
	}
	return nil
}
