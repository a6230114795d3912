// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete powerfleet CLI command tree,
// shared by the binary's main package and the tree's own tests.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli"
	cpucmd "github.com/powerfleet/powerfleet/cmd/powerfleet/cpu"
	cstatescmd "github.com/powerfleet/powerfleet/cmd/powerfleet/cstates"
	fleetcmd "github.com/powerfleet/powerfleet/cmd/powerfleet/fleet"
	inspectcmd "github.com/powerfleet/powerfleet/cmd/powerfleet/inspect"
	profilecmd "github.com/powerfleet/powerfleet/cmd/powerfleet/profile"
	propertycmd "github.com/powerfleet/powerfleet/cmd/powerfleet/property"
	statecmd "github.com/powerfleet/powerfleet/cmd/powerfleet/state"
	"github.com/powerfleet/powerfleet/lib/version"
)

// Root builds and returns the complete powerfleet command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "powerfleet",
		Description: `Powerfleet inspects and tunes CPU power and performance state.

Read and write P-state and C-state knobs (EPP, EPB, turbo, governor,
package C-state limits, uncore ratio limits) on the local machine or
on fleet hosts over SSH, snapshot host state into a content-addressed
store, and apply tuning profiles.`,
		Subcommands: []*cli.Command{
			inspectcmd.InfoCommand(),
			inspectcmd.TopologyCommand(),
			propertycmd.GetCommand(),
			propertycmd.SetCommand(),
			cstatescmd.Command(),
			cpucmd.Command(),
			statecmd.SaveCommand(),
			statecmd.RestoreCommand(),
			statecmd.SnapshotCommand(),
			profilecmd.Command(),
			fleetcmd.Command(),
			{
				Name:    "version",
				Summary: "Print version information",
				Usage:   "powerfleet version",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Printf("powerfleet %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Inspect the local machine (model, topology, properties)",
				Command:     "powerfleet info",
			},
			{
				Description: "Read the energy/performance preference on every CPU",
				Command:     "powerfleet get epp",
			},
			{
				Description: "Pin the governor on package 0 of a fleet host",
				Command:     "powerfleet set governor performance --packages 0 --host db3",
			},
			{
				Description: "Disable deep idle on the housekeeping CPUs",
				Command:     "powerfleet cstates disable C6 --cpus 0-3",
			},
			{
				Description: "Capture every configured host into the snapshot store",
				Command:     "powerfleet fleet capture",
			},
			{
				Description: "Check two snapshots for drift",
				Command:     "powerfleet snapshot diff 4e1f 97a0",
			},
			{
				Description: "Apply a tuning profile after resolving it against the host",
				Command:     "powerfleet profile apply efficiency.jsonc --host db3",
			},
		},
	}
}
