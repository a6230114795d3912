// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package inspect

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli"
	"github.com/powerfleet/powerfleet/topology"
)

// topologyResult is the JSON output of the topology command.
type topologyResult struct {
	Host string   `json:"host"`
	CPUs []cpuRow `json:"cpus"`
}

// cpuRow is one logical CPU's placement. Package, die, and core are
// null for offline CPUs, whose placement the kernel does not report.
type cpuRow struct {
	CPU     int  `json:"cpu"`
	Package *int `json:"package"`
	Die     *int `json:"die"`
	Core    *int `json:"core"`
	Online  bool `json:"online"`
}

// TopologyCommand returns the "powerfleet topology" command.
func TopologyCommand() *cli.Command {
	var target cli.Target
	var jsonOutput bool

	return &cli.Command{
		Name:    "topology",
		Summary: "Show the host's CPU topology",
		Description: `List every present logical CPU with its package, die, and core
placement. Offline CPUs have no reported placement and show "-".`,
		Usage: "powerfleet topology [flags]",
		Examples: []cli.Example{
			{
				Description: "Show the local topology",
				Command:     "powerfleet topology",
			},
			{
				Description: "Show a fleet host's topology as JSON",
				Command:     "powerfleet topology --host db3 --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("topology", pflag.ContinueOnError)
			target.BindFlags(flags)
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
			return runTopology(session.Host.Topology(), jsonOutput, os.Stdout)
		},
	}
}

func runTopology(topo *topology.Topology, jsonOutput bool, w io.Writer) error {
	result := topologyResult{Host: topo.Host()}
	for _, cpu := range topo.CPUs() {
		row := cpuRow{CPU: cpu.ID, Online: cpu.Online}
		if cpu.Online {
			pkg, die, core := cpu.Package, cpu.Die, cpu.Core
			row.Package, row.Die, row.Core = &pkg, &die, &core
		}
		result.CPUs = append(result.CPUs, row)
	}

	if jsonOutput {
		return cli.WriteJSON(w, result)
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "CPU\tPACKAGE\tDIE\tCORE\tONLINE\n")
	for _, row := range result.CPUs {
		if row.Online {
			fmt.Fprintf(writer, "%d\t%d\t%d\t%d\tyes\n", row.CPU, *row.Package, *row.Die, *row.Core)
		} else {
			fmt.Fprintf(writer, "%d\t-\t-\t-\tno\n", row.CPU)
		}
	}
	return writer.Flush()
}
