// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package property

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli"
	"github.com/powerfleet/powerfleet/power"
	"github.com/powerfleet/powerfleet/topology"
)

// SetCommand returns the "powerfleet set" command.
func SetCommand() *cli.Command {
	var target cli.Target
	var selection cli.CPUSelection

	return &cli.Command{
		Name:    "set",
		Summary: "Write a property value on a selection of CPUs",
		Description: `Set one property to one value on the targeted CPUs. The write lands
once per scope unit; every targeted CPU of a package-scope property
resolves to its package's control.

Values take the property's kind: "on"/"off" for switches, a number
or policy name for numeric hints, a token for enumerations. A write
that fails on some units but lands on others reports the partial
failure with the units that did not change.`,
		Usage: "powerfleet set <property> <value> [flags]",
		Examples: []cli.Example{
			{
				Description: "Disable turbo on the local machine",
				Command:     "powerfleet set turbo off",
			},
			{
				Description: "Set EPP to power on package 1 of a fleet host",
				Command:     "powerfleet set epp power --host db3 --packages 1",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("set", pflag.ContinueOnError)
			target.BindFlags(flags)
			selection.BindFlags(flags)
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <property> <value>, got %d arguments", len(args))
			}
			session, err := target.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()
			return runSet(ctx, session, args[0], args[1], &selection, os.Stdout)
		},
	}
}

func runSet(ctx context.Context, session *cli.Session, name, valueText string, selection *cli.CPUSelection, w io.Writer) error {
	def, ok := power.LookupProperty(name)
	if !ok {
		return fmt.Errorf("property %q does not exist (run 'powerfleet info' for the list)", name)
	}
	value, err := def.Parse(valueText)
	if err != nil {
		return err
	}

	cpus, err := selection.Resolve(session.Host.Topology())
	if err != nil {
		return err
	}

	if err := session.Engine.Set(ctx, name, cpus, value); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s = %s on CPUs %s\n", name, value, topology.FormatCPUList(cpus))
	return nil
}
