// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package property implements the "powerfleet get" and "powerfleet
// set" commands: reading and writing power properties on a selection
// of CPUs.
package property

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

// valueGroup is one distinct value and the CPUs reporting it.
type valueGroup struct {
	Value string `json:"value"`
	CPUs  []int  `json:"cpus"`
}

// errorGroup is one distinct read failure and the CPUs reporting it.
type errorGroup struct {
	Error string `json:"error"`
	CPUs  []int  `json:"cpus"`
}

// propertyReadings is one property's grouped readings in the JSON
// output.
type propertyReadings struct {
	Property string       `json:"property"`
	Scope    string       `json:"scope"`
	Values   []valueGroup `json:"values"`
	Errors   []errorGroup `json:"errors,omitempty"`
}

// GetCommand returns the "powerfleet get" command.
func GetCommand() *cli.Command {
	var target cli.Target
	var selection cli.CPUSelection
	var jsonOutput bool

	return &cli.Command{
		Name:    "get",
		Summary: "Read property values on a selection of CPUs",
		Description: `Read one or more properties on the targeted CPUs and group the
results by value. CPUs sharing a scope unit always report the unit's
value, so a package-scope property shows at most one value per
package.

Run 'powerfleet info' for the property list.`,
		Usage: "powerfleet get <property>... [flags]",
		Examples: []cli.Example{
			{
				Description: "Read the turbo state of the local machine",
				Command:     "powerfleet get turbo",
			},
			{
				Description: "Read EPP and the governor on package 0 of a fleet host",
				Command:     "powerfleet get epp governor --host db3 --packages 0",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("get", pflag.ContinueOnError)
			target.BindFlags(flags)
			selection.BindFlags(flags)
			flags.BoolVar(&jsonOutput, "json", false, "emit JSON instead of text")
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one property required (run 'powerfleet info' for the list)")
			}
			session, err := target.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer session.Close()
			return runGet(ctx, session, args, &selection, jsonOutput, os.Stdout)
		},
	}
}

func runGet(ctx context.Context, session *cli.Session, names []string, selection *cli.CPUSelection, jsonOutput bool, w io.Writer) error {
	cpus, err := selection.Resolve(session.Host.Topology())
	if err != nil {
		return err
	}

	results := make([]propertyReadings, 0, len(names))
	for _, name := range names {
		scope, err := session.Engine.EffectiveScope(name)
		if err != nil {
			return err
		}
		readings, err := session.Engine.Get(ctx, name, cpus)
		if err != nil {
			return err
		}

		result := propertyReadings{Property: name, Scope: scope.String()}
		valueIndex := make(map[string]int)
		errorIndex := make(map[string]int)
		for _, r := range readings {
			if r.Err != nil {
				msg := r.Err.Error()
				i, ok := errorIndex[msg]
				if !ok {
					i = len(result.Errors)
					errorIndex[msg] = i
					result.Errors = append(result.Errors, errorGroup{Error: msg})
				}
				result.Errors[i].CPUs = append(result.Errors[i].CPUs, r.CPU)
				continue
			}
			value := r.Value.String()
			i, ok := valueIndex[value]
			if !ok {
				i = len(result.Values)
				valueIndex[value] = i
				result.Values = append(result.Values, valueGroup{Value: value})
			}
			result.Values[i].CPUs = append(result.Values[i].CPUs, r.CPU)
		}
		results = append(results, result)
	}

	if jsonOutput {
		return cli.WriteJSON(w, results)
	}

	for _, result := range results {
		if len(result.Values) == 1 && len(result.Errors) == 0 {
			fmt.Fprintf(w, "%s: %s\n", result.Property, result.Values[0].Value)
			continue
		}
		fmt.Fprintf(w, "%s:\n", result.Property)
		for _, group := range result.Values {
			fmt.Fprintf(w, "  %s: CPUs %s\n", group.Value, topology.FormatCPUList(group.CPUs))
		}
		for _, group := range result.Errors {
			fmt.Fprintf(w, "  error: %s: CPUs %s\n", group.Error, topology.FormatCPUList(group.CPUs))
		}
	}
	return nil
}
