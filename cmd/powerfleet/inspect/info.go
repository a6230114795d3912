// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package inspect implements the read-only host inspection commands
// "powerfleet info" and "powerfleet topology".
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
	"github.com/powerfleet/powerfleet/power"
)

// infoResult is the JSON output of the info command.
type infoResult struct {
	Host       string         `json:"host"`
	Signature  string         `json:"signature"`
	Microarch  string         `json:"microarch"`
	ModelTier  string         `json:"model_tier"`
	Packages   int            `json:"packages"`
	Dies       int            `json:"dies"`
	Cores      int            `json:"cores"`
	CPUs       int            `json:"cpus"`
	OnlineCPUs int            `json:"online_cpus"`
	Properties []propertyInfo `json:"properties"`
	Registers  []registerInfo `json:"registers,omitempty"`
}

// propertyInfo is one property's support status on the host.
type propertyInfo struct {
	Name      string `json:"name"`
	Scope     string `json:"scope,omitempty"`
	Writable  bool   `json:"writable"`
	Supported bool   `json:"supported"`
	Help      string `json:"help"`
}

// registerInfo is one row of the register surface.
type registerInfo struct {
	Property string `json:"property"`
	Register string `json:"register"`
	Address  string `json:"address"`
	Bits     string `json:"bits"`
}

// InfoCommand returns the "powerfleet info" command.
func InfoCommand() *cli.Command {
	var target cli.Target
	var registers bool
	var jsonOutput bool

	return &cli.Command{
		Name:    "info",
		Summary: "Show the host's CPU model and property support",
		Description: `Display the host's CPU signature, the matched model database entry,
topology counts, and which properties the model supports at what
scope.

With --registers, the model-specific register surface is included:
for every register-backed property, the register name, address, and
bit field a set would touch.`,
		Usage: "powerfleet info [flags]",
		Examples: []cli.Example{
			{
				Description: "Inspect the local machine",
				Command:     "powerfleet info",
			},
			{
				Description: "Inspect a fleet host with its register surface",
				Command:     "powerfleet info --host db3 --registers",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("info", pflag.ContinueOnError)
			target.BindFlags(flags)
			flags.BoolVar(&registers, "registers", false,
				"include the register surface of register-backed properties")
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
			return runInfo(session, registers, jsonOutput, os.Stdout)
		},
	}
}

func runInfo(session *cli.Session, registers, jsonOutput bool, w io.Writer) error {
	host := session.Host
	topo := host.Topology()
	entry, tier := host.Model()

	result := infoResult{
		Host:       host.Name(),
		Signature:  host.Signature().String(),
		Microarch:  entry.Microarch,
		ModelTier:  tier.String(),
		Packages:   len(topo.Packages()),
		CPUs:       len(topo.PresentCPUs()),
		OnlineCPUs: len(topo.OnlineCPUs()),
	}
	for _, pkg := range topo.Packages() {
		for _, die := range topo.Dies(pkg) {
			result.Dies++
			result.Cores += len(topo.Cores(pkg, die))
		}
	}

	for _, def := range power.Properties() {
		info := propertyInfo{
			Name:     def.Name,
			Writable: def.Writable,
			Help:     def.Help,
		}
		if scope, err := session.Engine.EffectiveScope(def.Name); err == nil {
			info.Supported = true
			info.Scope = scope.String()
		}
		result.Properties = append(result.Properties, info)
	}

	if registers {
		for _, reg := range power.RegisterSurface() {
			result.Registers = append(result.Registers, registerInfo{
				Property: reg.Property,
				Register: reg.Register,
				Address:  fmt.Sprintf("0x%X", reg.Address),
				Bits:     formatBits(reg.Hi, reg.Lo),
			})
		}
	}

	if jsonOutput {
		return cli.WriteJSON(w, result)
	}

	fmt.Fprintf(w, "Host %s\n", result.Host)
	fmt.Fprintf(w, "  Signature: %s\n", result.Signature)
	fmt.Fprintf(w, "  Model:     %s (%s)\n", result.Microarch, result.ModelTier)
	fmt.Fprintf(w, "  Topology:  %d packages, %d dies, %d cores, %d CPUs (%d online)\n",
		result.Packages, result.Dies, result.Cores, result.CPUs, result.OnlineCPUs)

	fmt.Fprintf(w, "\nProperties:\n")
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "  NAME\tSCOPE\tACCESS\tDESCRIPTION\n")
	for _, info := range result.Properties {
		scope := "-"
		access := "unsupported"
		if info.Supported {
			scope = info.Scope
			access = "read-only"
			if info.Writable {
				access = "read-write"
			}
		}
		fmt.Fprintf(writer, "  %s\t%s\t%s\t%s\n", info.Name, scope, access, info.Help)
	}
	writer.Flush()

	if registers {
		fmt.Fprintf(w, "\nRegisters:\n")
		writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(writer, "  PROPERTY\tREGISTER\tADDRESS\tBITS\n")
		for _, reg := range result.Registers {
			fmt.Fprintf(writer, "  %s\t%s\t%s\t%s\n", reg.Property, reg.Register, reg.Address, reg.Bits)
		}
		writer.Flush()
	}

	return nil
}

// formatBits renders a bit field as "hi:lo", or the single bit number
// when the field is one bit wide.
func formatBits(hi, lo uint) string {
	if hi == lo {
		return fmt.Sprintf("%d", hi)
	}
	return fmt.Sprintf("%d:%d", hi, lo)
}
