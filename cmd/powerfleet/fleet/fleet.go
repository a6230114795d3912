// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package fleet implements the commands that operate across every
// configured host.
package fleet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli"
	"github.com/powerfleet/powerfleet/lib/config"
	"github.com/powerfleet/powerfleet/lib/snapstore"
	"github.com/powerfleet/powerfleet/power"
	"github.com/powerfleet/powerfleet/snapshot"
)

// Command returns the "powerfleet fleet" command tree.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "fleet",
		Summary: "Operate on every configured host",
		Usage:   "powerfleet fleet <command> [flags]",
		Subcommands: []*cli.Command{
			listCommand(),
			captureCommand(),
		},
	}
}

// hostRow is one configured host in the JSON listing.
type hostRow struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	User         string `json:"user"`
	Port         int    `json:"port"`
	IdentityFile string `json:"identity_file,omitempty"`
	RelayPath    string `json:"relay_path"`
}

func listCommand() *cli.Command {
	var target cli.Target
	var jsonOutput bool

	return &cli.Command{
		Name:    "list",
		Summary: "List the configured fleet hosts",
		Usage:   "powerfleet fleet list [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flags.StringVar(&target.ConfigPath, "config", "",
				"fleet config file (default ~/.config/powerfleet/config.yaml)")
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
			return runList(cfg, jsonOutput, os.Stdout)
		},
	}
}

func runList(cfg *config.Config, jsonOutput bool, w io.Writer) error {
	if jsonOutput {
		rows := make([]hostRow, len(cfg.Hosts))
		for i, host := range cfg.Hosts {
			rows[i] = hostRow{
				Name:         host.Name,
				Address:      host.DialAddress(),
				User:         host.User,
				Port:         host.Port,
				IdentityFile: host.IdentityFile,
				RelayPath:    host.RelayPath,
			}
		}
		return cli.WriteJSON(w, rows)
	}

	if len(cfg.Hosts) == 0 {
		fmt.Fprintf(w, "no hosts configured\n")
		return nil
	}
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "NAME\tADDRESS\tUSER\tRELAY\n")
	for _, host := range cfg.Hosts {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			host.Name, host.DialAddress(), host.User, host.RelayPath)
	}
	return writer.Flush()
}

func captureCommand() *cli.Command {
	var target cli.Target

	return &cli.Command{
		Name:    "capture",
		Summary: "Capture every configured host into the store",
		Description: `Capture the power state of every configured fleet host into the
snapshot store, one connection per host, concurrently. Hosts that
fail to connect or capture are reported without stopping the rest.`,
		Usage: "powerfleet fleet capture [flags]",
		Examples: []cli.Example{
			{
				Description: "Capture the whole fleet",
				Command:     "powerfleet fleet capture",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("capture", pflag.ContinueOnError)
			flags.StringVar(&target.ConfigPath, "config", "",
				"fleet config file (default ~/.config/powerfleet/config.yaml)")
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
			store, err := cli.OpenStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			registry := target.Registry(cfg, logger)
			defer registry.Close()

			names := make([]string, 0, len(cfg.Hosts))
			for _, host := range cfg.Hosts {
				names = append(names, host.Name)
			}
			return runCapture(ctx, registry, store, names, os.Stdout)
		},
	}
}

// captureResult is one host's outcome, success or failure.
type captureResult struct {
	host        string
	fingerprint string
	summary     string
	err         error
}

func runCapture(ctx context.Context, registry *power.Registry, store *snapstore.Store, hosts []string, w io.Writer) error {
	if len(hosts) == 0 {
		return fmt.Errorf("no hosts configured")
	}

	// One goroutine per host; hosts are independent and the store
	// pool is safe for concurrent saves. Results land at the host's
	// position so output order matches the configuration.
	results := make([]captureResult, len(hosts))
	var wg sync.WaitGroup
	for i, name := range hosts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = captureHost(ctx, registry, store, name)
		}()
	}
	wg.Wait()

	failures := 0
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "HOST\tRESULT\n")
	for _, result := range results {
		if result.err != nil {
			failures++
			fmt.Fprintf(writer, "%s\tfailed: %v\n", result.host, result.err)
			continue
		}
		fmt.Fprintf(writer, "%s\tcaptured %s (%s)\n",
			result.host, result.fingerprint[:12], result.summary)
	}
	writer.Flush()

	if failures > 0 {
		fmt.Fprintf(w, "\n%d of %d hosts failed\n", failures, len(hosts))
		return &cli.ExitError{Code: 1}
	}
	return nil
}

func captureHost(ctx context.Context, registry *power.Registry, store *snapstore.Store, name string) captureResult {
	host, err := registry.Host(ctx, name)
	if err != nil {
		return captureResult{host: name, err: err}
	}
	snap, err := snapshot.Capture(ctx, power.NewEngine(host), snapshot.CaptureOptions{})
	if err != nil {
		return captureResult{host: name, err: err}
	}
	rec, err := store.Save(ctx, snap)
	if err != nil {
		return captureResult{host: name, err: err}
	}
	return captureResult{host: name, fingerprint: rec.Fingerprint, summary: rec.Summary}
}
