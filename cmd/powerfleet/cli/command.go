// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node in the CLI tree: either a group that dispatches
// to Subcommands or a leaf with a Run function. A node may be both, in
// which case Run handles invocations that start with a flag or carry
// no arguments at all.
type Command struct {
	// Name is what the user types to reach this command ("snapshot",
	// "capture").
	Name string

	// Summary is the one-liner listed under the parent's Commands
	// section.
	Summary string

	// Description is the long-form text at the top of this command's
	// own help.
	Description string

	// Usage overrides the synthesized usage line when set
	// ("powerfleet get <property>... [flags]").
	Usage string

	// Examples are rendered at the end of the help text.
	Examples []Example

	// Flags builds the flag set for this command. It is called once
	// per parse so a failed parse never leaks state. Nil means the
	// command takes no flags.
	Flags func() *pflag.FlagSet

	// Subcommands dispatched by the first positional argument.
	Subcommands []*Command

	// Run receives the positional arguments left after flag parsing.
	Run func(ctx context.Context, args []string, logger *slog.Logger) error

	// parent links back to the dispatching command so errors and help
	// can name the full path.
	parent *Command
}

// Example is one worked invocation shown in help output.
type Example struct {
	// Description explains what the example does.
	Description string
	// Command is the literal command line.
	Command string
}

// Execute resolves args against the command tree: help spellings print
// help, a leading non-flag argument dispatches to a subcommand, and
// anything left after flag parsing reaches Run.
func (c *Command) Execute(ctx context.Context, args []string, logger *slog.Logger) error {
	if len(args) > 0 && wantsHelp(args[0]) {
		c.PrintHelp(os.Stderr)
		return nil
	}

	if len(c.Subcommands) > 0 {
		switch {
		case len(args) > 0 && !strings.HasPrefix(args[0], "-"):
			return c.dispatch(ctx, args, logger)
		case c.Run == nil && len(args) == 0:
			c.PrintHelp(os.Stderr)
			return errors.New("subcommand required")
		case c.Run == nil:
			// A flag arrived where a subcommand name was needed.
			c.PrintHelp(os.Stderr)
			return fmt.Errorf("subcommand required (got flag %q)", args[0])
		}
	}

	if c.Flags != nil {
		rest, err := c.parseFlags(args)
		if err != nil {
			return err
		}
		args = rest
	}

	if c.Run == nil {
		c.PrintHelp(os.Stderr)
		return fmt.Errorf("no action defined for %q", c.commandPath())
	}
	return c.Run(ctx, args, logger)
}

// dispatch hands args off to the subcommand named by args[0], or
// builds the unknown-command error with a spelling suggestion.
func (c *Command) dispatch(ctx context.Context, args []string, logger *slog.Logger) error {
	name := args[0]
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			sub.parent = c
			return sub.Execute(ctx, args[1:], logger)
		}
	}

	if match := suggestCommand(name, c.Subcommands); match != "" {
		return fmt.Errorf("unknown command %q (did you mean %q?)%s", name, match, c.usageHint())
	}
	return fmt.Errorf("unknown command %q%s", name, c.usageHint())
}

// parseFlags runs the command's flag set over args and returns the
// remaining positional arguments.
func (c *Command) parseFlags(args []string) ([]string, error) {
	flagSet := c.Flags()

	// pflag prints its own error plus a usage dump on failure; silence
	// that and surface one composed error instead.
	flagSet.SetOutput(io.Discard)

	err := flagSet.Parse(args)
	if err == nil {
		return flagSet.Args(), nil
	}

	message := err.Error()
	if strings.Contains(message, "unknown flag") || strings.Contains(message, "unknown shorthand") {
		// The failed parse may have consumed flag values, so the
		// suggestion scan gets a fresh set.
		if match := suggestFlag(args, c.Flags()); match != "" {
			return nil, fmt.Errorf("%s (did you mean %s?)%s", message, match, c.usageHint())
		}
	}
	return nil, fmt.Errorf("%s%s", message, c.usageHint())
}

// PrintHelp writes the full help text for this command to w.
func (c *Command) PrintHelp(w io.Writer) {
	path := c.commandPath()

	switch {
	case c.Description != "":
		fmt.Fprintf(w, "%s\n\n", c.Description)
	case c.Summary != "":
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	switch {
	case c.Usage != "":
		fmt.Fprintf(w, "Usage:\n  %s\n", c.Usage)
	case len(c.Subcommands) > 0:
		fmt.Fprintf(w, "Usage:\n  %s <command> [flags]\n", path)
	default:
		fmt.Fprintf(w, "Usage:\n  %s [flags]\n", path)
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(table, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		table.Flush()
	}

	if c.Flags != nil {
		var defaults strings.Builder
		flagSet := c.Flags()
		flagSet.SetOutput(&defaults)
		flagSet.PrintDefaults()
		if defaults.Len() > 0 {
			fmt.Fprintf(w, "\nFlags:\n%s", defaults.String())
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
			if example.Description != "" {
				fmt.Fprintln(w)
			}
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", path)
	}
}

// usageHint is the trailer appended to dispatch and parse errors so
// the user can find the full usage text.
func (c *Command) usageHint() string {
	return fmt.Sprintf("\n\nRun '%s --help' for usage.", c.commandPath())
}

// commandPath is the space-joined path from the root ("powerfleet
// snapshot capture"). Parents are linked during dispatch, so a command
// reached any other way reports only its own name.
func (c *Command) commandPath() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.commandPath() + " " + c.Name
}

// wantsHelp reports whether arg is one of the help spellings handled
// before dispatch.
func wantsHelp(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	}
	return false
}
