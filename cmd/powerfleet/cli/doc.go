// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for the powerfleet binary:
// a small command tree with flag parsing, structured help, typo
// suggestions, and the shared plumbing for reaching a host.
//
// Each command is a [Command] with an optional pflag set and either a
// Run function or subcommands. Execution threads a context (cancelled
// on SIGINT/SIGTERM) and a logger through the tree. [Target] carries
// the --host and --config flags and turns them into a connected
// [Session]; [CPUSelection] carries the target-set flags shared by
// the property and idle commands.
package cli
