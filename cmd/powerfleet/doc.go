// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Powerfleet is the CLI for inspecting and tuning CPU power and
// performance state, on the local machine or across a fleet of hosts
// over SSH. It provides subcommands for hardware inspection (info,
// topology), property access (get, set), idle state control (cstates,
// cpu), state snapshots (save, restore, snapshot), tuning profiles
// (profile), and fleet-wide operations (fleet).
package main
