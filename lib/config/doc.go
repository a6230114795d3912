// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the fleet configuration for powerfleet
// commands.
//
// Configuration comes from one YAML file, resolved in order: the
// --config flag, the POWERFLEET_CONFIG environment variable, then
// ~/.config/powerfleet/config.yaml. A file named by the flag or the
// environment must exist; a missing file at the default path is not an
// error, because commands that only touch the local machine need no
// configuration at all.
//
// The file names the fleet hosts reachable over SSH, the snapshot
// store database, and the log level:
//
//	hosts:
//	  - name: db3
//	    address: db3.rack.example.com
//	    user: root
//	    identity_file: ${HOME}/.ssh/fleet_ed25519
//	store:
//	  path: /var/lib/powerfleet/snapshots.db
//	log:
//	  level: info
//
// String fields may reference environment variables as ${VAR} or
// ${VAR:-default}; references are expanded after parsing.
// [Config.Validate] collects every problem into one error rather than
// stopping at the first.
//
// This package depends on no other powerfleet packages.
package config
