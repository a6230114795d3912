// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// powerfleet-relay is the remote end of the SSH transport. The
// powerfleet CLI starts it on a fleet member over an SSH session and
// exchanges CBOR request/response frames with it on stdin/stdout.
// Each request runs a command or reads/writes a byte range on the
// member, so one SSH session carries every topology probe, sysfs
// access, and register access for the host.
//
// The protocol channel is stdout; all logging goes to stderr. The
// relay exits when its stdin reaches EOF, which is how the client
// ends the session.
//
// This binary is spawned by the SSH transport. It is not intended
// for direct use.
package main
