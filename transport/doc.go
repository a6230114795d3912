// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides host access for topology discovery and
// property I/O. A Transport executes commands and reads or writes byte
// ranges on one host; it knows nothing about CPUs, registers, or
// properties; those layers sit above it and treat the transport as an
// injected capability.
//
// Three bindings implement the contract:
//
//   - Local runs commands via os/exec and performs byte-range I/O with
//     pread/pwrite directly against the local machine's /sys, /proc,
//     and /dev nodes.
//
//   - SSH reaches a fleet member by starting the powerfleet-relay
//     binary on the remote host over an SSH session and exchanging
//     CBOR request/response frames with it on stdin/stdout. One
//     session carries all operations for the life of the transport.
//
//   - Emulated serves reads, writes, and command output from an
//     in-memory node tree. It backs tests and offline demos where no
//     hardware is present.
//
// All bindings surface the same error kinds: ErrUnavailable for
// connection and process launch failures, ErrPermission for privilege
// problems, ErrNotFound for missing paths or registers. The relay
// protocol carries the kind across the wire, so errors.Is gives the
// same answer whether the host is local or remote.
package transport
