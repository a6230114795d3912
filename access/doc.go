// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package access performs the raw hardware I/O behind properties:
// bit-field reads and read-modify-writes against per-CPU register
// device nodes, and textual reads and writes against virtual
// filesystem control nodes.
//
// Accessors are mechanism only. They parse and format the wire
// representation but know nothing about allowed values or scopes;
// validation lives in the engine above them.
package access
