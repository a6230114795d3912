// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot captures and replays the writable power state of a
// host as a canonical document.
//
// A Snapshot records one value per scope unit for every captured
// property. The state section serializes to canonical YAML: properties
// sorted by name, units sorted ascending, fixed field order. Two
// captures of identical hardware state therefore produce identical
// bytes, and [Snapshot.Fingerprint] (the BLAKE3-256 hex of those
// bytes) is a stable content address for stores and diffing.
//
// [Capture] reads through a power.Engine at each property's effective
// scope, so a snapshot costs one accessor read per scope unit.
// [Apply] replays a snapshot through Engine.Set, skipping properties
// the target host does not support and reporting one Outcome per
// property. [Diff] lists the (property, unit) pairs on which two
// snapshots disagree.
package snapshot
