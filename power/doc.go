// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package power resolves named CPU power and performance properties
// against live hosts. A Host binds a transport connection to its
// discovered topology, detected CPU model, and value cache; the
// Engine answers get and set requests over CPU sets by reducing them
// to one I/O operation per scope unit, validating values before any
// write, and keeping the cache coherent with every write it makes.
//
// Property definitions are process-wide immutable data. Per-model
// behavior (scope overrides, capability gates, limit code tables)
// comes from the cpumodel database at resolution time, never from
// the definitions themselves.
package power
