// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package cpumodel identifies the target's CPU microarchitecture and
// supplies the per-model data the property engine layers on top of
// the generic property definitions: feature gates, scope overrides,
// and limit code tables.
//
// Lookup is three-tiered: an exact (vendor, family, model) entry, a
// family-level default, then a global default. Newer steppings often
// ship before an exact entry exists, so a missing entry falls back
// instead of rejecting; a property is unsupported only when the
// resolved entry lacks the data that property requires.
package cpumodel
