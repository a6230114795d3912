// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package topology discovers and models the CPU hierarchy of a host:
// which logical CPUs are present, whether each is online, and how the
// online ones group into cores, dies, and packages. The model is
// immutable once built; after an online/offline change the caller
// discovers a fresh model, it is never re-derived mid-operation.
//
// The package also owns the Scope enumeration and the scope resolver:
// reducing a requested CPU set to one representative per scope unit,
// expanding a CPU back to the full membership of its unit, and naming
// units for use as cache keys.
package topology
