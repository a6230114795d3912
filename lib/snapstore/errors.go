// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package snapstore

import "errors"

var (
	// ErrNotFound reports that no stored snapshot matches the given
	// fingerprint prefix.
	ErrNotFound = errors.New("snapshot not found")

	// ErrAmbiguousPrefix reports that a fingerprint prefix matches
	// more than one stored snapshot.
	ErrAmbiguousPrefix = errors.New("ambiguous fingerprint prefix")

	// ErrCorrupt reports that a stored blob does not decode back to
	// the state its fingerprint promises.
	ErrCorrupt = errors.New("stored snapshot is corrupt")
)
