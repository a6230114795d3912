// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package profiledef provides parsing, validation, and host
// resolution for tuning profiles. A profile is a named list of
// property assignments (set EPP to power on these CPUs, cap the
// package C-state limit on every package) that can be applied to any
// host whose model supports the properties involved.
//
// Profiles are authored on disk as JSONC files (JSON extended with
// comments and trailing commas), since they are written and
// maintained by hand.
//
// The typical flow:
//
//  1. ReadFile or Parse: JSONC bytes → Profile
//  2. Validate: structural checks (selectors, required fields)
//  3. Resolve: bind every assignment to a host's model and topology,
//     all of them, before any write
//  4. Apply: run the resolved steps through the engine
package profiledef

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Profile is a named set of property assignments, applied in order.
type Profile struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Assignments []Assignment `json:"assignments"`
}

// Assignment sets one property to one value on a set of targets.
// Exactly one of CPUs, Packages, Dies, or All selects the targets.
// Dies select that die number within every package.
type Assignment struct {
	Property string `json:"property"`
	Value    string `json:"value"`
	CPUs     []int  `json:"cpus,omitempty"`
	Packages []int  `json:"packages,omitempty"`
	Dies     []int  `json:"dies,omitempty"`
	All      bool   `json:"all,omitempty"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a Profile. Unknown fields are rejected,
// so a typo in a hand-edited file fails loudly instead of silently
// dropping an assignment's targets.
func Parse(data []byte) (*Profile, error) {
	stripped := jsonc.ToJSON(data)

	decoder := json.NewDecoder(bytes.NewReader(stripped))
	decoder.DisallowUnknownFields()

	var profile Profile
	if err := decoder.Decode(&profile); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("parsing profile: trailing data after document")
	}

	return &profile, nil
}

// ReadFile reads a JSONC profile file from disk and parses it.
func ReadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	profile, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return profile, nil
}
