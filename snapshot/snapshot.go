// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// Snapshot is one host's captured power state. Host, CapturedAt,
// ToolVersion, and Signature describe the capture; Properties is the
// state itself. Only the state participates in the fingerprint, so
// re-capturing an unchanged host at a later time yields the same
// fingerprint.
type Snapshot struct {
	Host        string          `yaml:"host"`
	CapturedAt  time.Time       `yaml:"captured_at"`
	ToolVersion string          `yaml:"tool_version,omitempty"`
	Signature   string          `yaml:"signature,omitempty"`
	Properties  []PropertyState `yaml:"properties"`
}

// PropertyState holds one property's value on every scope unit it was
// captured from. Scope records the effective scope at capture time,
// for readers; Apply re-resolves scope on the target host.
type PropertyState struct {
	Name  string      `yaml:"name"`
	Scope string      `yaml:"scope"`
	Units []UnitValue `yaml:"units"`
}

// UnitValue is the value of one scope unit, in the property's textual
// spelling ("on", "PC6", "balance_performance", "8").
type UnitValue struct {
	Unit  string `yaml:"unit"`
	Value string `yaml:"value"`
}

// StateBytes returns the canonical YAML of the state section.
// Properties are sorted by name and units ascending regardless of the
// order they were recorded in, so equal states produce equal bytes.
func (s *Snapshot) StateBytes() ([]byte, error) {
	data, err := yaml.Marshal(canonical(s.Properties))
	if err != nil {
		return nil, fmt.Errorf("encode snapshot state: %w", err)
	}
	return data, nil
}

// Fingerprint returns the BLAKE3-256 hex digest of the canonical
// state bytes. Snapshots with identical state share a fingerprint.
func (s *Snapshot) Fingerprint() (string, error) {
	data, err := s.StateBytes()
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Summary describes the snapshot's extent for listings.
func (s *Snapshot) Summary() string {
	units := 0
	for _, p := range s.Properties {
		units += len(p.Units)
	}
	return fmt.Sprintf("%d properties, %d units", len(s.Properties), units)
}

// Encode serializes the full snapshot document, state canonicalized.
func (s *Snapshot) Encode() ([]byte, error) {
	doc := Snapshot{
		Host:        s.Host,
		CapturedAt:  s.CapturedAt,
		ToolVersion: s.ToolVersion,
		Signature:   s.Signature,
		Properties:  canonical(s.Properties),
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a full snapshot document. Unknown fields are
// rejected, so a typo in a hand-edited file fails loudly instead of
// silently dropping state.
func Decode(data []byte) (*Snapshot, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Snapshot
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode snapshot: empty document")
		}
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := checkState(s.Properties); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// DecodeState parses a bare state section, the form stored as a blob.
func DecodeState(data []byte) ([]PropertyState, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var props []PropertyState
	if err := dec.Decode(&props); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode snapshot state: %w", err)
	}
	if err := checkState(props); err != nil {
		return nil, fmt.Errorf("decode snapshot state: %w", err)
	}
	return props, nil
}

func checkState(props []PropertyState) error {
	for i, p := range props {
		if p.Name == "" {
			return fmt.Errorf("property %d has no name", i)
		}
		for j, u := range p.Units {
			if u.Unit == "" {
				return fmt.Errorf("property %s unit %d has no unit key", p.Name, j)
			}
		}
	}
	return nil
}

// canonical returns a sorted copy of the state. The input is not
// modified.
func canonical(props []PropertyState) []PropertyState {
	out := make([]PropertyState, len(props))
	copy(out, props)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	for i := range out {
		units := make([]UnitValue, len(out[i].Units))
		copy(units, out[i].Units)
		sort.Slice(units, func(a, b int) bool { return unitKeyLess(units[a].Unit, units[b].Unit) })
		out[i].Units = units
	}
	return out
}

// unitKeyLess orders unit keys numerically within a kind, so
// "cpu:10" sorts after "cpu:2" and "die:0/2" before "die:1/0".
func unitKeyLess(a, b string) bool {
	aKind, aRest, _ := strings.Cut(a, ":")
	bKind, bRest, _ := strings.Cut(b, ":")
	if aKind != bKind {
		return aKind < bKind
	}
	aParts := strings.Split(aRest, "/")
	bParts := strings.Split(bRest, "/")
	for i := 0; i < len(aParts) && i < len(bParts); i++ {
		an, aErr := strconv.Atoi(aParts[i])
		bn, bErr := strconv.Atoi(bParts[i])
		if aErr != nil || bErr != nil {
			if aParts[i] != bParts[i] {
				return aParts[i] < bParts[i]
			}
			continue
		}
		if an != bn {
			return an < bn
		}
	}
	return len(aParts) < len(bParts)
}

// Change is one divergence between two snapshots. A unit present on
// only one side has the other side's value empty.
type Change struct {
	Property string
	Unit     string
	From     string
	To       string
}

// Diff lists the (property, unit) pairs on which two states disagree,
// in canonical order. Equal snapshots diff to nothing.
func Diff(from, to *Snapshot) []Change {
	fromProps := canonical(from.Properties)
	toProps := canonical(to.Properties)

	byName := make(map[string]PropertyState, len(fromProps))
	for _, p := range fromProps {
		byName[p.Name] = p
	}
	seen := make(map[string]bool, len(toProps))

	var changes []Change
	for _, toProp := range toProps {
		seen[toProp.Name] = true
		fromProp := byName[toProp.Name]
		changes = append(changes, diffUnits(toProp.Name, fromProp.Units, toProp.Units)...)
	}
	for _, fromProp := range fromProps {
		if !seen[fromProp.Name] {
			changes = append(changes, diffUnits(fromProp.Name, fromProp.Units, nil)...)
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Property != changes[j].Property {
			return changes[i].Property < changes[j].Property
		}
		return unitKeyLess(changes[i].Unit, changes[j].Unit)
	})
	return changes
}

// diffUnits merges two sorted unit lists of one property.
func diffUnits(property string, from, to []UnitValue) []Change {
	fromByUnit := make(map[string]string, len(from))
	for _, u := range from {
		fromByUnit[u.Unit] = u.Value
	}
	var changes []Change
	for _, u := range to {
		old, ok := fromByUnit[u.Unit]
		if !ok {
			changes = append(changes, Change{Property: property, Unit: u.Unit, To: u.Value})
			continue
		}
		delete(fromByUnit, u.Unit)
		if old != u.Value {
			changes = append(changes, Change{Property: property, Unit: u.Unit, From: old, To: u.Value})
		}
	}
	for unit, old := range fromByUnit {
		changes = append(changes, Change{Property: property, Unit: unit, From: old})
	}
	return changes
}
