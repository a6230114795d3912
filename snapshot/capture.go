// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/powerfleet/powerfleet/lib/clock"
	"github.com/powerfleet/powerfleet/lib/version"
	"github.com/powerfleet/powerfleet/power"
	"github.com/powerfleet/powerfleet/topology"
	"github.com/powerfleet/powerfleet/transport"
)

// CaptureOptions selects what Capture records.
type CaptureOptions struct {
	// Properties names the properties to capture. Empty means every
	// writable property the host supports.
	Properties []string

	// Clock stamps CapturedAt. Nil means the real clock.
	Clock clock.Clock
}

// Capture reads the requested properties at their effective scope and
// records one value per scope unit.
//
// With the default property set, properties whose control interface
// the host lacks are skipped. An explicitly requested property that
// cannot be read fails the capture.
func Capture(ctx context.Context, eng *power.Engine, opts CaptureOptions) (*Snapshot, error) {
	host := eng.Host()
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	explicit := len(opts.Properties) > 0
	names := opts.Properties
	if !explicit {
		for _, p := range power.Properties() {
			if p.Writable {
				names = append(names, p.Name)
			}
		}
	}

	topo := host.Topology()
	online := topo.OnlineCPUs()

	snap := &Snapshot{
		Host:        host.Name(),
		CapturedAt:  clk.Now().UTC(),
		ToolVersion: version.Short(),
		Signature:   host.Signature().String(),
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("capture on %s: %w", host.Name(), err)
		}
		state, err := captureProperty(ctx, eng, topo, name, online)
		if err != nil {
			if !explicit && skippable(err) {
				continue
			}
			return nil, fmt.Errorf("capture %s on %s: %w", name, host.Name(), err)
		}
		snap.Properties = append(snap.Properties, state)
	}
	snap.Properties = canonical(snap.Properties)
	return snap, nil
}

// captureProperty reads one property on every online CPU and folds
// the readings into per-unit values.
func captureProperty(ctx context.Context, eng *power.Engine, topo *topology.Topology, name string, online []int) (PropertyState, error) {
	scope, err := eng.EffectiveScope(name)
	if err != nil {
		return PropertyState{}, err
	}
	reps, err := topo.Representatives(scope, online)
	if err != nil {
		return PropertyState{}, err
	}
	readings, err := eng.Get(ctx, name, online)
	if err != nil {
		return PropertyState{}, err
	}
	byCPU := make(map[int]power.Reading, len(readings))
	for _, r := range readings {
		byCPU[r.CPU] = r
	}

	state := PropertyState{Name: name, Scope: scope.String()}
	for _, rep := range reps {
		r := byCPU[rep.CPU]
		if r.Err != nil {
			return PropertyState{}, fmt.Errorf("%s: %w", rep.Key, r.Err)
		}
		state.Units = append(state.Units, UnitValue{Unit: rep.Key, Value: r.Value.String()})
	}
	return state, nil
}

// skippable reports errors the default capture sweep tolerates: a
// property the model gates off, or a control node this kernel does
// not expose. Permission and transport failures are never skipped.
func skippable(err error) bool {
	return errors.Is(err, power.ErrUnsupportedProperty) ||
		errors.Is(err, transport.ErrNotFound)
}
