// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/powerfleet/powerfleet/power"
)

// Outcome is the result of applying one property of a snapshot.
// Skipped outcomes carry the reason; failed outcomes carry the error.
type Outcome struct {
	Property string
	Skipped  bool
	Reason   string
	Err      error
}

// Apply replays a snapshot through the engine, one Set per recorded
// unit. Properties the target host does not support, and read-only
// properties, are skipped and reported; a unit that fails to apply is
// recorded in its property's outcome without stopping the rest. Only
// transport loss or cancellation aborts, returning the outcomes
// collected so far.
func Apply(ctx context.Context, eng *power.Engine, snap *Snapshot) ([]Outcome, error) {
	topo := eng.Host().Topology()
	outcomes := make([]Outcome, 0, len(snap.Properties))

	for _, prop := range canonical(snap.Properties) {
		if err := ctx.Err(); err != nil {
			return outcomes, fmt.Errorf("apply snapshot: %w", err)
		}

		def, ok := power.LookupProperty(prop.Name)
		if !ok {
			outcomes = append(outcomes, Outcome{
				Property: prop.Name,
				Skipped:  true,
				Reason:   "unknown property",
			})
			continue
		}
		if !def.Writable {
			outcomes = append(outcomes, Outcome{
				Property: prop.Name,
				Skipped:  true,
				Reason:   "read-only property",
			})
			continue
		}
		if _, err := eng.EffectiveScope(prop.Name); err != nil {
			outcomes = append(outcomes, Outcome{
				Property: prop.Name,
				Skipped:  true,
				Reason:   err.Error(),
			})
			continue
		}

		var unitErrs []error
		for _, unit := range prop.Units {
			value, err := def.Parse(unit.Value)
			if err != nil {
				unitErrs = append(unitErrs, fmt.Errorf("unit %s: %w", unit.Unit, err))
				continue
			}
			cpus, err := topo.UnitCPUs(unit.Unit)
			if err != nil {
				unitErrs = append(unitErrs, err)
				continue
			}
			if err := eng.Set(ctx, prop.Name, cpus, value); err != nil {
				if aborted(err) {
					outcomes = append(outcomes, Outcome{Property: prop.Name, Err: err})
					return outcomes, fmt.Errorf("apply snapshot: %w", err)
				}
				unitErrs = append(unitErrs, fmt.Errorf("unit %s: %w", unit.Unit, err))
			}
		}
		outcomes = append(outcomes, Outcome{Property: prop.Name, Err: errors.Join(unitErrs...)})
	}
	return outcomes, nil
}

// aborted reports failures that invalidate the whole apply rather
// than one unit.
func aborted(err error) bool {
	return errors.Is(err, power.ErrTransportUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
