// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package profiledef

import (
	"context"
	"errors"
	"fmt"

	"github.com/powerfleet/powerfleet/power"
	"github.com/powerfleet/powerfleet/topology"
)

// TargetCPUs expands an assignment's selector on a topology. Explicit
// CPU numbers must exist and be online; package and die selectors must
// have online members.
func (a Assignment) TargetCPUs(topo *topology.Topology) ([]int, error) {
	switch {
	case a.All:
		cpus := topo.OnlineCPUs()
		if len(cpus) == 0 {
			return nil, errors.New("no online CPUs")
		}
		return cpus, nil

	case len(a.CPUs) > 0:
		for _, id := range a.CPUs {
			cpu, ok := topo.CPU(id)
			if !ok {
				return nil, fmt.Errorf("CPU %d does not exist", id)
			}
			if !cpu.Online {
				return nil, fmt.Errorf("CPU %d is offline", id)
			}
		}
		return append([]int(nil), a.CPUs...), nil

	case len(a.Packages) > 0:
		var cpus []int
		for _, pkg := range a.Packages {
			members := topo.CPUsInPackage(pkg)
			if len(members) == 0 {
				return nil, fmt.Errorf("package %d has no online CPUs", pkg)
			}
			cpus = append(cpus, members...)
		}
		return cpus, nil

	case len(a.Dies) > 0:
		var cpus []int
		for _, die := range a.Dies {
			var members []int
			for _, pkg := range topo.Packages() {
				members = append(members, topo.CPUsInDie(pkg, die)...)
			}
			if len(members) == 0 {
				return nil, fmt.Errorf("die %d has no online CPUs in any package", die)
			}
			cpus = append(cpus, members...)
		}
		return cpus, nil
	}

	return nil, errors.New("no targets selected")
}

// Step is one assignment bound to a host: the property's parsed value
// and the concrete CPUs it will be set on.
type Step struct {
	Property string
	Value    power.Value
	CPUs     []int
}

// Resolve binds every assignment of a profile to a host. Structural
// issues, unknown or read-only properties, properties the host's
// model does not support, unparseable values, and selectors that
// match nothing on this topology are all collected and returned as
// one error; steps come back only when every assignment resolved.
// Resolution performs no I/O, so a profile that fails here has
// changed nothing.
func Resolve(profile *Profile, eng *power.Engine) ([]Step, error) {
	var problems []error
	for _, issue := range Validate(profile) {
		problems = append(problems, errors.New(issue))
	}

	topo := eng.Host().Topology()
	steps := make([]Step, 0, len(profile.Assignments))

	for index, assignment := range profile.Assignments {
		prefix := fmt.Sprintf("assignments[%d] %q", index, assignment.Property)

		def, ok := power.LookupProperty(assignment.Property)
		if !ok {
			problems = append(problems, fmt.Errorf("%s: unknown property", prefix))
			continue
		}
		if !def.Writable {
			problems = append(problems, fmt.Errorf("%s: read-only property", prefix))
			continue
		}
		if !eng.Supported(assignment.Property) {
			problems = append(problems, fmt.Errorf("%s: not supported on %s", prefix, eng.Host().Name()))
			continue
		}

		value, err := def.Parse(assignment.Value)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", prefix, err))
			continue
		}
		cpus, err := assignment.TargetCPUs(topo)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", prefix, err))
			continue
		}

		steps = append(steps, Step{
			Property: assignment.Property,
			Value:    value,
			CPUs:     cpus,
		})
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("profile %q: %w", profile.Name, errors.Join(problems...))
	}
	return steps, nil
}

// Outcome reports one applied step. Err carries the engine's result,
// including partial failures naming the units that did not change.
type Outcome struct {
	Property string
	CPUs     []int
	Err      error
}

// Apply runs resolved steps through the engine in order. A step that
// fails is recorded and the remaining steps still run; only transport
// loss or cancellation aborts, returning the outcomes collected so
// far.
func Apply(ctx context.Context, eng *power.Engine, steps []Step) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(steps))

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return outcomes, fmt.Errorf("apply profile: %w", err)
		}

		err := eng.Set(ctx, step.Property, step.CPUs, step.Value)
		outcomes = append(outcomes, Outcome{
			Property: step.Property,
			CPUs:     step.CPUs,
			Err:      err,
		})
		if err != nil && aborted(err) {
			return outcomes, fmt.Errorf("apply profile: %w", err)
		}
	}
	return outcomes, nil
}

// aborted reports failures that invalidate the whole apply rather
// than one step.
func aborted(err error) bool {
	return errors.Is(err, power.ErrTransportUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
