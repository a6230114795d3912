// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package power

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/powerfleet/powerfleet/access"
	"github.com/powerfleet/powerfleet/topology"
	"github.com/powerfleet/powerfleet/transport"
)

// CState is one requestable idle state of a CPU, as the idle driver
// exposes it.
type CState struct {
	// Index is the state's position in the driver's table.
	Index int
	// Name is the state name, "C1", "C1E", "C6".
	Name string
	// Desc is the driver's description line.
	Desc string
	// LatencyUS is the worst-case exit latency in microseconds.
	LatencyUS int
	// ResidencyUS is the minimum profitable residency in
	// microseconds.
	ResidencyUS int
	// Disabled reports whether requests for this state are off.
	Disabled bool
}

// AllCStates matches every idle state in enable and disable
// requests.
const AllCStates = "all"

// cstateFile returns a fully resolved spec for one state attribute.
func cstateFile(cpu, index int, attr string, format access.Format) access.FileSpec {
	return access.FileSpec{
		PathTemplate: fmt.Sprintf("%s/cpu%d/cpuidle/state%d/%s", topology.SysfsCPURoot, cpu, index, attr),
		Format:       format,
	}
}

// CStates lists the requestable idle states of one CPU in driver
// table order.
func (e *Engine) CStates(ctx context.Context, cpu int) ([]CState, error) {
	topo := e.host.Topology()
	if _, err := topo.Representatives(topology.ScopeCPU, []int{cpu}); err != nil {
		return nil, fmt.Errorf("list C-states: %w: %v", ErrInvalidValue, err)
	}

	var states []CState
	for index := 0; ; index++ {
		name, err := e.host.files.ReadToken(ctx, cpu, cstateFile(cpu, index, "name", access.FormatToken))
		if errors.Is(err, transport.ErrNotFound) {
			if index == 0 {
				return nil, fmt.Errorf("CPU %d of %s has no C-state information: %w",
					cpu, e.host.Name(), err)
			}
			return states, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list C-states: %w", err)
		}

		state := CState{Index: index, Name: name}
		if state.Desc, err = e.host.files.ReadToken(ctx, cpu, cstateFile(cpu, index, "desc", access.FormatToken)); err != nil {
			return nil, fmt.Errorf("list C-states: %w", err)
		}
		if state.LatencyUS, err = e.host.files.ReadInt(ctx, cpu, cstateFile(cpu, index, "latency", access.FormatInt)); err != nil {
			return nil, fmt.Errorf("list C-states: %w", err)
		}
		if state.ResidencyUS, err = e.host.files.ReadInt(ctx, cpu, cstateFile(cpu, index, "residency", access.FormatInt)); err != nil {
			return nil, fmt.Errorf("list C-states: %w", err)
		}
		disabled, err := e.host.files.ReadInt(ctx, cpu, cstateFile(cpu, index, "disable", access.FormatBool01))
		if err != nil {
			return nil, fmt.Errorf("list C-states: %w", err)
		}
		state.Disabled = disabled == 1
		states = append(states, state)
	}
}

// SetCState enables or disables the named idle state (AllCStates for
// every state) on the requested CPUs. Name matching is
// case-insensitive. A CPU where the state cannot be toggled does not
// stop the others; mixed outcomes surface as a PartialFailure.
func (e *Engine) SetCState(ctx context.Context, cpus []int, name string, enable bool) error {
	if name == "" {
		return fmt.Errorf("set C-state: %w: empty state name", ErrInvalidValue)
	}
	topo := e.host.Topology()
	reps, err := topo.Representatives(topology.ScopeCPU, cpus)
	if err != nil {
		return fmt.Errorf("set C-state %s: %w: %v", name, ErrInvalidValue, err)
	}

	disable := 0
	if !enable {
		disable = 1
	}
	var failed []TargetError
	var succeeded []string
	for _, rep := range reps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("set C-state %s: %w", name, err)
		}
		if err := e.setCStateOnCPU(ctx, rep.CPU, name, disable); err != nil {
			if abortKind(err) {
				return fmt.Errorf("set C-state %s: %w", name, err)
			}
			failed = append(failed, TargetError{Key: rep.Key, CPU: rep.CPU, Err: err})
			continue
		}
		succeeded = append(succeeded, rep.Key)
	}
	if len(failed) == 0 {
		return nil
	}
	if len(succeeded) == 0 {
		errs := make([]error, len(failed))
		for i, f := range failed {
			errs[i] = fmt.Errorf("%s: %w", f.Key, f.Err)
		}
		return fmt.Errorf("set C-state %s: %w", name, errors.Join(errs...))
	}
	return &PartialFailure{Property: "cstate " + name, Failed: failed, Succeeded: succeeded}
}

func (e *Engine) setCStateOnCPU(ctx context.Context, cpu int, name string, disable int) error {
	states, err := e.CStates(ctx, cpu)
	if err != nil {
		return err
	}
	matched := false
	for _, state := range states {
		if name != AllCStates && !strings.EqualFold(state.Name, name) {
			continue
		}
		matched = true
		spec := cstateFile(cpu, state.Index, "disable", access.FormatBool01)
		if err := e.host.files.WriteInt(ctx, cpu, spec, disable); err != nil {
			return err
		}
	}
	if !matched {
		return fmt.Errorf("CPU %d has no C-state named %q", cpu, name)
	}
	return nil
}
