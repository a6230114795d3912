// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package power

import (
	"context"
	"errors"
	"fmt"

	"github.com/powerfleet/powerfleet/access"
	"github.com/powerfleet/powerfleet/topology"
	"github.com/powerfleet/powerfleet/transport"
)

// onlineFile is the hotplug control node of one CPU. CPU 0 has none;
// the boot CPU cannot be offlined.
func onlineFile(cpu int) access.FileSpec {
	return access.FileSpec{
		PathTemplate: fmt.Sprintf("%s/cpu%d/online", topology.SysfsCPURoot, cpu),
		Format:       access.FormatBool01,
	}
}

// SetOnline onlines or offlines the requested CPUs. CPUs already in
// the requested state are left alone. Every change is read back; a
// CPU the kernel refuses to move reports a per-target failure
// without stopping the others. The topology model does not follow
// hotplug on its own: callers run Host.Rebuild after a successful
// SetOnline before issuing further operations.
func (e *Engine) SetOnline(ctx context.Context, cpus []int, online bool) error {
	op := "offline"
	if online {
		op = "online"
	}
	topo := e.host.Topology()
	reps, err := topo.Representatives(topology.ScopeCPU, cpus)
	if err != nil {
		return fmt.Errorf("%s CPUs: %w: %v", op, ErrInvalidValue, err)
	}
	for _, rep := range reps {
		if rep.CPU == 0 {
			return fmt.Errorf("%s CPUs: %w: CPU 0 does not support hotplug", op, ErrInvalidValue)
		}
	}

	var failed []TargetError
	var succeeded []string
	for _, rep := range reps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s CPUs: %w", op, err)
		}
		if err := e.setOnlineCPU(ctx, rep.CPU, online); err != nil {
			if abortKind(err) {
				return fmt.Errorf("%s CPUs: %w", op, err)
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
		return fmt.Errorf("%s CPUs: %w", op, errors.Join(errs...))
	}
	return &PartialFailure{Property: op, Failed: failed, Succeeded: succeeded}
}

func (e *Engine) setOnlineCPU(ctx context.Context, cpu int, online bool) error {
	spec := onlineFile(cpu)
	current, err := e.host.files.ReadInt(ctx, cpu, spec)
	if errors.Is(err, transport.ErrNotFound) {
		return fmt.Errorf("CPU %d does not support hotplug: %w", cpu, err)
	}
	if err != nil {
		return err
	}

	want := 0
	if online {
		want = 1
	}
	if current == want {
		return nil
	}
	if err := e.host.files.WriteInt(ctx, cpu, spec, want); err != nil {
		return err
	}
	after, err := e.host.files.ReadInt(ctx, cpu, spec)
	if err != nil {
		return err
	}
	if after != want {
		return fmt.Errorf("CPU %d did not change state, still %d", cpu, after)
	}
	return nil
}
