// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package power

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/powerfleet/powerfleet/access"
	"github.com/powerfleet/powerfleet/cpumodel"
	"github.com/powerfleet/powerfleet/topology"
)

// Engine answers property get and set requests against one host. It
// is the single place that classifies raw accessor failures into the
// package's error taxonomy.
type Engine struct {
	host *Host
}

// NewEngine returns an engine over host.
func NewEngine(host *Host) *Engine {
	return &Engine{host: host}
}

// Host returns the engine's host.
func (e *Engine) Host() *Host {
	return e.host
}

// Reading is one CPU's resolved value, or the error that prevented
// resolving it.
type Reading struct {
	CPU   int
	Value Value
	Err   error
}

// resolvedProperty is a definition bound to the host's model entry.
type resolvedProperty struct {
	def    *Property
	scope  topology.Scope
	limits *cpumodel.PkgCStateLimits
}

func (e *Engine) resolve(name string) (resolvedProperty, error) {
	def, ok := LookupProperty(name)
	if !ok {
		return resolvedProperty{}, fmt.Errorf("property %q does not exist: %w", name, ErrUnsupportedProperty)
	}
	entry, _ := e.host.Model()
	rp := resolvedProperty{def: def, scope: def.Scope}
	if def.ScopeFromModel {
		rp.scope = entry.EPBScope
	}
	supported := true
	switch def.Gate {
	case GateC1EAutopromote:
		supported = entry.C1EAutopromote
	case GateCStatePrewake:
		supported = entry.CStatePrewake
	case GateUncoreRatio:
		supported = entry.UncoreRatio
	case GatePkgCStateLimit:
		supported = entry.PkgCStateLimits != nil
		rp.limits = entry.PkgCStateLimits
	}
	if !supported {
		return resolvedProperty{}, fmt.Errorf("property %q is not supported on %s (%s): %w",
			name, e.host.Name(), entry.Microarch, ErrUnsupportedProperty)
	}
	return rp, nil
}

// Supported reports whether the host's model supports the property.
func (e *Engine) Supported(name string) bool {
	_, err := e.resolve(name)
	return err == nil
}

// EffectiveScope returns the property's scope on this host, after
// any model-specific override.
func (e *Engine) EffectiveScope(name string) (topology.Scope, error) {
	rp, err := e.resolve(name)
	if err != nil {
		return 0, err
	}
	return rp.scope, nil
}

// Get resolves the property for every requested CPU: one Reading per
// CPU, CPUs sharing a scope unit reporting the unit's value. Values
// come from the cache where a unit's entry is live, otherwise from
// one accessor read per unit, which then fills the cache. A unit
// whose read fails reports that error on each of its requested CPUs;
// a dead transport or cancellation aborts the whole call.
func (e *Engine) Get(ctx context.Context, name string, cpus []int) ([]Reading, error) {
	rp, err := e.resolve(name)
	if err != nil {
		return nil, err
	}
	topo := e.host.Topology()
	cache := e.host.currentCache()
	reps, err := topo.Representatives(rp.scope, cpus)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w: %v", name, ErrInvalidValue, err)
	}

	byCPU := make(map[int]Reading)
	for _, rep := range reps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("get %s: %w", name, err)
		}
		if value, _, ok := cache.Get(name, rep.Key); ok {
			for _, id := range rep.CPUs {
				byCPU[id] = Reading{CPU: id, Value: value}
			}
			continue
		}
		value, err := e.read(ctx, rp, rep.CPU)
		if err != nil {
			if abortKind(err) {
				return nil, fmt.Errorf("get %s: %w", name, err)
			}
			for _, id := range rep.CPUs {
				byCPU[id] = Reading{CPU: id, Err: err}
			}
			continue
		}
		cache.Put(name, rep.Key, value)
		for _, id := range rep.CPUs {
			byCPU[id] = Reading{CPU: id, Value: value}
		}
	}

	ids := make([]int, 0, len(byCPU))
	for id := range byCPU {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Reading, len(ids))
	for i, id := range ids {
		out[i] = byCPU[id]
	}
	return out, nil
}

// Set writes the property for every scope unit the requested CPUs
// touch. The value is validated before any write I/O; an invalid
// value performs none. Each unit's cache key is dropped before its
// write starts, so even a unit left part-written by a failure cannot
// be read stale. Per-unit access failures do not stop the remaining
// units: when only some units fail the result is a PartialFailure
// with per-target detail, and nothing is rolled back.
func (e *Engine) Set(ctx context.Context, name string, cpus []int, value Value) error {
	rp, err := e.resolve(name)
	if err != nil {
		return err
	}
	def := rp.def
	if !def.Writable {
		return fmt.Errorf("set %s: %w: property is read-only", name, ErrInvalidValue)
	}
	norm, err := rp.normalize(value)
	if err != nil {
		return fmt.Errorf("set %s: %w: %v", name, ErrInvalidValue, err)
	}
	topo := e.host.Topology()
	cache := e.host.currentCache()
	reps, err := topo.Representatives(rp.scope, cpus)
	if err != nil {
		return fmt.Errorf("set %s: %w: %v", name, ErrInvalidValue, err)
	}
	if def.Available != nil {
		if err := e.checkAvailable(ctx, reps[0].CPU, def, norm.Token()); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}

	var failed []TargetError
	var succeeded []string
	for _, rep := range reps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
		cache.Invalidate(name, rep.Key)
		if err := e.write(ctx, topo, rp, rep.CPU, norm); err != nil {
			if abortKind(err) {
				return fmt.Errorf("set %s: %w", name, err)
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
		return fmt.Errorf("set %s: %w", name, errors.Join(errs...))
	}
	return &PartialFailure{Property: name, Failed: failed, Succeeded: succeeded}
}

// abortKind reports failures that invalidate the whole operation
// rather than one target: a dead transport or a cancelled context.
func abortKind(err error) bool {
	return errors.Is(err, ErrTransportUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// normalize validates a value against the bound definition and
// rewrites it into its canonical form. No I/O.
func (rp resolvedProperty) normalize(v Value) (Value, error) {
	def := rp.def
	switch def.Kind {
	case KindBool:
		if v.Kind() != KindBool {
			return Value{}, fmt.Errorf("%s expects on/off, got %s", def.Name, v)
		}
		return v, nil

	case KindInt:
		if v.Kind() == KindToken {
			if n, ok := def.policyValue(v.Token()); ok {
				v = IntValue(n)
			} else if n, err := strconv.ParseInt(v.Token(), 10, 64); err == nil {
				v = IntValue(n)
			}
		}
		if v.Kind() != KindInt {
			return Value{}, fmt.Errorf("%s expects an integer, got %q", def.Name, v)
		}
		if v.Int() < def.Min || v.Int() > def.Max {
			return Value{}, fmt.Errorf("%s must be between %d and %d, got %d",
				def.Name, def.Min, def.Max, v.Int())
		}
		return v, nil

	case KindToken:
		if v.Kind() == KindInt && def.NumericTokens {
			v = TokenValue(strconv.FormatInt(v.Int(), 10))
		}
		if v.Kind() != KindToken {
			return Value{}, fmt.Errorf("%s expects a token, got %s", def.Name, v)
		}
		tok := v.Token()
		if rp.limits != nil {
			code, ok := rp.limits.CodeOf(tok)
			if !ok {
				return Value{}, fmt.Errorf("%s must be one of %s, got %q",
					def.Name, strings.Join(rp.limits.Names(), ", "), tok)
			}
			if name, ok := rp.limits.NameOf(code); ok {
				return TokenValue(name), nil
			}
			return TokenValue(tok), nil
		}
		if len(def.Policies) > 0 {
			for _, pol := range def.Policies {
				if strings.EqualFold(pol.Name, tok) {
					return TokenValue(pol.Name), nil
				}
			}
			if def.NumericTokens {
				n, err := strconv.ParseInt(tok, 10, 64)
				if err != nil || n < def.Min || n > def.Max {
					return Value{}, fmt.Errorf("%s must be one of %s or %d..%d, got %q",
						def.Name, strings.Join(def.PolicyNames(), ", "), def.Min, def.Max, tok)
				}
				return TokenValue(strconv.FormatInt(n, 10)), nil
			}
			return Value{}, fmt.Errorf("%s must be one of %s, got %q",
				def.Name, strings.Join(def.PolicyNames(), ", "), tok)
		}
		return v, nil
	}
	return Value{}, fmt.Errorf("%s: unknown value kind %d", def.Name, int(def.Kind))
}

// checkAvailable verifies a token against the host's offered list
// for properties whose enumeration the host defines. Reads only.
func (e *Engine) checkAvailable(ctx context.Context, cpu int, def *Property, token string) error {
	offered, err := e.host.files.ReadTokens(ctx, cpu, *def.Available)
	if err != nil {
		return err
	}
	if slices.Contains(offered, token) {
		return nil
	}
	return fmt.Errorf("%w: %s %q is not offered by the host (available: %s)",
		ErrInvalidValue, def.Name, token, strings.Join(offered, ", "))
}

// read performs one accessor read and converts the raw result into
// the property's value kind.
func (e *Engine) read(ctx context.Context, rp resolvedProperty, cpu int) (Value, error) {
	def := rp.def
	switch def.Method.Kind {
	case access.KindRegister:
		raw, err := e.host.registers.Read(ctx, cpu, def.Method.Register)
		if err != nil {
			return Value{}, err
		}
		switch def.Kind {
		case KindBool:
			on := raw != 0
			if def.Inverted {
				on = !on
			}
			return BoolValue(on), nil
		case KindInt:
			return IntValue(int64(raw)), nil
		case KindToken:
			if rp.limits != nil {
				if name, ok := rp.limits.NameOf(raw); ok {
					return TokenValue(name), nil
				}
			}
			return TokenValue(strconv.FormatUint(raw, 10)), nil
		}

	case access.KindVirtualFile:
		spec := def.Method.File
		switch def.Kind {
		case KindBool:
			n, err := e.host.files.ReadInt(ctx, cpu, spec)
			if err != nil {
				return Value{}, err
			}
			on := n != 0
			if def.Inverted {
				on = !on
			}
			return BoolValue(on), nil
		case KindInt:
			n, err := e.host.files.ReadInt(ctx, cpu, spec)
			if err != nil {
				return Value{}, err
			}
			return IntValue(int64(n)), nil
		case KindToken:
			tok, err := e.host.files.ReadToken(ctx, cpu, spec)
			if err != nil {
				return Value{}, err
			}
			return TokenValue(tok), nil
		}
	}
	return Value{}, fmt.Errorf("property %s has no usable access method", def.Name)
}

// write performs the accessor writes for one scope unit, through its
// representative. Per-CPU control nodes of wider-scoped properties
// are written on every online CPU of the unit so the copies agree.
func (e *Engine) write(ctx context.Context, topo *topology.Topology, rp resolvedProperty, cpu int, v Value) error {
	def := rp.def
	if def.Lock != nil {
		locked, err := e.host.registers.Read(ctx, cpu, *def.Lock)
		if err != nil {
			return err
		}
		if locked != 0 {
			return fmt.Errorf("%s is locked by firmware on CPU %d: %w",
				def.Name, cpu, ErrPermissionDenied)
		}
	}

	switch def.Method.Kind {
	case access.KindRegister:
		var raw uint64
		switch def.Kind {
		case KindBool:
			on := v.Bool()
			if def.Inverted {
				on = !on
			}
			if on {
				raw = 1
			}
		case KindInt:
			raw = uint64(v.Int())
		case KindToken:
			code, ok := rp.limits.CodeOf(v.Token())
			if !ok {
				return fmt.Errorf("%s: no code for %q", def.Name, v.Token())
			}
			raw = code
		}
		return e.host.registers.Write(ctx, cpu, def.Method.Register, raw)

	case access.KindVirtualFile:
		spec := def.Method.File
		targets := []int{cpu}
		if def.WriteThroughUnit && rp.scope != topology.ScopeCPU {
			expanded, err := topo.Expand(rp.scope, cpu)
			if err != nil {
				return err
			}
			targets = expanded
		}
		for _, id := range targets {
			var err error
			switch def.Kind {
			case KindBool:
				on := v.Bool()
				if def.Inverted {
					on = !on
				}
				n := 0
				if on {
					n = 1
				}
				err = e.host.files.WriteInt(ctx, id, spec, n)
			case KindInt:
				err = e.host.files.WriteInt(ctx, id, spec, int(v.Int()))
			case KindToken:
				err = e.host.files.WriteToken(ctx, id, spec, v.Token())
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("property %s has no usable access method", def.Name)
}
