// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Representative is one scope unit's elected I/O CPU together with
// the requested CPUs the unit covers. The representative is the
// lowest online CPU of the whole unit, not of the requested subset,
// so the same unit always elects the same CPU no matter how the
// request was phrased.
type Representative struct {
	// CPU performs the I/O for the unit.
	CPU int
	// Key names the unit for cache keys and error messages,
	// "package:1", "core:0/1/3", "global".
	Key string
	// CPUs are the requested CPUs belonging to this unit, ascending.
	CPUs []int
}

// Representatives reduces a requested CPU set to one representative
// per distinct scope unit, ordered by unit ascending. Requested CPUs
// must exist; for scopes deeper than CPU they must also be online,
// because an offline CPU's unit membership is unknown.
func (t *Topology) Representatives(scope Scope, cpus []int) ([]Representative, error) {
	requested, err := t.checkRequest(scope, cpus)
	if err != nil {
		return nil, err
	}

	switch scope {
	case ScopeCPU:
		reps := make([]Representative, len(requested))
		for i, id := range requested {
			reps[i] = Representative{CPU: id, Key: fmt.Sprintf("cpu:%d", id), CPUs: []int{id}}
		}
		return reps, nil

	case ScopeGlobal:
		return []Representative{{
			CPU:  t.lowestOnline(),
			Key:  "global",
			CPUs: requested,
		}}, nil
	}

	type unit struct{ pkg, die, core int }
	covered := make(map[unit][]int)
	for _, id := range requested {
		c := t.cpus[t.byID[id]]
		u := unit{pkg: c.Package}
		if scope == ScopeDie || scope == ScopeCore {
			u.die = c.Die
		}
		if scope == ScopeCore {
			u.core = c.Core
		}
		covered[u] = append(covered[u], id)
	}

	units := make([]unit, 0, len(covered))
	for u := range covered {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool {
		a, b := units[i], units[j]
		if a.pkg != b.pkg {
			return a.pkg < b.pkg
		}
		if a.die != b.die {
			return a.die < b.die
		}
		return a.core < b.core
	})

	reps := make([]Representative, 0, len(units))
	for _, u := range units {
		members := t.unitMembers(scope, u.pkg, u.die, u.core)
		rep := Representative{CPU: members[0], CPUs: covered[u]}
		switch scope {
		case ScopeCore:
			rep.Key = fmt.Sprintf("core:%d/%d/%d", u.pkg, u.die, u.core)
		case ScopeDie:
			rep.Key = fmt.Sprintf("die:%d/%d", u.pkg, u.die)
		case ScopePackage:
			rep.Key = fmt.Sprintf("package:%d", u.pkg)
		}
		reps = append(reps, rep)
	}
	return reps, nil
}

// Expand returns every online CPU sharing the given CPU's scope unit,
// ascending. For ScopeCPU the unit is the CPU itself, online or not.
func (t *Topology) Expand(scope Scope, cpu int) ([]int, error) {
	c, err := t.checkCPU(scope, cpu)
	if err != nil {
		return nil, err
	}
	switch scope {
	case ScopeCPU:
		return []int{cpu}, nil
	case ScopeGlobal:
		return t.OnlineCPUs(), nil
	}
	return t.unitMembers(scope, c.Package, c.Die, c.Core), nil
}

// ScopeKey returns the cache key component naming the given CPU's
// scope unit, "cpu:5", "die:0/1", "package:0", "global".
func (t *Topology) ScopeKey(scope Scope, cpu int) (string, error) {
	c, err := t.checkCPU(scope, cpu)
	if err != nil {
		return "", err
	}
	switch scope {
	case ScopeCPU:
		return fmt.Sprintf("cpu:%d", cpu), nil
	case ScopeCore:
		return fmt.Sprintf("core:%d/%d/%d", c.Package, c.Die, c.Core), nil
	case ScopeDie:
		return fmt.Sprintf("die:%d/%d", c.Package, c.Die), nil
	case ScopePackage:
		return fmt.Sprintf("package:%d", c.Package), nil
	case ScopeGlobal:
		return "global", nil
	}
	return "", fmt.Errorf("unknown scope %d", int(scope))
}

// UnitCPUs maps a unit key produced by ScopeKey or Representatives
// back to the unit's online CPUs on this topology, ascending. A key
// naming a unit with no online CPUs, or a unit this machine does not
// have, is an error.
func (t *Topology) UnitCPUs(key string) ([]int, error) {
	if key == "global" {
		ids := t.OnlineCPUs()
		if len(ids) == 0 {
			return nil, fmt.Errorf("no online CPUs on %s", t.host)
		}
		return ids, nil
	}

	kind, rest, ok := strings.Cut(key, ":")
	if !ok {
		return nil, fmt.Errorf("malformed unit key %q", key)
	}
	parts := strings.Split(rest, "/")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("malformed unit key %q", key)
		}
		nums[i] = n
	}

	var scope Scope
	switch {
	case kind == "cpu" && len(nums) == 1:
		if _, ok := t.CPU(nums[0]); !ok {
			return nil, fmt.Errorf("CPU %d does not exist on %s", nums[0], t.host)
		}
		return []int{nums[0]}, nil
	case kind == "package" && len(nums) == 1:
		scope = ScopePackage
	case kind == "die" && len(nums) == 2:
		scope = ScopeDie
	case kind == "core" && len(nums) == 3:
		scope = ScopeCore
	default:
		return nil, fmt.Errorf("malformed unit key %q", key)
	}

	nums = append(nums, 0, 0)
	ids := t.unitMembers(scope, nums[0], nums[1], nums[2])
	if len(ids) == 0 {
		return nil, fmt.Errorf("unit %s has no online CPUs on %s", key, t.host)
	}
	return ids, nil
}

// checkRequest validates, deduplicates, and sorts a requested CPU set.
func (t *Topology) checkRequest(scope Scope, cpus []int) ([]int, error) {
	if len(cpus) == 0 {
		return nil, fmt.Errorf("empty CPU set")
	}
	seen := make(map[int]bool, len(cpus))
	for _, id := range cpus {
		if seen[id] {
			continue
		}
		if _, err := t.checkCPU(scope, id); err != nil {
			return nil, err
		}
		seen[id] = true
	}
	return sortedKeys(seen), nil
}

func (t *Topology) checkCPU(scope Scope, cpu int) (CPU, error) {
	c, ok := t.CPU(cpu)
	if !ok {
		return CPU{}, fmt.Errorf("CPU %d does not exist on %s", cpu, t.host)
	}
	if !c.Online && scope != ScopeCPU && scope != ScopeGlobal {
		return CPU{}, fmt.Errorf("CPU %d is offline on %s, its %s membership is unknown", cpu, t.host, scope)
	}
	return c, nil
}

// unitMembers returns the online CPUs of one unit, ascending. The die
// and core arguments are ignored for scopes that do not use them.
func (t *Topology) unitMembers(scope Scope, pkg, die, core int) []int {
	var ids []int
	for _, c := range t.cpus {
		if !c.Online || c.Package != pkg {
			continue
		}
		if (scope == ScopeDie || scope == ScopeCore) && c.Die != die {
			continue
		}
		if scope == ScopeCore && c.Core != core {
			continue
		}
		ids = append(ids, c.ID)
	}
	return ids
}

func (t *Topology) lowestOnline() int {
	for _, c := range t.cpus {
		if c.Online {
			return c.ID
		}
	}
	return -1
}
