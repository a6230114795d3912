// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInconsistent reports a CPU model that contradicts itself: the
// host's identifier files disagree with its CPU lists, or a caller
// supplied CPUs that cannot form a valid partition.
var ErrInconsistent = errors.New("inconsistent topology")

// Scope is the granularity at which a property is defined. It
// determines the unit of caching and the unit of "one representative
// CPU stands for N CPUs".
type Scope int

const (
	// ScopeCPU properties have a distinct value per logical CPU.
	ScopeCPU Scope = iota
	// ScopeCore properties are shared by the sibling threads of a core.
	ScopeCore
	// ScopeDie properties are shared by all CPUs of a die.
	ScopeDie
	// ScopePackage properties are shared by all CPUs of a package.
	ScopePackage
	// ScopeGlobal properties have one value for the whole host.
	ScopeGlobal
)

// String returns the lowercase scope name used in cache keys and
// user-facing output.
func (s Scope) String() string {
	switch s {
	case ScopeCPU:
		return "cpu"
	case ScopeCore:
		return "core"
	case ScopeDie:
		return "die"
	case ScopePackage:
		return "package"
	case ScopeGlobal:
		return "global"
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// ParseScope parses a scope name, case-insensitively.
func ParseScope(name string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cpu":
		return ScopeCPU, nil
	case "core":
		return ScopeCore, nil
	case "die":
		return ScopeDie, nil
	case "package":
		return ScopePackage, nil
	case "global":
		return ScopeGlobal, nil
	}
	return 0, fmt.Errorf("unknown scope %q", name)
}

// CPU describes one logical processor. Package, Die, and Core are the
// host-reported identifiers; core identity is the full
// (package, die, core) triple because core numbers repeat across
// packages. An offline CPU's identifier files are absent, so its
// membership fields are -1.
type CPU struct {
	ID      int
	Package int
	Die     int
	Core    int
	Online  bool
}

// Topology is the immutable CPU model of one host. All accessors
// return fresh slices in ascending order.
type Topology struct {
	host string
	cpus []CPU
	byID map[int]int
}

// New builds a Topology from a host name and its CPUs. Membership of
// offline CPUs is unknown to the host, so their Package/Die/Core
// fields are cleared to -1 regardless of input. At least one CPU must
// be online: representative election is impossible otherwise.
func New(host string, cpus []CPU) (*Topology, error) {
	if len(cpus) == 0 {
		return nil, fmt.Errorf("%w: no CPUs", ErrInconsistent)
	}

	sorted := append([]CPU(nil), cpus...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[int]int, len(sorted))
	online := 0
	for i := range sorted {
		c := &sorted[i]
		if c.ID < 0 {
			return nil, fmt.Errorf("%w: negative CPU number %d", ErrInconsistent, c.ID)
		}
		if _, ok := byID[c.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate CPU %d", ErrInconsistent, c.ID)
		}
		byID[c.ID] = i
		if !c.Online {
			c.Package, c.Die, c.Core = -1, -1, -1
			continue
		}
		online++
		if c.Package < 0 || c.Die < 0 || c.Core < 0 {
			return nil, fmt.Errorf("%w: online CPU %d has incomplete membership (package %d, die %d, core %d)",
				ErrInconsistent, c.ID, c.Package, c.Die, c.Core)
		}
	}
	if online == 0 {
		return nil, fmt.Errorf("%w: no online CPUs", ErrInconsistent)
	}

	return &Topology{host: host, cpus: sorted, byID: byID}, nil
}

// Host returns the host identifier this model was discovered on.
func (t *Topology) Host() string {
	return t.host
}

// CPUs returns every present CPU, online and offline, in CPU number
// order.
func (t *Topology) CPUs() []CPU {
	return append([]CPU(nil), t.cpus...)
}

// CPU looks up one logical CPU by number.
func (t *Topology) CPU(id int) (CPU, bool) {
	i, ok := t.byID[id]
	if !ok {
		return CPU{}, false
	}
	return t.cpus[i], true
}

// PresentCPUs returns the numbers of all present CPUs.
func (t *Topology) PresentCPUs() []int {
	ids := make([]int, len(t.cpus))
	for i, c := range t.cpus {
		ids[i] = c.ID
	}
	return ids
}

// OnlineCPUs returns the numbers of all online CPUs.
func (t *Topology) OnlineCPUs() []int {
	var ids []int
	for _, c := range t.cpus {
		if c.Online {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// OfflineCPUs returns the numbers of all offline CPUs.
func (t *Topology) OfflineCPUs() []int {
	var ids []int
	for _, c := range t.cpus {
		if !c.Online {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Packages returns the distinct package numbers, ascending. Offline
// CPUs contribute no membership.
func (t *Topology) Packages() []int {
	seen := make(map[int]bool)
	for _, c := range t.cpus {
		if c.Online {
			seen[c.Package] = true
		}
	}
	return sortedKeys(seen)
}

// Dies returns the distinct die numbers within a package, ascending.
func (t *Topology) Dies(pkg int) []int {
	seen := make(map[int]bool)
	for _, c := range t.cpus {
		if c.Online && c.Package == pkg {
			seen[c.Die] = true
		}
	}
	return sortedKeys(seen)
}

// Cores returns the distinct core numbers within a (package, die)
// pair, ascending.
func (t *Topology) Cores(pkg, die int) []int {
	seen := make(map[int]bool)
	for _, c := range t.cpus {
		if c.Online && c.Package == pkg && c.Die == die {
			seen[c.Core] = true
		}
	}
	return sortedKeys(seen)
}

// CPUsInPackage returns the online CPUs of one package.
func (t *Topology) CPUsInPackage(pkg int) []int {
	var ids []int
	for _, c := range t.cpus {
		if c.Online && c.Package == pkg {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// CPUsInDie returns the online CPUs of one (package, die) pair.
func (t *Topology) CPUsInDie(pkg, die int) []int {
	var ids []int
	for _, c := range t.cpus {
		if c.Online && c.Package == pkg && c.Die == die {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// CPUsInCore returns the online CPUs (sibling threads) of one
// (package, die, core) triple.
func (t *Topology) CPUsInCore(pkg, die, core int) []int {
	var ids []int
	for _, c := range t.cpus {
		if c.Online && c.Package == pkg && c.Die == die && c.Core == core {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func sortedKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
