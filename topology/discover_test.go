// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/powerfleet/powerfleet/transport"
)

type synthCPU struct {
	pkg, die, core int
	noDieFile      bool
}

// synthHost builds an emulated host whose sysfs tree describes the
// given CPUs. Only CPUs with an entry in cpus get a topology
// directory; present CPUs without one model offline CPUs.
func synthHost(t *testing.T, present, online string, cpus map[int]synthCPU) *transport.Emulated {
	t.Helper()
	host := transport.NewEmulated("synth")
	host.SetNode(SysfsCPURoot+"/present", []byte(present+"\n"))
	host.SetNode(SysfsCPURoot+"/online", []byte(online+"\n"))
	for id, c := range cpus {
		dir := fmt.Sprintf("%s/cpu%d/topology", SysfsCPURoot, id)
		host.SetNode(dir+"/physical_package_id", []byte(fmt.Sprintf("%d\n", c.pkg)))
		host.SetNode(dir+"/core_id", []byte(fmt.Sprintf("%d\n", c.core)))
		if !c.noDieFile {
			host.SetNode(dir+"/die_id", []byte(fmt.Sprintf("%d\n", c.die)))
		}
	}
	return host
}

func TestDiscover(t *testing.T) {
	cpus := map[int]synthCPU{
		0: {pkg: 0, die: 0, core: 0},
		1: {pkg: 0, die: 0, core: 1},
		2: {pkg: 0, die: 1, core: 0},
		3: {pkg: 0, die: 1, core: 1},
		4: {pkg: 1, die: 0, core: 0},
		5: {pkg: 1, die: 0, core: 1},
		6: {pkg: 1, die: 1, core: 0},
		7: {pkg: 1, die: 1, core: 1},
	}
	topo, err := Discover(t.Context(), synthHost(t, "0-7", "0-7", cpus))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if got := topo.Host(); got != "synth" {
		t.Errorf("Host() = %q, want synth", got)
	}
	if got := topo.Packages(); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("Packages() = %v, want [0 1]", got)
	}
	if got := topo.Dies(0); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("Dies(0) = %v, want [0 1]", got)
	}
	if got := topo.CPUsInDie(1, 1); !slices.Equal(got, []int{6, 7}) {
		t.Errorf("CPUsInDie(1, 1) = %v, want [6 7]", got)
	}
	c, ok := topo.CPU(5)
	if !ok {
		t.Fatal("CPU(5) not found")
	}
	want := CPU{ID: 5, Package: 1, Die: 0, Core: 1, Online: true}
	if c != want {
		t.Errorf("CPU(5) = %+v, want %+v", c, want)
	}
}

func TestDiscoverHyperthreads(t *testing.T) {
	cpus := map[int]synthCPU{
		0: {pkg: 0, die: 0, core: 0},
		1: {pkg: 0, die: 0, core: 1},
		2: {pkg: 0, die: 0, core: 0},
		3: {pkg: 0, die: 0, core: 1},
	}
	topo, err := Discover(t.Context(), synthHost(t, "0-3", "0-3", cpus))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	// CPUs 0 and 2 report the same (package, die, core) triple, so
	// they are sibling threads of one core.
	if got := topo.Cores(0, 0); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("Cores(0, 0) = %v, want [0 1]", got)
	}
	if got := topo.CPUsInCore(0, 0, 0); !slices.Equal(got, []int{0, 2}) {
		t.Errorf("CPUsInCore(0, 0, 0) = %v, want [0 2]", got)
	}
}

func TestDiscoverOfflineCPUs(t *testing.T) {
	cpus := map[int]synthCPU{
		0: {pkg: 0, die: 0, core: 0},
		1: {pkg: 0, die: 0, core: 1},
	}
	// CPUs 2 and 3 are present but offline: no topology directories.
	topo, err := Discover(t.Context(), synthHost(t, "0-3", "0,1", cpus))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if got := topo.PresentCPUs(); !slices.Equal(got, []int{0, 1, 2, 3}) {
		t.Errorf("PresentCPUs() = %v, want [0 1 2 3]", got)
	}
	if got := topo.OnlineCPUs(); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("OnlineCPUs() = %v, want [0 1]", got)
	}
	c, ok := topo.CPU(3)
	if !ok {
		t.Fatal("CPU(3) not found")
	}
	if c.Online {
		t.Error("CPU(3).Online = true, want false")
	}
	if c.Package != -1 {
		t.Errorf("CPU(3).Package = %d, want -1", c.Package)
	}
	if got := topo.CPUsInPackage(0); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("CPUsInPackage(0) = %v, want [0 1]", got)
	}
}

func TestDiscoverMissingDieID(t *testing.T) {
	cpus := map[int]synthCPU{
		0: {pkg: 0, die: 7, core: 0, noDieFile: true},
		1: {pkg: 0, die: 7, core: 1, noDieFile: true},
	}
	topo, err := Discover(t.Context(), synthHost(t, "0,1", "0,1", cpus))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	// Kernels without die enumeration place every core in die 0.
	if got := topo.Dies(0); !slices.Equal(got, []int{0}) {
		t.Errorf("Dies(0) = %v, want [0]", got)
	}
	c, _ := topo.CPU(1)
	if c.Die != 0 {
		t.Errorf("CPU(1).Die = %d, want 0", c.Die)
	}
}

func TestDiscoverInconsistentTrees(t *testing.T) {
	base := map[int]synthCPU{
		0: {pkg: 0, die: 0, core: 0},
		1: {pkg: 0, die: 0, core: 1},
	}

	tests := []struct {
		name  string
		build func() *transport.Emulated
	}{
		{"online_cpu_without_topology", func() *transport.Emulated {
			return synthHost(t, "0-2", "0-2", base)
		}},
		{"online_but_not_present", func() *transport.Emulated {
			return synthHost(t, "0,1", "0-2", base)
		}},
		{"empty_present", func() *transport.Emulated {
			return synthHost(t, "", "", nil)
		}},
		{"garbage_package_id", func() *transport.Emulated {
			host := synthHost(t, "0,1", "0,1", base)
			host.SetNode(SysfsCPURoot+"/cpu1/topology/physical_package_id", []byte("abc\n"))
			return host
		}},
		{"garbage_present_list", func() *transport.Emulated {
			host := synthHost(t, "0,1", "0,1", base)
			host.SetNode(SysfsCPURoot+"/present", []byte("0-x\n"))
			return host
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Discover(t.Context(), test.build())
			if !errors.Is(err, ErrInconsistent) {
				t.Errorf("Discover error = %v, want ErrInconsistent", err)
			}
		})
	}
}

func TestDiscoverMissingPresentFile(t *testing.T) {
	host := transport.NewEmulated("bare")
	_, err := Discover(t.Context(), host)
	if !errors.Is(err, transport.ErrNotFound) {
		t.Errorf("Discover error = %v, want ErrNotFound", err)
	}
}

func TestDiscoverMissingCoreID(t *testing.T) {
	host := synthHost(t, "0", "0", map[int]synthCPU{0: {pkg: 0, die: 0, core: 0}})
	host.RemoveNode(SysfsCPURoot + "/cpu0/topology/core_id")
	_, err := Discover(t.Context(), host)
	if !errors.Is(err, ErrInconsistent) {
		t.Errorf("Discover error = %v, want ErrInconsistent", err)
	}
}
