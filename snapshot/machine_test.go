// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/powerfleet/powerfleet/cpumodel"
	"github.com/powerfleet/powerfleet/power"
	"github.com/powerfleet/powerfleet/transport"
)

const cpuRoot = "/sys/devices/system/cpu"

func cpuNode(cpu int, file string) string {
	return fmt.Sprintf("%s/cpu%d/%s", cpuRoot, cpu, file)
}

func policyNode(cpu int, file string) string {
	return cpuNode(cpu, "cpufreq/"+file)
}

func msrNode(cpu int) string {
	return fmt.Sprintf("/dev/cpu/%d/msr", cpu)
}

// testMSR seeds the registers the property surface touches:
// EPB 6, POWER_CTL with C1E on and prewake raw-set, limit PC6 on
// servers, uncore floor 8 ceiling 24.
func testMSR() []byte {
	node := make([]byte, 0x800)
	put := func(address uint32, value uint64) {
		binary.LittleEndian.PutUint64(node[address:address+8], value)
	}
	put(0x1B0, 0x6)
	put(0x1FC, 1<<30|0x5B)
	put(0xE2, 0x2)
	put(0x620, 0x0818)
	return node
}

// testMachine is a 2-package, 2-die, 2-CPU-per-die box: CPUs 0-3 in
// package 0, 4-7 in package 1.
func testMachine(t *testing.T, model int) *transport.Emulated {
	t.Helper()
	emu := transport.NewEmulated("snaphost")
	emu.SetNode(cpuRoot+"/present", []byte("0-7\n"))
	emu.SetNode(cpuRoot+"/online", []byte("0-7\n"))
	emu.SetNode("/proc/cpuinfo", []byte(fmt.Sprintf(
		"processor\t: 0\nvendor_id\t: GenuineIntel\ncpu family\t: 6\nmodel\t\t: %d\nmodel name\t: test fixture\n", model)))
	emu.SetNode(cpuRoot+"/intel_pstate/no_turbo", []byte("0\n"))
	emu.SetNode("/sys/module/pcie_aspm/parameters/policy",
		[]byte("default [performance] powersave powersupersave\n"))

	for id := range 8 {
		emu.SetNode(cpuNode(id, "topology/physical_package_id"), []byte(fmt.Sprintf("%d\n", id/4)))
		emu.SetNode(cpuNode(id, "topology/die_id"), []byte(fmt.Sprintf("%d\n", (id/2)%2)))
		emu.SetNode(cpuNode(id, "topology/core_id"), []byte(fmt.Sprintf("%d\n", id%2)))
		emu.SetNode(cpuNode(id, "power/energy_perf_bias"), []byte("6\n"))
		emu.SetNode(policyNode(id, "energy_performance_preference"), []byte("balance_performance\n"))
		emu.SetNode(policyNode(id, "energy_performance_available_preferences"),
			[]byte("default performance balance_performance balance_power power\n"))
		emu.SetNode(policyNode(id, "scaling_governor"), []byte("powersave\n"))
		emu.SetNode(policyNode(id, "scaling_available_governors"), []byte("performance powersave\n"))
		emu.SetNode(policyNode(id, "scaling_driver"), []byte("intel_pstate\n"))
		emu.SetNode(msrNode(id), testMSR())
	}
	return emu
}

func testEngine(t *testing.T, emu *transport.Emulated) *power.Engine {
	t.Helper()
	host, err := power.NewHost(t.Context(), emu)
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	t.Cleanup(func() { host.Close() })
	return power.NewEngine(host)
}

func sprEngine(t *testing.T) (*power.Engine, *transport.Emulated) {
	t.Helper()
	emu := testMachine(t, cpumodel.ModelSapphireRapidsX)
	return testEngine(t, emu), emu
}
