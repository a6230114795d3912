// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package power

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"

	"github.com/powerfleet/powerfleet/cpumodel"
	"github.com/powerfleet/powerfleet/transport"
)

// countingTransport wraps a Transport and counts its calls, so tests
// can assert how much I/O an operation performed.
type countingTransport struct {
	transport.Transport

	mu     sync.Mutex
	reads  int
	writes int
	runs   int
}

func (c *countingTransport) ReadBytes(ctx context.Context, path string, offset int64, length int) ([]byte, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.Transport.ReadBytes(ctx, path, offset, length)
}

func (c *countingTransport) WriteBytes(ctx context.Context, path string, offset int64, data []byte) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.Transport.WriteBytes(ctx, path, offset, data)
}

func (c *countingTransport) Run(ctx context.Context, argv []string) (transport.RunResult, error) {
	c.mu.Lock()
	c.runs++
	c.mu.Unlock()
	return c.Transport.Run(ctx, argv)
}

func (c *countingTransport) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads, c.writes, c.runs = 0, 0, 0
}

func (c *countingTransport) calls() (reads, writes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads, c.writes
}

const testCPURoot = "/sys/devices/system/cpu"

func cpuinfoText(model int) string {
	return fmt.Sprintf("processor\t: 0\nvendor_id\t: GenuineIntel\ncpu family\t: 6\nmodel\t\t: %d\nmodel name\t: test fixture\n", model)
}

func msrPath(cpu int) string {
	return fmt.Sprintf("/dev/cpu/%d/msr", cpu)
}

func policyPath(cpu int, file string) string {
	return fmt.Sprintf("%s/cpufreq/policy%d/%s", testCPURoot, cpu, file)
}

func cpuPath(cpu int, file string) string {
	return fmt.Sprintf("%s/cpu%d/%s", testCPURoot, cpu, file)
}

// testMSRNode seeds the registers the property table touches:
// EPB 6, C1E autopromote on, prewake bit set (prewake off),
// package C-state limit code 2, uncore ratios 8..24.
func testMSRNode() []byte {
	node := make([]byte, 0x800)
	put := func(addr uint32, v uint64) {
		binary.LittleEndian.PutUint64(node[addr:], v)
	}
	put(0x1B0, 0x6)
	put(0x1FC, 1<<30|0x5B)
	put(0xE2, 0x2)
	put(0x620, 0x0818)
	return node
}

// newTestMachine builds an emulated host with the given shape. CPU
// ids are dense: package-major, then die, then CPU within the die.
func newTestMachine(t *testing.T, packages, dies, cpusPerDie, model int) *transport.Emulated {
	t.Helper()
	emu := transport.NewEmulated("testhost")
	total := packages * dies * cpusPerDie
	list := fmt.Sprintf("0-%d\n", total-1)
	emu.SetNode(testCPURoot+"/present", []byte(list))
	emu.SetNode(testCPURoot+"/online", []byte(list))
	emu.SetNode("/proc/cpuinfo", []byte(cpuinfoText(model)))
	emu.SetNode(testCPURoot+"/intel_pstate/no_turbo", []byte("0\n"))
	emu.SetNode("/sys/module/pcie_aspm/parameters/policy",
		[]byte("default [performance] powersave powersupersave\n"))

	for id := range total {
		pkg := id / (dies * cpusPerDie)
		die := (id / cpusPerDie) % dies
		core := id % cpusPerDie
		emu.SetNode(cpuPath(id, "topology/physical_package_id"), []byte(fmt.Sprintf("%d\n", pkg)))
		emu.SetNode(cpuPath(id, "topology/die_id"), []byte(fmt.Sprintf("%d\n", die)))
		emu.SetNode(cpuPath(id, "topology/core_id"), []byte(fmt.Sprintf("%d\n", core)))
		emu.SetNode(cpuPath(id, "power/energy_perf_bias"), []byte("6\n"))
		if id > 0 {
			emu.SetNode(cpuPath(id, "online"), []byte("1\n"))
		}
		emu.SetNode(policyPath(id, "energy_performance_preference"), []byte("balance_performance\n"))
		emu.SetNode(policyPath(id, "energy_performance_available_preferences"),
			[]byte("default performance balance_performance balance_power power\n"))
		emu.SetNode(policyPath(id, "scaling_governor"), []byte("powersave\n"))
		emu.SetNode(policyPath(id, "scaling_available_governors"), []byte("performance powersave\n"))
		emu.SetNode(policyPath(id, "scaling_driver"), []byte("intel_pstate\n"))
		emu.SetNode(msrPath(id), testMSRNode())
		seedCStates(emu, id)
	}
	return emu
}

func seedCStates(emu *transport.Emulated, cpu int) {
	states := []struct {
		name, desc         string
		latency, residency int
	}{
		{"POLL", "CPUIDLE CORE POLL IDLE", 0, 0},
		{"C1", "MWAIT 0x00", 2, 2},
		{"C6", "MWAIT 0x20", 290, 800},
	}
	for i, s := range states {
		prefix := fmt.Sprintf("%s/cpu%d/cpuidle/state%d", testCPURoot, cpu, i)
		emu.SetNode(prefix+"/name", []byte(s.name+"\n"))
		emu.SetNode(prefix+"/desc", []byte(s.desc+"\n"))
		emu.SetNode(prefix+"/latency", []byte(fmt.Sprintf("%d\n", s.latency)))
		emu.SetNode(prefix+"/residency", []byte(fmt.Sprintf("%d\n", s.residency)))
		emu.SetNode(prefix+"/disable", []byte("0\n"))
	}
}

// defaultMachine is a 2-package, 2-die, 2-CPU-per-die Sapphire
// Rapids box: 8 CPUs, 0-3 in package 0, 4-7 in package 1.
func defaultMachine(t *testing.T) *transport.Emulated {
	return newTestMachine(t, 2, 2, 2, cpumodel.ModelSapphireRapidsX)
}

// newTestEngine discovers the machine and resets the call counters,
// so test assertions see only their own operation's I/O.
func newTestEngine(t *testing.T, emu *transport.Emulated) (*Engine, *countingTransport) {
	t.Helper()
	conn := &countingTransport{Transport: emu}
	host, err := NewHost(t.Context(), conn)
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	conn.reset()
	return NewEngine(host), conn
}

func allCPUs(n int) []int {
	cpus := make([]int, n)
	for i := range cpus {
		cpus[i] = i
	}
	return cpus
}
