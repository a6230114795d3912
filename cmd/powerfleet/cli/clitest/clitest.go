// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package clitest provides emulated host fixtures for command tests.
// A fixture machine carries the full property surface (cpufreq and
// intel_pstate nodes, MSR register files, ASPM policy, idle states)
// so commands run end to end without touching the build machine.
package clitest

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli"
	"github.com/powerfleet/powerfleet/cpumodel"
	"github.com/powerfleet/powerfleet/lib/config"
	"github.com/powerfleet/powerfleet/transport"
)

const cpuRoot = "/sys/devices/system/cpu"

func cpuNode(cpu int, file string) string {
	return fmt.Sprintf("%s/cpu%d/%s", cpuRoot, cpu, file)
}

// testMSR seeds the registers the property surface touches: EPB 6,
// POWER_CTL with C1E on, limit PC6, uncore floor 8 ceiling 24.
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

// Machine returns an emulated 2-package, 2-die, 2-CPU-per-die host:
// CPUs 0-3 in package 0, 4-7 in package 1, with three idle states
// per CPU.
func Machine(t *testing.T, host string, model int) *transport.Emulated {
	t.Helper()
	emu := transport.NewEmulated(host)
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
		emu.SetNode(cpuNode(id, "cpufreq/energy_performance_preference"), []byte("balance_performance\n"))
		emu.SetNode(cpuNode(id, "cpufreq/energy_performance_available_preferences"),
			[]byte("default performance balance_performance balance_power power\n"))
		emu.SetNode(cpuNode(id, "cpufreq/scaling_governor"), []byte("powersave\n"))
		emu.SetNode(cpuNode(id, "cpufreq/scaling_available_governors"), []byte("performance powersave\n"))
		emu.SetNode(cpuNode(id, "cpufreq/scaling_driver"), []byte("intel_pstate\n"))
		emu.SetNode(fmt.Sprintf("/dev/cpu/%d/msr", id), testMSR())
		if id != 0 {
			emu.SetNode(cpuNode(id, "online"), []byte("1\n"))
		}
		seedCStates(emu, id)
	}
	return emu
}

// SapphireRapids returns the standard fixture: a Machine with the
// Sapphire Rapids model signature, which supports the whole register
// surface.
func SapphireRapids(t *testing.T, host string) *transport.Emulated {
	t.Helper()
	return Machine(t, host, cpumodel.ModelSapphireRapidsX)
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
		prefix := fmt.Sprintf("%s/cpu%d/cpuidle/state%d", cpuRoot, cpu, i)
		emu.SetNode(prefix+"/name", []byte(s.name+"\n"))
		emu.SetNode(prefix+"/desc", []byte(s.desc+"\n"))
		emu.SetNode(prefix+"/latency", []byte(fmt.Sprintf("%d\n", s.latency)))
		emu.SetNode(prefix+"/residency", []byte(fmt.Sprintf("%d\n", s.residency)))
		emu.SetNode(prefix+"/disable", []byte("0\n"))
	}
}

// Target returns a cli.Target wired to the fixture: a written fleet
// config names the fixture host, the store database lands in a temp
// directory, and dialing hands back the emulated transport.
func Target(t *testing.T, emu *transport.Emulated) *cli.Target {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("hosts:\n  - name: %s\n    address: %s\nstore:\n  path: %s\n",
		emu.Host(), emu.Host(), filepath.Join(dir, "snapshots.db"))
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return &cli.Target{
		ConfigPath: configPath,
		Host:       emu.Host(),
		Dial: func(_ context.Context, _ config.HostConfig, _ *slog.Logger) (transport.Transport, error) {
			return emu, nil
		},
	}
}

// Session connects Target's fixture and registers cleanup.
func Session(t *testing.T, emu *transport.Emulated) *cli.Session {
	t.Helper()
	target := Target(t, emu)
	session, err := target.Connect(t.Context(), Logger())
	if err != nil {
		t.Fatalf("connecting to fixture: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
