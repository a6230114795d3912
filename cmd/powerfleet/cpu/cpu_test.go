// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package cpu

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli/clitest"
)

func TestRunHotplugOffline(t *testing.T) {
	emu := clitest.SapphireRapids(t, "node1")
	session := clitest.Session(t, emu)

	var buf bytes.Buffer
	if err := runHotplug(t.Context(), session, "2-3", false, &buf); err != nil {
		t.Fatalf("runHotplug: %v", err)
	}
	if got := buf.String(); got != "took CPUs 2,3 offline\n" {
		t.Errorf("output = %q", got)
	}

	for _, cpu := range []int{2, 3} {
		path := fmt.Sprintf("/sys/devices/system/cpu/cpu%d/online", cpu)
		data, ok := emu.Node(path)
		if !ok {
			t.Fatalf("node %s missing", path)
		}
		if strings.TrimSpace(string(data)) != "0" {
			t.Errorf("CPU %d online node = %q, want 0", cpu, data)
		}
	}

	data, _ := emu.Node("/sys/devices/system/cpu/cpu4/online")
	if strings.TrimSpace(string(data)) != "1" {
		t.Errorf("CPU 4 online node = %q, want untouched 1", data)
	}
}

func TestRunHotplugOnlineIsIdempotent(t *testing.T) {
	emu := clitest.SapphireRapids(t, "node1")
	session := clitest.Session(t, emu)

	var buf bytes.Buffer
	if err := runHotplug(t.Context(), session, "5", true, &buf); err != nil {
		t.Fatalf("runHotplug: %v", err)
	}
	if got := buf.String(); got != "brought CPUs 5 online\n" {
		t.Errorf("output = %q", got)
	}
	data, _ := emu.Node("/sys/devices/system/cpu/cpu5/online")
	if strings.TrimSpace(string(data)) != "1" {
		t.Errorf("CPU 5 online node = %q, want 1", data)
	}
}

func TestRunHotplugRefusesCPU0(t *testing.T) {
	emu := clitest.SapphireRapids(t, "node1")
	session := clitest.Session(t, emu)

	var buf bytes.Buffer
	err := runHotplug(t.Context(), session, "0-1", false, &buf)
	if err == nil {
		t.Fatal("runHotplug = nil, want error for CPU 0")
	}
	if !strings.Contains(err.Error(), "CPU 0") {
		t.Errorf("error = %q, should name CPU 0", err.Error())
	}

	// The refusal happens before any write: CPU 1 stays online.
	data, _ := emu.Node("/sys/devices/system/cpu/cpu1/online")
	if strings.TrimSpace(string(data)) != "1" {
		t.Errorf("CPU 1 online node = %q, want untouched 1", data)
	}
}

func TestRunHotplugRejectsBadList(t *testing.T) {
	emu := clitest.SapphireRapids(t, "node1")
	session := clitest.Session(t, emu)

	var buf bytes.Buffer
	err := runHotplug(t.Context(), session, "3-1", false, &buf)
	if err == nil {
		t.Fatal("runHotplug = nil, want error for reversed range")
	}
}
