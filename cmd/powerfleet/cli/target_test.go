// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package cli_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli"
	"github.com/powerfleet/powerfleet/cmd/powerfleet/cli/clitest"
)

func TestCPUSelectionResolve(t *testing.T) {
	emu := clitest.SapphireRapids(t, "node1")
	session := clitest.Session(t, emu)
	topo := session.Host.Topology()

	tests := []struct {
		name      string
		selection cli.CPUSelection
		want      []int
		wantErr   string
	}{
		{
			name: "default is every online CPU",
			want: []int{0, 1, 2, 3, 4, 5, 6, 7},
		},
		{
			name:      "explicit cpus",
			selection: cli.CPUSelection{CPUs: "1,3"},
			want:      []int{1, 3},
		},
		{
			name:      "cpus range",
			selection: cli.CPUSelection{CPUs: "4-6"},
			want:      []int{4, 5, 6},
		},
		{
			name:      "nonexistent cpu",
			selection: cli.CPUSelection{CPUs: "9"},
			wantErr:   "CPU 9 does not exist",
		},
		{
			name:      "one package",
			selection: cli.CPUSelection{Packages: "1"},
			want:      []int{4, 5, 6, 7},
		},
		{
			name:      "nonexistent package",
			selection: cli.CPUSelection{Packages: "5"},
			wantErr:   "package 5 has no online CPUs",
		},
		{
			name:      "die in every package",
			selection: cli.CPUSelection{Dies: "1"},
			want:      []int{2, 3, 6, 7},
		},
		{
			name:      "nonexistent die",
			selection: cli.CPUSelection{Dies: "3"},
			wantErr:   "die 3 has no online CPUs",
		},
		{
			name:      "core in every package and die",
			selection: cli.CPUSelection{Cores: "0"},
			want:      []int{0, 2, 4, 6},
		},
		{
			name:      "two selectors rejected",
			selection: cli.CPUSelection{CPUs: "0", Packages: "0"},
			wantErr:   "at most one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.selection.Resolve(topo)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Resolve = %v, want error containing %q", got, tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want substring %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCPUSelectionResolveOfflineCPU(t *testing.T) {
	emu := clitest.SapphireRapids(t, "node1")
	emu.SetNode("/sys/devices/system/cpu/online", []byte("0-6\n"))
	session := clitest.Session(t, emu)
	topo := session.Host.Topology()

	selection := cli.CPUSelection{CPUs: "7"}
	_, err := selection.Resolve(topo)
	if err == nil {
		t.Fatal("Resolve = nil, want error for offline CPU")
	}
	if !strings.Contains(err.Error(), "CPU 7 is offline") {
		t.Errorf("error = %q, want offline CPU message", err.Error())
	}

	got, err := (&cli.CPUSelection{}).Resolve(topo)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []int{0, 1, 2, 3, 4, 5, 6}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("default selection = %v, want %v", got, want)
	}
}

func TestConnectUnknownHost(t *testing.T) {
	emu := clitest.SapphireRapids(t, "node1")
	target := clitest.Target(t, emu)
	target.Host = "node9"

	_, err := target.Connect(t.Context(), clitest.Logger())
	if err == nil {
		t.Fatal("Connect = nil, want error for unknown host")
	}
	if !strings.Contains(err.Error(), `unknown host "node9"`) {
		t.Errorf("error = %q, want unknown host message", err.Error())
	}
	if !strings.Contains(err.Error(), "node1") {
		t.Errorf("error = %q, should list the known hosts", err.Error())
	}
}

func TestConnectSessionSurface(t *testing.T) {
	emu := clitest.SapphireRapids(t, "node1")
	session := clitest.Session(t, emu)

	if session.Host.Name() != "node1" {
		t.Errorf("host name = %q, want node1", session.Host.Name())
	}
	if session.Engine == nil {
		t.Fatal("session has no engine")
	}
	if got := len(session.Host.Topology().OnlineCPUs()); got != 8 {
		t.Errorf("online CPUs = %d, want 8", got)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "hosts:\n  - name: db3\nstore:\n  path: /tmp/s.db\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	target := &cli.Target{ConfigPath: path}
	_, err := target.LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig = nil, want validation error")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("error = %q, want invalid configuration", err.Error())
	}
	if !strings.Contains(err.Error(), "address is required") {
		t.Errorf("error = %q, want address requirement", err.Error())
	}
}

func TestOpenStore(t *testing.T) {
	emu := clitest.SapphireRapids(t, "node1")
	target := clitest.Target(t, emu)

	cfg, err := target.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	store, err := cli.OpenStore(cfg, clitest.Logger())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	if _, err := os.Stat(cfg.Store.Path); err != nil {
		t.Errorf("store file not created: %v", err)
	}
}