// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/pflag"

	"github.com/powerfleet/powerfleet/lib/config"
	"github.com/powerfleet/powerfleet/lib/snapstore"
	"github.com/powerfleet/powerfleet/power"
	"github.com/powerfleet/powerfleet/topology"
	"github.com/powerfleet/powerfleet/transport"
)

// DialFunc opens the transport for one configured fleet host.
type DialFunc func(ctx context.Context, host config.HostConfig, logger *slog.Logger) (transport.Transport, error)

// DialSSH is the default DialFunc: it starts the relay on the host
// over SSH.
func DialSSH(ctx context.Context, host config.HostConfig, logger *slog.Logger) (transport.Transport, error) {
	return transport.DialSSH(ctx, transport.SSHConfig{
		Address:      host.DialAddress(),
		User:         host.User,
		IdentityFile: host.IdentityFile,
		RelayCommand: host.RelayPath,
		Logger:       logger,
	})
}

// Target carries the --host and --config flags and resolves them into
// a connected host.
type Target struct {
	// ConfigPath is the --config flag value.
	ConfigPath string

	// Host is the --host flag value. Empty means the local machine.
	Host string

	// Dial overrides SSH dialing. Tests inject emulated transports
	// here; nil means DialSSH.
	Dial DialFunc
}

// BindFlags registers --host and --config on flags.
func (t *Target) BindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&t.ConfigPath, "config", "",
		"fleet config file (default ~/.config/powerfleet/config.yaml)")
	flags.StringVar(&t.Host, "host", "",
		"configured fleet host to operate on (default: the local machine)")
}

// LoadConfig loads and validates the fleet configuration named by the
// --config flag (or its fallbacks).
func (t *Target) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(t.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (t *Target) dialFunc() DialFunc {
	if t.Dial != nil {
		return t.Dial
	}
	return DialSSH
}

// Session is a connected host with its property engine and the
// configuration it was reached through.
type Session struct {
	Config *config.Config
	Host   *power.Host
	Engine *power.Engine
}

// Connect resolves the target into a Session: it loads the fleet
// configuration, opens the local transport or dials the named host,
// and discovers the machine. Close releases the connection.
func (t *Target) Connect(ctx context.Context, logger *slog.Logger) (*Session, error) {
	cfg, err := t.LoadConfig()
	if err != nil {
		return nil, err
	}

	var conn transport.Transport
	if t.Host == "" {
		conn = transport.NewLocal()
	} else {
		hostConfig, err := cfg.Host(t.Host)
		if err != nil {
			return nil, err
		}
		conn, err = t.dialFunc()(ctx, hostConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", t.Host, err)
		}
	}

	host, err := power.NewHost(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Session{Config: cfg, Host: host, Engine: power.NewEngine(host)}, nil
}

// Close releases the session's transport connection.
func (s *Session) Close() error {
	return s.Host.Close()
}

// Registry returns a host registry dialing through the fleet
// configuration, for commands that fan out over several hosts.
func (t *Target) Registry(cfg *config.Config, logger *slog.Logger) *power.Registry {
	dial := t.dialFunc()
	return power.NewRegistry(func(ctx context.Context, name string) (transport.Transport, error) {
		hostConfig, err := cfg.Host(name)
		if err != nil {
			return nil, err
		}
		return dial(ctx, hostConfig, logger)
	})
}

// OpenStore opens the snapshot store named by the configuration,
// creating its directory on first use.
func OpenStore(cfg *config.Config, logger *slog.Logger) (*snapstore.Store, error) {
	if err := cfg.EnsureStoreDir(); err != nil {
		return nil, err
	}
	return snapstore.Open(snapstore.Config{Path: cfg.Store.Path, Logger: logger})
}

// CPUSelection is the target-set flags shared by the property and
// idle commands. At most one selector may be used; an empty selection
// means every online CPU.
type CPUSelection struct {
	CPUs     string
	Cores    string
	Dies     string
	Packages string
}

// BindFlags registers the selection flags on flags.
func (s *CPUSelection) BindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&s.CPUs, "cpus", "", `logical CPUs to target, e.g. "0-3,8"`)
	flags.StringVar(&s.Cores, "cores", "", `core numbers to target, in every package and die`)
	flags.StringVar(&s.Dies, "dies", "", `die numbers to target, in every package`)
	flags.StringVar(&s.Packages, "packages", "", `package numbers to target`)
}

// Resolve expands the selection against topo into a sorted CPU list.
func (s *CPUSelection) Resolve(topo *topology.Topology) ([]int, error) {
	given := 0
	for _, v := range []string{s.CPUs, s.Cores, s.Dies, s.Packages} {
		if v != "" {
			given++
		}
	}
	if given > 1 {
		return nil, fmt.Errorf("at most one of --cpus, --cores, --dies, --packages may be given")
	}

	switch {
	case s.CPUs != "":
		ids, err := topology.ParseCPUList(s.CPUs)
		if err != nil {
			return nil, fmt.Errorf("--cpus: %w", err)
		}
		for _, id := range ids {
			c, ok := topo.CPU(id)
			if !ok {
				return nil, fmt.Errorf("--cpus: CPU %d does not exist on %s", id, topo.Host())
			}
			if !c.Online {
				return nil, fmt.Errorf("--cpus: CPU %d is offline on %s", id, topo.Host())
			}
		}
		return ids, nil

	case s.Packages != "":
		pkgs, err := topology.ParseCPUList(s.Packages)
		if err != nil {
			return nil, fmt.Errorf("--packages: %w", err)
		}
		union := make(map[int]bool)
		for _, pkg := range pkgs {
			members := topo.CPUsInPackage(pkg)
			if len(members) == 0 {
				return nil, fmt.Errorf("--packages: package %d has no online CPUs on %s", pkg, topo.Host())
			}
			for _, id := range members {
				union[id] = true
			}
		}
		return sortedSet(union), nil

	case s.Dies != "":
		dies, err := topology.ParseCPUList(s.Dies)
		if err != nil {
			return nil, fmt.Errorf("--dies: %w", err)
		}
		union := make(map[int]bool)
		for _, die := range dies {
			found := false
			for _, pkg := range topo.Packages() {
				for _, id := range topo.CPUsInDie(pkg, die) {
					union[id] = true
					found = true
				}
			}
			if !found {
				return nil, fmt.Errorf("--dies: die %d has no online CPUs on %s", die, topo.Host())
			}
		}
		return sortedSet(union), nil

	case s.Cores != "":
		cores, err := topology.ParseCPUList(s.Cores)
		if err != nil {
			return nil, fmt.Errorf("--cores: %w", err)
		}
		union := make(map[int]bool)
		for _, core := range cores {
			found := false
			for _, pkg := range topo.Packages() {
				for _, die := range topo.Dies(pkg) {
					for _, id := range topo.CPUsInCore(pkg, die, core) {
						union[id] = true
						found = true
					}
				}
			}
			if !found {
				return nil, fmt.Errorf("--cores: core %d has no online CPUs on %s", core, topo.Host())
			}
		}
		return sortedSet(union), nil
	}

	cpus := topo.OnlineCPUs()
	if len(cpus) == 0 {
		return nil, fmt.Errorf("no online CPUs on %s", topo.Host())
	}
	return cpus, nil
}

func sortedSet(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
