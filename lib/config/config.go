// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable consulted when no --config
// flag is given.
const EnvVar = "POWERFLEET_CONFIG"

// Config is the fleet configuration for powerfleet commands.
type Config struct {
	// Hosts lists the fleet members reachable over SSH. The local
	// machine needs no entry.
	Hosts []HostConfig `yaml:"hosts"`

	// Store configures the snapshot store database.
	Store StoreConfig `yaml:"store"`

	// Log configures command logging.
	Log LogConfig `yaml:"log"`
}

// HostConfig describes one fleet member.
type HostConfig struct {
	// Name is the identifier accepted by --host and printed by fleet
	// subcommands.
	Name string `yaml:"name"`

	// Address is the host to dial, "host" or "host:port". A port in
	// the address wins over the Port field.
	Address string `yaml:"address"`

	// User is the SSH login name. Default: root.
	User string `yaml:"user"`

	// Port is the SSH port used when Address carries none.
	// Default: 22.
	Port int `yaml:"port"`

	// IdentityFile is the path to an SSH private key. When empty the
	// ssh-agent at SSH_AUTH_SOCK is used.
	IdentityFile string `yaml:"identity_file"`

	// RelayPath is the relay binary invoked on the remote host.
	// Default: powerfleet-relay.
	RelayPath string `yaml:"relay_path"`
}

// StoreConfig configures the snapshot store.
type StoreConfig struct {
	// Path is the SQLite database file.
	// Default: ~/.local/share/powerfleet/snapshots.db.
	Path string `yaml:"path"`
}

// LogConfig configures command logging.
type LogConfig struct {
	// Level is the minimum level emitted: debug, info, warn, or
	// error. Default: info.
	Level string `yaml:"level"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Store: StoreConfig{
			Path: filepath.Join(homeDir, ".local", "share", "powerfleet", "snapshots.db"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the config file location consulted when neither
// the --config flag nor POWERFLEET_CONFIG names one.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "powerfleet", "config.yaml")
}

// Load resolves and loads the fleet configuration. The explicit path
// (from --config) wins, then POWERFLEET_CONFIG, then DefaultPath. A
// file named explicitly or by the environment must exist; a missing
// file at the default path yields Default().
func Load(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return LoadFile(explicitPath)
	}
	if envPath := os.Getenv(EnvVar); envPath != "" {
		return LoadFile(envPath)
	}
	path := DefaultPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads the fleet configuration from path. Fields absent from
// the file keep their defaults. ${VAR} and ${VAR:-default} references
// in string fields are expanded after parsing.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyHostDefaults()
	cfg.expandVariables()
	return cfg, nil
}

// applyHostDefaults fills the per-host fields the file may omit.
func (c *Config) applyHostDefaults() {
	for i := range c.Hosts {
		host := &c.Hosts[i]
		if host.User == "" {
			host.User = "root"
		}
		if host.Port == 0 {
			host.Port = 22
		}
		if host.RelayPath == "" {
			host.RelayPath = "powerfleet-relay"
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// string fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Store.Path = expandVars(c.Store.Path, vars)
	for i := range c.Hosts {
		host := &c.Hosts[i]
		host.Address = expandVars(host.Address, vars)
		host.User = expandVars(host.User, vars)
		host.IdentityFile = expandVars(host.IdentityFile, vars)
		host.RelayPath = expandVars(host.RelayPath, vars)
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration, collecting every problem rather
// than stopping at the first.
func (c *Config) Validate() error {
	var errs []error

	seen := make(map[string]bool)
	for i, host := range c.Hosts {
		if host.Name == "" {
			errs = append(errs, fmt.Errorf("hosts[%d]: name is required", i))
		} else if seen[host.Name] {
			errs = append(errs, fmt.Errorf("hosts[%d]: duplicate host name %q", i, host.Name))
		} else {
			seen[host.Name] = true
		}
		if host.Address == "" {
			errs = append(errs, fmt.Errorf("hosts[%d] %q: address is required", i, host.Name))
		}
		if host.Port < 1 || host.Port > 65535 {
			errs = append(errs, fmt.Errorf("hosts[%d] %q: port %d out of range", i, host.Name, host.Port))
		}
	}

	if c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be one of: debug, info, warn, error", c.Log.Level))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Host returns the configured host with the given name. Unknown names
// produce an error listing every configured host.
func (c *Config) Host(name string) (HostConfig, error) {
	for _, host := range c.Hosts {
		if host.Name == name {
			return host, nil
		}
	}
	known := c.HostNames()
	if len(known) == 0 {
		return HostConfig{}, fmt.Errorf("unknown host %q: no hosts configured", name)
	}
	return HostConfig{}, fmt.Errorf("unknown host %q (known hosts: %s)", name, strings.Join(known, ", "))
}

// HostNames returns the configured host names, sorted.
func (c *Config) HostNames() []string {
	names := make([]string, 0, len(c.Hosts))
	for _, host := range c.Hosts {
		names = append(names, host.Name)
	}
	sort.Strings(names)
	return names
}

// DialAddress returns Address in the "host:port" form the SSH
// transport accepts. A port already present in Address wins over the
// Port field.
func (h HostConfig) DialAddress() string {
	if _, _, err := net.SplitHostPort(h.Address); err == nil {
		return h.Address
	}
	return net.JoinHostPort(h.Address, strconv.Itoa(h.Port))
}

// LogLevel maps Log.Level onto a slog level. Strings Validate would
// reject map to info.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EnsureStoreDir creates the directory holding the store database if
// it does not exist.
func (c *Config) EnsureStoreDir() error {
	dir := filepath.Dir(c.Store.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
