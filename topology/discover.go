// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/powerfleet/powerfleet/transport"
)

// SysfsCPURoot is the base of the kernel's CPU device tree.
const SysfsCPURoot = "/sys/devices/system/cpu"

// sysfsReadLength bounds a single sysfs value read. Values are one
// short line; the kernel caps them at a page anyway.
const sysfsReadLength = 4096

// Discover reads the host's CPU lists and per-CPU identifier files
// and builds the topology model. Offline CPUs are retained with
// unknown membership: their topology directories are absent. A
// missing die identifier is not an error, older kernels predate die
// enumeration and such CPUs land in die 0 of their package.
func Discover(ctx context.Context, conn transport.Transport) (*Topology, error) {
	host := conn.Host()

	present, err := readCPUListFile(ctx, conn, SysfsCPURoot+"/present")
	if err != nil {
		return nil, fmt.Errorf("discover topology on %s: %w", host, err)
	}
	if len(present) == 0 {
		return nil, fmt.Errorf("discover topology on %s: %w: empty present list", host, ErrInconsistent)
	}

	online, err := readCPUListFile(ctx, conn, SysfsCPURoot+"/online")
	if err != nil {
		return nil, fmt.Errorf("discover topology on %s: %w", host, err)
	}

	presentSet := make(map[int]bool, len(present))
	for _, id := range present {
		presentSet[id] = true
	}
	onlineSet := make(map[int]bool, len(online))
	for _, id := range online {
		if !presentSet[id] {
			return nil, fmt.Errorf("discover topology on %s: %w: CPU %d is online but not present",
				host, ErrInconsistent, id)
		}
		onlineSet[id] = true
	}

	cpus := make([]CPU, 0, len(present))
	for _, id := range present {
		if !onlineSet[id] {
			cpus = append(cpus, CPU{ID: id, Package: -1, Die: -1, Core: -1})
			continue
		}
		c, err := discoverCPU(ctx, conn, id)
		if err != nil {
			return nil, fmt.Errorf("discover topology on %s: %w", host, err)
		}
		cpus = append(cpus, c)
	}

	topo, err := New(host, cpus)
	if err != nil {
		return nil, fmt.Errorf("discover topology on %s: %w", host, err)
	}
	return topo, nil
}

// discoverCPU reads the identifier files of one online CPU.
func discoverCPU(ctx context.Context, conn transport.Transport, id int) (CPU, error) {
	dir := fmt.Sprintf("%s/cpu%d/topology", SysfsCPURoot, id)

	pkg, err := readSysfsInt(ctx, conn, dir+"/physical_package_id")
	if errors.Is(err, transport.ErrNotFound) {
		return CPU{}, fmt.Errorf("%w: CPU %d is online but has no package identifier", ErrInconsistent, id)
	}
	if err != nil {
		return CPU{}, err
	}

	core, err := readSysfsInt(ctx, conn, dir+"/core_id")
	if errors.Is(err, transport.ErrNotFound) {
		return CPU{}, fmt.Errorf("%w: CPU %d is online but has no core identifier", ErrInconsistent, id)
	}
	if err != nil {
		return CPU{}, err
	}

	die, err := readSysfsInt(ctx, conn, dir+"/die_id")
	if errors.Is(err, transport.ErrNotFound) {
		die = 0
	} else if err != nil {
		return CPU{}, err
	}

	return CPU{ID: id, Package: pkg, Die: die, Core: core, Online: true}, nil
}

func readCPUListFile(ctx context.Context, conn transport.Transport, path string) ([]int, error) {
	data, err := conn.ReadBytes(ctx, path, 0, sysfsReadLength)
	if err != nil {
		return nil, err
	}
	cpus, err := ParseCPUList(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInconsistent, path, err)
	}
	return cpus, nil
}

func readSysfsInt(ctx context.Context, conn transport.Transport, path string) (int, error) {
	data, err := conn.ReadBytes(ctx, path, 0, sysfsReadLength)
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(string(data))
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not an integer", ErrInconsistent, path, text)
	}
	return n, nil
}
