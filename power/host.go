// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package power

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/powerfleet/powerfleet/access"
	"github.com/powerfleet/powerfleet/cpumodel"
	"github.com/powerfleet/powerfleet/topology"
	"github.com/powerfleet/powerfleet/transport"
)

// Host binds one transport connection to the discovered topology,
// detected CPU model, accessors, and value cache of a single machine.
// Hosts are fully independent; no state crosses host boundaries.
type Host struct {
	conn      transport.Transport
	sig       cpumodel.Signature
	entry     cpumodel.Entry
	tier      cpumodel.Tier
	cache     *Cache
	registers *access.Registers
	files     *access.Files

	mu   sync.Mutex
	topo *topology.Topology
}

// NewHost discovers the machine behind conn: topology from the sysfs
// CPU tree, model signature from /proc/cpuinfo, model entry from the
// database. The Host takes ownership of conn.
func NewHost(ctx context.Context, conn transport.Transport) (*Host, error) {
	topo, err := topology.Discover(ctx, conn)
	if err != nil {
		return nil, err
	}
	sig, err := cpumodel.Detect(ctx, conn)
	if err != nil {
		return nil, err
	}
	entry, tier := cpumodel.Lookup(sig)
	return &Host{
		conn:      conn,
		sig:       sig,
		entry:     entry,
		tier:      tier,
		cache:     NewCache(),
		registers: access.NewRegisters(conn),
		files:     access.NewFiles(conn),
		topo:      topo,
	}, nil
}

// Name returns the host's identifier.
func (h *Host) Name() string {
	return h.conn.Host()
}

// Topology returns the current topology model. The returned model is
// immutable; operations that span several calls should hold one
// reference rather than re-fetching between calls.
func (h *Host) Topology() *topology.Topology {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.topo
}

// Signature returns the detected model signature.
func (h *Host) Signature() cpumodel.Signature {
	return h.sig
}

// Model returns the resolved model entry and the lookup tier that
// produced it.
func (h *Host) Model() (cpumodel.Entry, cpumodel.Tier) {
	return h.entry, h.tier
}

// Rebuild rediscovers the topology after an explicit change such as
// onlining or offlining CPUs. Every cached value is dropped, since
// unit membership and representatives may have changed. On failure
// the previous topology stays in place.
func (h *Host) Rebuild(ctx context.Context) error {
	topo, err := topology.Discover(ctx, h.conn)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.topo = topo
	h.cache = NewCache()
	return nil
}

// currentCache returns the cache that matches the current topology.
func (h *Host) currentCache() *Cache {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cache
}

// Close releases the transport connection.
func (h *Host) Close() error {
	return h.conn.Close()
}

// Dialer opens a transport connection to a named host. The CLI
// builds one over its fleet configuration; tests inject fakes.
type Dialer func(ctx context.Context, name string) (transport.Transport, error)

// Registry hands out Hosts by identifier, building each on first use
// and reusing it afterwards. Safe for concurrent use; concurrent
// first requests for the same name dial once.
type Registry struct {
	dial Dialer

	mu    sync.Mutex
	hosts map[string]*hostSlot
}

type hostSlot struct {
	once sync.Once
	host *Host
	err  error
}

// NewRegistry returns a registry dialing through dial.
func NewRegistry(dial Dialer) *Registry {
	return &Registry{dial: dial, hosts: make(map[string]*hostSlot)}
}

// Host returns the Host for name, dialing and discovering it on
// first use.
func (r *Registry) Host(ctx context.Context, name string) (*Host, error) {
	r.mu.Lock()
	slot, ok := r.hosts[name]
	if !ok {
		slot = &hostSlot{}
		r.hosts[name] = slot
	}
	r.mu.Unlock()

	slot.once.Do(func() {
		conn, err := r.dial(ctx, name)
		if err != nil {
			slot.err = fmt.Errorf("dial %s: %w", name, err)
			return
		}
		host, err := NewHost(ctx, conn)
		if err != nil {
			conn.Close()
			slot.err = err
			return
		}
		slot.host = host
	})
	if slot.err != nil {
		r.forget(name, slot)
		return nil, slot.err
	}
	return slot.host, nil
}

// forget drops a failed slot so a later request can retry the dial.
func (r *Registry) forget(name string, failed *hostSlot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hosts[name] == failed {
		delete(r.hosts, name)
	}
}

// Names returns the identifiers of all live hosts, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for name, slot := range r.hosts {
		if slot.host != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Close closes every live host and reports the joined failures.
func (r *Registry) Close() error {
	r.mu.Lock()
	slots := make([]*hostSlot, 0, len(r.hosts))
	for _, slot := range r.hosts {
		slots = append(slots, slot)
	}
	r.hosts = make(map[string]*hostSlot)
	r.mu.Unlock()

	var errs []error
	for _, slot := range slots {
		if slot.host != nil {
			if err := slot.host.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
