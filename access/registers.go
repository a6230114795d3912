// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package access

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/powerfleet/powerfleet/transport"
)

// msrPathTemplate is the per-CPU register device node.
const msrPathTemplate = "/dev/cpu/%d/msr"

// registerSize is the width of one register read or write in bytes.
const registerSize = 8

// Registers performs bit-field reads and read-modify-writes against
// per-CPU model-specific registers of one host. Writes to the same
// register serialize on a per-register lock so two fields of one
// register cannot interleave their read and write halves; reads take
// no lock and see whatever the hardware holds at that instant.
type Registers struct {
	conn transport.Transport

	mu    sync.Mutex
	locks map[uint32]*sync.Mutex
}

// NewRegisters returns a register accessor backed by conn.
func NewRegisters(conn transport.Transport) *Registers {
	return &Registers{
		conn:  conn,
		locks: make(map[uint32]*sync.Mutex),
	}
}

func (r *Registers) lock(address uint32) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[address]
	if !ok {
		l = &sync.Mutex{}
		r.locks[address] = l
	}
	return l
}

// Read returns the field value of spec on the given CPU.
func (r *Registers) Read(ctx context.Context, cpu int, spec RegisterSpec) (uint64, error) {
	register, err := r.readRegister(ctx, cpu, spec)
	if err != nil {
		return 0, err
	}
	return spec.Extract(register), nil
}

// ReadRaw returns the full register value on the given CPU.
func (r *Registers) ReadRaw(ctx context.Context, cpu int, spec RegisterSpec) (uint64, error) {
	return r.readRegister(ctx, cpu, spec)
}

// Write sets the field of spec on the given CPU to value, preserving
// every bit outside the field. Cancellation is honored before the
// read-modify-write pair starts, never between its read and write
// halves: a cancelled context can prevent the write, but cannot leave
// the register torn.
func (r *Registers) Write(ctx context.Context, cpu int, spec RegisterSpec, value uint64) error {
	if value > spec.MaxValue() {
		return fmt.Errorf("write %s on CPU %d of %s: value %#x exceeds %d-bit field",
			spec.Name, cpu, r.conn.Host(), value, spec.Width())
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("write %s on CPU %d of %s: %w", spec.Name, cpu, r.conn.Host(), err)
	}

	l := r.lock(spec.Address)
	l.Lock()
	defer l.Unlock()

	ctx = context.WithoutCancel(ctx)
	register, err := r.readRegister(ctx, cpu, spec)
	if err != nil {
		return err
	}
	register = spec.Insert(register, value)

	buf := make([]byte, registerSize)
	binary.LittleEndian.PutUint64(buf, register)
	path := fmt.Sprintf(msrPathTemplate, cpu)
	if err := r.conn.WriteBytes(ctx, path, int64(spec.Address), buf); err != nil {
		return fmt.Errorf("write %s on CPU %d of %s: %w", spec.Name, cpu, r.conn.Host(), err)
	}
	return nil
}

func (r *Registers) readRegister(ctx context.Context, cpu int, spec RegisterSpec) (uint64, error) {
	path := fmt.Sprintf(msrPathTemplate, cpu)
	data, err := r.conn.ReadBytes(ctx, path, int64(spec.Address), registerSize)
	if err != nil {
		return 0, fmt.Errorf("read %s on CPU %d of %s: %w", spec.Name, cpu, r.conn.Host(), err)
	}
	if len(data) != registerSize {
		return 0, fmt.Errorf("read %s on CPU %d of %s: short read of %d bytes",
			spec.Name, cpu, r.conn.Host(), len(data))
	}
	return binary.LittleEndian.Uint64(data), nil
}
