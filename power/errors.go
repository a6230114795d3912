// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package power

import (
	"errors"
	"fmt"
	"strings"

	"github.com/powerfleet/powerfleet/topology"
	"github.com/powerfleet/powerfleet/transport"
)

// Error taxonomy matched with errors.Is. The engine is the single
// place that classifies raw transport and accessor failures into
// these kinds; everything below it wraps causes verbatim.
var (
	// ErrTransportUnavailable reports a connection or process launch
	// failure. Fatal for the current operation, never retried.
	ErrTransportUnavailable = transport.ErrUnavailable

	// ErrPermissionDenied reports insufficient privilege for a
	// register or file access. Surfaced verbatim, never retried.
	ErrPermissionDenied = transport.ErrPermission

	// ErrUnsupportedProperty reports a property the detected CPU
	// model does not support, or a property name that does not exist.
	ErrUnsupportedProperty = errors.New("unsupported property")

	// ErrInvalidValue reports a requested value or target set that
	// fails validation. No write I/O was performed.
	ErrInvalidValue = errors.New("invalid value")

	// ErrPartialFailure reports a multi-target operation where a
	// strict subset of targets failed. The error carries per-target
	// detail via the PartialFailure type.
	ErrPartialFailure = errors.New("partial failure")

	// ErrInconsistentTopology reports a topology model that does not
	// describe a usable machine, or one invalidated mid-operation.
	ErrInconsistentTopology = topology.ErrInconsistent
)

// TargetError is one failed scope unit within a multi-target
// operation.
type TargetError struct {
	// Key names the failed unit, "package:2".
	Key string
	// CPU is the representative that performed the failing I/O.
	CPU int
	// Err is the classified cause.
	Err error
}

// PartialFailure carries per-target outcomes of a multi-target set
// where some units succeeded and others failed. Succeeded units'
// cache entries are already invalidated; nothing is rolled back.
//
// Matches ErrPartialFailure with errors.Is; the per-target causes
// unwrap, so errors.Is also matches their kinds.
type PartialFailure struct {
	Property  string
	Failed    []TargetError
	Succeeded []string
}

func (p *PartialFailure) Error() string {
	keys := make([]string, len(p.Failed))
	for i, f := range p.Failed {
		keys[i] = f.Key
	}
	return fmt.Sprintf("set %s: %d of %d targets failed (%s): %v",
		p.Property, len(p.Failed), len(p.Failed)+len(p.Succeeded),
		strings.Join(keys, ", "), p.Failed[0].Err)
}

// Is reports the ErrPartialFailure kind.
func (p *PartialFailure) Is(target error) bool {
	return target == ErrPartialFailure
}

// Unwrap exposes the per-target causes.
func (p *PartialFailure) Unwrap() []error {
	errs := make([]error, len(p.Failed))
	for i, f := range p.Failed {
		errs[i] = f.Err
	}
	return errs
}
