// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package cpumodel

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/powerfleet/powerfleet/transport"
)

// CPU vendor identification strings as reported by CPUID.
const (
	VendorIntel = "GenuineIntel"
	VendorAMD   = "AuthenticAMD"
)

// cpuinfoReadLength bounds the /proc/cpuinfo read. The fields we need
// sit in the first processor block, well inside the first few
// kilobytes even on exotic machines.
const cpuinfoReadLength = 16384

// Signature identifies a CPU microarchitecture by the CPUID triple
// every x86 kernel exposes in /proc/cpuinfo.
type Signature struct {
	Vendor string
	Family int
	Model  int
}

// String renders the signature the way kernel folk write it,
// "GenuineIntel 6/143".
func (s Signature) String() string {
	return fmt.Sprintf("%s %d/%d", s.Vendor, s.Family, s.Model)
}

// Detect reads the host's /proc/cpuinfo through the transport and
// parses the first processor block. All logical CPUs of one host
// share a signature; mixed-vendor hosts do not exist.
func Detect(ctx context.Context, conn transport.Transport) (Signature, error) {
	data, err := conn.ReadBytes(ctx, "/proc/cpuinfo", 0, cpuinfoReadLength)
	if err != nil {
		return Signature{}, fmt.Errorf("detect CPU model on %s: %w", conn.Host(), err)
	}

	sig, err := parseCPUInfo(data)
	if err != nil {
		return Signature{}, fmt.Errorf("detect CPU model on %s: %w", conn.Host(), err)
	}
	return sig, nil
}

// parseCPUInfo extracts the first occurrence of the vendor_id,
// cpu family, and model fields.
func parseCPUInfo(data []byte) (Signature, error) {
	var sig Signature
	haveFamily, haveModel := false, false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "vendor_id":
			if sig.Vendor == "" {
				sig.Vendor = value
			}
		case "cpu family":
			if !haveFamily {
				n, err := strconv.Atoi(value)
				if err != nil {
					return Signature{}, fmt.Errorf("bad cpu family %q in /proc/cpuinfo", value)
				}
				sig.Family = n
				haveFamily = true
			}
		case "model":
			if !haveModel {
				n, err := strconv.Atoi(value)
				if err != nil {
					return Signature{}, fmt.Errorf("bad model %q in /proc/cpuinfo", value)
				}
				sig.Model = n
				haveModel = true
			}
		}
		if sig.Vendor != "" && haveFamily && haveModel {
			return sig, nil
		}
	}

	return Signature{}, fmt.Errorf("no vendor/family/model fields in /proc/cpuinfo")
}
