// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package cpumodel

import (
	"errors"
	"testing"

	"github.com/powerfleet/powerfleet/transport"
)

const sprCPUInfo = `processor	: 0
vendor_id	: GenuineIntel
cpu family	: 6
model		: 143
model name	: Intel(R) Xeon(R) Platinum 8480+
stepping	: 8
microcode	: 0x2b000571
cpu MHz		: 2000.000
cache size	: 107520 KB
physical id	: 0
siblings	: 112

processor	: 1
vendor_id	: GenuineIntel
cpu family	: 6
model		: 143
`

func TestDetect(t *testing.T) {
	host := transport.NewEmulated("sprbox")
	host.SetNode("/proc/cpuinfo", []byte(sprCPUInfo))

	sig, err := Detect(t.Context(), host)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	want := Signature{Vendor: VendorIntel, Family: 6, Model: ModelSapphireRapidsX}
	if sig != want {
		t.Errorf("Detect = %+v, want %+v", sig, want)
	}
}

func TestDetectAMD(t *testing.T) {
	host := transport.NewEmulated("epycbox")
	host.SetNode("/proc/cpuinfo", []byte(
		"processor\t: 0\nvendor_id\t: AuthenticAMD\ncpu family\t: 25\nmodel\t\t: 17\nmodel name\t: AMD EPYC 9654\n"))

	sig, err := Detect(t.Context(), host)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	want := Signature{Vendor: VendorAMD, Family: 25, Model: 17}
	if sig != want {
		t.Errorf("Detect = %+v, want %+v", sig, want)
	}
}

func TestDetectMissingCPUInfo(t *testing.T) {
	host := transport.NewEmulated("bare")
	if _, err := Detect(t.Context(), host); !errors.Is(err, transport.ErrNotFound) {
		t.Errorf("Detect error = %v, want ErrNotFound", err)
	}
}

func TestParseCPUInfoErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no_fields", "processor\t: 0\nbogomips\t: 4000.00\n"},
		{"garbage_family", "vendor_id\t: GenuineIntel\ncpu family\t: six\nmodel\t: 143\n"},
		{"garbage_model", "vendor_id\t: GenuineIntel\ncpu family\t: 6\nmodel\t: SPR\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := parseCPUInfo([]byte(test.data)); err == nil {
				t.Errorf("parseCPUInfo(%q) succeeded, want error", test.data)
			}
		})
	}
}

func TestParseCPUInfoIgnoresModelName(t *testing.T) {
	// "model name" must not satisfy the "model" field.
	data := "vendor_id\t: GenuineIntel\ncpu family\t: 6\nmodel name\t: Intel Xeon\nmodel\t\t: 85\n"
	sig, err := parseCPUInfo([]byte(data))
	if err != nil {
		t.Fatalf("parseCPUInfo: %v", err)
	}
	if sig.Model != ModelSkylakeX {
		t.Errorf("Model = %d, want %d", sig.Model, ModelSkylakeX)
	}
}

func TestSignatureString(t *testing.T) {
	sig := Signature{Vendor: VendorIntel, Family: 6, Model: 143}
	if got := sig.String(); got != "GenuineIntel 6/143" {
		t.Errorf("String() = %q, want GenuineIntel 6/143", got)
	}
}
