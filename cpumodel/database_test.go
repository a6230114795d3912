// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package cpumodel

import (
	"slices"
	"testing"

	"github.com/powerfleet/powerfleet/topology"
)

func TestLookupExact(t *testing.T) {
	entry, tier := Lookup(Signature{Vendor: VendorIntel, Family: 6, Model: ModelSapphireRapidsX})
	if tier != TierExact {
		t.Fatalf("tier = %v, want exact", tier)
	}
	if entry.Microarch != "Sapphire Rapids Xeon" {
		t.Errorf("Microarch = %q, want Sapphire Rapids Xeon", entry.Microarch)
	}
	if !entry.CStatePrewake || !entry.C1EAutopromote || !entry.UncoreRatio {
		t.Errorf("feature gates = %+v, want all true", entry)
	}
	if entry.PkgCStateLimits == nil {
		t.Fatal("PkgCStateLimits = nil, want server table")
	}
}

func TestLookupFamilyFallback(t *testing.T) {
	// An unknown family 6 model resolves via the family default, not
	// as unsupported silicon.
	entry, tier := Lookup(Signature{Vendor: VendorIntel, Family: 6, Model: 0xE0})
	if tier != TierFamily {
		t.Fatalf("tier = %v, want family", tier)
	}
	if entry.PkgCStateLimits == nil {
		t.Error("family default has no limit table")
	}
	if !entry.C1EAutopromote {
		t.Error("family default C1EAutopromote = false, want true")
	}
	if entry.CStatePrewake {
		t.Error("family default CStatePrewake = true, want false")
	}
}

func TestLookupGlobalDefault(t *testing.T) {
	for _, sig := range []Signature{
		{Vendor: VendorAMD, Family: 25, Model: 17},
		{Vendor: VendorIntel, Family: 15, Model: 4},
		{Vendor: "UnknownVendor", Family: 6, Model: 1},
	} {
		entry, tier := Lookup(sig)
		if tier != TierGlobal {
			t.Errorf("Lookup(%v) tier = %v, want global", sig, tier)
		}
		if entry.PkgCStateLimits != nil {
			t.Errorf("Lookup(%v) has a limit table, want none", sig)
		}
		if entry.C1EAutopromote || entry.CStatePrewake || entry.UncoreRatio {
			t.Errorf("Lookup(%v) gates = %+v, want all false", sig, entry)
		}
	}
}

func TestEPBScopeOverrides(t *testing.T) {
	tests := []struct {
		model int
		want  topology.Scope
	}{
		{ModelAtomSilvermont, topology.ScopeCore},
		{ModelAtomSilvermontD, topology.ScopeCore},
		{ModelWestmere, topology.ScopePackage},
		{ModelSandyBridge, topology.ScopePackage},
		{ModelSandyBridgeX, topology.ScopePackage},
		{ModelSapphireRapidsX, topology.ScopeCPU},
		{ModelSkylakeX, topology.ScopeCPU},
	}
	for _, test := range tests {
		entry, _ := Lookup(Signature{Vendor: VendorIntel, Family: 6, Model: test.model})
		if entry.EPBScope != test.want {
			t.Errorf("model %#x EPBScope = %v, want %v", test.model, entry.EPBScope, test.want)
		}
	}
}

func TestPrewakeGate(t *testing.T) {
	prewake := map[int]bool{
		ModelSapphireRapidsX: true,
		ModelIceLakeX:        true,
		ModelIceLakeD:        true,
		ModelSkylakeX:        true,
		ModelBroadwellX:      true,
		ModelHaswellX:        true,
		ModelIvyBridgeX:      true,
		ModelGraniteRapidsX:  false,
		ModelAlderLake:       false,
		ModelAtomSilvermont:  false,
	}
	for model, want := range prewake {
		entry, _ := Lookup(Signature{Vendor: VendorIntel, Family: 6, Model: model})
		if entry.CStatePrewake != want {
			t.Errorf("model %#x CStatePrewake = %v, want %v", model, entry.CStatePrewake, want)
		}
	}
}

func TestUncoreRatioGate(t *testing.T) {
	uncore := map[int]bool{
		ModelSapphireRapidsX: true,
		ModelEmeraldRapidsX:  true,
		ModelIceLakeX:        true,
		ModelSkylakeX:        true,
		ModelBroadwellX:      true,
		ModelAlderLake:       true,
		ModelMeteorLake:      true,
		ModelHaswellX:        false,
		ModelWestmere:        false,
	}
	for model, want := range uncore {
		entry, _ := Lookup(Signature{Vendor: VendorIntel, Family: 6, Model: model})
		if entry.UncoreRatio != want {
			t.Errorf("model %#x UncoreRatio = %v, want %v", model, entry.UncoreRatio, want)
		}
	}
}

func TestPkgCStateLimitTables(t *testing.T) {
	skx, _ := Lookup(Signature{Vendor: VendorIntel, Family: 6, Model: ModelSkylakeX})
	spr, _ := Lookup(Signature{Vendor: VendorIntel, Family: 6, Model: ModelSapphireRapidsX})

	// Distinct code sets across server generations.
	if _, ok := skx.PkgCStateLimits.CodeOf("PC6R"); !ok {
		t.Error("Skylake Xeon table lacks PC6R")
	}
	if _, ok := spr.PkgCStateLimits.CodeOf("PC6R"); ok {
		t.Error("Sapphire Rapids table has PC6R, want plain PC6 only")
	}

	code, ok := skx.PkgCStateLimits.CodeOf("PC6")
	if !ok || code != 3 {
		t.Errorf("SKX CodeOf(PC6) = %d, %v; want alias to PC6R code 3", code, ok)
	}
	code, ok = skx.PkgCStateLimits.CodeOf("pc6n")
	if !ok || code != 2 {
		t.Errorf("SKX CodeOf(pc6n) = %d, %v; want 2 (case-insensitive)", code, ok)
	}
	if _, ok := spr.PkgCStateLimits.CodeOf("PC9"); ok {
		t.Error("SPR CodeOf(PC9) resolved, want miss")
	}

	name, ok := spr.PkgCStateLimits.NameOf(1)
	if !ok || name != "PC2" {
		t.Errorf("SPR NameOf(1) = %q, %v; want PC2", name, ok)
	}
	if _, ok := spr.PkgCStateLimits.NameOf(6); ok {
		t.Error("SPR NameOf(6) resolved, want miss")
	}
}

func TestPkgCStateLimitNamesOrdered(t *testing.T) {
	hsx, _ := Lookup(Signature{Vendor: VendorIntel, Family: 6, Model: ModelHaswellX})
	want := []string{"PC0", "PC2", "PC3", "PC6", "unlimited"}
	if got := hsx.PkgCStateLimits.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}
