// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package cpumodel

import (
	"sort"
	"strings"

	"github.com/powerfleet/powerfleet/topology"
)

// Tier reports which lookup level produced an Entry.
type Tier int

const (
	// TierExact is a (vendor, family, model) match.
	TierExact Tier = iota
	// TierFamily is the family-level default for a model with no
	// exact entry yet.
	TierFamily
	// TierGlobal is the last-resort default for unknown silicon.
	TierGlobal
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierFamily:
		return "family"
	case TierGlobal:
		return "global"
	}
	return "unknown"
}

// PkgCStateLimits is one microarchitecture's package C-state limit
// table: the limit names the silicon accepts and their codes in the
// limit field of MSR_PKG_CST_CONFIG_CONTROL. Code sets differ across
// generations, so the table always comes from a model entry.
type PkgCStateLimits struct {
	// Codes maps canonical limit names to register codes.
	Codes map[string]uint64
	// Aliases maps alternate names to canonical ones ("PC6" means
	// "PC6R" where retention and non-retention variants exist).
	Aliases map[string]string
}

// CodeOf resolves a limit name to its register code. Matching is
// case-insensitive and follows aliases.
func (l *PkgCStateLimits) CodeOf(name string) (uint64, bool) {
	for alias, canonical := range l.Aliases {
		if strings.EqualFold(alias, name) {
			name = canonical
			break
		}
	}
	for canonical, code := range l.Codes {
		if strings.EqualFold(canonical, name) {
			return code, true
		}
	}
	return 0, false
}

// NameOf returns the canonical name for a register code.
func (l *PkgCStateLimits) NameOf(code uint64) (string, bool) {
	for name, c := range l.Codes {
		if c == code {
			return name, true
		}
	}
	return "", false
}

// Names returns the canonical limit names ordered by code.
func (l *PkgCStateLimits) Names() []string {
	names := make([]string, 0, len(l.Codes))
	for name := range l.Codes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return l.Codes[names[i]] < l.Codes[names[j]] })
	return names
}

// Entry is the per-microarchitecture data layered on the generic
// property definitions. A nil PkgCStateLimits means the model has no
// known limit table and the pkg_cstate_limit property is unsupported
// on it. The zero EPBScope is CPU scope, the usual case.
type Entry struct {
	// Microarch is the human name shown by diagnostic output.
	Microarch string
	// EPBScope is the effective scope of the energy_perf_bias
	// control, which predates per-CPU HWP and is shared wider than
	// one CPU on some older parts.
	EPBScope topology.Scope
	// C1EAutopromote reports MSR_POWER_CTL bit 1 support.
	C1EAutopromote bool
	// CStatePrewake reports MSR_POWER_CTL bit 30 support. The bit
	// exists on many parts but only a handful of Xeons honor it.
	CStatePrewake bool
	// UncoreRatio reports MSR_UNCORE_RATIO_LIMIT support.
	UncoreRatio bool
	// PkgCStateLimits is the model's package C-state limit table.
	PkgCStateLimits *PkgCStateLimits
}

// Limit tables shared by related microarchitectures.
var (
	// Sapphire Rapids generation and later servers.
	serverPkgLimits = &PkgCStateLimits{
		Codes: map[string]uint64{"PC0": 0, "PC2": 1, "PC6": 2},
	}

	// Ice Lake servers distinguish the non-retention PC6 by alias.
	icxPkgLimits = &PkgCStateLimits{
		Codes:   map[string]uint64{"PC0": 0, "PC2": 1, "PC6": 2},
		Aliases: map[string]string{"PC6N": "PC6"},
	}

	// Skylake servers expose retention and non-retention PC6 codes.
	skxPkgLimits = &PkgCStateLimits{
		Codes:   map[string]uint64{"PC0": 0, "PC2": 1, "PC6N": 2, "PC6R": 3},
		Aliases: map[string]string{"PC6": "PC6R"},
	}

	// Haswell/Broadwell servers.
	hsxPkgLimits = &PkgCStateLimits{
		Codes: map[string]uint64{"PC0": 0, "PC2": 1, "PC3": 2, "PC6": 3, "unlimited": 7},
	}

	// Client parts expose the full ladder down to PC10.
	clientPkgLimits = &PkgCStateLimits{
		Codes: map[string]uint64{
			"PC0": 0, "PC2": 1, "PC3": 2, "PC6": 3, "PC7": 4,
			"PC7S": 5, "PC8": 6, "PC9": 7, "PC10": 8,
		},
	}
)

// intelFamily6 holds the exact-tier entries. Every entry implies
// vendor GenuineIntel, family 6.
var intelFamily6 = map[int]Entry{
	ModelSapphireRapidsX: {
		Microarch:       "Sapphire Rapids Xeon",
		C1EAutopromote:  true,
		CStatePrewake:   true,
		UncoreRatio:     true,
		PkgCStateLimits: serverPkgLimits,
	},
	ModelEmeraldRapidsX: {
		Microarch:       "Emerald Rapids Xeon",
		C1EAutopromote:  true,
		CStatePrewake:   true,
		UncoreRatio:     true,
		PkgCStateLimits: serverPkgLimits,
	},
	ModelGraniteRapidsX: {
		Microarch:       "Granite Rapids Xeon",
		C1EAutopromote:  true,
		UncoreRatio:     true,
		PkgCStateLimits: serverPkgLimits,
	},
	ModelGraniteRapidsD: {
		Microarch:       "Granite Rapids Xeon D",
		C1EAutopromote:  true,
		UncoreRatio:     true,
		PkgCStateLimits: serverPkgLimits,
	},
	ModelIceLakeX: {
		Microarch:       "Ice Lake Xeon",
		C1EAutopromote:  true,
		CStatePrewake:   true,
		UncoreRatio:     true,
		PkgCStateLimits: icxPkgLimits,
	},
	ModelIceLakeD: {
		Microarch:       "Ice Lake Xeon D",
		C1EAutopromote:  true,
		CStatePrewake:   true,
		UncoreRatio:     true,
		PkgCStateLimits: icxPkgLimits,
	},
	ModelSkylakeX: {
		Microarch:       "Skylake Xeon",
		C1EAutopromote:  true,
		CStatePrewake:   true,
		UncoreRatio:     true,
		PkgCStateLimits: skxPkgLimits,
	},
	ModelBroadwellX: {
		Microarch:       "Broadwell Xeon",
		C1EAutopromote:  true,
		CStatePrewake:   true,
		UncoreRatio:     true,
		PkgCStateLimits: hsxPkgLimits,
	},
	ModelBroadwellD: {
		Microarch:       "Broadwell Xeon D",
		C1EAutopromote:  true,
		UncoreRatio:     true,
		PkgCStateLimits: hsxPkgLimits,
	},
	ModelBroadwellG: {
		Microarch:       "Broadwell G",
		C1EAutopromote:  true,
		UncoreRatio:     true,
		PkgCStateLimits: hsxPkgLimits,
	},
	ModelHaswellX: {
		Microarch:       "Haswell Xeon",
		C1EAutopromote:  true,
		CStatePrewake:   true,
		PkgCStateLimits: hsxPkgLimits,
	},
	ModelIvyBridgeX: {
		Microarch:       "Ivy Bridge Xeon",
		C1EAutopromote:  true,
		CStatePrewake:   true,
		PkgCStateLimits: hsxPkgLimits,
	},
	ModelSandyBridge: {
		Microarch:       "Sandy Bridge",
		EPBScope:        topology.ScopePackage,
		C1EAutopromote:  true,
		PkgCStateLimits: clientPkgLimits,
	},
	ModelSandyBridgeX: {
		Microarch:       "Sandy Bridge Xeon",
		EPBScope:        topology.ScopePackage,
		C1EAutopromote:  true,
		PkgCStateLimits: hsxPkgLimits,
	},
	ModelWestmere: {
		Microarch:      "Westmere",
		EPBScope:       topology.ScopePackage,
		C1EAutopromote: true,
	},
	ModelWestmereEP: {
		Microarch:      "Westmere EP",
		EPBScope:       topology.ScopePackage,
		C1EAutopromote: true,
	},
	ModelWestmereEX: {
		Microarch:      "Westmere EX",
		EPBScope:       topology.ScopePackage,
		C1EAutopromote: true,
	},
	ModelAtomSilvermont: {
		Microarch:      "Silvermont",
		EPBScope:       topology.ScopeCore,
		C1EAutopromote: true,
	},
	ModelAtomSilvermontD: {
		Microarch:      "Silvermont D",
		EPBScope:       topology.ScopeCore,
		C1EAutopromote: true,
	},
	ModelAtomSilvermontMID: {
		Microarch:      "Silvermont MID",
		EPBScope:       topology.ScopeCore,
		C1EAutopromote: true,
	},
	ModelAlderLake: {
		Microarch:       "Alder Lake",
		C1EAutopromote:  true,
		UncoreRatio:     true,
		PkgCStateLimits: clientPkgLimits,
	},
	ModelAlderLakeL: {
		Microarch:       "Alder Lake L",
		C1EAutopromote:  true,
		UncoreRatio:     true,
		PkgCStateLimits: clientPkgLimits,
	},
	ModelRaptorLake: {
		Microarch:       "Raptor Lake",
		C1EAutopromote:  true,
		UncoreRatio:     true,
		PkgCStateLimits: clientPkgLimits,
	},
	ModelRaptorLakeP: {
		Microarch:       "Raptor Lake P",
		C1EAutopromote:  true,
		UncoreRatio:     true,
		PkgCStateLimits: clientPkgLimits,
	},
	ModelRaptorLakeS: {
		Microarch:       "Raptor Lake S",
		C1EAutopromote:  true,
		UncoreRatio:     true,
		PkgCStateLimits: clientPkgLimits,
	},
	ModelMeteorLake: {
		Microarch:       "Meteor Lake",
		C1EAutopromote:  true,
		UncoreRatio:     true,
		PkgCStateLimits: clientPkgLimits,
	},
	ModelMeteorLakeL: {
		Microarch:       "Meteor Lake L",
		C1EAutopromote:  true,
		UncoreRatio:     true,
		PkgCStateLimits: clientPkgLimits,
	},
}

// intelFamily6Default covers family 6 models with no exact entry:
// treat them as a current client part. New silicon inherits these
// until measurements justify an exact entry.
var intelFamily6Default = Entry{
	Microarch:       "unrecognized Intel family 6",
	C1EAutopromote:  true,
	PkgCStateLimits: clientPkgLimits,
}

// globalDefault covers non-Intel or pre-family-6 silicon: nothing
// model-gated is assumed to exist.
var globalDefault = Entry{
	Microarch: "generic x86",
}

// Lookup resolves a signature to its model entry, falling through
// exact, family, and global tiers.
func Lookup(sig Signature) (Entry, Tier) {
	if sig.Vendor == VendorIntel && sig.Family == 6 {
		if entry, ok := intelFamily6[sig.Model]; ok {
			return entry, TierExact
		}
		return intelFamily6Default, TierFamily
	}
	return globalDefault, TierGlobal
}
