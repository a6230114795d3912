// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package power

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/powerfleet/powerfleet/access"
	"github.com/powerfleet/powerfleet/topology"
)

// Gate names the model capability a property requires. The engine
// refuses gated properties when the detected model's entry lacks the
// capability.
type Gate int

const (
	// GateNone is an architecturally generic property.
	GateNone Gate = iota
	// GateC1EAutopromote requires the C1E autopromote control.
	GateC1EAutopromote
	// GateCStatePrewake requires the C-state prewake control.
	GateCStatePrewake
	// GateUncoreRatio requires the uncore ratio limit register.
	GateUncoreRatio
	// GatePkgCStateLimit requires a package C-state limit code table.
	GatePkgCStateLimit
)

// Policy is a named value accepted in place of a number.
type Policy struct {
	Name  string
	Value int64
}

// Property is one immutable property definition. Model-specific
// behavior is resolved against the host's model entry by the engine;
// the definition only declares which parts are model-dependent.
type Property struct {
	// Name is the property's request name, "pkg_cstate_limit".
	Name string
	// Help is the one-line human description.
	Help string
	// Scope is the granularity the property is defined at.
	Scope topology.Scope
	// Kind is the value type.
	Kind Kind
	// Writable is false for inspection-only properties.
	Writable bool

	// Method is how the hardware exposes the property.
	Method access.Method
	// Available, when set, names the node listing the tokens the
	// host accepts. Token writes are checked against it.
	Available *access.FileSpec

	// Min and Max bound KindInt values, and numeric KindToken values
	// when NumericTokens is set.
	Min, Max int64
	// Policies are named values accepted on write.
	Policies []Policy
	// NumericTokens allows integers Min..Max as token spellings.
	NumericTokens bool
	// Inverted marks hardware that stores the negation of the
	// reported on/off state.
	Inverted bool
	// Gate is the model capability the property requires.
	Gate Gate
	// ScopeFromModel takes the effective scope from the model entry
	// instead of Scope.
	ScopeFromModel bool
	// EnumFromModel takes the token enumeration from the model
	// entry's limit code table.
	EnumFromModel bool
	// WriteThroughUnit writes per-CPU control nodes on every online
	// CPU of the targeted unit when the effective scope is wider
	// than CPU, so all per-CPU copies agree.
	WriteThroughUnit bool
	// Lock, when set, names a register bit that write-protects the
	// property. Writes are refused while the bit reads 1.
	Lock *access.RegisterSpec
}

// Parse converts the CLI/profile spelling of a value into a typed
// Value. Range and enumeration checks happen at set time; Parse only
// establishes the kind.
func (p *Property) Parse(text string) (Value, error) {
	text = strings.TrimSpace(text)
	switch p.Kind {
	case KindBool:
		b, err := parseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("%s: %w", p.Name, err)
		}
		return BoolValue(b), nil
	case KindInt:
		if v, ok := p.policyValue(text); ok {
			return IntValue(v), nil
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			if len(p.Policies) > 0 {
				return Value{}, fmt.Errorf("%s: %q is neither an integer nor one of %s",
					p.Name, text, strings.Join(p.PolicyNames(), ", "))
			}
			return Value{}, fmt.Errorf("%s: not an integer: %q", p.Name, text)
		}
		return IntValue(n), nil
	case KindToken:
		if text == "" {
			return Value{}, fmt.Errorf("%s: empty value", p.Name)
		}
		return TokenValue(text), nil
	}
	return Value{}, fmt.Errorf("%s: unknown value kind %d", p.Name, int(p.Kind))
}

// policyValue resolves a policy name case-insensitively.
func (p *Property) policyValue(name string) (int64, bool) {
	for _, pol := range p.Policies {
		if strings.EqualFold(pol.Name, name) {
			return pol.Value, true
		}
	}
	return 0, false
}

// PolicyNames returns the policy names in declaration order.
func (p *Property) PolicyNames() []string {
	names := make([]string, len(p.Policies))
	for i, pol := range p.Policies {
		names[i] = pol.Name
	}
	return names
}

// Register names and addresses of the property surface.
const (
	msrEnergyPerfBias      = 0x1B0
	msrPowerCtl            = 0x1FC
	msrPkgCStateConfig     = 0xE2
	msrUncoreRatioLimit    = 0x620
	sysfsCPURoot           = "/sys/devices/system/cpu"
	sysfsPolicyRoot        = sysfsCPURoot + "/cpufreq/policy%d"
	sysfsASPMPolicy        = "/sys/module/pcie_aspm/parameters/policy"
	sysfsIntelPstateTurbo  = sysfsCPURoot + "/intel_pstate/no_turbo"
	sysfsEnergyPerfBias    = sysfsCPURoot + "/cpu%d/power/energy_perf_bias"
	sysfsEPP               = sysfsPolicyRoot + "/energy_performance_preference"
	sysfsEPPAvailable      = sysfsPolicyRoot + "/energy_performance_available_preferences"
	sysfsGovernor          = sysfsPolicyRoot + "/scaling_governor"
	sysfsGovernorAvailable = sysfsPolicyRoot + "/scaling_available_governors"
	sysfsScalingDriver     = sysfsPolicyRoot + "/scaling_driver"
)

// pkgCStateLockBit write-protects the package C-state limit until
// the next reset once firmware sets it.
var pkgCStateLockBit = &access.RegisterSpec{
	Name: "MSR_PKG_CST_CONFIG_CONTROL", Address: msrPkgCStateConfig, Hi: 15, Lo: 15,
}

var properties = []*Property{
	{
		Name:  "epp",
		Help:  "energy/performance preference hint",
		Scope: topology.ScopeCPU,
		Kind:  KindToken, Writable: true,
		Method: access.FileMethod(access.FileSpec{
			PathTemplate: sysfsEPP, Format: access.FormatToken,
		}),
		Policies: []Policy{
			{Name: "default", Value: -1},
			{Name: "performance", Value: 0},
			{Name: "balance_performance", Value: 0x80},
			{Name: "balance_power", Value: 0xC0},
			{Name: "power", Value: 0xFF},
		},
		NumericTokens: true, Min: 0, Max: 255,
	},
	{
		Name:  "epb",
		Help:  "energy/performance bias hint",
		Scope: topology.ScopeCPU, ScopeFromModel: true, WriteThroughUnit: true,
		Kind: KindInt, Writable: true,
		Method: access.FileMethod(access.FileSpec{
			PathTemplate: sysfsEnergyPerfBias, Format: access.FormatInt,
		}),
		Policies: []Policy{
			{Name: "performance", Value: 0},
			{Name: "balance-performance", Value: 4},
			{Name: "normal", Value: 6},
			{Name: "balance-power", Value: 8},
			{Name: "power", Value: 15},
		},
		Min: 0, Max: 15,
	},
	{
		Name:  "turbo",
		Help:  "opportunistic turbo frequencies",
		Scope: topology.ScopeGlobal,
		Kind:  KindBool, Writable: true,
		// The node is "no_turbo": 0 means turbo on.
		Method: access.FileMethod(access.FileSpec{
			PathTemplate: sysfsIntelPstateTurbo, Format: access.FormatBool01,
		}),
		Inverted: true,
	},
	{
		Name:  "governor",
		Help:  "CPU frequency scaling governor",
		Scope: topology.ScopeCPU,
		Kind:  KindToken, Writable: true,
		Method: access.FileMethod(access.FileSpec{
			PathTemplate: sysfsGovernor, Format: access.FormatToken,
		}),
		Available: &access.FileSpec{
			PathTemplate: sysfsGovernorAvailable, Format: access.FormatToken,
		},
	},
	{
		Name:  "driver",
		Help:  "CPU frequency scaling driver",
		Scope: topology.ScopeCPU,
		Kind:  KindToken, Writable: false,
		Method: access.FileMethod(access.FileSpec{
			PathTemplate: sysfsScalingDriver, Format: access.FormatToken,
		}),
	},
	{
		Name:  "c1e_autopromote",
		Help:  "automatic promotion of C1 requests to C1E",
		Scope: topology.ScopePackage,
		Kind:  KindBool, Writable: true,
		Method: access.RegisterMethod(access.RegisterSpec{
			Name: "MSR_POWER_CTL", Address: msrPowerCtl, Hi: 1, Lo: 1,
		}),
		Gate: GateC1EAutopromote,
	},
	{
		Name:  "cstate_prewake",
		Help:  "wake from deep C-states ahead of timer events",
		Scope: topology.ScopePackage,
		Kind:  KindBool, Writable: true,
		// The bit disables prewake: 0 means prewake on.
		Method: access.RegisterMethod(access.RegisterSpec{
			Name: "MSR_POWER_CTL", Address: msrPowerCtl, Hi: 30, Lo: 30,
		}),
		Inverted: true,
		Gate:     GateCStatePrewake,
	},
	{
		Name:  "pkg_cstate_limit",
		Help:  "deepest package C-state the package may enter",
		Scope: topology.ScopePackage,
		Kind:  KindToken, Writable: true,
		Method: access.RegisterMethod(access.RegisterSpec{
			Name: "MSR_PKG_CST_CONFIG_CONTROL", Address: msrPkgCStateConfig, Hi: 2, Lo: 0,
		}),
		Gate: GatePkgCStateLimit, EnumFromModel: true,
		Lock: pkgCStateLockBit,
	},
	{
		Name:  "pkg_cstate_limit_lock",
		Help:  "firmware lock of the package C-state limit",
		Scope: topology.ScopePackage,
		Kind:  KindBool, Writable: false,
		Method: access.RegisterMethod(*pkgCStateLockBit),
		Gate:   GatePkgCStateLimit,
	},
	{
		Name:  "max_uncore_ratio",
		Help:  "maximum uncore clock ratio",
		Scope: topology.ScopeDie,
		Kind:  KindInt, Writable: true,
		Method: access.RegisterMethod(access.RegisterSpec{
			Name: "MSR_UNCORE_RATIO_LIMIT", Address: msrUncoreRatioLimit, Hi: 6, Lo: 0,
		}),
		Gate: GateUncoreRatio, Min: 0, Max: 127,
	},
	{
		Name:  "min_uncore_ratio",
		Help:  "minimum uncore clock ratio",
		Scope: topology.ScopeDie,
		Kind:  KindInt, Writable: true,
		Method: access.RegisterMethod(access.RegisterSpec{
			Name: "MSR_UNCORE_RATIO_LIMIT", Address: msrUncoreRatioLimit, Hi: 14, Lo: 8,
		}),
		Gate: GateUncoreRatio, Min: 0, Max: 127,
	},
	{
		Name:  "aspm_policy",
		Help:  "PCIe active-state power management policy",
		Scope: topology.ScopeGlobal,
		Kind:  KindToken, Writable: true,
		Method: access.FileMethod(access.FileSpec{
			PathTemplate: sysfsASPMPolicy, Format: access.FormatBracketList,
		}),
		Available: &access.FileSpec{
			PathTemplate: sysfsASPMPolicy, Format: access.FormatBracketList,
		},
	},
}

var propertyByName = func() map[string]*Property {
	m := make(map[string]*Property, len(properties))
	for _, p := range properties {
		m[p.Name] = p
	}
	return m
}()

// LookupProperty returns the definition for name.
func LookupProperty(name string) (*Property, bool) {
	p, ok := propertyByName[name]
	return p, ok
}

// Properties returns all definitions sorted by name.
func Properties() []*Property {
	out := make([]*Property, len(properties))
	copy(out, properties)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RegisterInfo is one row of the register access surface: exactly
// which register and bits a property touches.
type RegisterInfo struct {
	Property string
	Register string
	Address  uint32
	Hi, Lo   uint
}

// RegisterSurface returns the register-backed properties' bit
// mappings, sorted by property name. Diagnostic output uses it to
// show what a set would touch.
func RegisterSurface() []RegisterInfo {
	var out []RegisterInfo
	for _, p := range Properties() {
		if p.Method.Kind != access.KindRegister {
			continue
		}
		spec := p.Method.Register
		out = append(out, RegisterInfo{
			Property: p.Name,
			Register: spec.Name,
			Address:  spec.Address,
			Hi:       spec.Hi,
			Lo:       spec.Lo,
		})
	}
	return out
}
