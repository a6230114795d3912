// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package access

import "fmt"

// Kind discriminates the two access mechanisms.
type Kind int

const (
	// KindRegister reaches the property through a bit field of a
	// model-specific register.
	KindRegister Kind = iota
	// KindVirtualFile reaches the property through a textual sysfs
	// or procfs node.
	KindVirtualFile
)

func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindVirtualFile:
		return "virtual-file"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Method is the tagged access variant attached to a property
// definition, resolved once when the definition is declared.
type Method struct {
	Kind     Kind
	Register RegisterSpec
	File     FileSpec
}

// RegisterMethod wraps a register bit field as a Method.
func RegisterMethod(spec RegisterSpec) Method {
	return Method{Kind: KindRegister, Register: spec}
}

// FileMethod wraps a virtual file node as a Method.
func FileMethod(spec FileSpec) Method {
	return Method{Kind: KindVirtualFile, File: spec}
}

// RegisterSpec names one bit field of a model-specific register.
// The field spans bits Lo through Hi inclusive, numbered from 0 at
// the least significant bit, so the EPB field "bits 3:0" is
// Hi: 3, Lo: 0.
type RegisterSpec struct {
	// Name is the architectural register name, for diagnostics.
	Name string
	// Address is the register number, which is also the read offset
	// in the register device node.
	Address uint32
	Hi, Lo  uint
}

// Width returns the field width in bits.
func (s RegisterSpec) Width() uint {
	return s.Hi - s.Lo + 1
}

// Mask returns the field's bits set within the full register.
func (s RegisterSpec) Mask() uint64 {
	width := s.Width()
	if width >= 64 {
		return ^uint64(0)
	}
	return ((uint64(1) << width) - 1) << s.Lo
}

// MaxValue returns the largest field value.
func (s RegisterSpec) MaxValue() uint64 {
	return s.Mask() >> s.Lo
}

// Extract returns the field value from a full register value.
func (s RegisterSpec) Extract(register uint64) uint64 {
	return (register & s.Mask()) >> s.Lo
}

// Insert returns the register value with the field replaced and all
// other bits untouched.
func (s RegisterSpec) Insert(register, value uint64) uint64 {
	return (register &^ s.Mask()) | (value << s.Lo & s.Mask())
}

// Format tells the virtual-file accessor how to parse and render a
// node's text.
type Format int

const (
	// FormatInt is a decimal integer.
	FormatInt Format = iota
	// FormatBool01 is "0" or "1".
	FormatBool01
	// FormatToken is a single bare token.
	FormatToken
	// FormatBracketList is a space-separated token list with the
	// active selection bracketed, "default [performance] powersave".
	// Reads select the bracketed token; writes send a bare token.
	FormatBracketList
)

func (f Format) String() string {
	switch f {
	case FormatInt:
		return "int"
	case FormatBool01:
		return "bool01"
	case FormatToken:
		return "token"
	case FormatBracketList:
		return "bracket-list"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// FileSpec names a virtual file node and its text format. The path
// template holds one %d slot filled with the resolved CPU index, or
// no slot at all for host-global nodes.
type FileSpec struct {
	PathTemplate string
	Format       Format
}
