// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package power

import (
	"fmt"
	"strconv"
)

// Kind is a property's value type.
type Kind int

const (
	// KindBool is an on/off state.
	KindBool Kind = iota
	// KindInt is an integer, bounded by the property's range.
	KindInt
	// KindToken is an enumerated or free-form token.
	KindToken
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindToken:
		return "token"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is one property value of any kind. The zero Value is the
// bool "off".
type Value struct {
	kind Kind
	b    bool
	i    int64
	tok  string
}

// BoolValue returns an on/off Value.
func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// IntValue returns an integer Value.
func IntValue(i int64) Value {
	return Value{kind: KindInt, i: i}
}

// TokenValue returns a token Value.
func TokenValue(tok string) Value {
	return Value{kind: KindToken, tok: tok}
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the on/off state; false for other kinds.
func (v Value) Bool() bool { return v.b }

// Int returns the integer; 0 for other kinds.
func (v Value) Int() int64 { return v.i }

// Token returns the token; "" for other kinds.
func (v Value) Token() string { return v.tok }

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	return v == o
}

// String renders the value the way the CLI prints it: "on"/"off",
// decimal, or the bare token.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "on"
		}
		return "off"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindToken:
		return v.tok
	}
	return fmt.Sprintf("value(kind %d)", int(v.kind))
}

// parseBool accepts the spellings the CLI and profiles use for
// on/off states.
func parseBool(text string) (bool, error) {
	switch text {
	case "on", "true", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "0", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("not an on/off value: %q", text)
}
