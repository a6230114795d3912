// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Both ends of the relay build their modes from the same options, so
// a frame encodes to identical bytes no matter which side wrote it.
var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	// Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
	// smallest integer widths, no indefinite-length items.
	opts := cbor.CoreDetEncOptions()
	// TextMarshaler types encode as text strings rather than as the
	// empty map their unexported fields would otherwise produce.
	opts.TextMarshaler = cbor.TextMarshalerTextString
	mode, err := opts.EncMode()
	if err != nil {
		panic("codec: encode mode: " + err.Error())
	}
	return mode
}

func mustDecMode() cbor.DecMode {
	mode, err := cbor.DecOptions{
		// Any-typed targets decode maps as map[string]any. The CBOR
		// default is map[any]any, which encoding/json refuses; every
		// map key on this wire is a string.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// Mirror of the encoder's TextMarshaler setting.
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: decode mode: " + err.Error())
	}
	return mode
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Aliases so relay code imports only this package, never
// fxamacker/cbor directly.
type (
	// Encoder streams CBOR items to a writer.
	Encoder = cbor.Encoder
	// Decoder streams CBOR items from a reader.
	Decoder = cbor.Decoder
	// RawMessage holds an encoded item for deferred decoding.
	RawMessage = cbor.RawMessage
)

// NewEncoder returns a stream encoder with the deterministic
// configuration.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a stream decoder with the standard
// configuration.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// DiagnoseFirst renders the first item of data in diagnostic notation
// (RFC 8949 §8) and returns the unconsumed remainder. The relay logs
// undecodable frames this way instead of dumping raw bytes.
func DiagnoseFirst(data []byte) (string, []byte, error) {
	return cbor.DiagnoseFirst(data)
}
