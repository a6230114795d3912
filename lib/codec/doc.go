// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the one CBOR configuration the relay protocol
// uses on both ends.
//
// Serialization formats are split by audience. YAML carries the
// artifacts operators read and edit: the fleet configuration file,
// tuning profiles, and saved snapshots. JSON carries --json output
// for scripts. CBOR carries relay frames, where compactness and
// byte-stable encoding matter and no human ever looks at the bytes.
//
// Encoding is Core Deterministic (RFC 8949 section 4.2): map keys
// sorted, integers in their shortest form, indefinite lengths
// forbidden. Equal values always encode to equal bytes, which is what
// lets snapshot fingerprints and the archive's deduplication hash
// encoded state directly.
//
// Marshal and Unmarshal work on byte slices. NewEncoder and
// NewDecoder wrap the relay's stdin/stdout framing, one CBOR item per
// frame. Decoding into any yields string-keyed maps so undecodable
// frames can still be logged through encoding/json.
//
// # Struct Tag Rules
//
// The tag set on a type states its contract. A type tagged `cbor`
// exists only on the wire; it never appears in JSON or YAML. A type
// tagged `json` may serialize as both JSON and CBOR: the encoder
// falls back to json tags when cbor tags are absent, so one tag
// controls naming and omitempty for both formats. Do not put both
// tags on a field; the redundancy hides which contract the type
// actually has.
package codec
