// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package access

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/powerfleet/powerfleet/transport"
)

// vfileReadLength bounds one virtual file read. Control nodes are a
// few bytes; available-value lists stay well under this.
const vfileReadLength = 4096

// Files performs textual reads and writes against virtual filesystem
// control nodes of one host.
type Files struct {
	conn transport.Transport
}

// NewFiles returns a virtual-file accessor backed by conn.
func NewFiles(conn transport.Transport) *Files {
	return &Files{conn: conn}
}

// Path resolves spec's path template for the given CPU. Templates
// without a %d slot resolve to themselves.
func (f *Files) Path(spec FileSpec, cpu int) string {
	if strings.Contains(spec.PathTemplate, "%d") {
		return fmt.Sprintf(spec.PathTemplate, cpu)
	}
	return spec.PathTemplate
}

// ReadInt reads and parses a FormatInt or FormatBool01 node.
func (f *Files) ReadInt(ctx context.Context, cpu int, spec FileSpec) (int, error) {
	text, err := f.read(ctx, cpu, spec)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("read %s on %s: not an integer: %q", f.Path(spec, cpu), f.conn.Host(), text)
	}
	if spec.Format == FormatBool01 && value != 0 && value != 1 {
		return 0, fmt.Errorf("read %s on %s: not a boolean: %q", f.Path(spec, cpu), f.conn.Host(), text)
	}
	return value, nil
}

// ReadToken reads a FormatToken node, or the bracketed active token
// of a FormatBracketList node.
func (f *Files) ReadToken(ctx context.Context, cpu int, spec FileSpec) (string, error) {
	text, err := f.read(ctx, cpu, spec)
	if err != nil {
		return "", err
	}
	if spec.Format == FormatBracketList {
		fields := strings.Fields(text)
		for _, token := range fields {
			if strings.HasPrefix(token, "[") && strings.HasSuffix(token, "]") {
				return token[1 : len(token)-1], nil
			}
		}
		// A list collapsed to one entry needs no marking.
		if len(fields) == 1 {
			return fields[0], nil
		}
		return "", fmt.Errorf("read %s on %s: no active entry in %q", f.Path(spec, cpu), f.conn.Host(), text)
	}
	if text == "" {
		return "", fmt.Errorf("read %s on %s: empty node", f.Path(spec, cpu), f.conn.Host())
	}
	return text, nil
}

// ReadTokens reads a node holding a space-separated token list, with
// any bracket marking stripped. Used for available-value nodes.
func (f *Files) ReadTokens(ctx context.Context, cpu int, spec FileSpec) ([]string, error) {
	text, err := f.read(ctx, cpu, spec)
	if err != nil {
		return nil, err
	}
	tokens := strings.Fields(text)
	for i, token := range tokens {
		tokens[i] = strings.Trim(token, "[]")
	}
	return tokens, nil
}

// WriteInt renders value in decimal and writes it to the node.
func (f *Files) WriteInt(ctx context.Context, cpu int, spec FileSpec, value int) error {
	return f.WriteToken(ctx, cpu, spec, strconv.Itoa(value))
}

// WriteToken writes a bare token to the node.
func (f *Files) WriteToken(ctx context.Context, cpu int, spec FileSpec, token string) error {
	path := f.Path(spec, cpu)
	if err := f.conn.WriteBytes(ctx, path, 0, []byte(token)); err != nil {
		return fmt.Errorf("write %s on %s: %w", path, f.conn.Host(), err)
	}
	return nil
}

func (f *Files) read(ctx context.Context, cpu int, spec FileSpec) (string, error) {
	path := f.Path(spec, cpu)
	data, err := f.conn.ReadBytes(ctx, path, 0, vfileReadLength)
	if err != nil {
		return "", fmt.Errorf("read %s on %s: %w", path, f.conn.Host(), err)
	}
	return strings.TrimSpace(string(data)), nil
}
