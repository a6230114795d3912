// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/powerfleet/powerfleet/lib/codec"
)

// Relay protocol operations. One CBOR frame per request, answered in
// order on the same stream.
const (
	opPing  = "ping"
	opRun   = "run"
	opRead  = "read"
	opWrite = "write"
)

// Wire names for the transport error kinds. The relay reports the
// kind alongside the message so the client can rebuild an error that
// satisfies the same errors.Is checks as a local failure.
const (
	kindUnavailable = "unavailable"
	kindPermission  = "permission"
	kindNotFound    = "not-found"
)

// relayRequest is one operation sent to the relay. ID is assigned by
// the client and echoed in the response; it increases by one per
// request on a session.
type relayRequest struct {
	ID     uint64   `cbor:"id"`
	Op     string   `cbor:"op"`
	Argv   []string `cbor:"argv,omitempty"`
	Path   string   `cbor:"path,omitempty"`
	Offset int64    `cbor:"offset,omitempty"`
	Length int      `cbor:"length,omitempty"`
	Data   []byte   `cbor:"data,omitempty"`
}

// relayResponse is the relay's answer to one request. Exactly one
// response is sent per request, in request order.
type relayResponse struct {
	ID        uint64 `cbor:"id"`
	OK        bool   `cbor:"ok"`
	Error     string `cbor:"error,omitempty"`
	ErrorKind string `cbor:"error_kind,omitempty"`
	Stdout    string `cbor:"stdout,omitempty"`
	Stderr    string `cbor:"stderr,omitempty"`
	ExitCode  int    `cbor:"exit_code,omitempty"`
	Data      []byte `cbor:"data,omitempty"`
}

// ServeRelay answers relay requests read from input with responses
// written to output, executing each operation against t. It returns
// nil when input reaches EOF (the peer closed the stream) and an
// error when the stream breaks mid-frame.
//
// The powerfleet-relay binary calls this with os.Stdin, os.Stdout,
// and a Local transport; the SSH binding is the usual peer.
func ServeRelay(ctx context.Context, input io.Reader, output io.Writer, t Transport, logger *slog.Logger) error {
	decoder := codec.NewDecoder(input)
	encoder := codec.NewEncoder(output)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var raw codec.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("relay: reading frame: %w", err)
		}
		var request relayRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			diagnostic, _, diagErr := codec.DiagnoseFirst(raw)
			if diagErr != nil {
				diagnostic = fmt.Sprintf("<%d bytes>", len(raw))
			}
			logger.Error("undecodable relay frame", "frame", diagnostic, "error", err)
			response := relayResponse{Error: "undecodable frame: " + diagnostic, ErrorKind: kindUnavailable}
			if err := encoder.Encode(response); err != nil {
				return fmt.Errorf("relay: writing response: %w", err)
			}
			continue
		}
		logger.Debug("relay request", "id", request.ID, "op", request.Op, "path", request.Path)
		if err := encoder.Encode(executeRequest(ctx, t, request)); err != nil {
			return fmt.Errorf("relay: writing response: %w", err)
		}
	}
}

// executeRequest dispatches one request to the backing transport and
// shapes the outcome into a response frame.
func executeRequest(ctx context.Context, t Transport, request relayRequest) relayResponse {
	switch request.Op {
	case opPing:
		return relayResponse{ID: request.ID, OK: true}
	case opRun:
		result, err := t.Run(ctx, request.Argv)
		if err != nil {
			return failureResponse(request.ID, err)
		}
		return relayResponse{
			ID:       request.ID,
			OK:       true,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
			ExitCode: result.ExitCode,
		}
	case opRead:
		data, err := t.ReadBytes(ctx, request.Path, request.Offset, request.Length)
		if err != nil {
			return failureResponse(request.ID, err)
		}
		return relayResponse{ID: request.ID, OK: true, Data: data}
	case opWrite:
		if err := t.WriteBytes(ctx, request.Path, request.Offset, request.Data); err != nil {
			return failureResponse(request.ID, err)
		}
		return relayResponse{ID: request.ID, OK: true}
	default:
		return failureResponse(request.ID, fmt.Errorf("unknown relay op %q", request.Op))
	}
}

func failureResponse(id uint64, err error) relayResponse {
	return relayResponse{ID: id, Error: err.Error(), ErrorKind: errorKind(err)}
}

// errorKind maps an error to its wire name, or "" for errors outside
// the shared taxonomy.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnavailable):
		return kindUnavailable
	case errors.Is(err, ErrPermission):
		return kindPermission
	case errors.Is(err, ErrNotFound):
		return kindNotFound
	}
	return ""
}

// kindSentinel is the inverse of errorKind.
func kindSentinel(kind string) error {
	switch kind {
	case kindUnavailable:
		return ErrUnavailable
	case kindPermission:
		return ErrPermission
	case kindNotFound:
		return ErrNotFound
	}
	return nil
}

// remoteError is a failure reported by the relay. The message is the
// remote error text verbatim; the kind restores errors.Is matching
// against the shared sentinels.
type remoteError struct {
	message string
	kind    error
}

func (e *remoteError) Error() string { return e.message }
func (e *remoteError) Unwrap() error { return e.kind }

// responseError rebuilds the error carried by a failure response.
func responseError(response relayResponse) error {
	return &remoteError{message: response.Error, kind: kindSentinel(response.ErrorKind)}
}

// relaySession is the client end of one relay stream. Requests are
// serialized: one outstanding operation at a time, responses matched
// by ID so a response that arrives after its caller gave up is
// discarded instead of being delivered to the next caller.
type relaySession struct {
	writeMu sync.Mutex // serializes request frames and ID assignment
	encoder *codec.Encoder
	nextID  uint64

	// responses carries frames from readLoop to the waiting caller.
	// Capacity 1 holds the response of an abandoned request until the
	// next caller drains it.
	responses chan relayResponse

	// readDone is closed when readLoop exits; readErr is set first.
	readDone chan struct{}
	readErr  error
}

// newRelaySession starts a session over the given stream halves. The
// read side is owned by a background goroutine until the underlying
// stream is closed.
func newRelaySession(output io.Writer, input io.Reader) *relaySession {
	session := &relaySession{
		encoder:   codec.NewEncoder(output),
		responses: make(chan relayResponse, 1),
		readDone:  make(chan struct{}),
	}
	go session.readLoop(codec.NewDecoder(input))
	return session
}

func (s *relaySession) readLoop(decoder *codec.Decoder) {
	defer close(s.readDone)
	for {
		var response relayResponse
		if err := decoder.Decode(&response); err != nil {
			s.readErr = err
			return
		}
		s.responses <- response
	}
}

// roundTrip sends one request and waits for its response. On context
// cancellation the response is left for a later caller to discard;
// the session stays usable.
func (s *relaySession) roundTrip(ctx context.Context, request relayRequest) (relayResponse, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.nextID++
	request.ID = s.nextID
	if err := s.encoder.Encode(request); err != nil {
		return relayResponse{}, fmt.Errorf("%w: sending %s request: %v", ErrUnavailable, request.Op, err)
	}
	for {
		select {
		case response := <-s.responses:
			if response.ID == request.ID {
				return response, nil
			}
			if response.ID == 0 || response.ID > request.ID {
				return relayResponse{}, fmt.Errorf("%w: relay answered request %d while %d was pending", ErrUnavailable, response.ID, request.ID)
			}
			// Response to an earlier request whose caller gave up
			// before it arrived. Drop it and keep waiting for ours.
		case <-s.readDone:
			return relayResponse{}, fmt.Errorf("%w: relay stream closed: %v", ErrUnavailable, s.readErr)
		case <-ctx.Done():
			return relayResponse{}, ctx.Err()
		}
	}
}

func (s *relaySession) ping(ctx context.Context) error {
	response, err := s.roundTrip(ctx, relayRequest{Op: opPing})
	if err != nil {
		return err
	}
	if !response.OK {
		return responseError(response)
	}
	return nil
}

func (s *relaySession) run(ctx context.Context, argv []string) (RunResult, error) {
	response, err := s.roundTrip(ctx, relayRequest{Op: opRun, Argv: argv})
	if err != nil {
		return RunResult{}, err
	}
	if !response.OK {
		return RunResult{}, responseError(response)
	}
	return RunResult{
		Stdout:   response.Stdout,
		Stderr:   response.Stderr,
		ExitCode: response.ExitCode,
	}, nil
}

func (s *relaySession) readBytes(ctx context.Context, path string, offset int64, length int) ([]byte, error) {
	response, err := s.roundTrip(ctx, relayRequest{Op: opRead, Path: path, Offset: offset, Length: length})
	if err != nil {
		return nil, err
	}
	if !response.OK {
		return nil, responseError(response)
	}
	return response.Data, nil
}

func (s *relaySession) writeBytes(ctx context.Context, path string, offset int64, data []byte) error {
	response, err := s.roundTrip(ctx, relayRequest{Op: opWrite, Path: path, Offset: offset, Data: data})
	if err != nil {
		return err
	}
	if !response.OK {
		return responseError(response)
	}
	return nil
}
