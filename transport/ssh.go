// Copyright 2026 The Powerfleet Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Compile-time interface check.
var _ Transport = (*SSH)(nil)

// defaultRelayCommand is the relay binary expected on the remote
// host's PATH.
const defaultRelayCommand = "powerfleet-relay"

// defaultDialTimeout bounds the TCP connect, the SSH handshake, and
// the startup ping when neither SSHConfig.DialTimeout nor a context
// deadline is set.
const defaultDialTimeout = 10 * time.Second

// SSHConfig describes how to reach one fleet member.
type SSHConfig struct {
	// Address is the remote host, "host" or "host:port". Port 22 is
	// assumed when absent.
	Address string

	// User is the SSH login name. Defaults to root: property writes
	// need register and sysfs access that only root has.
	User string

	// IdentityFile is the path to a private key. When empty, the
	// ssh-agent at SSH_AUTH_SOCK is used instead.
	IdentityFile string

	// KnownHostsFile is the path to an OpenSSH known_hosts file for
	// host key verification. When empty, any host key is accepted.
	KnownHostsFile string

	// RelayCommand overrides the relay binary invoked on the remote
	// host. Defaults to "powerfleet-relay".
	RelayCommand string

	// DialTimeout bounds connection establishment. Zero means
	// defaultDialTimeout.
	DialTimeout time.Duration

	// Logger receives connection lifecycle events. Nil discards them.
	Logger *slog.Logger
}

// SSH is the transport binding for a remote host. All operations
// travel as relay frames over a single SSH session running the
// powerfleet-relay binary.
type SSH struct {
	host    string
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stderr  *lockedBuffer
	relay   *relaySession
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// DialSSH connects to the host described by config, starts the relay
// on it, and verifies the relay answers. The returned transport owns
// the connection; Close tears it down.
func DialSSH(ctx context.Context, config SSHConfig) (*SSH, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := config.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}
	address, err := normalizeAddress(config.Address)
	if err != nil {
		return nil, err
	}
	user := config.User
	if user == "" {
		user = "root"
	}
	relayCommand := config.RelayCommand
	if relayCommand == "" {
		relayCommand = defaultRelayCommand
	}

	auth, agentConn, err := authMethods(config)
	if err != nil {
		return nil, err
	}
	if agentConn != nil {
		// The agent socket is only needed during the handshake.
		defer agentConn.Close()
	}
	hostKey, err := hostKeyCallback(config)
	if err != nil {
		return nil, err
	}

	connection, err := (&net.Dialer{Timeout: timeout}).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", ErrUnavailable, address, err)
	}
	handshakeDeadline := time.Now().Add(timeout)
	if deadline, ok := ctx.Deadline(); ok && deadline.Before(handshakeDeadline) {
		handshakeDeadline = deadline
	}
	connection.SetDeadline(handshakeDeadline)
	clientConfig := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}
	sshConn, channels, requests, err := ssh.NewClientConn(connection, address, clientConfig)
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("%w: SSH handshake with %s@%s: %v", ErrUnavailable, user, address, err)
	}
	connection.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, channels, requests)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: opening session on %s: %v", ErrUnavailable, address, err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("%w: session stdin on %s: %v", ErrUnavailable, address, err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("%w: session stdout on %s: %v", ErrUnavailable, address, err)
	}
	stderr := &lockedBuffer{}
	session.Stderr = stderr
	if err := session.Start(relayCommand); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("%w: starting %q on %s: %v", ErrUnavailable, relayCommand, address, err)
	}

	s := &SSH{
		host:    config.Address,
		client:  client,
		session: session,
		stdin:   stdin,
		stderr:  stderr,
		relay:   newRelaySession(stdin, stdout),
		logger:  logger,
	}

	// A ping proves the relay binary exists and speaks the protocol
	// before the first real operation hits it. A missing binary shows
	// up here as a closed stream plus a shell error on stderr.
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.relay.ping(pingCtx); err != nil {
		s.Close()
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return nil, fmt.Errorf("%w: %q on %s: %v (remote stderr: %s)", ErrUnavailable, relayCommand, address, err, detail)
		}
		return nil, fmt.Errorf("%w: %q on %s: %v", ErrUnavailable, relayCommand, address, err)
	}
	logger.Debug("relay session established", "host", config.Address, "user", user, "command", relayCommand)
	return s, nil
}

// Run executes argv on the remote host through the relay.
func (s *SSH) Run(ctx context.Context, argv []string) (RunResult, error) {
	return s.relay.run(ctx, argv)
}

// ReadBytes reads a byte range from a path on the remote host.
func (s *SSH) ReadBytes(ctx context.Context, path string, offset int64, length int) ([]byte, error) {
	return s.relay.readBytes(ctx, path, offset, length)
}

// WriteBytes writes a byte range to a path on the remote host.
func (s *SSH) WriteBytes(ctx context.Context, path string, offset int64, data []byte) error {
	return s.relay.writeBytes(ctx, path, offset, data)
}

// Host returns the address this transport was configured with.
func (s *SSH) Host() string {
	return s.host
}

// Close shuts down the relay and the SSH connection. Closing stdin
// lets the remote relay exit on EOF before the session is torn down.
func (s *SSH) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.stdin.Close(); err != nil && !errors.Is(err, io.EOF) {
			errs = append(errs, err)
		}
		if err := s.session.Close(); err != nil && !errors.Is(err, io.EOF) {
			errs = append(errs, err)
		}
		if err := s.client.Close(); err != nil {
			errs = append(errs, err)
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// normalizeAddress appends the default SSH port when address has none.
func normalizeAddress(address string) (string, error) {
	if address == "" {
		return "", errors.New("ssh: empty address")
	}
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address, nil
	}
	return net.JoinHostPort(address, "22"), nil
}

// authMethods builds the SSH auth chain from the config: an explicit
// identity file when given, otherwise the ambient ssh-agent. The
// returned connection, when non-nil, is the agent socket and must be
// closed after the handshake.
func authMethods(config SSHConfig) ([]ssh.AuthMethod, net.Conn, error) {
	if config.IdentityFile != "" {
		keyBytes, err := os.ReadFile(config.IdentityFile)
		if err != nil {
			return nil, nil, fmt.Errorf("ssh: reading identity file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("ssh: parsing identity file %s: %w", config.IdentityFile, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil, nil
	}
	if socket := os.Getenv("SSH_AUTH_SOCK"); socket != "" {
		connection, err := net.Dial("unix", socket)
		if err != nil {
			return nil, nil, fmt.Errorf("ssh: connecting to ssh-agent: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeysCallback(agent.NewClient(connection).Signers)}, connection, nil
	}
	return nil, nil, errors.New("ssh: no identity file configured and no ssh-agent running")
}

// hostKeyCallback builds host key verification from the config.
func hostKeyCallback(config SSHConfig) (ssh.HostKeyCallback, error) {
	if config.KnownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	callback, err := knownhosts.New(config.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("ssh: loading known hosts: %w", err)
	}
	return callback, nil
}

// lockedBuffer is a bytes.Buffer safe for the concurrent writes the
// SSH session's stderr goroutine performs.
type lockedBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}
