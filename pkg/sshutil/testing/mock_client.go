// Package testing provides an in-memory SSHClient for exercising the remote
// backend without a server.
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	kerrors "github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/pkg/sshutil"
)

// ErrClosed is returned by every call on a closed MockClient.
var ErrClosed = errors.New("connection closed")

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// MockClient simulates an SSH connection for testing. Commands are answered
// from registered responses first (exact match, then regex), then by a small
// built-in interpreter (whoami, hostname, echo, true, false, exit N, sleep N).
// Anything else exits 127 like an unknown command would.
type MockClient struct {
	mu       sync.Mutex
	host     string
	address  string
	user     string
	closed   bool
	dropped  bool
	commands map[string]CommandResponse // pattern -> response
	history  []string
}

// NewMockClient creates a mock SSH client for host.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:     host,
		address:  host + ":22",
		user:     "mock",
		commands: make(map[string]CommandResponse),
	}
}

// WithUser sets the login name reported by whoami.
func (m *MockClient) WithUser(user string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = user
	return m
}

// Exec runs cmd without a deadline.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	return m.ExecContext(context.Background(), cmd)
}

// ExecContext runs cmd. Only sleep observes ctx; a cancelled sleep returns
// an interrupted error like the real client.
func (m *MockClient) ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	resp, sleep, err := m.lookup(cmd)
	if err != nil {
		return nil, nil, -1, err
	}

	if sleep > 0 {
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return nil, nil, -1, kerrors.NewInterrupted(ctx.Err())
		}
	}

	return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
}

func (m *MockClient) lookup(cmd string) (CommandResponse, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return CommandResponse{}, 0, ErrClosed
	}
	if m.dropped {
		return CommandResponse{}, 0, kerrors.WrapWithCode(
			fmt.Errorf("%w: %w", sshutil.ErrConnectionClosed, io.EOF), kerrors.ErrExec,
			"Failed to create SSH session",
			"Connection may have been closed. Disconnect and connect again.")
	}
	m.history = append(m.history, cmd)

	if resp, ok := m.commands[cmd]; ok {
		return resp, 0, nil
	}
	for pattern, resp := range m.commands {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return resp, 0, nil
		}
	}

	return m.interpret(cmd)
}

// interpret handles the built-in commands. Caller holds m.mu.
func (m *MockClient) interpret(cmd string) (CommandResponse, time.Duration, error) {
	fields := strings.Fields(strings.TrimSpace(cmd))
	if len(fields) == 0 {
		return CommandResponse{}, 0, nil
	}

	switch fields[0] {
	case "whoami":
		return CommandResponse{Stdout: []byte(m.user + "\n")}, 0, nil
	case "hostname":
		return CommandResponse{Stdout: []byte(m.host + "\n")}, 0, nil
	case "echo":
		return CommandResponse{Stdout: []byte(strings.Join(fields[1:], " ") + "\n")}, 0, nil
	case "true":
		return CommandResponse{}, 0, nil
	case "false":
		return CommandResponse{ExitCode: 1}, 0, nil
	case "exit":
		code := 0
		if len(fields) > 1 {
			code, _ = strconv.Atoi(fields[1])
		}
		return CommandResponse{ExitCode: code}, 0, nil
	case "sleep":
		seconds := 0.0
		if len(fields) > 1 {
			seconds, _ = strconv.ParseFloat(fields[1], 64)
		}
		return CommandResponse{}, time.Duration(seconds * float64(time.Second)), nil
	default:
		return CommandResponse{
			Stderr:   []byte(fmt.Sprintf("bash: %s: command not found\n", fields[0])),
			ExitCode: 127,
		}, 0, nil
	}
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Drop simulates the server closing the connection: every later command
// fails the way the real client does once its transport is gone.
func (m *MockClient) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = true
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = resp
}

// History returns the commands executed so far.
func (m *MockClient) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history...)
}

// Dialer records connection attempts and hands out mock clients. Set Err to
// make every dial fail.
type Dialer struct {
	mu      sync.Mutex
	Err     error
	Clients map[string]*MockClient
	Calls   []sshutil.ConnectOptions
}

// NewDialer creates a Dialer with no preconfigured clients.
func NewDialer() *Dialer {
	return &Dialer{Clients: make(map[string]*MockClient)}
}

// Dial satisfies sshutil.Dialer. A client registered for opts.Host is
// returned if present; otherwise a new one is created whose whoami reports
// opts.User.
func (d *Dialer) Dial(ctx context.Context, opts sshutil.ConnectOptions) (sshutil.SSHClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Calls = append(d.Calls, opts)
	if d.Err != nil {
		return nil, d.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if client, ok := d.Clients[opts.Host]; ok {
		return client, nil
	}

	client := NewMockClient(opts.Host)
	if opts.User != "" {
		client.WithUser(opts.User)
	}
	d.Clients[opts.Host] = client
	return client, nil
}

// CallCount returns the number of Dial calls.
func (d *Dialer) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Calls)
}

var _ sshutil.SSHClient = (*MockClient)(nil)
var _ sshutil.Dialer = (*Dialer)(nil).Dial
