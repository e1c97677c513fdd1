// Package remote owns the kernel's optional SSH session. One command per
// call, no interactive shell: state such as the working directory does not
// carry over between submissions on this backend.
package remote

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/internal/logger"
	"github.com/rileyhilliard/bashkernel/pkg/sshutil"
)

// Result is the fully captured outcome of one remote command.
type Result struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

// Manager holds at most one active connection.
type Manager struct {
	dial sshutil.Dialer
	log  logger.Logger

	mu     sync.Mutex
	client sshutil.SSHClient
	host   string
}

// NewManager creates a Manager. A nil dialer means sshutil.DefaultDialer.
func NewManager(dial sshutil.Dialer, log logger.Logger) *Manager {
	if dial == nil {
		dial = sshutil.DefaultDialer
	}
	return &Manager{dial: dial, log: logger.OrDefault(log)}
}

// Connect opens a session. It fails with ALREADY_CONNECTED, leaving the
// current session untouched, if one is active.
func (m *Manager) Connect(ctx context.Context, opts sshutil.ConnectOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return errors.New(errors.ErrAlreadyConnected,
			fmt.Sprintf("Already connected to %s", m.host),
			"Run disconnect first")
	}

	if opts.Logger == nil {
		opts.Logger = m.log
	}

	client, err := m.dial(ctx, opts)
	if err != nil {
		var structured *errors.Error
		if stderrors.As(err, &structured) {
			return err
		}
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Failed to connect to %s", opts.Host),
			"Check the host name and credentials")
	}

	m.client = client
	m.host = opts.Host
	m.log.Debug("connected to %s (%s)", opts.Host, client.GetAddress())
	return nil
}

// Disconnect closes the active session. With none active it does nothing.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}

	client, host := m.client, m.host
	m.client, m.host = nil, ""

	if err := client.Close(); err != nil {
		m.log.Debug("closing connection to %s: %v", host, err)
	}
	m.log.Debug("disconnected from %s", host)
	return nil
}

// Active reports whether a session is open.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil
}

// Host returns the host of the active session, or "".
func (m *Manager) Host() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.host
}

// Address returns the resolved address of the active session, or "".
func (m *Manager) Address() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return ""
	}
	return m.client.GetAddress()
}

// Execute runs command on the remote host. A non-zero exit status is a
// normal Result; only transport failures are errors. When ctx is cancelled
// the partial output comes back alongside an INTERRUPTED error. If the
// connection itself has closed, the session is dropped and Active reports
// false.
func (m *Manager) Execute(ctx context.Context, command string) (Result, error) {
	m.mu.Lock()
	client, host := m.client, m.host
	m.mu.Unlock()

	if client == nil {
		return Result{}, errors.New(errors.ErrNotConnected,
			"No remote session is active",
			"Run connect <host> first")
	}

	stdout, stderr, code, err := client.ExecContext(ctx, command)
	result := Result{Stdout: string(stdout), Stderr: string(stderr), ExitStatus: code}
	if err != nil {
		if errors.IsInterrupted(err) {
			return result, err
		}
		if transportClosed(err) {
			m.drop(client)
		}
		var structured *errors.Error
		if stderrors.As(err, &structured) && structured.Code == errors.ErrExec {
			return result, err
		}
		return result, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Remote execution on %s failed", host),
			"The connection may have dropped. Disconnect and connect again.")
	}
	return result, nil
}

// transportClosed reports whether err means the connection itself is gone,
// as opposed to one command or channel failing.
func transportClosed(err error) bool {
	return stderrors.Is(err, sshutil.ErrConnectionClosed) ||
		stderrors.Is(err, io.EOF) ||
		stderrors.Is(err, net.ErrClosed)
}

// drop forgets client after its transport closed, so the next submission
// runs locally. A concurrent Disconnect or reconnect wins.
func (m *Manager) drop(client sshutil.SSHClient) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != client {
		return
	}
	host := m.host
	m.client, m.host = nil, ""
	_ = client.Close()
	m.log.Warn("connection to %s closed; submissions run locally again", host)
}
