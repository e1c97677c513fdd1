package sshutil

import "context"

// SSHClient defines the interface for SSH command execution.
// Both the real Client and the mock in pkg/sshutil/testing satisfy it,
// so the remote backend can be tested without a server.
type SSHClient interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// ExecContext is Exec bound to ctx. When ctx is done before the command
	// finishes, the remote process is sent SIGINT, the channel is closed, and
	// whatever output arrived so far is returned with an interrupted error.
	ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error)

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the original host/alias used to connect.
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string
}

// Dialer opens an SSH connection. Dial is the production implementation;
// tests substitute one that hands back a mock client.
type Dialer func(ctx context.Context, opts ConnectOptions) (SSHClient, error)

// DefaultDialer adapts Dial to the Dialer signature.
func DefaultDialer(ctx context.Context, opts ConnectOptions) (SSHClient, error) {
	client, err := Dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	return client, nil
}
