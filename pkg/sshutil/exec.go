package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rileyhilliard/bashkernel/internal/errors"
	"golang.org/x/crypto/ssh"
)

// ErrConnectionClosed marks a failure caused by the connection itself going
// away rather than by one command.
var ErrConnectionClosed = stderrors.New("ssh: connection closed")

// closeGrace bounds how long an interrupted command may take to drain after
// its channel is closed.
const closeGrace = 2 * time.Second

// Exec runs a command on the remote host and returns the output.
// Returns stdout, stderr, exit code, and any error.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	return c.ExecContext(context.Background(), cmd)
}

// ExecContext runs cmd to completion, capturing stdout and stderr separately.
// Nothing is streamed: the caller sees output only when the command ends or
// ctx is cancelled.
func (c *Client) ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.Client.NewSession()
	if err != nil {
		// A rejected channel leaves the connection usable; anything else
		// comes from the transport.
		var rejected *ssh.OpenChannelError
		if !stderrors.As(err, &rejected) {
			err = fmt.Errorf("%w: %w", ErrConnectionClosed, err)
		}
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrExec,
			"Failed to create SSH session",
			"Connection may have been closed. Disconnect and connect again.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	if err := session.Start(cmd); err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to start command on %s", c.Host),
			"The remote shell refused the command. Check the connection and try again.")
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case waitErr := <-done:
		code, err := exitStatus(waitErr)
		if err != nil {
			return stdoutBuf.Bytes(), stderrBuf.Bytes(), -1, err
		}
		return stdoutBuf.Bytes(), stderrBuf.Bytes(), code, nil

	case <-ctx.Done():
		// Not every server honours signal requests; closing the channel is
		// what actually unblocks Wait.
		_ = session.Signal(ssh.SIGINT)
		_ = session.Close()

		select {
		case <-done:
			return stdoutBuf.Bytes(), stderrBuf.Bytes(), -1, errors.NewInterrupted(ctx.Err())
		case <-time.After(closeGrace):
			return nil, nil, -1, errors.NewInterrupted(ctx.Err())
		}
	}
}

// exitStatus maps the result of session.Wait to an exit code. A command that
// ran and failed is not an error; a channel that closed without reporting a
// status is.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}

	var missingErr *ssh.ExitMissingError
	if stderrors.As(err, &missingErr) {
		return -1, errors.WrapWithCode(err, errors.ErrExec,
			"Remote command ended without reporting an exit status",
			"The connection may have dropped. Disconnect and connect again.")
	}

	return -1, errors.WrapWithCode(err, errors.ErrExec,
		"Remote command failed",
		"Check the connection and try again.")
}
