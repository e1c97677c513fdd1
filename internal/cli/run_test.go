package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSubmissions_Success(t *testing.T) {
	sess, _ := remoteSession(t)
	var out bytes.Buffer

	err := RunSubmissions(context.Background(), sess, []string{"connect h --user bob", "whoami", "disconnect"}, &out, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Connected to h:22\nbob\nDisconnected from h\n", out.String())
}

func TestRunSubmissions_StopsAtFailure(t *testing.T) {
	sess, dialer := remoteSession(t)
	var out bytes.Buffer

	err := RunSubmissions(context.Background(), sess, []string{"connect h", "false", "whoami"}, &out, RunOptions{})
	require.Error(t, err)
	assert.Equal(t, 1, exitStatus(err))
	_, isExit := errors.GetExitCode(err)
	assert.True(t, isExit)

	assert.Contains(t, out.String(), "Process returned a non-zero exit code: 1")
	assert.Equal(t, []string{"false"}, dialer.Clients["h"].History())
}

func TestRunSubmissions_KeepGoing(t *testing.T) {
	sess, _ := remoteSession(t)
	var out bytes.Buffer

	err := RunSubmissions(context.Background(), sess, []string{"connect h --user bob", "false", "whoami"}, &out, RunOptions{KeepGoing: true})
	require.Error(t, err)
	assert.Contains(t, out.String(), "bob\n")
}

func TestRunCommandRequiresArgs(t *testing.T) {
	assert.Error(t, runCmd.Args(runCmd, nil))
	assert.NoError(t, runCmd.Args(runCmd, []string{"echo hi"}))
	for _, name := range []string{"keep-going", "json", "timeout"} {
		require.NotNil(t, runCmd.Flags().Lookup(name), name)
	}
}

func TestRunSubmissions_Timeout(t *testing.T) {
	sess, dialer := remoteSession(t)
	var out bytes.Buffer

	opts := RunOptions{KeepGoing: true, Timeout: 100 * time.Millisecond}
	err := RunSubmissions(context.Background(), sess, []string{"connect h", "sleep 30", "whoami"}, &out, opts)
	require.Error(t, err)
	assert.Contains(t, out.String(), "Execution interrupted")
	assert.Equal(t, []string{"sleep 30"}, dialer.Clients["h"].History(), "an interrupt always ends the run")
}
