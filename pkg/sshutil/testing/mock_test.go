package testing

import (
	"context"
	"errors"
	"testing"
	"time"

	kerrors "github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/pkg/sshutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_BuiltIns(t *testing.T) {
	client := NewMockClient("example.com").WithUser("alice")

	tests := []struct {
		cmd        string
		wantStdout string
		wantStderr string
		wantCode   int
	}{
		{cmd: "whoami", wantStdout: "alice\n"},
		{cmd: "hostname", wantStdout: "example.com\n"},
		{cmd: "echo hello   world", wantStdout: "hello world\n"},
		{cmd: "true"},
		{cmd: "false", wantCode: 1},
		{cmd: "exit 7", wantCode: 7},
		{cmd: "frobnicate", wantStderr: "bash: frobnicate: command not found\n", wantCode: 127},
		{cmd: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			stdout, stderr, code, err := client.Exec(tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStdout, string(stdout))
			assert.Equal(t, tt.wantStderr, string(stderr))
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestMockClient_CannedResponses(t *testing.T) {
	client := NewMockClient("example.com")
	client.SetCommandResponse("uname -a", CommandResponse{Stdout: []byte("Linux\n")})
	client.SetCommandResponse("^ls ", CommandResponse{Stdout: []byte("a b\n")})
	client.SetCommandResponse("boom", CommandResponse{ExitCode: -1, Error: errors.New("transport")})

	stdout, _, _, err := client.Exec("uname -a")
	require.NoError(t, err)
	assert.Equal(t, "Linux\n", string(stdout))

	stdout, _, _, err = client.Exec("ls /tmp")
	require.NoError(t, err)
	assert.Equal(t, "a b\n", string(stdout))

	_, _, code, err := client.Exec("boom")
	assert.Error(t, err)
	assert.Equal(t, -1, code)

	assert.Equal(t, []string{"uname -a", "ls /tmp", "boom"}, client.History())
}

func TestMockClient_SleepHonoursContext(t *testing.T) {
	client := NewMockClient("example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, code, err := client.ExecContext(ctx, "sleep 10")
	require.Error(t, err)
	assert.True(t, kerrors.IsInterrupted(err))
	assert.Equal(t, -1, code)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestMockClient_Closed(t *testing.T) {
	client := NewMockClient("example.com")
	require.NoError(t, client.Close())
	assert.True(t, client.Closed())

	_, _, code, err := client.Exec("true")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, -1, code)
}

func TestDialer(t *testing.T) {
	d := NewDialer()

	c1, err := d.Dial(context.Background(), sshutil.ConnectOptions{Host: "example.com", User: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "example.com", c1.GetHost())

	stdout, _, _, err := c1.Exec("whoami")
	require.NoError(t, err)
	assert.Equal(t, "alice\n", string(stdout))

	c2, err := d.Dial(context.Background(), sshutil.ConnectOptions{Host: "example.com"})
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, 2, d.CallCount())

	d.Err = errors.New("refused")
	_, err = d.Dial(context.Background(), sshutil.ConnectOptions{Host: "other"})
	assert.EqualError(t, err, "refused")
}
