package cli

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/rileyhilliard/bashkernel/internal/config"
	"github.com/rileyhilliard/bashkernel/internal/kernel"
	"github.com/rileyhilliard/bashkernel/internal/logger"
	"github.com/rileyhilliard/bashkernel/internal/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepl_RemoteSession(t *testing.T) {
	sess, _ := remoteSession(t)
	in := strings.NewReader("connect example.com --user alice\nwhoami\ndisconnect\n")
	var out bytes.Buffer

	err := Repl(context.Background(), sess, ReplOptions{In: in, Out: &out})
	require.NoError(t, err)

	assert.Equal(t, "Connected to example.com:22\nalice\nDisconnected from example.com\n", out.String())
	assert.Equal(t, kernel.LocalActive, sess.State())
}

func TestRepl_FailureKeepsGoing(t *testing.T) {
	sess, _ := remoteSession(t)
	in := strings.NewReader("connect\nconnect example.com\nfalse\necho still here\n")
	var out bytes.Buffer

	err := Repl(context.Background(), sess, ReplOptions{In: in, Out: &out})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "connect: missing <host>\nconnect <host> [--user USER]")
	assert.Contains(t, got, "Process returned a non-zero exit code: 1\n")
	assert.True(t, strings.HasSuffix(got, "still here\n"), got)
}

func TestRepl_Local(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}

	sess := kernel.New(kernel.Options{Config: config.DefaultConfig(), Logger: logger.NewBufferLogger()})
	require.NoError(t, sess.Startup())
	t.Cleanup(func() { sess.Shutdown() })

	in := strings.NewReader("X=42\necho $X \\\n  more\nprintf partial\n(exit 5)\n")
	var out bytes.Buffer

	err := Repl(context.Background(), sess, ReplOptions{In: in, Out: &out})
	require.NoError(t, err)

	assert.Equal(t, "42 more\npartial\nProcess returned a non-zero exit code: 5\n", out.String())
}

func TestReadSubmission(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "one per line", input: "a\nb\n", want: []string{"a", "b"}},
		{name: "backslash continues", input: "echo a \\\nb\nc\n", want: []string{"echo a \\\nb", "c"}},
		{name: "no trailing newline", input: "x", want: []string{"x"}},
		{name: "dangling continuation", input: "x \\", want: []string{"x \\"}},
		{name: "empty input", input: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			var got []string
			for {
				text, ok := readSubmission(scanner)
				if !ok {
					break
				}
				got = append(got, text)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPromptFor(t *testing.T) {
	sess, _ := remoteSession(t)
	assert.Contains(t, promptFor(sess), "bashkernel")

	outcome := sess.Submit(context.Background(), "connect devbox", output.Discard)
	require.True(t, outcome.OK())
	assert.Contains(t, promptFor(sess), "devbox")
}
