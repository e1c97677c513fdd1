package cli

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/internal/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorToJSON(t *testing.T) {
	assert.Nil(t, ErrorToJSON(nil))

	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit *int
	}{
		{"config", errors.New(errors.ErrConfig, "bad", ""), ErrCodeConfigInvalid, nil},
		{"ssh", errors.New(errors.ErrSSH, "refused", ""), ErrCodeSSHConnection, nil},
		{"usage", errors.NewUsage("missing", "connect <host>"), ErrCodeUsage, nil},
		{"interrupted", errors.NewInterrupted(context.Canceled), ErrCodeInterrupted, nil},
		{"exit", errors.NewExitError(2), ErrCodeNonZeroExit, intPtr(2)},
		{"process with status", errors.WrapWithCode(errors.NewExitError(3), errors.ErrProcess, "died", ""), ErrCodeProcessExited, intPtr(3)},
		{"plain", stderrors.New("boom"), ErrCodeUnknown, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorToJSON(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantExit, got.ExitCode)
		})
	}
}

func intPtr(n int) *int { return &n }

func TestErrorToJSON_UsageKeepsUsageText(t *testing.T) {
	got := ErrorToJSON(errors.NewUsage("connect: missing <host>", "connect <host>"))
	assert.Equal(t, "connect: missing <host>", got.Message)
	assert.Equal(t, "connect <host>", got.Suggestion)
}

func TestFrameToJSON(t *testing.T) {
	assert.Equal(t, FrameJSON{MediaType: "text/plain", Data: "hi\n"}, frameToJSON(output.Text("hi\n")))
	assert.Equal(t, FrameJSON{MediaType: "text/plain", Data: "x"}, frameToJSON(output.Frame{Payload: "x"}))

	rows := [][]string{{"a"}, {"1"}}
	assert.Equal(t, FrameJSON{MediaType: "text/csv", Data: rows}, frameToJSON(output.Table(rows)))
}

func TestRunSubmissionsJSON(t *testing.T) {
	sess, _ := remoteSession(t)
	var buf bytes.Buffer

	err := RunSubmissionsJSON(context.Background(), sess, []string{"connect h --user bob", "whoami", "exit 4"}, &buf, RunOptions{})
	require.Error(t, err)

	var env struct {
		Success bool             `json:"success"`
		Data    []SubmissionJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.False(t, env.Success)
	require.Len(t, env.Data, 3)

	assert.Equal(t, "whoami", env.Data[1].Code)
	require.Len(t, env.Data[1].Frames, 1)
	assert.Equal(t, "bob\n", env.Data[1].Frames[0].Data)
	assert.Nil(t, env.Data[1].Error)

	require.NotNil(t, env.Data[2].Error)
	assert.Equal(t, ErrCodeNonZeroExit, env.Data[2].Error.Code)
	assert.Equal(t, 4, *env.Data[2].Error.ExitCode)
}

func TestWriteJSONSuccess(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONSuccess(&buf, map[string]int{"n": 1}))
	assert.JSONEq(t, `{"success":true,"data":{"n":1}}`, buf.String())
}
