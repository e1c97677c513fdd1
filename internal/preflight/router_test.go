package preflight

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/internal/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const connectUsage = "Usage: connect <host> [--user USER] [--port PORT] [--ask-password]"

// recorder captures the arguments of the last handler call.
type recorder struct {
	calls int
	raw   string
	args  Args
}

func (r *recorder) handler(ctx context.Context, raw string, args Args, emit output.Emit) error {
	r.calls++
	r.raw = raw
	r.args = args
	return nil
}

func newConnectRouter(prefix string) (*Router, *recorder) {
	rec := &recorder{}
	r := NewRouter(prefix)
	r.MustRegister(Command{
		Verb:        "connect",
		Usage:       connectUsage,
		Positionals: []string{"<host>"},
		Options: []Option{
			{Name: "user", Kind: String},
			{Name: "port", Kind: Int},
			{Name: "ask-password", Kind: Bool},
		},
		Handler: rec.handler,
	})
	return r, rec
}

func TestDispatch_ParsesArguments(t *testing.T) {
	r, rec := newConnectRouter("")

	matched, err := r.Dispatch(context.Background(), "  connect example.com --user alice --port 2222 --ask-password\n", output.Discard)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "  connect example.com --user alice --port 2222 --ask-password\n", rec.raw)

	assert.Equal(t, "example.com", rec.args.String("<host>"))
	assert.Equal(t, "alice", rec.args.String("--user"))
	port, ok := rec.args.Int("--port")
	assert.True(t, ok)
	assert.Equal(t, 2222, port)
	assert.True(t, rec.args.Bool("--ask-password"))
}

func TestDispatch_OptionsBeforePositional(t *testing.T) {
	r, rec := newConnectRouter("")

	_, err := r.Dispatch(context.Background(), "connect --user=alice example.com", output.Discard)
	require.NoError(t, err)
	assert.Equal(t, "example.com", rec.args.String("<host>"))
	assert.Equal(t, "alice", rec.args.String("--user"))
}

func TestDispatch_OmittedOptionsAbsent(t *testing.T) {
	r, rec := newConnectRouter("")

	_, err := r.Dispatch(context.Background(), "connect example.com", output.Discard)
	require.NoError(t, err)
	assert.False(t, rec.args.Has("--user"))
	assert.False(t, rec.args.Has("--port"))
	_, ok := rec.args.Int("--port")
	assert.False(t, ok)
	assert.False(t, rec.args.Bool("--ask-password"))
}

func TestDispatch_QuotedValues(t *testing.T) {
	r, rec := newConnectRouter("")

	_, err := r.Dispatch(context.Background(), `connect "my host" --user 'a b'`, output.Discard)
	require.NoError(t, err)
	assert.Equal(t, "my host", rec.args.String("<host>"))
	assert.Equal(t, "a b", rec.args.String("--user"))
}

func TestDispatch_UsageFailures(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantMsg string
	}{
		{name: "missing positional", text: "connect", wantMsg: "missing <host>"},
		{name: "missing positional with option", text: "connect --user alice", wantMsg: "missing <host>"},
		{name: "invalid int", text: "connect h --port abc", wantMsg: "invalid argument"},
		{name: "unknown option", text: "connect h --verbose", wantMsg: "unknown flag"},
		{name: "option without value", text: "connect h --user", wantMsg: "needs an argument"},
		{name: "extra positional", text: "connect h other", wantMsg: `unexpected argument "other"`},
		{name: "unbalanced quote", text: `connect "h`, wantMsg: "connect:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, rec := newConnectRouter("")

			matched, err := r.Dispatch(context.Background(), tt.text, output.Discard)
			assert.True(t, matched)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrUsage))
			assert.Contains(t, err.Error(), tt.wantMsg)

			var structured *errors.Error
			require.True(t, stderrors.As(err, &structured))
			assert.Equal(t, connectUsage, structured.Suggestion, "usage text is carried verbatim")
			assert.Equal(t, 0, rec.calls)
		})
	}
}

func TestDispatch_Help(t *testing.T) {
	r, rec := newConnectRouter("")
	var c output.Collector

	matched, err := r.Dispatch(context.Background(), "connect --help", c.Emit)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, connectUsage+"\n", c.Joined())
	assert.Equal(t, 0, rec.calls)
}

func TestDispatch_NoMatch(t *testing.T) {
	r, rec := newConnectRouter("")

	for _, text := range []string{"ls -la", "", "   ", "Connect example.com", "connection", "echo connect"} {
		matched, err := r.Dispatch(context.Background(), text, output.Discard)
		assert.NoError(t, err, text)
		assert.False(t, matched, text)
	}
	assert.Equal(t, 0, rec.calls)
}

func TestDispatch_Prefix(t *testing.T) {
	r, rec := newConnectRouter("!")

	matched, err := r.Dispatch(context.Background(), "connect example.com", output.Discard)
	assert.NoError(t, err)
	assert.False(t, matched, "bare verb is ordinary code when a prefix is configured")

	matched, err = r.Dispatch(context.Background(), "!connect example.com", output.Discard)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, "example.com", rec.args.String("<host>"))
	assert.True(t, r.Match("!connect x"))
	assert.False(t, r.Match("connect x"))
}

func TestDispatch_HandlerErrorUnchanged(t *testing.T) {
	r := NewRouter("")
	want := errors.New(errors.ErrAlreadyConnected, "Already connected to a", "")
	r.MustRegister(Command{
		Verb:    "fail",
		Handler: func(context.Context, string, Args, output.Emit) error { return want },
	})

	matched, err := r.Dispatch(context.Background(), "fail", output.Discard)
	assert.True(t, matched)
	assert.Same(t, want, err)
}

func TestRegister(t *testing.T) {
	r, _ := newConnectRouter("")
	noop := func(context.Context, string, Args, output.Emit) error { return nil }

	err := r.Register(Command{Verb: "connect", Handler: noop})
	assert.ErrorContains(t, err, "already registered")

	assert.Error(t, r.Register(Command{Verb: "", Handler: noop}))
	assert.Error(t, r.Register(Command{Verb: "two words", Handler: noop}))
	assert.Error(t, r.Register(Command{Verb: "nohandler"}))

	assert.Panics(t, func() {
		r.MustRegister(Command{Verb: "connect", Handler: noop})
	})
}

func TestCommandsAndUsage(t *testing.T) {
	r, _ := newConnectRouter("")
	noop := func(context.Context, string, Args, output.Emit) error { return nil }
	r.MustRegister(Command{Verb: "disconnect", Usage: "Usage: disconnect", Handler: noop})

	cmds := r.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "connect", cmds[0].Verb)
	assert.Equal(t, "disconnect", cmds[1].Verb)

	usage, ok := r.Usage("disconnect")
	assert.True(t, ok)
	assert.Equal(t, "Usage: disconnect", usage)

	_, ok = r.Usage("nope")
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "string", String.String())
	assert.Equal(t, "int", Int.String())
	assert.Equal(t, "bool", Bool.String())
}
