// Package preflight recognizes session-control verbs (connect, disconnect,
// ...) before a submission reaches an execution backend. Each verb declares a
// small command-line grammar: angle-bracket positionals and --name options.
package preflight

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rileyhilliard/bashkernel/internal/output"
)

// Handler runs a matched verb. raw is the submission as typed.
type Handler func(ctx context.Context, raw string, args Args, emit output.Emit) error

// Command is one registered verb.
type Command struct {
	Verb string
	// Usage is shown verbatim when arguments don't parse.
	Usage       string
	Summary     string
	Positionals []string
	Options     []Option
	Handler     Handler
}

// Router holds the verb table. Registration happens at startup; Dispatch is
// read-only afterwards.
type Router struct {
	prefix   string
	commands map[string]*Command
	order    []string
}

// NewRouter creates a Router. A non-empty prefix (e.g. "!") must lead every
// verb; with no prefix verbs are matched bare.
func NewRouter(prefix string) *Router {
	return &Router{prefix: prefix, commands: make(map[string]*Command)}
}

// Prefix returns the verb prefix.
func (r *Router) Prefix() string {
	return r.prefix
}

// Register adds cmd. Registering a verb twice is an error.
func (r *Router) Register(cmd Command) error {
	if cmd.Verb == "" || strings.IndexFunc(cmd.Verb, unicode.IsSpace) >= 0 {
		return fmt.Errorf("invalid verb %q", cmd.Verb)
	}
	if cmd.Handler == nil {
		return fmt.Errorf("verb %q has no handler", cmd.Verb)
	}
	if _, exists := r.commands[cmd.Verb]; exists {
		return fmt.Errorf("verb %q is already registered", cmd.Verb)
	}

	c := cmd
	r.commands[cmd.Verb] = &c
	r.order = append(r.order, cmd.Verb)
	return nil
}

// MustRegister is Register for startup code; it panics on error.
func (r *Router) MustRegister(cmd Command) {
	if err := r.Register(cmd); err != nil {
		panic("preflight: " + err.Error())
	}
}

// Dispatch runs the verb named by the first token of text. It returns false
// when no verb matches, in which case text belongs to an execution backend.
// Parse failures are USAGE errors carrying the verb's usage text; handler
// errors are returned unchanged.
func (r *Router) Dispatch(ctx context.Context, text string, emit output.Emit) (bool, error) {
	cmd, rest, ok := r.match(text)
	if !ok {
		return false, nil
	}

	args, err := parse(cmd, rest)
	if err == errHelp {
		emit(output.Text(cmd.Usage + "\n"))
		return true, nil
	}
	if err != nil {
		return true, err
	}

	return true, cmd.Handler(ctx, text, args, emit)
}

// Match reports whether text names a registered verb.
func (r *Router) Match(text string) bool {
	_, _, ok := r.match(text)
	return ok
}

func (r *Router) match(text string) (*Command, string, bool) {
	trimmed := strings.TrimSpace(text)
	if r.prefix != "" {
		if !strings.HasPrefix(trimmed, r.prefix) {
			return nil, "", false
		}
		trimmed = trimmed[len(r.prefix):]
	}

	verb, rest := trimmed, ""
	if idx := strings.IndexFunc(trimmed, unicode.IsSpace); idx >= 0 {
		verb, rest = trimmed[:idx], trimmed[idx:]
	}

	cmd, ok := r.commands[verb]
	return cmd, rest, ok
}

// Commands returns the registered commands in registration order.
func (r *Router) Commands() []Command {
	out := make([]Command, 0, len(r.order))
	for _, verb := range r.order {
		out = append(out, *r.commands[verb])
	}
	return out
}

// Usage returns the usage text for verb.
func (r *Router) Usage(verb string) (string, bool) {
	cmd, ok := r.commands[verb]
	if !ok {
		return "", false
	}
	return cmd.Usage, true
}
