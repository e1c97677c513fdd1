// Package kernel ties the backends together. A Session owns one local shell
// and one remote manager, routes each submission through the pre-flight
// verbs first, and converts every failure into an Outcome so nothing a user
// types can take the kernel down.
package kernel

import (
	"context"
	"sync"

	"github.com/rileyhilliard/bashkernel/internal/config"
	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/internal/logger"
	"github.com/rileyhilliard/bashkernel/internal/preflight"
	"github.com/rileyhilliard/bashkernel/internal/remote"
	"github.com/rileyhilliard/bashkernel/internal/shell"
	"github.com/rileyhilliard/bashkernel/pkg/sshutil"
)

// State is the dispatcher state.
type State int

const (
	LocalActive State = iota
	RemoteActive
)

func (s State) String() string {
	if s == RemoteActive {
		return "RemoteActive"
	}
	return "LocalActive"
}

// PasswordPrompt asks the user for a password. The REPL supplies one when
// attached to a terminal.
type PasswordPrompt func(ctx context.Context, prompt string) (string, error)

// ConnectProgress is called when a connection attempt starts; the returned
// func is called with its result.
type ConnectProgress func(host string) func(err error)

// Options configures a Session.
type Options struct {
	Config *config.Config
	Logger logger.Logger

	// Dialer opens SSH connections. Nil means sshutil.DefaultDialer.
	Dialer sshutil.Dialer

	PasswordPrompt  PasswordPrompt
	ConnectProgress ConnectProgress

	Interrupts *shell.InterruptController
}

// Session is the kernel's mutable state. Submissions are serialized.
type Session struct {
	cfg    *config.Config
	log    logger.Logger
	opts   Options
	router *preflight.Router
	remote *remote.Manager

	mu    sync.Mutex
	shell *shell.Shell
}

// New creates a Session with the built-in verbs registered. Nothing is
// spawned until Startup.
func New(opts Options) *Session {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	log := logger.OrDefault(opts.Logger)
	if opts.Interrupts == nil {
		opts.Interrupts = shell.NewInterruptController(log)
	}

	s := &Session{
		cfg:    opts.Config,
		log:    log,
		opts:   opts,
		router: preflight.NewRouter(opts.Config.Preflight.Prefix),
		remote: remote.NewManager(opts.Dialer, log),
	}
	s.registerVerbs()
	return s
}

// Startup spawns the local shell.
func (s *Session) Startup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shell != nil {
		return nil
	}

	shOpts := shell.OptionsFromConfig(s.cfg.Shell)
	shOpts.Logger = s.log
	shOpts.Interrupts = s.opts.Interrupts

	sh, err := shell.Start(shOpts)
	if err != nil {
		return err
	}
	s.shell = sh
	return nil
}

// Shutdown closes the remote session, then the local shell.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.remote.Disconnect()
	sshutil.CloseAgent()

	if s.shell == nil {
		return nil
	}
	err := s.shell.Close()
	s.shell = nil
	return err
}

// State reports which backend handles the next submission.
func (s *Session) State() State {
	if s.remote.Active() {
		return RemoteActive
	}
	return LocalActive
}

// Router exposes the verb table, e.g. for help output.
func (s *Session) Router() *preflight.Router {
	return s.router
}

// Remote exposes the remote manager.
func (s *Session) Remote() *remote.Manager {
	return s.remote
}

// Interrupts returns the controller that guards the shell.
func (s *Session) Interrupts() *shell.InterruptController {
	return s.opts.Interrupts
}

// ShellPID returns the local shell's pid, or 0 before Startup.
func (s *Session) ShellPID() int {
	if s.shell == nil {
		return 0
	}
	return s.shell.PID()
}

func (s *Session) localShell() (*shell.Shell, error) {
	if s.shell == nil {
		return nil, errors.New(errors.ErrProcess, "Kernel has not been started", "Call Startup before submitting code")
	}
	return s.shell, nil
}
