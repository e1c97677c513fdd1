package kernel

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/internal/output"
	"github.com/rileyhilliard/bashkernel/internal/preflight"
	"github.com/rileyhilliard/bashkernel/pkg/sshutil"
)

const (
	connectUsage    = "connect <host> [--user USER] [--password PASSWORD] [--port PORT] [--identity-file FILE] [--ask-password]"
	disconnectUsage = "disconnect"
	statusUsage     = "status"
	hostsUsage      = "hosts"
)

var connectOptions = []preflight.Option{
	{Name: "user", Kind: preflight.String, Help: "login name"},
	{Name: "password", Kind: preflight.String, Help: "password for password authentication"},
	{Name: "port", Kind: preflight.Int, Help: "SSH port"},
	{Name: "identity-file", Kind: preflight.String, Help: "private key file"},
	{Name: "ask-password", Kind: preflight.Bool, Help: "prompt for the password"},
}

func (s *Session) registerVerbs() {
	connect := preflight.Command{
		Verb:        "connect",
		Usage:       s.withPrefix(connectUsage),
		Summary:     "Open an SSH session; later submissions run on the remote host",
		Positionals: []string{"<host>"},
		Options:     connectOptions,
		Handler:     s.handleConnect,
	}
	disconnect := preflight.Command{
		Verb:    "disconnect",
		Usage:   s.withPrefix(disconnectUsage),
		Summary: "Close the SSH session and return to the local shell",
		Handler: s.handleDisconnect,
	}

	s.router.MustRegister(connect)
	s.router.MustRegister(disconnect)
	s.router.MustRegister(preflight.Command{
		Verb:    "status",
		Usage:   s.withPrefix(statusUsage),
		Summary: "Show which backend handles submissions",
		Handler: s.handleStatus,
	})
	s.router.MustRegister(preflight.Command{
		Verb:    "hosts",
		Usage:   s.withPrefix(hostsUsage),
		Summary: "List host aliases from the SSH config file",
		Handler: s.handleHosts,
	})

	// Older notebooks use these names.
	connect.Verb = "ssh-login"
	connect.Usage = s.withPrefix(strings.Replace(connectUsage, "connect", "ssh-login", 1))
	s.router.MustRegister(connect)
	disconnect.Verb = "ssh-logout"
	disconnect.Usage = s.withPrefix("ssh-logout")
	s.router.MustRegister(disconnect)
}

func (s *Session) withPrefix(usage string) string {
	return s.router.Prefix() + usage
}

func (s *Session) handleConnect(ctx context.Context, raw string, args preflight.Args, emit output.Emit) error {
	host := args.String("<host>")

	// Checked before any prompt so an accidental reconnect never asks for a password.
	if s.remote.Active() {
		return errors.New(errors.ErrAlreadyConnected,
			fmt.Sprintf("Already connected to %s", s.remote.Host()),
			"Run disconnect first")
	}

	opts := sshutil.ConnectOptions{
		Host:           host,
		User:           args.String("--user"),
		Password:       args.String("--password"),
		IdentityFile:   args.String("--identity-file"),
		ConfigFile:     s.cfg.SSH.ConfigFile,
		KnownHostsFile: s.cfg.SSH.KnownHostsFile,
		HostKeyPolicy:  s.cfg.SSH.HostKeyPolicy,
		Timeout:        s.cfg.SSH.ConnectTimeout,
		Logger:         s.log,
	}
	if port, ok := args.Int("--port"); ok {
		if port <= 0 || port > 65535 {
			return errors.NewUsage(fmt.Sprintf("connect: invalid port %d", port), s.withPrefix(connectUsage))
		}
		opts.Port = port
	}

	if args.Bool("--ask-password") && opts.Password == "" {
		if s.opts.PasswordPrompt == nil {
			return errors.New(errors.ErrUsage,
				"connect: --ask-password needs an interactive terminal",
				"Pass --password or use key authentication")
		}
		password, err := s.opts.PasswordPrompt(ctx, fmt.Sprintf("Password for %s", host))
		if err != nil {
			return errors.NewInterrupted(err)
		}
		opts.Password = password
	}

	var done func(error)
	if s.opts.ConnectProgress != nil {
		done = s.opts.ConnectProgress(host)
	}
	err := s.remote.Connect(ctx, opts)
	if done != nil {
		done(err)
	}
	if err != nil {
		return err
	}

	emit(output.Text(fmt.Sprintf("Connected to %s\n", s.remote.Address())))
	return nil
}

func (s *Session) handleDisconnect(ctx context.Context, raw string, args preflight.Args, emit output.Emit) error {
	host := s.remote.Host()
	if err := s.remote.Disconnect(); err != nil {
		return err
	}
	if host != "" {
		emit(output.Text(fmt.Sprintf("Disconnected from %s\n", host)))
	}
	return nil
}

func (s *Session) handleStatus(ctx context.Context, raw string, args preflight.Args, emit output.Emit) error {
	var b strings.Builder
	fmt.Fprintf(&b, "backend: %s\n", s.State())
	if s.remote.Active() {
		fmt.Fprintf(&b, "host: %s (%s)\n", s.remote.Host(), s.remote.Address())
	}
	fmt.Fprintf(&b, "shell pid: %d\n", s.ShellPID())
	emit(output.Text(b.String()))
	return nil
}

func (s *Session) handleHosts(ctx context.Context, raw string, args preflight.Args, emit output.Emit) error {
	entries, err := sshutil.ParseSSHConfigFile(s.cfg.SSH.ConfigFile)
	if err != nil {
		s.log.Warn("could not read SSH config: %v", err)
	}
	emit(output.Table(HostRows(entries)))
	return nil
}

// HostRows converts alias entries into CSV rows with a header.
func HostRows(entries []sshutil.SSHHostEntry) [][]string {
	rows := [][]string{{"alias", "hostname", "user", "port", "identity_file"}}
	for _, e := range entries {
		port := e.Port
		if port == "" {
			port = strconv.Itoa(22)
		}
		rows = append(rows, []string{e.Alias, e.Hostname, e.User, port, e.IdentityFile})
	}
	return rows
}
