package sshutil

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// knownHostsMu serializes appends to known_hosts.
var knownHostsMu sync.Mutex

func knownHostsPath(path string) string {
	if path == "" {
		return filepath.Join(homeDir(), ".ssh", "known_hosts")
	}
	return expandPath(path)
}

// hostKeyCallbackFor builds the verification callback for opts.HostKeyPolicy.
func hostKeyCallbackFor(opts ConnectOptions) (ssh.HostKeyCallback, error) {
	policy := opts.HostKeyPolicy
	if policy == "" {
		policy = HostKeyAcceptNew
	}

	switch policy {
	case HostKeyOff:
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // User explicitly disabled host key checking
	case HostKeyStrict, HostKeyAcceptNew:
		callback, err := createHostKeyCallback(knownHostsPath(opts.KnownHostsFile), policy == HostKeyAcceptNew, logger.OrDefault(opts.Logger))
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSSH,
				"Failed to load known_hosts",
				"Check the file is readable, or set ssh.host_key_policy to off")
		}
		return callback, nil
	default:
		return nil, errors.New(errors.ErrSSH,
			fmt.Sprintf("Unknown host key policy %q", policy),
			"Use one of: accept-new, strict, off")
	}
}

// createHostKeyCallback wraps the knownhosts callback to provide better error
// messages. With acceptNew, keys for hosts that have no entry at all are
// appended to the file; a changed key is always rejected.
func createHostKeyCallback(path string, acceptNew bool, log logger.Logger) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(path, []byte{}, 0o600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if !stderrors.As(err, &keyErr) {
			return err
		}
		if len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   path,
				Want:         keyErr.Want,
			}
		}
		if !acceptNew {
			return &UnknownHostError{Hostname: hostname, KnownHosts: path}
		}

		if err := appendKnownHost(path, hostname, remote, key); err != nil {
			return err
		}
		log.Info("Permanently added '%s' (%s) to the list of known hosts.", hostname, key.Type())
		return nil
	}, nil
}

func appendKnownHost(path, hostname string, remote net.Addr, key ssh.PublicKey) error {
	knownHostsMu.Lock()
	defer knownHostsMu.Unlock()

	addresses := []string{knownhosts.Normalize(hostname)}
	if remote != nil {
		if addr := knownhosts.Normalize(remote.String()); addr != addresses[0] {
			addresses = append(addresses, addr)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("failed to update known_hosts: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, knownhosts.Line(addresses, key)); err != nil {
		return fmt.Errorf("failed to update known_hosts: %w", err)
	}
	return nil
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := stripPort(e.Hostname)

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the server was reinstalled, remove the old entry:\n"+
			"    ssh-keygen -R %s",
		wantStr, e.ReceivedType, host)
}

// UnknownHostError is returned under the strict policy for hosts missing
// from known_hosts.
type UnknownHostError struct {
	Hostname   string
	KnownHosts string
}

func (e *UnknownHostError) Error() string {
	return fmt.Sprintf("no host key known for %s", e.Hostname)
}

// Suggestion explains how to trust the host.
func (e *UnknownHostError) Suggestion() string {
	return fmt.Sprintf("Verify the host, then add its key:\n    ssh-keyscan %s >> %s\n  or set ssh.host_key_policy to accept-new",
		stripPort(e.Hostname), e.KnownHosts)
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "root"
}
