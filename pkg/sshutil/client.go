package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Host key policies.
const (
	// HostKeyAcceptNew records unknown hosts and rejects changed keys.
	HostKeyAcceptNew = "accept-new"
	// HostKeyStrict rejects hosts that are not already in known_hosts.
	HostKeyStrict = "strict"
	// HostKeyOff skips host key verification.
	HostKeyOff = "off"
)

// DefaultTimeout bounds dial and handshake when ConnectOptions.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// ConnectOptions describes a connection request. Explicit fields win over
// values from the alias file, which win over defaults (port 22, the current
// OS user).
type ConnectOptions struct {
	// Host is an alias from the config file, a hostname, or user@host[:port].
	Host         string
	User         string
	Password     string
	Port         int
	IdentityFile string

	// ConfigFile is the alias file. Empty means ~/.ssh/config.
	ConfigFile string
	// KnownHostsFile is the host key store. Empty means ~/.ssh/known_hosts.
	KnownHostsFile string
	// HostKeyPolicy is one of HostKeyAcceptNew (default), HostKeyStrict, HostKeyOff.
	HostKeyPolicy string
	Timeout       time.Duration

	Logger logger.Logger
}

// Client wraps an SSH connection with additional metadata.
type Client struct {
	*ssh.Client
	Host    string // The original host/alias used to connect
	Address string // The resolved address (host:port)
	User    string
}

// matchWarningOnce ensures the SSH config Match directive warning is only shown once per process.
var matchWarningOnce sync.Once

// Dial establishes an SSH connection described by opts. The host can be:
//   - An SSH config alias (e.g., "myserver")
//   - A hostname (e.g., "192.168.1.100")
//   - A user@hostname (e.g., "user@192.168.1.100")
//   - A hostname:port (e.g., "192.168.1.100:2222")
func Dial(ctx context.Context, opts ConnectOptions) (*Client, error) {
	log := logger.OrDefault(opts.Logger)
	settings := Resolve(opts)

	config, err := buildSSHConfig(settings, opts)
	if err != nil {
		var structured *errors.Error
		if stderrors.As(err, &structured) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't set up SSH for '%s'", opts.Host),
			"Check your keys are loaded: ssh-add -l")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	address := settings.Address()
	log.Debug("dialing %s as %s", address, settings.User)

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", opts.Host, address),
			suggestionForDialError(err))
	}

	// The handshake has no context of its own; a deadline on the socket
	// bounds it, and cancellation closes the socket.
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	stop()
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrSSH, hostKeyErr.Error(), hostKeyErr.Suggestion())
		}
		var unknownErr *UnknownHostError
		if stderrors.As(err, &unknownErr) {
			return nil, errors.New(errors.ErrSSH, unknownErr.Error(), unknownErr.Suggestion())
		}
		if ctx.Err() != nil {
			return nil, errors.WrapWithCode(ctx.Err(), errors.ErrSSH,
				fmt.Sprintf("Connection to '%s' was cancelled", opts.Host), "")
		}

		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", opts.Host),
			suggestionForHandshakeError(err, settings.encryptedKeys, opts.Password != ""))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    opts.Host,
		Address: address,
		User:    settings.User,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the original host/alias used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// GetAddress returns the resolved host:port address.
func (c *Client) GetAddress() string {
	return c.Address
}

// Settings holds resolved SSH connection parameters.
type Settings struct {
	Hostname     string
	Port         string
	User         string
	IdentityFile string

	encryptedKeys []string // Keys that exist but are encrypted
}

// Address returns the host:port string for dialing.
func (s *Settings) Address() string {
	return net.JoinHostPort(s.Hostname, s.Port)
}

// Resolve computes the effective connection parameters for opts. A malformed
// alias file is reported through opts.Logger and otherwise ignored.
func Resolve(opts ConnectOptions) *Settings {
	log := logger.OrDefault(opts.Logger)
	settings := &Settings{
		Port: "22",
		User: currentUser(),
	}

	host := opts.Host
	hostUser := ""
	if atIdx := strings.LastIndex(host, "@"); atIdx != -1 {
		hostUser = host[:atIdx]
		host = host[atIdx+1:]
	}

	hostPort := ""
	if colonIdx := strings.LastIndex(host, ":"); colonIdx != -1 {
		potentialPort := host[colonIdx+1:]
		if _, err := strconv.Atoi(potentialPort); err == nil {
			hostPort = potentialPort
			host = host[:colonIdx]
		}
	}
	settings.Hostname = host

	if cfg, matchLine := loadAliases(configPath(opts.ConfigFile), log); cfg != nil {
		hostFound := false
		if hostname, _ := cfg.Get(host, "HostName"); hostname != "" {
			settings.Hostname = hostname
			hostFound = true
		}
		if port, _ := cfg.Get(host, "Port"); port != "" {
			settings.Port = port
			hostFound = true
		}
		if user, _ := cfg.Get(host, "User"); user != "" {
			settings.User = user
			hostFound = true
		}
		if identity, _ := cfg.Get(host, "IdentityFile"); identity != "" {
			settings.IdentityFile = expandPath(identity)
			hostFound = true
		}

		// The host might be defined after a Match block we had to drop.
		if matchLine > 0 && !hostFound {
			matchWarningOnce.Do(func() {
				log.Warn("Host '%s' not found in SSH config (config has a Match block at line %d that may hide later entries)",
					host, matchLine)
			})
		}
	}

	if hostUser != "" {
		settings.User = hostUser
	}
	if hostPort != "" {
		settings.Port = hostPort
	}
	if opts.User != "" {
		settings.User = opts.User
	}
	if opts.Port > 0 {
		settings.Port = strconv.Itoa(opts.Port)
	}
	if opts.IdentityFile != "" {
		settings.IdentityFile = expandPath(opts.IdentityFile)
	}

	return settings
}

// loadAliases decodes the alias file. A missing file yields nil silently; a
// malformed one yields nil and a warning.
func loadAliases(path string, log logger.Logger) (*ssh_config.Config, int) {
	content, matchLine, err := preprocessSSHConfig(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("Can't read SSH config %s: %v", path, err)
		}
		return nil, 0
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		log.Warn("Ignoring malformed SSH config %s: %v", path, err)
		return nil, 0
	}
	return cfg, matchLine
}

// buildSSHConfig creates an SSH client config with authentication methods.
// It also populates settings.encryptedKeys with any keys that exist but are encrypted.
func buildSSHConfig(settings *Settings, opts ConnectOptions) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	// An explicit password goes first so a full agent can't exhaust the
	// server's MaxAuthTries before it is offered.
	if opts.Password != "" {
		authMethods = append(authMethods, ssh.Password(opts.Password), passwordChallenge(opts.Password))
	}

	tryKeyFile := func(keyPath string) {
		keyAuth, err := keyFileAuth(keyPath)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				settings.encryptedKeys = append(settings.encryptedKeys, keyPath)
			}
			return
		}
		authMethods = append(authMethods, keyAuth)
	}

	if agentAuth := sshAgentAuth(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	if settings.IdentityFile != "" {
		tryKeyFile(settings.IdentityFile)
	}

	for _, keyPath := range defaultKeyFiles() {
		if keyPath == settings.IdentityFile {
			continue
		}
		tryKeyFile(keyPath)
	}

	if len(authMethods) == 0 {
		msg := "No SSH auth methods available"
		suggestion := "Load a key with ssh-add, or pass --password / --ask-password"

		if len(settings.encryptedKeys) > 0 {
			msg = fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(settings.encryptedKeys, ", "))
			suggestion = addKeysSuggestion("Add your key(s) to the agent:\n", settings.encryptedKeys)
		}

		return nil, errors.New(errors.ErrSSH, msg, suggestion)
	}

	hostKeyCallback, err := hostKeyCallbackFor(opts)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &ssh.ClientConfig{
		User:            settings.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

// passwordChallenge answers every keyboard-interactive question with the
// password, which is what servers with PasswordAuthentication disabled but
// PAM enabled expect.
func passwordChallenge(password string) ssh.AuthMethod {
	return ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = password
		}
		return answers, nil
	})
}

// agentConn holds the reusable SSH agent connection.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method using the SSH agent if available.
// The agent connection is reused across multiple SSH connections.
// Returns nil if the agent has no keys loaded.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	// An empty agent causes auth failures when placed before other methods.
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the SSH agent connection if one is open.
// This should be called when the application is shutting down.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// keyFileAuth returns an auth method using a private key file.
// Returns EncryptedKeyError if the key requires a passphrase.
func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

func defaultKeyFiles() []string {
	return []string{
		filepath.Join(homeDir(), ".ssh", "id_ed25519"),
		filepath.Join(homeDir(), ".ssh", "id_rsa"),
		filepath.Join(homeDir(), ".ssh", "id_ecdsa"),
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func configPath(path string) string {
	if path == "" {
		return filepath.Join(homeDir(), ".ssh", "config")
	}
	return expandPath(path)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func addKeysSuggestion(header string, keys []string) string {
	var sb strings.Builder
	sb.WriteString(header)
	for _, key := range keys {
		if runtime.GOOS == "darwin" {
			sb.WriteString(fmt.Sprintf("  ssh-add --apple-use-keychain %s\n", key))
		} else {
			sb.WriteString(fmt.Sprintf("  ssh-add %s\n", key))
		}
	}
	sb.WriteString("\nNot sure which key? Check with: ssh -v <host>")
	return sb.String()
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Try: ssh <host>"
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "no such host") {
		return "The name didn't resolve. Check the spelling or add an alias to ~/.ssh/config."
	}
	if strings.Contains(errStr, "timeout") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error, encryptedKeys []string, triedPassword bool) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		if len(encryptedKeys) > 0 {
			return addKeysSuggestion("Your key(s) are encrypted. Add them to the agent:\n", encryptedKeys)
		}
		if triedPassword {
			return "Auth failed. Check the user name and password."
		}
		return "Auth failed. Check your keys are loaded (ssh-add -l) or pass --ask-password."
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// kevinburke/ssh_config doesn't support Match, so everything after it is dropped.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}
