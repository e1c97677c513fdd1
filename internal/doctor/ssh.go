package doctor

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/bashkernel/internal/config"
	"github.com/rileyhilliard/bashkernel/pkg/sshutil"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// keyNames are the private keys tried by default, in order of preference.
var keyNames = []string{"id_ed25519", "id_rsa", "id_ecdsa"}

// SSHKeyCheck verifies an SSH key exists.
type SSHKeyCheck struct {
	Home string // empty means the user's home directory
}

func (c *SSHKeyCheck) Name() string     { return "ssh_key" }
func (c *SSHKeyCheck) Category() string { return CategorySSH }

func (c *SSHKeyCheck) Run() CheckResult {
	home, err := homeOr(c.Home)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Cannot determine home directory",
			Suggestion: "Check HOME environment variable",
		}
	}

	for _, name := range keyNames {
		if _, err := os.Stat(filepath.Join(home, ".ssh", name)); err == nil {
			return CheckResult{
				Name:    c.Name(),
				Status:  StatusPass,
				Message: fmt.Sprintf("SSH key found: ~/.ssh/%s", name),
			}
		}
	}

	return CheckResult{
		Name:       c.Name(),
		Status:     StatusWarn,
		Message:    "No SSH key found",
		Suggestion: "Generate a key with: ssh-keygen -t ed25519, or connect with --password",
	}
}

// SSHAgentCheck verifies the SSH agent is reachable and counts its keys.
type SSHAgentCheck struct{}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return CategorySSH }

func (c *SSHAgentCheck) Run() CheckResult {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent not running",
			Suggestion: "Fix: eval $(ssh-agent) && ssh-add",
		}
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "SSH agent socket not accessible",
			Suggestion: "Fix: eval $(ssh-agent) && ssh-add",
		}
	}
	defer conn.Close()

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Cannot query SSH agent",
			Suggestion: "Check SSH agent: ssh-add -l",
		}
	}
	if len(keys) == 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent running but no keys loaded",
			Suggestion: "Add a key with: ssh-add",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("SSH agent running with %d key%s loaded", len(keys), pluralize(len(keys))),
	}
}

// SSHKeyPermissionsCheck verifies private keys are not readable by others.
type SSHKeyPermissionsCheck struct {
	Home string
}

func (c *SSHKeyPermissionsCheck) Name() string     { return "ssh_key_permissions" }
func (c *SSHKeyPermissionsCheck) Category() string { return CategorySSH }

func (c *SSHKeyPermissionsCheck) Run() CheckResult {
	home, err := homeOr(c.Home)
	if err != nil {
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "Skipped: no home directory"}
	}

	var badPerms []string
	foundKey := false
	for _, name := range keyNames {
		info, err := os.Stat(filepath.Join(home, ".ssh", name))
		if err != nil {
			continue
		}
		foundKey = true
		if info.Mode().Perm()&0o077 != 0 {
			badPerms = append(badPerms, name)
		}
	}

	if !foundKey {
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "No private keys to check"}
	}
	if len(badPerms) > 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Insecure permissions on: %v", badPerms),
			Suggestion: "Fix: chmod 600 ~/.ssh/<keyfile>",
		}
	}

	return CheckResult{Name: c.Name(), Status: StatusPass, Message: "SSH key permissions OK"}
}

// SSHConfigCheck parses the host-alias file.
type SSHConfigCheck struct {
	Path string
}

func (c *SSHConfigCheck) Name() string     { return "ssh_config" }
func (c *SSHConfigCheck) Category() string { return CategorySSH }

func (c *SSHConfigCheck) Run() CheckResult {
	if _, err := os.Stat(c.Path); os.IsNotExist(err) {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "No SSH config file; hosts must be given in full",
		}
	}

	entries, err := sshutil.ParseSSHConfigFile(c.Path)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Could not parse %s; aliases will be ignored", c.Path),
			Suggestion: err.Error(),
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%d host alias%s in %s", len(entries), pluralizeES(len(entries)), c.Path),
	}
}

// KnownHostsCheck verifies the host key store can be used with the
// configured policy.
type KnownHostsCheck struct {
	Path   string
	Policy string
}

func (c *KnownHostsCheck) Name() string     { return "known_hosts" }
func (c *KnownHostsCheck) Category() string { return CategorySSH }

func (c *KnownHostsCheck) Run() CheckResult {
	if c.Policy == config.HostKeyOff {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "Host key verification is off",
			Suggestion: "Set ssh.host_key_policy to accept-new or strict",
		}
	}

	if _, err := os.Stat(c.Path); os.IsNotExist(err) {
		if c.Policy == config.HostKeyStrict {
			return CheckResult{
				Name:       c.Name(),
				Status:     StatusFail,
				Message:    fmt.Sprintf("%s does not exist and host_key_policy is strict", c.Path),
				Suggestion: "Connect once with ssh, or set ssh.host_key_policy to accept-new",
			}
		}
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: fmt.Sprintf("%s will be created on first connect", c.Path),
		}
	}

	if _, err := knownhosts.New(c.Path); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Cannot read %s", c.Path),
			Suggestion: err.Error(),
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Known hosts: %s (%s)", c.Path, c.Policy),
	}
}

// NewSSHChecks creates all SSH-related checks.
func NewSSHChecks(cfg config.SSHConfig) []Check {
	return []Check{
		&SSHKeyCheck{},
		&SSHAgentCheck{},
		&SSHKeyPermissionsCheck{},
		&SSHConfigCheck{Path: cfg.ConfigFile},
		&KnownHostsCheck{Path: cfg.KnownHostsFile, Policy: cfg.HostKeyPolicy},
	}
}

func homeOr(home string) (string, error) {
	if home != "" {
		return home, nil
	}
	return os.UserHomeDir()
}

func pluralizeES(n int) string {
	if n == 1 {
		return ""
	}
	return "es"
}
