package doctor

import (
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/bashkernel/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestSSHKeyCheck(t *testing.T) {
	home := t.TempDir()
	assert.Equal(t, StatusWarn, (&SSHKeyCheck{Home: home}).Run().Status)

	writeFile(t, filepath.Join(home, ".ssh", "id_rsa"), "key", 0o600)
	result := (&SSHKeyCheck{Home: home}).Run()
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "id_rsa")
}

func TestSSHKeyPermissionsCheck(t *testing.T) {
	home := t.TempDir()
	result := (&SSHKeyPermissionsCheck{Home: home}).Run()
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "No private keys to check", result.Message)

	writeFile(t, filepath.Join(home, ".ssh", "id_ed25519"), "key", 0o644)
	result = (&SSHKeyPermissionsCheck{Home: home}).Run()
	assert.Equal(t, StatusWarn, result.Status)
	assert.Contains(t, result.Message, "id_ed25519")
}

func TestSSHAgentCheck_NoSocket(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	assert.Equal(t, StatusWarn, (&SSHAgentCheck{}).Run().Status)

	t.Setenv("SSH_AUTH_SOCK", filepath.Join(t.TempDir(), "missing.sock"))
	assert.Equal(t, StatusFail, (&SSHAgentCheck{}).Run().Status)
}

func TestSSHConfigCheck(t *testing.T) {
	dir := t.TempDir()

	result := (&SSHConfigCheck{Path: filepath.Join(dir, "none")}).Run()
	assert.Equal(t, StatusPass, result.Status)

	path := writeFile(t, filepath.Join(dir, "config"), "Host a\n  HostName 1.2.3.4\nHost b\n  HostName 5.6.7.8\n", 0o600)
	result = (&SSHConfigCheck{Path: path}).Run()
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "2 host aliases")
}

func TestKnownHostsCheck(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "known_hosts")

	tests := []struct {
		name   string
		path   string
		policy string
		want   CheckStatus
	}{
		{"off warns", missing, config.HostKeyOff, StatusWarn},
		{"missing with accept-new", missing, config.HostKeyAcceptNew, StatusPass},
		{"missing with strict", missing, config.HostKeyStrict, StatusFail},
		{"present", writeFile(t, filepath.Join(dir, "present"), "", 0o600), config.HostKeyStrict, StatusPass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := (&KnownHostsCheck{Path: tt.path, Policy: tt.policy}).Run()
			assert.Equal(t, tt.want, result.Status, result.Message)
		})
	}
}
