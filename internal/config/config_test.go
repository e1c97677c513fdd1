package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, "bash", cfg.Shell.Path)
	assert.Contains(t, cfg.Shell.Args, "--noediting")
	assert.Equal(t, DefaultPrompt, cfg.Shell.Prompt)
	assert.Equal(t, DefaultStatusCommand, cfg.Shell.StatusCommand)
	assert.Empty(t, cfg.Preflight.Prefix)
	assert.Equal(t, HostKeyAcceptNew, cfg.SSH.HostKeyPolicy)
	assert.Equal(t, 10*time.Second, cfg.SSH.ConnectTimeout)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ConfigFileName, `
version: 1
preflight:
  prefix: "!"
ssh:
  connect_timeout: 3s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "!", cfg.Preflight.Prefix)
	assert.Equal(t, 3*time.Second, cfg.SSH.ConnectTimeout)
	assert.Equal(t, DefaultPrompt, cfg.Shell.Prompt)
	assert.Equal(t, HostKeyAcceptNew, cfg.SSH.HostKeyPolicy)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompt, cfg.Shell.Prompt)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BASHKERNEL_SSH_HOST_KEY_POLICY", HostKeyStrict)
	t.Setenv("BASHKERNEL_SHELL_PATH", "/usr/local/bin/bash")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, HostKeyStrict, cfg.SSH.HostKeyPolicy)
	assert.Equal(t, "/usr/local/bin/bash", cfg.Shell.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "shell: [unterminated\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoad_ExpandsPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeFile(t, t.TempDir(), "c.yaml", "ssh:\n  config_file: ~/custom/ssh_config\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "custom", "ssh_config"), cfg.SSH.ConfigFile)
}

func TestFind(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "x.yaml", "version: 1\n")
		found, err := Find(path)
		require.NoError(t, err)
		assert.Equal(t, path, found)
	})

	t.Run("explicit path missing", func(t *testing.T) {
		_, err := Find(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
	})

	t.Run("current directory", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ConfigFileName, "version: 1\n")
		t.Chdir(dir)
		t.Setenv("HOME", t.TempDir())

		found, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, ConfigFileName, filepath.Base(found))
	})

	t.Run("global config", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		t.Chdir(t.TempDir())
		require.NoError(t, os.MkdirAll(filepath.Join(home, GlobalConfigDir), 0o755))
		writeFile(t, filepath.Join(home, GlobalConfigDir), GlobalConfigFile, "version: 1\n")

		found, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, GlobalConfigDir, GlobalConfigFile), found)
	})

	t.Run("nothing found", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		t.Chdir(t.TempDir())

		found, err := Find("")
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, path, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, DefaultPrompt, cfg.Shell.Prompt)
}
