package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
const CurrentConfigVersion = 1

// Host key policies for SSHConfig.HostKeyPolicy.
const (
	// HostKeyAcceptNew records unknown hosts in known_hosts and rejects changed keys.
	HostKeyAcceptNew = "accept-new"
	// HostKeyStrict rejects hosts that are not already in known_hosts.
	HostKeyStrict = "strict"
	// HostKeyOff skips verification entirely.
	HostKeyOff = "off"
)

// Config represents the kernel configuration file.
type Config struct {
	Version   int             `yaml:"version" mapstructure:"version"`
	Shell     ShellConfig     `yaml:"shell" mapstructure:"shell"`
	Preflight PreflightConfig `yaml:"preflight" mapstructure:"preflight"`
	SSH       SSHConfig       `yaml:"ssh" mapstructure:"ssh"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
}

// ShellConfig controls the local prompt-synchronized shell.
type ShellConfig struct {
	// Path to the shell binary. Resolved through PATH when not absolute.
	Path string `yaml:"path" mapstructure:"path"`

	// Args passed to the shell. The defaults start bash without rc files or
	// line editing so the prompt is the only thing it prints between commands.
	Args []string `yaml:"args" mapstructure:"args"`

	// Prompt is exported as PS1; it must never appear in ordinary output.
	Prompt string `yaml:"prompt" mapstructure:"prompt"`

	// ContinuationPrompt is exported as PS2.
	ContinuationPrompt string `yaml:"continuation_prompt" mapstructure:"continuation_prompt"`

	// StatusCommand prints the exit status of the previous command.
	StatusCommand string `yaml:"status_command" mapstructure:"status_command"`
}

// PreflightConfig controls session-control verb matching.
type PreflightConfig struct {
	// Prefix is a leading character that marks a session-control verb
	// (e.g. "!"). Empty means verbs are matched bare.
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

// SSHConfig controls the remote backend.
type SSHConfig struct {
	// ConfigFile is the host-alias file. Defaults to ~/.ssh/config.
	ConfigFile string `yaml:"config_file" mapstructure:"config_file"`

	// KnownHostsFile stores host keys. Defaults to ~/.ssh/known_hosts.
	KnownHostsFile string `yaml:"known_hosts_file" mapstructure:"known_hosts_file"`

	// HostKeyPolicy is one of accept-new, strict, off.
	HostKeyPolicy string `yaml:"host_key_policy" mapstructure:"host_key_policy"`

	// ConnectTimeout bounds the TCP dial and SSH handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
}

// OutputConfig controls REPL rendering.
type OutputConfig struct {
	// Color mode: "auto", "always", or "never".
	Color string `yaml:"color" mapstructure:"color"`
}

// Default prompt strings. They only need to be unlikely in real output.
const (
	DefaultPrompt             = "[BASHKERNEL_PROMPT>"
	DefaultContinuationPrompt = "[BASHKERNEL_PROMPT+"
	DefaultStatusCommand      = "echo $?"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Shell: ShellConfig{
			Path:               "bash",
			Args:               []string{"--noprofile", "--norc", "--noediting", "-i"},
			Prompt:             DefaultPrompt,
			ContinuationPrompt: DefaultContinuationPrompt,
			StatusCommand:      DefaultStatusCommand,
		},
		SSH: SSHConfig{
			ConfigFile:     "~/.ssh/config",
			KnownHostsFile: "~/.ssh/known_hosts",
			HostKeyPolicy:  HostKeyAcceptNew,
			ConnectTimeout: 10 * time.Second,
		},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}

// MarshalYAML writes the timeout in duration notation ("10s") rather than
// nanoseconds.
func (s SSHConfig) MarshalYAML() (interface{}, error) {
	return struct {
		ConfigFile     string `yaml:"config_file"`
		KnownHostsFile string `yaml:"known_hosts_file"`
		HostKeyPolicy  string `yaml:"host_key_policy"`
		ConnectTimeout string `yaml:"connect_timeout"`
	}{s.ConfigFile, s.KnownHostsFile, s.HostKeyPolicy, s.ConnectTimeout.String()}, nil
}
