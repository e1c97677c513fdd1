package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rileyhilliard/bashkernel/internal/config"
	"github.com/rileyhilliard/bashkernel/internal/logger"
	"github.com/rileyhilliard/bashkernel/internal/output"
	"github.com/rileyhilliard/bashkernel/internal/shell"
)

// ShellBinaryCheck verifies the configured shell can be found.
type ShellBinaryCheck struct {
	Path string
}

func (c *ShellBinaryCheck) Name() string     { return "shell_binary" }
func (c *ShellBinaryCheck) Category() string { return CategoryShell }

func (c *ShellBinaryCheck) Run() CheckResult {
	resolved, err := exec.LookPath(c.Path)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Shell not found: %s", c.Path),
			Suggestion: "Install bash or set shell.path in the config",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Shell: %s", resolved),
	}
}

// ShellHandshakeCheck starts the shell the way the kernel does and runs one
// command through it.
type ShellHandshakeCheck struct {
	Config  config.ShellConfig
	Timeout time.Duration
}

func (c *ShellHandshakeCheck) Name() string     { return "shell_handshake" }
func (c *ShellHandshakeCheck) Category() string { return CategoryShell }

func (c *ShellHandshakeCheck) Run() CheckResult {
	opts := shell.OptionsFromConfig(c.Config)
	opts.Logger = logger.Noop()
	if c.Timeout > 0 {
		opts.StartTimeout = c.Timeout
	}

	start := time.Now()
	sh, err := shell.Start(opts)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Shell did not reach its prompt",
			Suggestion: strings.TrimSpace(err.Error()),
		}
	}
	defer sh.Close()

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var out output.Collector
	if err := sh.Run(ctx, "echo bashkernel-ok", out.Emit); err != nil || out.Joined() != "bashkernel-ok\n" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Shell output is not prompt-synchronized",
			Suggestion: fmt.Sprintf("Got %q; check that shell.prompt does not appear in normal output", out.Joined()),
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Shell round trip OK (%s)", time.Since(start).Round(time.Millisecond)),
	}
}

// NewShellChecks creates the local shell checks. The handshake is skipped
// when the binary is missing.
func NewShellChecks(cfg config.ShellConfig) []Check {
	checks := []Check{&ShellBinaryCheck{Path: cfg.Path}}
	if _, err := exec.LookPath(cfg.Path); err == nil {
		checks = append(checks, &ShellHandshakeCheck{Config: cfg})
	}
	return checks
}
