package config

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/rileyhilliard/bashkernel/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but bashkernel only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade bashkernel or lower the version field")
	}

	if strings.TrimSpace(cfg.Shell.Path) == "" {
		return errors.New(errors.ErrConfig,
			"shell.path is empty",
			"Set shell.path to a bash binary, e.g. /bin/bash")
	}

	if err := validatePrompt("shell.prompt", cfg.Shell.Prompt); err != nil {
		return err
	}
	if err := validatePrompt("shell.continuation_prompt", cfg.Shell.ContinuationPrompt); err != nil {
		return err
	}
	if cfg.Shell.Prompt == cfg.Shell.ContinuationPrompt {
		return errors.New(errors.ErrConfig,
			"shell.prompt and shell.continuation_prompt are identical",
			"The kernel tells complete and incomplete commands apart by these prompts; make them differ")
	}
	if strings.HasPrefix(cfg.Shell.ContinuationPrompt, cfg.Shell.Prompt) ||
		strings.HasPrefix(cfg.Shell.Prompt, cfg.Shell.ContinuationPrompt) {
		return errors.New(errors.ErrConfig,
			"One shell prompt is a prefix of the other",
			"Pick prompts that differ in their leading characters")
	}

	if strings.TrimSpace(cfg.Shell.StatusCommand) == "" {
		return errors.New(errors.ErrConfig,
			"shell.status_command is empty",
			"Use the default: echo $?")
	}

	if p := cfg.Preflight.Prefix; p != "" {
		if len([]rune(p)) != 1 || unicode.IsSpace([]rune(p)[0]) || unicode.IsLetter([]rune(p)[0]) {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("preflight.prefix %q must be a single punctuation character", p),
				"Try '!' or '%', or leave it empty")
		}
	}

	switch cfg.SSH.HostKeyPolicy {
	case HostKeyAcceptNew, HostKeyStrict, HostKeyOff:
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown ssh.host_key_policy %q", cfg.SSH.HostKeyPolicy),
			"Use one of: accept-new, strict, off")
	}

	if cfg.SSH.ConnectTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			"ssh.connect_timeout must be positive",
			"Try something like 10s")
	}

	switch cfg.Output.Color {
	case "auto", "always", "never":
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown output.color %q", cfg.Output.Color),
			"Use one of: auto, always, never")
	}

	return nil
}

func validatePrompt(key, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New(errors.ErrConfig,
			key+" is empty",
			"Use a distinctive marker like "+DefaultPrompt)
	}
	if strings.ContainsAny(prompt, "\r\n") {
		return errors.New(errors.ErrConfig,
			key+" contains a line break",
			"Prompts must fit on one line")
	}
	return nil
}
