package cli

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/spf13/cobra"
)

// SubmissionFlags holds the flags shared by commands that execute code.
type SubmissionFlags struct {
	KeepGoing bool
	JSON      bool
	Timeout   string
}

// AddSubmissionFlags registers --keep-going, --json, and --timeout on a command.
func AddSubmissionFlags(cmd *cobra.Command, flags *SubmissionFlags) {
	cmd.Flags().BoolVar(&flags.KeepGoing, "keep-going", false, "run remaining submissions after a failure")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print frames and outcomes as JSON")
	cmd.Flags().StringVar(&flags.Timeout, "timeout", "", "interrupt each submission after this long (e.g., 30s, 5m)")
}

// Options converts the flags into RunOptions.
func (f SubmissionFlags) Options() (RunOptions, error) {
	timeout, err := ParseTimeout(f.Timeout)
	if err != nil {
		return RunOptions{}, err
	}
	return RunOptions{KeepGoing: f.KeepGoing, Timeout: timeout}, nil
}

// ParseTimeout parses a timeout string into a duration.
// Returns zero duration if the flag is empty.
func ParseTimeout(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	duration, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid timeout", flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	if duration <= 0 {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("Timeout must be positive, got %s", flag),
			"Omit --timeout to wait indefinitely.")
	}
	return duration, nil
}
