package cli

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/rileyhilliard/bashkernel/internal/config"
	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/internal/logger"
	"github.com/rileyhilliard/bashkernel/internal/ui"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "bashkernel",
	Short: "Interactive bash kernel with SSH sessions",
	Long: `bashkernel runs a persistent local bash shell and feeds it one submission
at a time. Shell state (variables, cwd, functions) survives between
submissions.

Session-control verbs switch where submissions run:
  connect <host> [--user U] [--password P] [--port N] [--identity-file F]
  disconnect
  status
  hosts

While connected, each submission runs on the remote host over SSH.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			os.Setenv(logger.DebugEnv, "1")
		}
		if noColor {
			ui.DisableColors()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return replCommand(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./"+config.ConfigFileName+" or ~/.config/bashkernel/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command and exits with a non-zero status on failure.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if _, isExit := errors.GetExitCode(err); !isExit {
		fmt.Fprintln(os.Stderr, err.Error())
	}
	os.Exit(exitStatus(err))
}

// exitStatus maps a command error to a process exit status.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *errors.ExitError
	if stderrors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}

// loadConfig finds, loads, and validates the config. Color output follows
// output.color unless --no-color was given.
func loadConfig() (*config.Config, error) {
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if path != "" {
		logger.Default().Debug("loaded config from %s", path)
	}

	if !noColor {
		if err := ui.SetColorMode(cfg.Output.Color); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig, "Invalid output.color", "Use one of: auto, always, never")
		}
	}
	if cfg.SSH.HostKeyPolicy == config.HostKeyOff {
		ui.PrintWarning("ssh.host_key_policy is off; remote host keys are not verified")
	}
	return cfg, nil
}
