package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/internal/kernel"
	"github.com/rileyhilliard/bashkernel/internal/output"
	"github.com/spf13/cobra"
)

var runFlags SubmissionFlags

var runCmd = &cobra.Command{
	Use:   "run <code>...",
	Short: "Run each argument as one submission",
	Long: `Start a kernel, run each argument as a separate submission, then exit.
Shell state carries over between arguments, and session-control verbs work
the same as in the REPL.

Stops at the first failing submission unless --keep-going is set. Exits 1
if any submission failed.

Examples:
  bashkernel run 'cd /tmp' 'pwd'
  bashkernel run 'connect devbox' 'uname -a' 'disconnect'
  bashkernel run --timeout 10s --json 'make test'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := runFlags.Options()
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		sess := newSession(cfg, false)
		if err := sess.Startup(); err != nil {
			return err
		}
		defer sess.Shutdown()

		if runFlags.JSON {
			return RunSubmissionsJSON(cmd.Context(), sess, args, os.Stdout, opts)
		}
		return RunSubmissions(cmd.Context(), sess, args, os.Stdout, opts)
	},
}

func init() {
	AddSubmissionFlags(runCmd, &runFlags)
	rootCmd.AddCommand(runCmd)
}

// RunOptions controls RunSubmissions.
type RunOptions struct {
	KeepGoing bool
	// Timeout interrupts a submission that runs longer. Zero means no limit.
	Timeout time.Duration
}

// submit runs one submission with SIGINT trapped and the timeout applied.
func submit(ctx context.Context, sess *kernel.Session, text string, emit output.Emit, opts RunOptions) kernel.Outcome {
	runCtx, stop := sess.Interrupts().NotifyContext(ctx)
	defer stop()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, opts.Timeout)
		defer cancel()
	}
	return sess.Submit(runCtx, text, emit)
}

// stopAfter reports whether a failed outcome ends the run.
func stopAfter(outcome kernel.Outcome, opts RunOptions) bool {
	return !opts.KeepGoing || errors.IsInterrupted(outcome.Err)
}

// RunSubmissions runs each submission in order, rendering to w. It returns
// an ExitError with status 1 if any submission failed; the failure itself
// has already been rendered.
func RunSubmissions(ctx context.Context, sess *kernel.Session, submissions []string, w io.Writer, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	renderer := output.NewRenderer(w)

	failed := false
	for _, text := range submissions {
		outcome := submit(ctx, sess, text, renderer.Emit, opts)

		renderer.Finish()
		if outcome.OK() {
			continue
		}

		renderer.Failure(outcome.Message)
		failed = true
		if stopAfter(outcome, opts) {
			break
		}
	}

	if failed {
		return errors.NewExitError(1)
	}
	return nil
}

// RunSubmissionsJSON is RunSubmissions with the frames and outcome of each
// submission written as one JSON envelope.
func RunSubmissionsJSON(ctx context.Context, sess *kernel.Session, submissions []string, w io.Writer, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]SubmissionJSON, 0, len(submissions))
	failed := false
	for _, text := range submissions {
		var collected output.Collector
		outcome := submit(ctx, sess, text, collected.Emit, opts)

		result := SubmissionJSON{Code: text, Frames: make([]FrameJSON, 0, len(collected.Frames))}
		for _, f := range collected.Frames {
			result.Frames = append(result.Frames, frameToJSON(f))
		}
		result.Error = ErrorToJSON(outcome.Err)
		results = append(results, result)

		if !outcome.OK() {
			failed = true
			if stopAfter(outcome, opts) {
				break
			}
		}
	}

	if err := writeJSONEnvelope(w, JSONEnvelope{Success: !failed, Data: results}); err != nil {
		return err
	}
	if failed {
		return errors.NewExitError(1)
	}
	return nil
}
