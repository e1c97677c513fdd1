package kernel

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/internal/output"
)

// Outcome is the terminal result of one submission. A zero Outcome is
// success. Frames already emitted are never retracted.
type Outcome struct {
	Err error
	// Message describes the failure for display.
	Message string
	// PartialOutput is the text emitted before the failure was detected.
	PartialOutput string
}

// OK reports whether the submission succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// ExitCode returns the command's exit status when the failure carries one.
func (o Outcome) ExitCode() (int, bool) {
	return errors.GetExitCode(o.Err)
}

// Submit runs one submission: a pre-flight verb if text names one,
// otherwise the remote backend when connected, otherwise the local shell.
// Frames go to emit as they are produced.
func (s *Session) Submit(ctx context.Context, text string, emit output.Emit) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	var partial strings.Builder
	tee := func(f output.Frame) {
		if f.IsText() {
			partial.WriteString(f.String())
		}
		emit(f)
	}

	err := s.dispatch(ctx, text, tee)
	if err == nil {
		return Outcome{}
	}

	if errors.IsInterrupted(err) {
		s.log.Debug("submission interrupted")
	} else if _, isExit := errors.GetExitCode(err); !isExit {
		s.log.Debug("submission failed: %v", err)
	}

	return Outcome{
		Err:           err,
		Message:       Describe(err),
		PartialOutput: partial.String(),
	}
}

func (s *Session) dispatch(ctx context.Context, text string, emit output.Emit) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if matched, err := s.router.Dispatch(ctx, text, emit); matched {
		return err
	}

	if s.remote.Active() {
		return s.runRemote(ctx, text, emit)
	}

	sh, err := s.localShell()
	if err != nil {
		return err
	}
	return sh.Run(ctx, text, emit)
}

// runRemote applies the remote caller policy: stdout, then stderr, each only
// if it has visible content, then the exit status.
func (s *Session) runRemote(ctx context.Context, text string, emit output.Emit) error {
	result, err := s.remote.Execute(ctx, text)

	if strings.TrimSpace(result.Stdout) != "" {
		emit(output.Text(result.Stdout))
	}
	if strings.TrimSpace(result.Stderr) != "" {
		emit(output.Text(result.Stderr))
	}

	if err != nil {
		return err
	}
	if result.ExitStatus != 0 {
		return errors.NewExitError(result.ExitStatus)
	}
	return nil
}

// Describe renders err for the transport. Usage failures end with the verb's
// usage text exactly as registered.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var structured *errors.Error
	if stderrors.As(err, &structured) {
		switch structured.Code {
		case errors.ErrUsage:
			if structured.Suggestion == "" {
				return structured.Message
			}
			return structured.Message + "\n" + structured.Suggestion
		case errors.ErrInterrupted:
			return structured.Message
		}
		return strings.TrimRight(structured.Error(), "\n")
	}

	return err.Error()
}
