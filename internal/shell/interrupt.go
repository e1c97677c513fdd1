package shell

import (
	"context"
	"os"
	"os/signal"

	"github.com/rileyhilliard/bashkernel/internal/logger"
)

// interruptChar is the terminal's VINTR character (^C).
const interruptChar = 0x03

// InterruptController keeps SIGINT pointed at the shell rather than the
// kernel. The kernel traps SIGINT per submission with NotifyContext; the
// trapped signal cancels the submission context, and the shell forwards it
// to its child with Forward.
type InterruptController struct {
	log logger.Logger
}

// NewInterruptController creates an InterruptController.
func NewInterruptController(log logger.Logger) *InterruptController {
	return &InterruptController{log: logger.OrDefault(log)}
}

// Spawn runs start with SIGINT at its default disposition. An ignored signal
// survives exec, so a kernel launched with SIGINT ignored (nohup, some
// notebook frontends) would otherwise hand a shell whose jobs can never be
// interrupted. The ignore is put back when start returns, whether or not it
// succeeded.
//
// signal.Reset cannot undo an ignore: the runtime keeps SIG_IGN as the
// handler it falls back to, even once signal.Ignored reports false. Catching
// the signal installs the Go handler instead, and exec resets caught signals
// to SIG_DFL in the child.
func (c *InterruptController) Spawn(start func() error) error {
	if signal.Ignored(os.Interrupt) {
		c.log.Debug("SIGINT is ignored; catching it for spawn so the child starts with the default")
		defer signal.Ignore(os.Interrupt)
	}

	caught := make(chan os.Signal, 1)
	signal.Notify(caught, os.Interrupt)
	defer signal.Stop(caught)

	return start()
}

// Forward interrupts whatever the shell is running. The ^C goes through the
// pty so the line discipline signals the foreground job; if the pty can't
// be written the shell process itself is signalled.
func (c *InterruptController) Forward(s *Shell) error {
	err := s.writeRaw([]byte{interruptChar})
	if err == nil {
		c.log.Debug("forwarded interrupt to shell pid %d via pty", s.PID())
		return nil
	}

	pid := s.PID()
	if pid <= 0 {
		return err
	}
	c.log.Debug("pty write failed (%v); signalling pid %d", err, pid)
	proc, findErr := os.FindProcess(pid)
	if findErr != nil {
		return findErr
	}
	return proc.Signal(os.Interrupt)
}

// NotifyContext returns a context cancelled by the next SIGINT. While it is
// live the kernel process is not terminated by SIGINT. Call stop to restore
// the previous behavior.
func (c *InterruptController) NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
