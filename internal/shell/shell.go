// Package shell runs commands against a long-lived interactive bash on a
// pseudo terminal. The shell offers no structured completion signal, so every
// exchange is synchronized on a prompt string that ordinary output never
// contains: write the command, read until the prompt comes back, then ask
// for $? as a second round trip.
package shell

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/rileyhilliard/bashkernel/internal/config"
	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/internal/logger"
	"github.com/rileyhilliard/bashkernel/internal/output"
)

const (
	// DefaultStartTimeout bounds how long a fresh shell may take to print
	// its first prompt.
	DefaultStartTimeout = 10 * time.Second

	// resyncTimeout bounds the prompt resynchronization after an interrupt.
	resyncTimeout = 5 * time.Second

	// syncMarker is echoed to find a known point in the output stream. The
	// command quotes the sequence number so the echoed input line never
	// matches the output.
	syncMarker = "BASHKERNEL_SYNC_"

	readBufferSize = 4096

	exitNotice = "exit\n"
)

// Options configures a Shell.
type Options struct {
	Path               string
	Args               []string
	Prompt             string
	ContinuationPrompt string
	StatusCommand      string

	// Env is appended to the inherited environment.
	Env          []string
	StartTimeout time.Duration

	Logger     logger.Logger
	Interrupts *InterruptController
}

// OptionsFromConfig builds Options from the shell section of the config.
func OptionsFromConfig(cfg config.ShellConfig) Options {
	return Options{
		Path:               cfg.Path,
		Args:               append([]string(nil), cfg.Args...),
		Prompt:             cfg.Prompt,
		ContinuationPrompt: cfg.ContinuationPrompt,
		StatusCommand:      cfg.StatusCommand,
	}
}

func (o *Options) applyDefaults() {
	d := config.DefaultConfig().Shell
	if o.Path == "" {
		o.Path = d.Path
	}
	if o.Args == nil {
		o.Args = d.Args
	}
	if o.Prompt == "" {
		o.Prompt = d.Prompt
	}
	if o.ContinuationPrompt == "" {
		o.ContinuationPrompt = d.ContinuationPrompt
	}
	if o.StatusCommand == "" {
		o.StatusCommand = d.StatusCommand
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = DefaultStartTimeout
	}
	o.Logger = logger.OrDefault(o.Logger)
	if o.Interrupts == nil {
		o.Interrupts = NewInterruptController(o.Logger)
	}
}

// Shell is a prompt-synchronized interactive bash. Run calls are serialized.
type Shell struct {
	opts Options
	log  logger.Logger

	mu      sync.Mutex
	proc    *process
	pending []byte
	syncSeq int
	// echo is set when the terminal still echoes input after startup, in
	// which case each output segment begins with the line that produced it.
	echo       bool
	lastOutput string
}

// process is one spawned bash and the goroutines attached to it.
type process struct {
	cmd    *exec.Cmd
	pty    *os.File
	chunks chan []byte   // closed at end of stream
	quit   chan struct{} // closed by kill to stop the reader
	exited chan struct{} // closed once cmd.Wait returns
}

// Start spawns a shell and waits for its first prompt.
func Start(opts Options) (*Shell, error) {
	opts.applyDefaults()
	s := &Shell{opts: opts, log: opts.Logger}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.spawnLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Shell) environ() []string {
	overrides := map[string]string{
		"PS1":            s.opts.Prompt,
		"PS2":            s.opts.ContinuationPrompt,
		"PROMPT_COMMAND": "",
		"TERM":           "dumb",
		"PAGER":          "cat",
		"HISTFILE":       "",
	}

	env := make([]string, 0, len(os.Environ())+len(overrides)+len(s.opts.Env))
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[name]; ok {
			continue
		}
		env = append(env, kv)
	}
	for name, value := range overrides {
		env = append(env, name+"="+value)
	}
	return append(env, s.opts.Env...)
}

// spawnLocked starts a new process and brings it to a synchronized prompt
// with terminal echo disabled.
func (s *Shell) spawnLocked() error {
	cmd := exec.Command(s.opts.Path, s.opts.Args...)
	cmd.Env = s.environ()

	var f *os.File
	err := s.opts.Interrupts.Spawn(func() error {
		var startErr error
		f, startErr = pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 200})
		return startErr
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrProcess,
			fmt.Sprintf("Failed to start %s", s.opts.Path),
			"Check shell.path in your config points at bash")
	}

	p := &process{
		cmd:    cmd,
		pty:    f,
		chunks: make(chan []byte, 64),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go p.pump()
	go func() {
		_ = cmd.Wait()
		close(p.exited)
	}()

	s.proc = p
	s.pending = nil
	s.log.Debug("started %s (pid %d)", s.opts.Path, cmd.Process.Pid)

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.StartTimeout)
	defer cancel()

	if err := s.handshake(ctx); err != nil {
		s.killLocked()
		return errors.WrapWithCode(err, errors.ErrProcess,
			"Shell never became ready",
			fmt.Sprintf("%s did not print its prompt within %s", s.opts.Path, s.opts.StartTimeout))
	}
	return nil
}

func (s *Shell) handshake(ctx context.Context) error {
	if _, _, err := s.readUntil(ctx, s.opts.Prompt); err != nil {
		return err
	}
	if err := s.write("stty -echo\n"); err != nil {
		return err
	}
	if _, _, err := s.readUntil(ctx, s.opts.Prompt); err != nil {
		return err
	}

	before, err := s.sync(ctx)
	if err != nil {
		return err
	}
	s.echo = strings.Contains(before, syncMarker)
	if s.echo {
		s.log.Warn("terminal echo could not be disabled; stripping echoed input instead")
	}
	return nil
}

// pump copies pty output to chunks until the pty reports end of stream. On
// Linux that arrives as EIO once the last slave descriptor closes.
func (p *process) pump() {
	defer close(p.chunks)
	buf := make([]byte, readBufferSize)
	for {
		n, err := p.pty.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case p.chunks <- chunk:
			case <-p.quit:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// readUntil consumes output until the earliest of patterns. It returns the
// text before the match and the index of the pattern that matched. At end of
// stream it returns everything buffered with io.EOF; when ctx is done it
// returns everything buffered with ctx.Err(). In both cases the buffer is
// consumed.
func (s *Shell) readUntil(ctx context.Context, patterns ...string) (string, int, error) {
	buf := s.pending
	s.pending = nil

	for {
		if idx, which := earliest(buf, patterns); idx >= 0 {
			s.pending = append([]byte(nil), buf[idx+len(patterns[which]):]...)
			return string(buf[:idx]), which, nil
		}

		select {
		case chunk, ok := <-s.proc.chunks:
			if !ok {
				return string(buf), -1, io.EOF
			}
			buf = append(buf, chunk...)
		case <-ctx.Done():
			return string(buf), -1, ctx.Err()
		}
	}
}

func earliest(buf []byte, patterns []string) (int, int) {
	best, which := -1, -1
	text := string(buf)
	for i, p := range patterns {
		if idx := strings.Index(text, p); idx >= 0 && (best < 0 || idx < best) {
			best, which = idx, i
		}
	}
	return best, which
}

// sync echoes a fresh marker and reads through it and the prompt after it,
// discarding anything stale in between. It returns the text that preceded
// the marker.
func (s *Shell) sync(ctx context.Context) (string, error) {
	s.syncSeq++
	if err := s.write(fmt.Sprintf("echo %s'%d'_\n", syncMarker, s.syncSeq)); err != nil {
		return "", err
	}
	before, _, err := s.readUntil(ctx, fmt.Sprintf("%s%d_", syncMarker, s.syncSeq))
	if err != nil {
		return before, err
	}
	if _, _, err := s.readUntil(ctx, s.opts.Prompt); err != nil {
		return before, err
	}
	return before, nil
}

func (s *Shell) write(text string) error {
	return s.writeRaw([]byte(text))
}

func (s *Shell) writeRaw(b []byte) error {
	if s.proc == nil {
		return stderrors.New("shell is not running")
	}
	_, err := s.proc.pty.Write(b)
	return err
}

// Run executes command and emits its output as a single text frame. It
// returns nil when the command exits 0, an *errors.ExitError for any other
// status, an INTERRUPTED error when ctx is cancelled, and a PROCESS error
// when the shell died (a fresh one is already running by then).
func (s *Shell) Run(ctx context.Context, command string, emit output.Emit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc == nil {
		return errors.New(errors.ErrProcess, "Shell is not running", "Restart the kernel")
	}

	code := strings.TrimRight(command, " \t\r\n")
	if strings.TrimSpace(code) == "" {
		return nil
	}
	lines := strings.Split(code, "\n")

	var out strings.Builder
	for i, line := range lines {
		if err := s.write(line + "\n"); err != nil {
			return s.terminated(emit, out.String())
		}

		before, which, err := s.readUntil(ctx, s.opts.Prompt, s.opts.ContinuationPrompt)
		out.WriteString(s.segment(before, line))
		s.lastOutput = out.String()

		switch {
		case stderrors.Is(err, io.EOF):
			return s.terminated(emit, out.String())
		case err != nil:
			return s.interrupted(emit, out.String(), err)
		case which == 1 && i == len(lines)-1:
			return s.incomplete(emit, out.String())
		}
	}

	if text := out.String(); text != "" {
		emit(output.Text(text))
	}

	status, raw, err := s.queryStatus(ctx)
	switch {
	case stderrors.Is(err, io.EOF):
		return s.terminated(emit, "")
	case err != nil:
		return s.interrupted(emit, "", err)
	}

	if status == 0 {
		return nil
	}
	if diag := diagnostic(raw, status); diag != "" {
		emit(output.Text(diag))
	}
	return errors.NewExitError(status)
}

// segment normalizes one read's worth of output.
func (s *Shell) segment(raw, line string) string {
	text := normalize(raw)
	if s.echo {
		text = strings.TrimPrefix(text, line+"\n")
	}
	return text
}

func (s *Shell) queryStatus(ctx context.Context) (int, string, error) {
	if err := s.write(s.opts.StatusCommand + "\n"); err != nil {
		return 0, "", io.EOF
	}
	before, _, err := s.readUntil(ctx, s.opts.Prompt)
	raw := s.segment(before, s.opts.StatusCommand)
	s.lastOutput = raw
	if err != nil {
		return 0, raw, err
	}
	return parseStatus(raw), raw, nil
}

// parseStatus reads the last non-blank line as an integer. Anything else
// counts as a failure with status 1.
func parseStatus(raw string) int {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	status, err := strconv.Atoi(strings.TrimSpace(lines[len(lines)-1]))
	if err != nil {
		return 1
	}
	return status
}

// diagnostic returns whatever the status round trip printed besides the
// status itself, such as job completion notices. Output that only repeats
// the status is suppressed.
func diagnostic(raw string, status int) string {
	trimmed := strings.TrimSpace(raw)
	code := strconv.Itoa(status)
	if !strings.HasSuffix(trimmed, code) {
		return raw
	}
	rest := strings.TrimSuffix(trimmed, code)
	if strings.TrimSpace(rest) == "" {
		return ""
	}
	return strings.TrimRight(rest, " \t")
}

func normalize(raw string) string {
	for strings.Contains(raw, "\r\n") {
		raw = strings.ReplaceAll(raw, "\r\n", "\n")
	}
	return raw
}

// interrupted emits partial output, interrupts the running job, and waits
// for the shell to come back to its prompt. The shell is only replaced if it
// does not come back.
func (s *Shell) interrupted(emit output.Emit, partial string, cause error) error {
	if partial != "" {
		emit(output.Text(partial))
	}

	if err := s.opts.Interrupts.Forward(s); err != nil {
		s.log.Debug("forwarding interrupt failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	if _, err := s.sync(ctx); err != nil {
		s.log.Warn("shell did not return to its prompt after an interrupt; starting a new one")
		s.killLocked()
		if err := s.spawnLocked(); err != nil {
			s.log.Error("restarting shell: %v", err)
		}
	}

	return errors.NewInterrupted(cause)
}

// incomplete handles input that left the shell waiting for more (an open
// quote or heredoc). The partial command is cancelled so the next
// submission starts at a fresh prompt.
func (s *Shell) incomplete(emit output.Emit, partial string) error {
	if partial != "" {
		emit(output.Text(partial))
	}

	_ = s.writeRaw([]byte{interruptChar})

	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()
	if _, err := s.sync(ctx); err != nil {
		s.killLocked()
		if err := s.spawnLocked(); err != nil {
			s.log.Error("restarting shell: %v", err)
		}
	}

	return errors.NewUsage("Incomplete input: the shell is waiting for more lines",
		"Close any open quotes, brackets, or heredocs and submit again")
}

// terminated emits partial output and replaces the dead process. When the
// shell exited with a non-zero status (exit 3) the returned error also
// carries that status as an *errors.ExitError.
func (s *Shell) terminated(emit output.Emit, partial string) error {
	partial = stripExitNotice(partial)
	if partial != "" {
		emit(output.Text(partial))
	}

	status := s.exitStatusLocked()
	s.log.Warn("shell process exited (status %d); starting a new one", status)
	s.killLocked()
	if err := s.spawnLocked(); err != nil {
		return errors.WrapWithCode(err, errors.ErrProcess,
			"Shell process terminated and could not be restarted",
			"Check shell.path in your config, then restart the kernel")
	}

	const restarted = "A fresh shell was started; variables and the working directory were reset"
	if status > 0 {
		return errors.WrapWithCode(errors.NewExitError(status), errors.ErrProcess,
			fmt.Sprintf("Shell exited with status %d", status), restarted)
	}
	return errors.New(errors.ErrProcess, "Shell process terminated unexpectedly", restarted)
}

// stripExitNotice drops the "exit" line an interactive bash prints when the
// exit builtin ends it.
func stripExitNotice(partial string) string {
	if partial == exitNotice {
		return ""
	}
	if strings.HasSuffix(partial, "\n"+exitNotice) {
		return strings.TrimSuffix(partial, exitNotice)
	}
	return partial
}

// exitStatusLocked waits briefly for the current process to be reaped and
// returns its exit code, or -1 if it was killed by a signal or is still
// running.
func (s *Shell) exitStatusLocked() int {
	p := s.proc
	if p == nil {
		return -1
	}
	select {
	case <-p.exited:
	case <-time.After(2 * time.Second):
		return -1
	}
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// LastOutput returns the text of the most recent synchronization read.
func (s *Shell) LastOutput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutput
}

// PID returns the shell's process id, or 0 if it is not running.
func (s *Shell) PID() int {
	p := s.proc
	if p == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Restart replaces the running process with a fresh one.
func (s *Shell) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killLocked()
	return s.spawnLocked()
}

// Close terminates the shell.
func (s *Shell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killLocked()
	return nil
}

// killLocked stops the current process, if any, and waits briefly for it
// to be reaped.
func (s *Shell) killLocked() {
	p := s.proc
	if p == nil {
		return
	}
	s.proc = nil
	s.pending = nil

	close(p.quit)
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.pty.Close()

	select {
	case <-p.exited:
	case <-time.After(2 * time.Second):
		s.log.Warn("shell pid %d did not exit after kill", p.cmd.Process.Pid)
	}
}
