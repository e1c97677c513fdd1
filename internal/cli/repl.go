package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/bashkernel/internal/config"
	"github.com/rileyhilliard/bashkernel/internal/kernel"
	"github.com/rileyhilliard/bashkernel/internal/logger"
	"github.com/rileyhilliard/bashkernel/internal/output"
	"github.com/rileyhilliard/bashkernel/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive kernel (default)",
	Long: `Read submissions from stdin, one per line, and run them in a persistent
bash shell. A line ending in a backslash continues on the next line.

Ctrl+C interrupts the running submission without stopping the kernel.
Ctrl+D exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return replCommand(cmd)
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func replCommand(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	sess := newSession(cfg, interactive)
	if err := sess.Startup(); err != nil {
		return err
	}
	defer sess.Shutdown()

	return Repl(cmd.Context(), sess, ReplOptions{
		In:          os.Stdin,
		Out:         os.Stdout,
		Interactive: interactive,
	})
}

// newSession builds a kernel session. Interactive sessions get a password
// prompt and a connect spinner on stderr.
func newSession(cfg *config.Config, interactive bool) *kernel.Session {
	opts := kernel.Options{
		Config: cfg,
		Logger: logger.NewEnvLogger("[bashkernel]"),
	}
	if interactive {
		opts.PasswordPrompt = promptPassword
		opts.ConnectProgress = func(host string) func(error) {
			spinner := ui.NewSpinner(os.Stderr, "Connecting to "+host)
			spinner.Start()
			return func(err error) {
				if err != nil {
					spinner.Fail()
					return
				}
				spinner.Success()
			}
		}
	}
	return kernel.New(opts)
}

func promptPassword(ctx context.Context, prompt string) (string, error) {
	var password string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(prompt).
				EchoMode(huh.EchoModePassword).
				Value(&password),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return "", err
	}
	return password, nil
}

// ReplOptions configures Repl.
type ReplOptions struct {
	In  io.Reader
	Out io.Writer
	// Interactive prints a prompt before each submission.
	Interactive bool
}

// Repl reads submissions from opts.In until EOF and renders each outcome to
// opts.Out. SIGINT cancels the running submission; between submissions it
// is swallowed.
func Repl(ctx context.Context, sess *kernel.Session, opts ReplOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var busy atomic.Bool
	idle := make(chan os.Signal, 1)
	signal.Notify(idle, os.Interrupt)
	defer signal.Stop(idle)
	go func() {
		for range idle {
			if !busy.Load() && opts.Interactive {
				fmt.Fprintln(opts.Out, "\n(use Ctrl+D to exit)")
				fmt.Fprint(opts.Out, promptFor(sess))
			}
		}
	}()

	renderer := output.NewRenderer(opts.Out)
	scanner := bufio.NewScanner(opts.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if opts.Interactive {
			fmt.Fprint(opts.Out, promptFor(sess))
		}

		text, ok := readSubmission(scanner)
		if !ok {
			if opts.Interactive {
				fmt.Fprintln(opts.Out)
			}
			return scanner.Err()
		}

		busy.Store(true)
		runCtx, stop := sess.Interrupts().NotifyContext(ctx)
		outcome := sess.Submit(runCtx, text, renderer.Emit)
		stop()
		busy.Store(false)

		renderer.Finish()
		if !outcome.OK() {
			renderer.Failure(outcome.Message)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// readSubmission returns the next submission. Lines ending in a backslash
// are joined with the following line, keeping the backslash so bash sees
// the continuation.
func readSubmission(scanner *bufio.Scanner) (string, bool) {
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if !strings.HasSuffix(line, "\\") {
			return strings.Join(lines, "\n"), true
		}
	}
	if len(lines) > 0 {
		return strings.Join(lines, "\n"), true
	}
	return "", false
}

func promptFor(sess *kernel.Session) string {
	if sess.State() == kernel.RemoteActive {
		return ui.InfoStyle().Render(ui.SymbolRemote+" "+sess.Remote().Host()) + "$ "
	}
	return ui.MutedStyle().Render("bashkernel") + "$ "
}
