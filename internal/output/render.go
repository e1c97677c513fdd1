package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/bashkernel/internal/ui"
)

// Renderer writes frames to a line-oriented stream. It is the display side
// of the REPL transport; kernels only ever see it as an Emit.
type Renderer struct {
	w          io.Writer
	errorStyle lipgloss.Style
	mutedStyle lipgloss.Style

	// atLineStart tracks whether the last write ended with a newline so
	// that failure lines never get glued to unterminated output.
	atLineStart bool
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{
		w:           w,
		errorStyle:  ui.ErrorStyle(),
		mutedStyle:  ui.MutedStyle(),
		atLineStart: true,
	}
}

// Emit renders one frame. It satisfies the Emit signature.
func (r *Renderer) Emit(f Frame) {
	switch f.MediaType {
	case MediaText, "":
		r.writeText(f.String())
	case MediaCSV:
		rows, ok := f.Payload.([][]string)
		if !ok {
			r.writeText(f.String())
			return
		}
		r.ensureNewline()
		r.writeText(ui.RenderTable(rows) + "\n")
	default:
		r.ensureNewline()
		r.writeText(r.mutedStyle.Render(fmt.Sprintf("[%s]", f.MediaType)) + "\n")
		r.writeText(f.String())
	}
}

// Failure renders a terminal failure message.
func (r *Renderer) Failure(message string) {
	r.ensureNewline()
	message = strings.TrimRight(message, "\n")
	for _, line := range strings.Split(message, "\n") {
		if isErrorLine(line) {
			line = r.errorStyle.Render(line)
		}
		fmt.Fprintln(r.w, line)
	}
	r.atLineStart = true
}

// Finish terminates any unterminated output line.
func (r *Renderer) Finish() {
	r.ensureNewline()
}

func (r *Renderer) writeText(s string) {
	if s == "" {
		return
	}
	io.WriteString(r.w, s)
	r.atLineStart = strings.HasSuffix(s, "\n")
}

func (r *Renderer) ensureNewline() {
	if !r.atLineStart {
		io.WriteString(r.w, "\n")
		r.atLineStart = true
	}
}

// isErrorLine checks if a line should be highlighted as an error.
func isErrorLine(line string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(line))
	for _, prefix := range []string{ui.SymbolFail, "error:", "fatal:", "process returned"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
