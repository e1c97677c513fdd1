// Package ui provides the terminal styling used by the bashkernel REPL.
//
// Colors are ANSI codes rendered through Lip Gloss; SetColorMode wires the
// output.color setting to a termenv profile. The package also carries a
// small Spinner for blocking session-control commands and RenderTable, which
// turns text/csv frames into a Bubbles table view.
package ui
