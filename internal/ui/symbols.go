package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Submission completed
	SymbolFail     = "✗" // Submission failed
	SymbolPending  = "○" // Not yet started
	SymbolComplete = "●" // Done (spinner final state)
	SymbolWarning  = "⚠" // Warning line
	SymbolRemote   = "⇄" // Remote backend marker in the REPL prompt
)
