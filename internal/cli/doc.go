// Package cli implements the bashkernel command-line interface.
//
// The root command runs the REPL: a line-oriented transport that feeds each
// submission to a kernel.Session and renders the frames it emits. Other
// commands cover one-shot execution and housekeeping:
//
//	bashkernel                  - interactive REPL (same as "bashkernel repl")
//	bashkernel run <code>...    - run each argument as one submission
//	bashkernel hosts            - list SSH config aliases
//	bashkernel config init|set|show|path
//	bashkernel version
//
// # Flag Handling
//
// Global flags (--config, --verbose, --no-color) are defined on the root
// command. --verbose sets BASHKERNEL_DEBUG so every component logger starts
// printing debug lines.
//
// # Exit Status
//
// Commands that execute code exit with status 1 when a submission fails.
// Structured errors are printed to stderr in their rendered form.
package cli
