// Package repl provides interactive mode for clustercomm CLI.
//
// This package implements the Read-Eval-Print Loop for interactive sessions:
//
//   - repl.go: Main REPL loop (reads one line at a time; entered commands
//     are recorded in history; they are not dispatched to command handlers)
//   - completer.go: Prefix completion over the known command names
//   - history.go: Command history persistence
//
// Features:
//
//   - Prefix-based command completion (Completer; not wired into the loop)
//   - In-memory history with index lookup, saved to and loaded from a file
//
// Input is line-oriented and output is plain text.
//
package repl
