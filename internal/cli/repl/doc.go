// Package repl provides interactive mode for Discovery CLI.
//
// This package implements the Read-Eval-Print Loop for interactive sessions:
//
//   - repl.go: Main REPL loop; lines are read and recorded in history,
//     but no command is executed
//   - completer.go: Prefix completion over a fixed command list
//   - history.go: Command history with file persistence
//
// Input is read one line at a time; output is not colored.
package repl
