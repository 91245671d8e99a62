// Package output provides output formatting for Discovery CLI.
//
// This package handles all CLI output formatting:
//
//   - formatter.go: Formatter interface and factory
//   - table.go: Table rendering with wide mode support
//   - json.go: JSON output formatting
//   - yaml.go: YAML formatter, which writes no output
//   - spinner.go: Progress animation for long operations
//
// Formatters support:
//
//   - Output format selection (table, json, yaml)
//   - Wide mode for additional columns
//   - Machine-readable JSON output for scripting
//
// Output is not colored.
package output
