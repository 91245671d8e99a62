// Package command provides CLI command definitions for Discovery.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: Root command, global flags, mode detection
//   - namespace.go, zone.go, servlet.go, instance.go, privilege.go:
//     registry subcommand groups (servlet.go also carries autoid)
//   - confblob.go: Versioned configuration blob subcommand group
//   - plugin.go: Plugin artifact subcommand group
//   - tso.go: Timestamp oracle subcommand
//   - raft.go: Raft membership/leadership subcommand group
//   - settings.go: CLI and server configuration subcommand group
//   - system.go: System subcommand group
//   - connect.go: Connection management commands
//
// Commands follow a consistent pattern of parsing flags,
// calling the appropriate service, and formatting output.
package command
