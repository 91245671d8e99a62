// Package config provides CLI configuration for Discovery.
//
// This package defines CLI-specific configuration:
//
//   - spec.go: CLIConfig struct (~/.discovery/cli.yaml)
//   - loader.go: Configuration loading and merging
//
// Configuration includes:
//
//   - Default server and output format
//   - Saved connection profiles and the current one
package config
