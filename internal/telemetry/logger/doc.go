// Package logger provides structured logging for Discovery.
//
// This package wraps the standard library log/slog for structured logging:
//
//   - logger.go: Logger interface, slog-based configuration and initialization
//   - zap.go: holds no code
//   - context.go: Context-aware logging with request/trace IDs
//   - redact.go: Sensitive data redaction
//
// Features:
//
//   - JSON and text output formats
//   - Log level filtering
//   - Automatic sensitive data masking
//   - Context propagation for request tracing
package logger
