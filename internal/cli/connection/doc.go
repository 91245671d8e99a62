// Package connection provides connection management for Discovery CLI.
//
// This package manages connections to Discovery servers:
//
//   - manager.go: Connection state machine and lifecycle
//   - http.go: HTTP/HTTPS client implementation
//   - socket.go: Unix socket/named pipe client
//
//   - rpcclient.go: leader-following RPC client per service
//
// Manager holds a single current connection. The package does not
// reconnect automatically, configure TLS verification or monitor
// connection health.
package connection
