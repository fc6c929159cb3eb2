// Package connection provides connection management for clustercomm-cli.
//
// This package manages connections to coordinator nodes:
//
//   - manager.go: Connection state and lifecycle
//   - http.go: HTTP/HTTPS client implementation
//
// The Manager tracks a single current connection; saved profiles are not
// stored. The HTTP client uses the default net/http TLS settings for
// https:// servers; the Connection.TLS field is not consulted.
package connection
