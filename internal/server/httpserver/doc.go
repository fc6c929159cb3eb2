// Package httpserver provides the coordinator's HTTP listener using stdlib
// net/http:
//
//   - PUT /_api/shard-comm: inbound async-answer delivery for the dispatcher
//   - /_api/cluster/: the Raft/Gossip topology control plane
//   - Health endpoints: /health, /ready, /metrics
//
// Features:
//
//   - TLS support via server.ListenAndServeTLS
//   - Middleware chain: RequestID, Recover, RateLimit, Audit, Auth, NetworkACL
//   - Graceful shutdown with context deadline
//   - Prometheus metrics integration
package httpserver
