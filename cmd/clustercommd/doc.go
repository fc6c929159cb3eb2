// Package main provides the entry point for clustercommd.
//
// The coordinator daemon provides:
//
//   - Raft-replicated shard assignment and Gossip-based cluster membership
//   - The ClusterComm dispatcher's inbound async-answer endpoint
//   - The inter-coordinator topology control plane
//   - Health, readiness, and Prometheus metrics endpoints
//
// Usage:
//
//	clustercommd [flags]
//	clustercommd --config /path/to/config.yaml
//
// The daemon loads configuration, starts the topology service, wires the
// dispatcher, and serves HTTP until it receives a shutdown signal.
package main
