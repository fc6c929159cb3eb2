// Package main provides the entry point for clustercomm-cli.
//
// The CLI tool provides command-line access to a clustercomm coordinator for:
//
//   - Cluster topology inspection (ping, shard-map, join)
//   - Local CLI configuration management
//   - System health and readiness checks
//
// Usage:
//
//	clustercomm-cli [command] [flags]
//	clustercomm-cli cluster shard-map
//	clustercomm-cli connect http://localhost:5443
//
// The CLI supports both single-command mode and interactive REPL mode.
package main
