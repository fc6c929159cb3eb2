// Package command provides CLI command definitions for clustercomm-cli.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: Root command, global flags
//   - cluster.go: Cluster topology subcommand group (ping, shard-map, join)
//   - config.go: Local CLI configuration subcommand group
//   - system.go: System subcommand group (health, ready)
//   - connect.go: Connection management commands
//
// Commands follow a consistent pattern of parsing flags,
// calling the appropriate service, and formatting output.
package command
