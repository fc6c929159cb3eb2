// Package command provides CLI command definitions for clustercomm-cli.
package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/shardmesh/clustercomm/internal/cli/connection"
	"github.com/shardmesh/clustercomm/internal/cli/output"
)

// ClusterCommand returns the cluster subcommand group, talking to a
// coordinator's control plane at /_api/cluster/.
func ClusterCommand() *cli.Command {
	return &cli.Command{
		Name:    "cluster",
		Aliases: []string{"topo"},
		Usage:   "Cluster topology commands",
		Subcommands: []*cli.Command{
			{
				Name:   "ping",
				Usage:  "Ping a coordinator node",
				Action: clusterPing,
			},
			{
				Name:   "shard-map",
				Usage:  "Show the current shard map",
				Action: clusterShardMap,
			},
			{
				Name:      "join",
				Usage:     "Ask a coordinator to add this node to the Raft configuration",
				ArgsUsage: "NODE_ID ADVERTISE_ADDRESS",
				Action:    clusterJoin,
			},
		},
	}
}

func clusterPing(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, "/_api/cluster/ping")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		NodeID    string `json:"node_id"`
		Timestamp int64  `json:"timestamp"`
		IsLeader  bool   `json:"is_leader"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	switch output.Format(flags.Output) {
	case output.FormatJSON:
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, result)
	default:
		role := "follower"
		if result.IsLeader {
			role = "leader"
		}
		fmt.Printf("node %s (%s) responded at %s\n", result.NodeID, role, time.Unix(result.Timestamp, 0).Format(time.RFC3339))
		return nil
	}
}

func clusterShardMap(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, "/_api/cluster/shard-map")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		ShardMap struct {
			Shards   map[uint32]string   `json:"shards"`
			Replicas map[uint32][]string `json:"replicas"`
			Version  uint64              `json:"version"`
		} `json:"shard_map"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	switch output.Format(flags.Output) {
	case output.FormatJSON:
		formatter := &output.JSONFormatter{}
		return formatter.Format(os.Stdout, result)
	default:
		fmt.Printf("Shard map (version %d)\n", result.ShardMap.Version)
		fmt.Printf("SHARD\tPRIMARY\tREPLICAS\n")
		for shard, primary := range result.ShardMap.Shards {
			fmt.Printf("%d\t%s\t%v\n", shard, primary, result.ShardMap.Replicas[shard])
		}
		return nil
	}
}

func clusterJoin(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	nodeID := c.Args().Get(0)
	advertiseAddr := c.Args().Get(1)
	if nodeID == "" || advertiseAddr == "" {
		return fmt.Errorf("usage: cluster join NODE_ID ADVERTISE_ADDRESS")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	body := map[string]string{
		"node_id":           nodeID,
		"advertise_address": advertiseAddr,
	}

	resp, err := client.Post(ctx, "/_api/cluster/join", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Accepted     bool   `json:"accepted"`
		LeaderNodeID string `json:"leader_node_id,omitempty"`
		LeaderAddr   string `json:"leader_addr,omitempty"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if !result.Accepted {
		fmt.Printf("join rejected; current leader is %s at %s\n", result.LeaderNodeID, result.LeaderAddr)
		return fmt.Errorf("not leader")
	}

	fmt.Printf("join accepted for %s\n", nodeID)
	return nil
}
