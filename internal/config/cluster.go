// Package config defines the coordinator configuration structure.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/shardmesh/clustercomm/internal/topology"
)

// ToTopologyConfig converts CoordinatorConfig into topology.Config.
//
// This handles default value population (NodeID generation) and field
// mapping. topology.New and the constructors it calls default only a nil
// Logger; every other field is used as given.
func ToTopologyConfig(cfg *CoordinatorConfig, logger *slog.Logger) (topology.Config, error) {
	if cfg == nil {
		return topology.Config{}, fmt.Errorf("coordinator config is nil")
	}

	nodeID := cfg.Topology.NodeID
	if nodeID == "" {
		generated, err := generateNodeID()
		if err != nil {
			return topology.Config{}, fmt.Errorf("generate node ID: %w", err)
		}
		nodeID = generated
		logger.Info("generated cluster node ID", "node_id", nodeID)
	}

	return topology.Config{
		Raft: topology.RaftConfig{
			NodeID:    nodeID,
			BindAddr:  cfg.Topology.RaftAddr,
			DataDir:   cfg.Topology.DataDir,
			Bootstrap: cfg.Topology.Bootstrap,
			Logger:    logger,
		},
		Discovery: topology.DiscoveryConfig{
			NodeID:    nodeID,
			BindAddr:  cfg.Topology.GossipAddr,
			BindPort:  cfg.Topology.GossipPort,
			RaftAddr:  cfg.Topology.RaftAddr,
			SeedNodes: cfg.Topology.Seeds,
			Logger:    logger,
		},
		CacheDir: cfg.Topology.CacheDir,
		Logger:   logger,
	}, nil
}

// generateNodeID generates a unique node identifier.
//
// Format: ccnode-<16 hex chars> (e.g., "ccnode-a1b2c3d4e5f67890")
func generateNodeID() (string, error) {
	buf := make([]byte, 8) // 8 bytes = 16 hex chars
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return "ccnode-" + hex.EncodeToString(buf), nil
}
