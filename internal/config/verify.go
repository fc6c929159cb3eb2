// Package config defines the coordinator configuration structure.
package config

import (
	"errors"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *CoordinatorConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyTopology(&cfg.Topology); err != nil {
		return err
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Addr == "" {
		return errors.New("server.addr is required")
	}
	// TODO: verify TLS cert/key files exist if specified
	return nil
}

func verifyTopology(cfg *TopologySection) error {
	if cfg.DataDir == "" {
		return errors.New("topology.data_dir is required")
	}

	// Check if the Raft data directory exists or can be created.
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return errors.New("cannot create raft data directory: " + err.Error())
	}

	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0750); err != nil {
			return errors.New("cannot create endpoint cache directory: " + err.Error())
		}
	}

	if !cfg.Bootstrap && len(cfg.Seeds) == 0 {
		return errors.New("topology.seeds is required unless topology.bootstrap is set")
	}

	if cfg.ReplicationFactor < 1 {
		return errors.New("topology.replication_factor must be at least 1")
	}

	return nil
}
