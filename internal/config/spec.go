// Package config defines the coordinator configuration structure.
package config

import "time"

// CoordinatorConfig is the root configuration for clustercommd.
type CoordinatorConfig struct {
	Server     ServerSection     `koanf:"server"`
	Topology   TopologySection   `koanf:"topology"`
	Dispatcher DispatcherSection `koanf:"dispatcher"`
	Security   SecuritySection   `koanf:"security"`
	Log        LogSection        `koanf:"log"`
}

// ServerSection configures the coordinator's HTTP listener.
type ServerSection struct {
	// Addr is the bind address for the shard-comm answer endpoint and the
	// topology control plane (e.g., "0.0.0.0:5443").
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// MetricsAddr is accepted in configuration but clustercommd does not
	// read it; no separate metrics listener is opened.
	MetricsAddr string `koanf:"metrics_addr"`
}

// TopologySection configures Raft-replicated shard assignment and
// Gossip-based cluster membership.
type TopologySection struct {
	// NodeID is this coordinator's unique identifier. If empty, a random ID
	// is generated at startup.
	NodeID string `koanf:"node_id"`

	// RaftAddr is the Raft TCP bind address (e.g., "192.168.1.10:5343").
	RaftAddr string `koanf:"raft_addr"`

	// GossipAddr is the Gossip bind address (e.g., "192.168.1.10").
	GossipAddr string `koanf:"gossip_addr"`

	// GossipPort is the Gossip bind port.
	GossipPort int `koanf:"gossip_port"`

	// Bootstrap indicates this node bootstraps a new cluster. Verify requires
	// Bootstrap or at least one entry in Seeds and accepts both together.
	Bootstrap bool `koanf:"bootstrap"`

	// Seeds is the list of existing cluster members to join.
	Seeds []string `koanf:"seeds"`

	// DataDir holds Raft log/snapshot storage.
	DataDir string `koanf:"data_dir"`

	// CacheDir holds the badger-backed endpoint cache that warms
	// destination resolution across restarts. Empty disables the cache.
	CacheDir string `koanf:"cache_dir"`

	// ReplicationFactor is the number of replicas per shard.
	ReplicationFactor int `koanf:"replication_factor"`
}

// DispatcherSection configures the ClusterComm dispatcher's transport
// driver and request defaults.
type DispatcherSection struct {
	// ConnectTimeout and RequestTimeout bound a single dispatched request;
	// see transport.Options.
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// MaxConcurrent bounds in-flight requests across all destinations.
	MaxConcurrent int `koanf:"max_concurrent"`

	// PerHostRatePerSec bounds requests started per destination host per
	// second. Zero disables the limiter.
	PerHostRatePerSec float64 `koanf:"per_host_rate_per_sec"`
	PerHostBurst      int     `koanf:"per_host_burst"`
}

// SecuritySection configures inter-node authentication and transport
// security.
type SecuritySection struct {
	// SharedSecret is the bearer token every coordinator and DB server in
	// the cluster presents on inter-node calls. Empty disables the check,
	// for local development only.
	SharedSecret string `koanf:"shared_secret"`

	TLSCAFile string `koanf:"tls_ca_file"`

	// ControlAllowList restricts the topology control plane
	// (/_api/cluster/) to these peer IPs/CIDRs; empty means unrestricted.
	ControlAllowList []string `koanf:"control_allow_list"`
}

// LogSection configures structured logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
