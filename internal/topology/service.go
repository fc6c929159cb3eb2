package topology

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shardmesh/clustercomm/pkg/cmap"
)

// Service is the cluster topology service. It is the concrete implementation
// behind the dispatcher's narrow topology contract:
//
//	GetResponsibleServer(shardID) -> list<ServerID>
//	GetServerEndpoint(serverID)   -> Url
//
// Shard assignment and cluster membership are replicated across coordinator
// replicas via Raft (Authority/FSM); DB-server membership and endpoint
// advertisement arrive via Gossip (Discovery). A sharded cmap.Map caches the
// resolved endpoint for each known server so lookups never take the Raft
// or Gossip locks on the hot path.
type Service struct {
	nodeID    string
	raft      *RaftNode
	fsm       *FSM
	discovery *Discovery
	endpoints *cmap.Map[string, string]
	cache     *EndpointCache
	logger    *slog.Logger
}

// Config configures the topology service.
type Config struct {
	Raft      RaftConfig
	Discovery DiscoveryConfig
	CacheDir  string // directory for the badger cold-start cache; empty disables it
	Logger    *slog.Logger
}

// New creates a topology service, starting Raft and Gossip and loading any
// cached endpoint table from disk.
func New(cfg Config) (*Service, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	fsm := NewFSM(cfg.Logger)

	raftNode, err := NewRaftNode(cfg.Raft, fsm)
	if err != nil {
		return nil, fmt.Errorf("topology: start raft: %w", err)
	}

	svc := &Service{
		nodeID:    cfg.Raft.NodeID,
		raft:      raftNode,
		fsm:       fsm,
		endpoints: cmap.New[string, string](),
		logger:    cfg.Logger,
	}

	if cfg.CacheDir != "" {
		cache, err := OpenEndpointCache(cfg.CacheDir, cfg.Logger)
		if err != nil {
			raftNode.Close()
			return nil, fmt.Errorf("topology: open endpoint cache: %w", err)
		}
		svc.cache = cache

		cached, err := cache.LoadAll()
		if err != nil {
			cfg.Logger.Warn("topology: failed to warm endpoint cache", "error", err)
		}
		for serverID, endpoint := range cached {
			svc.endpoints.Set(serverID, endpoint)
		}
	}

	cfg.Discovery.Logger = cfg.Logger
	disc, err := NewDiscovery(cfg.Discovery)
	if err != nil {
		raftNode.Close()
		if svc.cache != nil {
			svc.cache.Close()
		}
		return nil, fmt.Errorf("topology: start discovery: %w", err)
	}
	svc.discovery = disc

	disc.OnJoin(func(nodeID, addr string) {
		endpoint := "tcp://" + addr
		svc.endpoints.Set(nodeID, endpoint)
		if svc.cache != nil {
			if err := svc.cache.Store(nodeID, endpoint); err != nil {
				svc.logger.Warn("topology: failed to persist endpoint", "node_id", nodeID, "error", err)
			}
		}
	})
	disc.OnLeave(func(nodeID string) {
		svc.endpoints.Delete(nodeID)
	})

	return svc, nil
}

// GetResponsibleServer returns the servers responsible for a shard, primary
// first. An empty, non-error result means the shard has no known owner.
func (s *Service) GetResponsibleServer(shardID string) ([]string, error) {
	bucket := s.fsm.GetShardMap().HashKey(shardID)
	shardMap := s.fsm.GetShardMap()

	primary, ok := shardMap.GetShard(bucket)
	if !ok || primary == "" {
		return nil, nil
	}

	servers := make([]string, 0, 1+len(shardMap.GetReplicas(bucket)))
	servers = append(servers, primary)
	servers = append(servers, shardMap.GetReplicas(bucket)...)
	return servers, nil
}

// GetServerEndpoint returns the endpoint URL for a server, or "" if unknown.
func (s *Service) GetServerEndpoint(serverID string) (string, error) {
	endpoint, _ := s.endpoints.Get(serverID)
	return endpoint, nil
}

// AssignShard assigns a shard to a server through the replicated FSM. Only
// the Raft leader may call this; followers get raft.ErrNotLeader-wrapped
// errors back from Apply.
func (s *Service) AssignShard(shardID, serverID string, replicas []string) error {
	bucket := s.fsm.GetShardMap().HashKey(shardID)
	payload, err := json.Marshal(ShardMapUpdatePayload{
		ShardID:  bucket,
		NodeID:   serverID,
		Replicas: replicas,
	})
	if err != nil {
		return fmt.Errorf("topology: marshal shard map update: %w", err)
	}
	data, err := json.Marshal(LogEntry{
		Type:    LogEntryShardMapUpdate,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("topology: marshal log entry: %w", err)
	}
	return s.raft.Apply(data, 5*time.Second)
}

// IsLeader reports whether this coordinator replica is the Raft leader.
func (s *Service) IsLeader() bool { return s.raft.IsLeader() }

// Members returns the current Gossip membership.
func (s *Service) Members() []MemberView {
	nodes := s.discovery.Members()
	views := make([]MemberView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, MemberView{NodeID: n.Name, Addr: n.Addr.String()})
	}
	return views
}

// MemberView is a read-only snapshot of one Gossip member.
type MemberView struct {
	NodeID string
	Addr   string
}

// Close shuts down Raft, Gossip and the endpoint cache.
func (s *Service) Close() error {
	if s.discovery != nil {
		s.discovery.Shutdown()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.raft != nil {
		return s.raft.Close()
	}
	return nil
}
