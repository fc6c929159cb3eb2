package topology

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// ControlHandler serves the inter-coordinator control plane: Join,
// GetShardMap and Ping. It is plain JSON over HTTP, matching the
// dispatcher's own wire idiom rather than a separate RPC stack, and is
// mounted by the coordinator daemon alongside the dispatcher's own
// /_api/shard-comm endpoint.
type ControlHandler struct {
	service *Service
	logger  *slog.Logger
}

// NewControlHandler creates a control-plane handler over a topology service.
func NewControlHandler(service *Service, logger *slog.Logger) *ControlHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlHandler{service: service, logger: logger}
}

// JoinRequest is submitted by a coordinator replica asking to join the
// Raft configuration.
type JoinRequest struct {
	NodeID           string `json:"node_id"`
	AdvertiseAddress string `json:"advertise_address"`
}

// JoinResponse reports whether the join was accepted and, if not, where the
// current leader can be found.
type JoinResponse struct {
	Accepted     bool          `json:"accepted"`
	LeaderNodeID string        `json:"leader_node_id,omitempty"`
	LeaderAddr   string        `json:"leader_addr,omitempty"`
	Members      []MemberView  `json:"members,omitempty"`
	ShardMap     *ShardMapView `json:"shard_map,omitempty"`
}

// ShardMapView is the wire representation of a ShardMap snapshot.
type ShardMapView struct {
	Shards   map[uint32]string   `json:"shards"`
	Replicas map[uint32][]string `json:"replicas"`
	Version  uint64              `json:"version"`
}

// GetShardMapResponse wraps a shard map snapshot.
type GetShardMapResponse struct {
	ShardMap ShardMapView `json:"shard_map"`
}

// PingResponse reports this node's identity and leadership state.
type PingResponse struct {
	NodeID    string `json:"node_id"`
	Timestamp int64  `json:"timestamp"`
	IsLeader  bool   `json:"is_leader"`
}

// ServeHTTP dispatches on the request path: /join, /shard-map, /ping.
func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/join":
		h.handleJoin(w, r)
	case "/shard-map":
		h.handleGetShardMap(w, r)
	case "/ping":
		h.handlePing(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *ControlHandler) handleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed join request", http.StatusBadRequest)
		return
	}

	h.logger.Info("join request received", "node_id", req.NodeID, "addr", req.AdvertiseAddress)

	if !h.service.IsLeader() {
		leaderID := h.service.raft.LeaderID()
		leaderAddr := h.service.raft.Leader()
		h.logger.Warn("join request rejected - not leader",
			"requester", req.NodeID, "leader_id", leaderID, "leader_addr", leaderAddr)
		writeJSON(w, http.StatusOK, JoinResponse{
			Accepted:     false,
			LeaderNodeID: leaderID,
			LeaderAddr:   leaderAddr,
		})
		return
	}

	if err := h.service.raft.AddVoter(req.NodeID, req.AdvertiseAddress, 10*time.Second); err != nil {
		h.logger.Error("failed to add voter", "node_id", req.NodeID, "error", err)
		http.Error(w, "add voter: "+err.Error(), http.StatusInternalServerError)
		return
	}

	shardMap := h.service.fsm.GetShardMap()
	writeJSON(w, http.StatusOK, JoinResponse{
		Accepted:     true,
		LeaderNodeID: h.service.raft.LeaderID(),
		LeaderAddr:   h.service.raft.Leader(),
		Members:      h.service.Members(),
		ShardMap: &ShardMapView{
			Shards:   shardMap.Shards,
			Replicas: shardMap.Replicas,
			Version:  shardMap.Version,
		},
	})
}

func (h *ControlHandler) handleGetShardMap(w http.ResponseWriter, r *http.Request) {
	shardMap := h.service.fsm.GetShardMap()
	writeJSON(w, http.StatusOK, GetShardMapResponse{
		ShardMap: ShardMapView{
			Shards:   shardMap.Shards,
			Replicas: shardMap.Replicas,
			Version:  shardMap.Version,
		},
	})
}

func (h *ControlHandler) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PingResponse{
		NodeID:    h.service.nodeID,
		Timestamp: time.Now().Unix(),
		IsLeader:  h.service.IsLeader(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
