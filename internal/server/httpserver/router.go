// Package httpserver provides the coordinator's HTTP listener.
package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/shardmesh/clustercomm/internal/comm/answer"
	"github.com/shardmesh/clustercomm/internal/telemetry/metric"
	"github.com/shardmesh/clustercomm/internal/topology"
)

// RouterConfig holds everything NewRouter needs to mount the coordinator's
// routes.
type RouterConfig struct {
	// AnswerHandler serves the dispatcher's own inbound async-answer
	// endpoint: PUT /_api/shard-comm.
	AnswerHandler *answer.Handler

	// ControlHandler serves the inter-coordinator topology control plane
	// under /_api/cluster/.
	ControlHandler *topology.ControlHandler

	// Metrics, if non-nil, is exposed at GET /metrics.
	Metrics *metric.Registry

	// Ready reports readiness for GET /ready; nil means always ready.
	Ready ReadyFunc

	Logger *slog.Logger

	// SharedSecret is the inter-node bearer token required on
	// /_api/shard-comm and /_api/cluster/ (empty disables the check,
	// e.g. for local development).
	SharedSecret string

	// ControlAllowList restricts /_api/cluster/ to other coordinator
	// replicas; empty means no restriction.
	ControlAllowList []string

	// GlobalRateLimit is the per-IP request rate limit (requests/second);
	// 0 disables rate limiting.
	GlobalRateLimit int

	// EnableAudit enables access logging for every request.
	EnableAudit bool
}

// NewRouter builds the coordinator's top-level mux and middleware chain.
func NewRouter(cfg *RouterConfig) http.Handler {
	if cfg.Ready == nil {
		cfg.Ready = func() bool { return true }
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(cfg.Ready))

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	answerChain := []Middleware{RequestID(), Recover(cfg.Logger)}
	if cfg.GlobalRateLimit > 0 {
		answerChain = append(answerChain, RateLimit(cfg.GlobalRateLimit))
	}
	if cfg.EnableAudit {
		answerChain = append(answerChain, Audit(cfg.Logger))
	}
	answerChain = append(answerChain, Auth(&MiddlewareConfig{SharedSecret: cfg.SharedSecret}))
	mux.Handle("PUT /_api/shard-comm", Chain(cfg.AnswerHandler, answerChain...))

	controlChain := []Middleware{RequestID(), Recover(cfg.Logger)}
	if len(cfg.ControlAllowList) > 0 {
		controlChain = append(controlChain, NetworkACL(&NetworkACLConfig{AllowList: cfg.ControlAllowList, Logger: cfg.Logger}))
	}
	if cfg.EnableAudit {
		controlChain = append(controlChain, Audit(cfg.Logger))
	}
	controlChain = append(controlChain, Auth(&MiddlewareConfig{SharedSecret: cfg.SharedSecret}))
	control := Chain(http.StripPrefix("/_api/cluster", cfg.ControlHandler), controlChain...)
	mux.Handle("/_api/cluster/", control)

	return mux
}

// DefaultRouterConfig returns sane defaults; callers still must set
// AnswerHandler and ControlHandler.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		GlobalRateLimit: 1000,
		EnableAudit:     true,
	}
}
