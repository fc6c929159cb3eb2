package destination

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shardmesh/clustercomm/internal/comm/ticket"
)

// Topology is the narrow contract the resolver consumes: shard-to-server and
// server-to-endpoint lookup.
type Topology interface {
	// GetResponsibleServer returns the servers responsible for shardID,
	// primary first, or an empty slice if unknown.
	GetResponsibleServer(shardID string) ([]string, error)
	// GetServerEndpoint returns the endpoint URL for serverID, or "" if
	// unknown.
	GetServerEndpoint(serverID string) (string, error)
}

// Result is the outcome of resolving a destination string: either a
// populated Destination, or a non-empty FailureMessage describing why
// resolution terminated in BackendUnavailable.
type Result struct {
	Destination    ticket.Destination
	FailureMessage string
}

// Failed reports whether resolution terminated without a usable endpoint.
func (r Result) Failed() bool { return r.FailureMessage != "" }

// Resolver parses destination strings and consults Topology to fill in the
// server endpoint.
type Resolver struct {
	topology Topology
	logger   *slog.Logger
}

// New creates a Resolver backed by topology.
func New(topology Topology, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{topology: topology, logger: logger}
}

// Resolve parses dest and looks up its endpoint. logResolutionFailures
// controls whether a failed resolution is logged at Warn (true) or Debug
// (false) — callers that expect frequent misses (e.g. speculative retries)
// pass false to avoid log noise.
func (r *Resolver) Resolve(dest string, logResolutionFailures bool) Result {
	switch {
	case strings.HasPrefix(dest, "shard:"):
		return r.resolveShard(dest, strings.TrimPrefix(dest, "shard:"), logResolutionFailures)
	case strings.HasPrefix(dest, "server:"):
		return r.resolveServer(dest, strings.TrimPrefix(dest, "server:"), logResolutionFailures)
	case strings.HasPrefix(dest, "tcp://"), strings.HasPrefix(dest, "ssl://"):
		// Endpoint taken verbatim; scheme canonicalization to http(s):// is
		// the request preparer's job (internal/comm/request), applied
		// uniformly whether the endpoint came from here or from topology.
		return Result{Destination: ticket.Destination{EndpointURL: dest}}
	default:
		msg := fmt.Sprintf("did not understand destination '%s'", dest)
		r.logFailure(logResolutionFailures, msg, "destination", dest)
		return Result{FailureMessage: msg}
	}
}

func (r *Resolver) resolveShard(raw, shardID string, logFailures bool) Result {
	servers, err := r.topology.GetResponsibleServer(shardID)
	if err != nil || len(servers) == 0 {
		msg := fmt.Sprintf("cannot find responsible server for shard '%s'", shardID)
		r.logFailure(logFailures, msg, "destination", raw, "error", err)
		return Result{FailureMessage: msg}
	}

	serverID := servers[0]
	endpoint, failMsg := r.lookupEndpoint(serverID, logFailures)
	if failMsg != "" {
		return Result{FailureMessage: failMsg}
	}

	return Result{Destination: ticket.Destination{
		ShardID:     shardID,
		ServerID:    serverID,
		EndpointURL: endpoint,
	}}
}

func (r *Resolver) resolveServer(raw, serverID string, logFailures bool) Result {
	endpoint, failMsg := r.lookupEndpoint(serverID, logFailures)
	if failMsg != "" {
		return Result{FailureMessage: failMsg}
	}
	return Result{Destination: ticket.Destination{
		ServerID:    serverID,
		EndpointURL: endpoint,
	}}
}

func (r *Resolver) lookupEndpoint(serverID string, logFailures bool) (endpoint, failureMessage string) {
	endpoint, err := r.topology.GetServerEndpoint(serverID)
	if err != nil || endpoint == "" {
		msg := fmt.Sprintf("did not find endpoint of server '%s'", serverID)
		r.logFailure(logFailures, msg, "server_id", serverID, "error", err)
		return "", msg
	}
	return endpoint, ""
}

func (r *Resolver) logFailure(loud bool, msg string, args ...any) {
	if loud {
		r.logger.Warn(msg, args...)
	} else {
		r.logger.Debug(msg, args...)
	}
}
