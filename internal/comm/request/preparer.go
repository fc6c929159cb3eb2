package request

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shardmesh/clustercomm/internal/comm/ticket"
	"github.com/shardmesh/clustercomm/pkg/hlc"
)

// HLCHeader is the header carrying the encoded hybrid-logical-clock
// timestamp at send time.
const HLCHeader = "X-Arango-HLC"

// NolockHeader carries the shard id when the process-wide nolock set marks
// it as safe to bypass shard locking.
const NolockHeader = "X-Arango-Nolock"

// AsyncHeader marks an async-answer-pattern request.
const AsyncHeader = "X-Arango-Async"

// CoordinatorHeader carries the async-answer correlation tuple.
const CoordinatorHeader = "X-Arango-Coordinator"

// ResponseCodeHeader carries the original HTTP status code on an outgoing
// async answer, since the answer's own transport-level status reflects only
// whether the coordinator accepted delivery, not the original request's
// result.
const ResponseCodeHeader = "X-Arango-Response-Code"

// Identity is the narrow server-identity contract the preparer consumes.
type Identity interface {
	SelfServerID() string
	AuthenticationHeaderValue() string
}

// Clock is the narrow HLC contract the preparer consumes.
type Clock interface {
	Now() uint64
}

// Options configures header injection for a single prepared request.
type Options struct {
	ClientTxID string
	CoordTxID  uint64
	Ticket     ticket.Ticket

	// SingleRequest suppresses the async-answer headers (X-Arango-Async,
	// X-Arango-Coordinator) when true.
	SingleRequest bool

	// Nolock, if true, sets X-Arango-Nolock for shard: destinations.
	Nolock bool
}

// Preparer builds outbound requests, injecting the headers §4.2 mandates.
type Preparer struct {
	identity Identity
	clock    Clock
}

// New creates a Preparer.
func New(identity Identity, clock Clock) *Preparer {
	return &Preparer{identity: identity, clock: clock}
}

// Prepare builds the outbound *http.Request for a resolved destination. It
// always copies caller headers before mutating them, and never mutates dest
// or body.
func (p *Preparer) Prepare(dest ticket.Destination, method, path string, body []byte, headers http.Header, opts Options) (*http.Request, error) {
	endpoint := canonicalizeScheme(dest.EndpointURL) + path

	var bodyReader *bytes.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("request: build outbound request: %w", err)
	}

	req.Header = headers.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}

	req.Header.Set("Authorization", p.identity.AuthenticationHeaderValue())
	req.Header.Set(HLCHeader, hlc.EncodeTimeStamp(p.clock.Now()))

	if opts.Nolock && dest.ShardID != "" {
		req.Header.Set(NolockHeader, dest.ShardID)
	}

	if !opts.SingleRequest {
		req.Header.Set(AsyncHeader, "store")
		req.Header.Set(CoordinatorHeader, fmt.Sprintf("%s:%d:%s:%d",
			p.identity.SelfServerID(), opts.Ticket, opts.ClientTxID, opts.CoordTxID))
	}

	return req, nil
}

// canonicalizeScheme translates the destination's scheme to the transport
// engine's expected form: tcp:// -> http://, ssl:// -> https://. Endpoints
// already in http(s):// form (e.g. resolved by a test double) pass through
// unchanged.
func canonicalizeScheme(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "tcp://"):
		return "http://" + strings.TrimPrefix(endpoint, "tcp://")
	case strings.HasPrefix(endpoint, "ssl://"):
		return "https://" + strings.TrimPrefix(endpoint, "ssl://")
	default:
		return endpoint
	}
}

// ParseCoordinatorHeader parses the X-Arango-Coordinator correlation header:
// "<serverId>:<ticket>:<clientTxId>:<coordTxId>". At least two ':'-separated
// fields are required; the ticket field must be a valid unsigned 64-bit
// decimal. Trailing fields are optional and default to empty/zero.
func ParseCoordinatorHeader(value string) (serverID string, tkt ticket.Ticket, clientTxID string, coordTxID uint64, err error) {
	fields := strings.Split(value, ":")
	if len(fields) < 2 {
		return "", 0, "", 0, fmt.Errorf("request: malformed %s header %q: need at least 2 fields", CoordinatorHeader, value)
	}

	serverID = fields[0]

	parsed, parseErr := strconv.ParseUint(fields[1], 10, 64)
	if parseErr != nil {
		return "", 0, "", 0, fmt.Errorf("request: malformed ticket field %q in %s header: %w", fields[1], CoordinatorHeader, parseErr)
	}
	tkt = ticket.Ticket(parsed)

	if len(fields) > 2 {
		clientTxID = fields[2]
	}
	if len(fields) > 3 {
		if coordTxID, parseErr = strconv.ParseUint(fields[3], 10, 64); parseErr != nil {
			coordTxID = 0
		}
	}

	return serverID, tkt, clientTxID, coordTxID, nil
}
