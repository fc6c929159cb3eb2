package ticket

import (
	"fmt"
	"net/http"
	"time"
)

// Ticket is a 64-bit process-unique, monotonically issued identifier. Zero
// is never issued and is reserved to mean "no ticket"/"wildcard" depending
// on context.
type Ticket uint64

// Status is the lifecycle state of a tracked request. See the transition
// table on Registry for the allowed moves between these values.
type Status int

const (
	// Submitted is the initial state: the ticket is tracked but the
	// transport has not yet begun sending.
	Submitted Status = iota
	// Sending marks a request the transport has begun writing. The
	// dispatcher never assigns it: its records move from Submitted straight
	// to Sent or to a terminal status.
	Sending
	// Sent is set once the transport finishes sending a non-single request
	// that expects an out-of-band answer.
	Sent
	// Received is terminal: a response or answer completed the request.
	Received
	// Timeout is terminal: the deadline elapsed before completion.
	Timeout
	// Error is terminal: the exchange completed with an HTTP-level error.
	Error
	// Dropped is terminal: the caller cancelled the ticket.
	Dropped
	// BackendUnavailable is terminal: resolution or connect failed.
	BackendUnavailable
)

func (s Status) String() string {
	switch s {
	case Submitted:
		return "Submitted"
	case Sending:
		return "Sending"
	case Sent:
		return "Sent"
	case Received:
		return "Received"
	case Timeout:
		return "Timeout"
	case Error:
		return "Error"
	case Dropped:
		return "Dropped"
	case BackendUnavailable:
		return "BackendUnavailable"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Terminal reports whether s is a terminal status: no further transitions
// occur for a ticket once it reaches one of these.
func (s Status) Terminal() bool {
	switch s {
	case Received, Timeout, Error, Dropped, BackendUnavailable:
		return true
	default:
		return false
	}
}

// Destination is the resolved form of a destination string: at least one of
// ShardID/ServerID is populated for shard:/server: destinations, and
// EndpointURL is always populated once resolution succeeds.
type Destination struct {
	ShardID     string
	ServerID    string
	EndpointURL string
}

// RequestRecord is the in-flight (and, once terminal, final) state for a
// single ticket.
type RequestRecord struct {
	ClientTxID string
	CoordTxID  uint64

	Destination Destination
	Ticket      Ticket
	Status      Status
	ErrorMessage string

	Body       []byte
	Answer     *http.Request
	AnswerCode int

	// SendWasComplete distinguishes a Timeout that occurred after the
	// transport finished sending (waiting on the answer) from one that
	// occurred mid-send; only the latter is retry-eligible in
	// performRequests.
	SendWasComplete bool

	Single  bool
	Dropped bool

	SubmitTime time.Time
	Deadline   time.Time

	// Notify is the caller-supplied completion callback, if any, carried on
	// the record itself so that both the transport-completion path and a
	// later out-of-band processAnswer can reach it without a second,
	// separately-cleaned-up side table. The registry treats it as opaque:
	// it is neither read nor invoked here, only carried and discarded when
	// the record is removed.
	Notify func(*RequestRecord) bool
}

// String renders a human-readable summary of the record for logging,
// supplementing the distilled spec's bare "optional error message" with the
// original ClusterComm's multi-field error string.
func (r *RequestRecord) String() string {
	msg := r.ErrorMessage
	if msg == "" {
		msg = "-"
	}
	return fmt.Sprintf("ticket=%d status=%s server=%s shard=%s endpoint=%s error=%s",
		r.Ticket, r.Status, r.Destination.ServerID, r.Destination.ShardID, r.Destination.EndpointURL, msg)
}

// Matches implements the wait/drop wildcard rule: empty clientTxID matches
// any, zero coordTxID matches any, empty shardID matches any, zero ticket
// matches any. All supplied (non-wildcard) filters must match.
func (r *RequestRecord) Matches(clientTxID string, coordTxID uint64, tkt Ticket, shardID string) bool {
	if tkt != 0 && r.Ticket != tkt {
		return false
	}
	if clientTxID != "" && r.ClientTxID != clientTxID {
		return false
	}
	if coordTxID != 0 && r.CoordTxID != coordTxID {
		return false
	}
	if shardID != "" && r.Destination.ShardID != shardID {
		return false
	}
	return true
}

// Synthesized builds the record enquire/wait return for a ticket that is no
// longer tracked (never existed, or was already removed).
func Synthesized(tkt Ticket) *RequestRecord {
	return &RequestRecord{
		Ticket: tkt,
		Status: Dropped,
	}
}
