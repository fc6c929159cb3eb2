package dispatcher

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shardmesh/clustercomm/internal/comm/destination"
	"github.com/shardmesh/clustercomm/internal/comm/request"
	"github.com/shardmesh/clustercomm/internal/comm/ticket"
	"github.com/shardmesh/clustercomm/internal/comm/transport"
	"github.com/shardmesh/clustercomm/internal/telemetry/metric"
)

// answerSendTimeout bounds the outbound PUT /_api/shard-comm delivery of an
// async answer. It is not caller-configurable: a slow or dead coordinator
// must not be allowed to pin a DB-server send slot indefinitely, and the
// coordinator's own timeout sweep is the real backstop if delivery is lost.
const answerSendTimeout = 10 * time.Second

// syncWaitSlice is the polling granularity of SyncRequest's private
// condition variable, per §4.5's "1-second wait slice".
const syncWaitSlice = time.Second

// Callback is the caller-supplied completion notification for a request
// submitted through AsyncRequest. It runs on the transport driver's
// goroutine (or, for an immediately-resolved terminal result, on the
// calling goroutine) and must return true; a false return is treated as a
// caller-side invariant violation and is logged loudly rather than
// silently ignored.
type Callback func(*ticket.RequestRecord) bool

// ClusterComm is the dispatcher façade: the single entry point callers use
// to issue requests against the cluster and to correlate their answers.
type ClusterComm struct {
	registry *ticket.Registry
	resolver *destination.Resolver
	preparer *request.Preparer
	driver   transport.Driver
	topology destination.Topology
	logger   *slog.Logger

	nolockMu sync.Mutex
	nolock   map[string]bool

	metrics *metric.Registry

	stopOnce     sync.Once
	stopCh       chan struct{}
	workerDone   chan struct{}
	shuttingDown atomic.Bool
}

// New constructs a ClusterComm and starts its background I/O-driving
// worker. topology is consulted directly by AsyncAnswer to find a
// coordinator's endpoint; resolver already wraps the same topology for
// outbound destination resolution.
func New(driver transport.Driver, resolver *destination.Resolver, preparer *request.Preparer, topology destination.Topology, logger *slog.Logger) *ClusterComm {
	if logger == nil {
		logger = slog.Default()
	}
	c := &ClusterComm{
		registry:   ticket.NewRegistry(),
		resolver:   resolver,
		preparer:   preparer,
		driver:     driver,
		topology:   topology,
		logger:     logger,
		nolock:     make(map[string]bool),
		stopCh:     make(chan struct{}),
		workerDone: make(chan struct{}),
	}
	go c.runWorker()
	return c
}

// runWorker is the single dedicated background thread §4.8 requires: it
// drives the transport (workOnce + wait) and sweeps TrackedResponses for
// server-side timeouts, until Shutdown is called.
func (c *ClusterComm) runWorker() {
	defer close(c.workerDone)
	for {
		c.driver.WorkOnce()
		c.registry.SweepTimeouts(time.Now())

		select {
		case <-c.stopCh:
			return
		default:
		}

		c.driver.Wait()
	}
}

// Shutdown stops accepting new submissions, wakes every blocked waiter,
// stops the background worker, and waits for it to exit. No new
// submissions are accepted once Shutdown has been called; AsyncRequest
// returns an immediate terminal BackendUnavailable record instead.
func (c *ClusterComm) Shutdown() {
	c.stopOnce.Do(func() {
		c.shuttingDown.Store(true)
		c.registry.Shutdown()
		close(c.stopCh)
		c.driver.Shutdown()
	})
	<-c.workerDone
}

// SetNolock toggles membership of shardID in the process-wide
// MakeNolockHeaders set that the request preparer consults for shard:
// destinations (§4.2).
func (c *ClusterComm) SetNolock(shardID string, enabled bool) {
	c.nolockMu.Lock()
	defer c.nolockMu.Unlock()
	if enabled {
		c.nolock[shardID] = true
	} else {
		delete(c.nolock, shardID)
	}
}

// SetMetrics attaches a metrics registry for finalize/PerformRequests to
// record against. Nil (the default) disables metrics recording entirely.
func (c *ClusterComm) SetMetrics(m *metric.Registry) {
	c.metrics = m
}

func (c *ClusterComm) isNolock(shardID string) bool {
	if shardID == "" {
		return false
	}
	c.nolockMu.Lock()
	defer c.nolockMu.Unlock()
	return c.nolock[shardID]
}

// AsyncRequest is §4.5's asyncRequest: resolve, prepare, submit, and return
// a ticket immediately. initTimeout <= 0 means "use timeout for the
// connect phase too".
func (c *ClusterComm) AsyncRequest(
	clientTxID string, coordTxID uint64,
	dest, method, path string, body []byte, headers http.Header,
	callback Callback,
	timeout, initTimeout time.Duration,
	singleRequest bool,
) ticket.Ticket {
	tkt := c.registry.NextTicket()
	now := time.Now()

	if c.shuttingDown.Load() {
		return c.terminalImmediate(tkt, clientTxID, coordTxID, singleRequest, now, ticket.BackendUnavailable,
			"dispatcher is shutting down", callback)
	}

	res := c.resolver.Resolve(dest, true)
	if res.Failed() {
		return c.terminalImmediate(tkt, clientTxID, coordTxID, singleRequest, now, ticket.BackendUnavailable,
			res.FailureMessage, callback)
	}

	nolock := c.isNolock(res.Destination.ShardID)
	req, err := c.preparer.Prepare(res.Destination, method, path, body, headers, request.Options{
		ClientTxID:    clientTxID,
		CoordTxID:     coordTxID,
		Ticket:        tkt,
		SingleRequest: singleRequest,
		Nolock:        nolock,
	})
	if err != nil {
		return c.terminalImmediate(tkt, clientTxID, coordTxID, singleRequest, now, ticket.BackendUnavailable,
			fmt.Sprintf("failed to prepare request: %v", err), callback)
	}
	if req == nil {
		// Prepare never returns (nil, nil); a resolved destination with no
		// request and no error is the structural-impossibility case §7
		// reserves panic for, rather than a reportable status.
		panic("dispatcher: internal invariant violated: resolved request is nil with no error recorded")
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = now.Add(timeout)
	}

	rec := &ticket.RequestRecord{
		ClientTxID:  clientTxID,
		CoordTxID:   coordTxID,
		Destination: res.Destination,
		Ticket:      tkt,
		Status:      ticket.Submitted,
		Single:      singleRequest,
		SubmitTime:  now,
		Deadline:    deadline,
		Notify:      callback,
	}
	c.registry.Insert(rec)

	connectTimeout := initTimeout
	if connectTimeout <= 0 {
		connectTimeout = timeout
	}

	submitErr := c.driver.Submit(tkt, req, transport.Callbacks{
		OnSuccess: func(resp *transport.Response) { c.onSuccess(tkt, resp) },
		OnError:   func(code transport.ErrorCode, resp *transport.Response) { c.onError(tkt, code, resp) },
	}, transport.Options{ConnectTimeout: connectTimeout, RequestTimeout: timeout})

	if submitErr != nil {
		c.registry.Update(tkt, func(r *ticket.RequestRecord) {
			r.Status = ticket.BackendUnavailable
			r.ErrorMessage = submitErr.Error()
		})
		c.finalize(tkt)
	}

	return tkt
}

// terminalImmediate handles the submit-time failure path of §4.5 step 2: a
// ticket is still assigned, a terminal record is inserted, waiters are
// woken, and a caller callback (if any) fires synchronously before
// AsyncRequest returns.
func (c *ClusterComm) terminalImmediate(
	tkt ticket.Ticket, clientTxID string, coordTxID uint64, single bool, now time.Time,
	status ticket.Status, msg string, callback Callback,
) ticket.Ticket {
	rec := &ticket.RequestRecord{
		ClientTxID:   clientTxID,
		CoordTxID:    coordTxID,
		Ticket:       tkt,
		Status:       status,
		ErrorMessage: msg,
		Single:       single,
		SubmitTime:   now,
		Notify:       callback,
	}
	c.registry.Insert(rec)
	c.registry.Broadcast()
	if callback != nil {
		c.finalize(tkt)
	}
	return tkt
}

// onSuccess handles a completed transport exchange. For a single request
// this is the final answer: status -> Received. For a non-single
// async-answer request it is only the send completing; the record moves to
// Sent and awaits processAnswer.
func (c *ClusterComm) onSuccess(tkt ticket.Ticket, resp *transport.Response) {
	var dropped, terminal bool
	c.registry.Update(tkt, func(rec *ticket.RequestRecord) {
		if rec.Dropped {
			dropped = true
			return
		}
		rec.Body = resp.Body
		rec.AnswerCode = resp.StatusCode
		if rec.Single {
			rec.Status = ticket.Received
			terminal = true
		} else {
			rec.Status = ticket.Sent
		}
	})

	switch {
	case dropped:
		c.registry.Remove(tkt)
		c.registry.Broadcast()
	case terminal:
		c.finalize(tkt)
	default:
		c.registry.Broadcast()
	}
}

// onError handles a failed transport exchange, mapping the transport's
// ErrorCode onto the dispatcher's status vocabulary per §7. Every outcome
// here is terminal.
func (c *ClusterComm) onError(tkt ticket.Ticket, code transport.ErrorCode, resp *transport.Response) {
	var dropped bool
	c.registry.Update(tkt, func(rec *ticket.RequestRecord) {
		if rec.Dropped {
			dropped = true
			return
		}
		switch code {
		case transport.ErrConnectFailure:
			rec.Status = ticket.BackendUnavailable
			rec.ErrorMessage = "connect failure"
		case transport.ErrSendIncomplete:
			rec.Status = ticket.Timeout
			rec.SendWasComplete = false
			rec.ErrorMessage = "send did not complete before deadline"
		case transport.ErrHTTPError:
			rec.Status = ticket.Error
			if resp != nil {
				rec.AnswerCode = resp.StatusCode
				rec.Body = resp.Body
			}
			rec.ErrorMessage = fmt.Sprintf("http error status %d", statusCodeOf(resp))
		}
	})

	if dropped {
		c.registry.Remove(tkt)
		c.registry.Broadcast()
		return
	}
	c.finalize(tkt)
}

func statusCodeOf(resp *transport.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// finalize notifies a ticket's caller callback (asserting its return is
// true, per §4.5) if one was supplied, then removes the record; absent a
// callback it broadcasts for any blocked wait() to pick up and remove it
// itself.
func (c *ClusterComm) finalize(tkt ticket.Ticket) {
	rec, ok := c.registry.Get(tkt)
	if !ok {
		return
	}
	c.recordCompletion(rec)
	if rec.Notify == nil {
		c.registry.Broadcast()
		return
	}
	if !rec.Notify(rec) {
		c.logger.Error("caller callback returned false for completed ticket", "ticket", tkt)
	}
	c.registry.Remove(tkt)
}

// recordCompletion reports a terminal record's status and latency to the
// attached metrics registry, if any.
func (c *ClusterComm) recordCompletion(rec *ticket.RequestRecord) {
	if c.metrics == nil {
		return
	}
	status := rec.Status.String()
	c.metrics.RequestsTotal.WithLabelValues(status).Inc()
	if !rec.SubmitTime.IsZero() {
		c.metrics.RequestDuration.WithLabelValues(status).Observe(time.Since(rec.SubmitTime).Seconds())
	}
}

// SyncRequest is §4.5's syncRequest: a single request (Single=true) whose
// caller blocks on a private condition variable rather than the shared
// registry one, woken exactly once by its own callback.
func (c *ClusterComm) SyncRequest(
	clientTxID string, coordTxID uint64,
	dest, method, path string, body []byte, headers http.Header,
	timeout time.Duration,
) *ticket.RequestRecord {
	var mu sync.Mutex
	cond := sync.NewCond(&mu)
	done := false
	var result *ticket.RequestRecord

	cb := func(rec *ticket.RequestRecord) bool {
		mu.Lock()
		cp := *rec
		result = &cp
		done = true
		mu.Unlock()
		cond.Signal()
		return true
	}

	tkt := c.AsyncRequest(clientTxID, coordTxID, dest, method, path, body, headers, cb, timeout, 0, true)

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	mu.Lock()
	for !done {
		slice := syncWaitSlice
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			if remaining < slice {
				slice = remaining
			}
		}
		condWaitTimeout(cond, &mu, slice)
	}
	mu.Unlock()

	if !done {
		rec := c.registry.Enquire(tkt)
		return rec
	}
	return result
}

// condWaitTimeout waits on cond for at most d, using a timer goroutine to
// force a wakeup since sync.Cond has no native timed wait — the same
// technique ticket.Registry uses for its shared somethingReceived CV.
func condWaitTimeout(cond *sync.Cond, mu *sync.Mutex, d time.Duration) {
	timer := time.AfterFunc(d, func() {
		mu.Lock()
		cond.Broadcast()
		mu.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}

// Enquire is a read-only peek at a ticket's current record.
func (c *ClusterComm) Enquire(tkt ticket.Ticket) *ticket.RequestRecord {
	return c.registry.Enquire(tkt)
}

// Wait blocks until the matching ticket reaches a terminal status or the
// timeout elapses, per the wildcard matching rule in §4.5.
func (c *ClusterComm) Wait(clientTxID string, coordTxID uint64, tkt ticket.Ticket, shardID string, timeout time.Duration) ticket.RequestRecord {
	return c.registry.Wait(clientTxID, coordTxID, tkt, shardID, timeout)
}

// Drop cancels every tracked record matching the wildcard filter.
func (c *ClusterComm) Drop(clientTxID string, coordTxID uint64, tkt ticket.Ticket, shardID string) {
	c.registry.Drop(clientTxID, coordTxID, tkt, shardID)
}

// AsyncAnswer is the DB-server-side half of the async-answer pattern
// (§4.5): given the inbound request's echoed X-Arango-Coordinator header
// and the local result to relay, it resolves the coordinator's endpoint
// and PUTs the answer to /_api/shard-comm. Delivery failures are logged,
// never propagated — the coordinator's own timeout sweep is the backstop.
func (c *ClusterComm) AsyncAnswer(coordHeader string, statusCode int, body []byte, headers http.Header) {
	serverID, tkt, clientTxID, coordTxID, err := request.ParseCoordinatorHeader(coordHeader)
	if err != nil {
		c.logger.Warn("asyncAnswer: malformed coordinator header", "header", coordHeader, "error", err)
		return
	}

	endpoint, lookupErr := c.topology.GetServerEndpoint(serverID)
	if lookupErr != nil || endpoint == "" {
		c.logger.Warn("asyncAnswer: coordinator endpoint unknown", "coordinator", serverID, "error", lookupErr)
		return
	}

	dest := ticket.Destination{ServerID: serverID, EndpointURL: endpoint}

	answerHeaders := headers.Clone()
	if answerHeaders == nil {
		answerHeaders = make(http.Header)
	}
	answerHeaders.Set(request.CoordinatorHeader, coordHeader)
	answerHeaders.Set(request.ResponseCodeHeader, strconv.Itoa(statusCode))

	req, prepErr := c.preparer.Prepare(dest, http.MethodPut, "/_api/shard-comm", body, answerHeaders, request.Options{
		ClientTxID:    clientTxID,
		CoordTxID:     coordTxID,
		Ticket:        tkt,
		SingleRequest: true,
	})
	if prepErr != nil {
		c.logger.Warn("asyncAnswer: failed to prepare answer request", "error", prepErr)
		return
	}

	sendTkt := c.registry.NextTicket()
	submitErr := c.driver.Submit(sendTkt, req, transport.Callbacks{
		OnSuccess: func(resp *transport.Response) {},
		OnError: func(code transport.ErrorCode, resp *transport.Response) {
			c.logger.Warn("asyncAnswer: failed to deliver answer", "coordinator", serverID, "ticket", tkt, "code", code)
		},
	}, transport.Options{RequestTimeout: answerSendTimeout})
	if submitErr != nil {
		c.logger.Warn("asyncAnswer: transport rejected send", "error", submitErr)
	}
}

// ProcessAnswer is the coordinator-side half: an inbound HTTP request
// carrying an X-Arango-Coordinator header completes a previously-sent
// async-answer request. It returns a non-empty string describing a parse
// or matching failure, and never panics — processAnswer's error channel is
// a string, not an error, per §7's "parse failures are returned as
// strings" boundary.
func (c *ClusterComm) ProcessAnswer(coordHeader string, statusCode int, body []byte, inbound *http.Request) string {
	_, tkt, _, _, err := request.ParseCoordinatorHeader(coordHeader)
	if err != nil {
		return fmt.Sprintf("processAnswer: malformed coordinator header %q: %v", coordHeader, err)
	}

	rec, ok := c.registry.Get(tkt)
	if !ok {
		c.logger.Debug("processAnswer: answer for untracked ticket", "ticket", tkt)
		return "operation was already dropped by sender"
	}

	c.registry.Update(tkt, func(r *ticket.RequestRecord) {
		r.Answer = inbound
		r.AnswerCode = statusCode
		r.Body = body
		r.Status = ticket.Received
	})
	c.recordCompletion(rec)

	if rec.Notify == nil {
		c.registry.Broadcast()
		return ""
	}
	if rec.Notify(rec) {
		c.registry.Remove(tkt)
	} else {
		c.registry.Broadcast()
	}
	return ""
}
