package dispatcher

import (
	"net/http"
	"time"

	"github.com/shardmesh/clustercomm/internal/comm/ticket"
)

// minInitTimeout/maxInitTimeout bound performRequests' per-request
// localInitTimeout clamp in §4.7 step 3a.
const (
	minInitTimeout = time.Second
	maxInitTimeout = 10 * time.Second
)

// minBackoff/maxBackoff bound the reschedule delay in §4.7 step 3c.
const (
	minBackoff = 200 * time.Millisecond
	maxBackoff = 10 * time.Second
)

// dropSleepCap bounds the idle sleep performRequests takes when nothing is
// in flight and the matching wait() call reports Dropped (§4.7 step 3c).
const dropSleepCap = 500 * time.Millisecond

// RequestSpec is one sub-request of a performRequests fan-out.
type RequestSpec struct {
	Destination string
	Method      string
	Path        string
	Body        []byte
	Headers     http.Header

	// Result is populated in place once the sub-request finishes (whether
	// successfully, by timeout, or by exhausting retries).
	Result ticket.RequestRecord
	// Done reports whether Result is final.
	Done bool
}

// fanoutState tracks one in-flight sub-request across performRequests'
// retry loop.
type fanoutState struct {
	spec    *RequestSpec
	dueTime time.Time
	ticket  ticket.Ticket
}

// PerformRequests is §4.7's performRequests: submit every spec concurrently
// under one shared coordTxId, retrying only ConnectFailure/SendIncomplete
// with exponential backoff, bounded by the overall timeout. It returns the
// number of sub-requests that completed with an HTTP 200/201/202 result.
//
// The size == 1 fast path described in §4.7 is intentionally not
// special-cased: §9's Open Question notes an implementer may omit it
// without changing external behavior, and the general path already
// produces the same observable result for a single request.
func (c *ClusterComm) PerformRequests(specs []*RequestSpec, timeout time.Duration) (successCount, nrDone int) {
	if len(specs) == 0 || timeout <= 0 {
		return 0, 0
	}

	coordTxID := uint64(c.registry.NextTicket())

	start := time.Now()
	endTime := start.Add(timeout)

	states := make([]*fanoutState, len(specs))
	for i, spec := range specs {
		states[i] = &fanoutState{spec: spec, dueTime: start}
	}

	pending := make(map[ticket.Ticket]*fanoutState)

	allDone := func() bool {
		for _, st := range states {
			if !st.spec.Done {
				return false
			}
		}
		return true
	}

	for {
		now := time.Now()
		if now.After(endTime) || allDone() {
			break
		}

		for _, st := range states {
			if st.spec.Done || now.Before(st.dueTime) {
				continue
			}

			localInit := clamp(now.Sub(start), minInitTimeout, maxInitTimeout)
			if remaining := endTime.Sub(now); remaining < localInit {
				localInit = remaining
			}
			localTimeout := endTime.Sub(now)

			tkt := c.AsyncRequest("", coordTxID, st.spec.Destination, st.spec.Method, st.spec.Path,
				st.spec.Body, st.spec.Headers, nil, localTimeout, localInit, true)

			st.ticket = tkt
			pending[tkt] = st
			st.dueTime = endTime.Add(maxInitTimeout) // nothing retries unless explicitly rescheduled below
		}

		now = time.Now()
		actionNeeded := endTime
		for _, st := range states {
			if !st.spec.Done && st.dueTime.Before(actionNeeded) {
				actionNeeded = st.dueTime
			}
		}
		if actionNeeded.Before(now) {
			actionNeeded = now
		}

		rec := c.registry.Wait("", coordTxID, 0, "", actionNeeded.Sub(now))

		switch {
		case rec.Status == ticket.Dropped:
			// Either nothing is currently tracked for this coordTxId (a
			// synthesized Dropped from a wildcard match-miss — e.g. the
			// next due sub-request hasn't been submitted yet) or a caller
			// genuinely dropped everything; either way there is nothing to
			// act on until the next scheduled submission.
			time.Sleep(minDuration(dropSleepCap, endTime.Sub(time.Now())))
		case rec.Status == ticket.Received:
			st, ok := pending[rec.Ticket]
			if ok {
				st.spec.Result = rec
				st.spec.Done = true
				delete(pending, rec.Ticket)
			}
		case rec.Status == ticket.BackendUnavailable || (rec.Status == ticket.Timeout && !rec.SendWasComplete):
			st, ok := pending[rec.Ticket]
			if ok {
				delete(pending, rec.Ticket)
				elapsed := time.Since(start)
				backoff := clamp(2*elapsed, minBackoff, maxBackoff)
				st.dueTime = time.Now().Add(backoff)
				if !st.dueTime.Before(endTime) {
					st.spec.Result = rec
					st.spec.Done = true
				} else if c.metrics != nil {
					c.metrics.RetriesTotal.Inc()
				}
			}
		default:
			st, ok := pending[rec.Ticket]
			if ok {
				st.spec.Result = rec
				st.spec.Done = true
				delete(pending, rec.Ticket)
			}
		}
	}

	c.registry.Drop("", coordTxID, 0, "")
	if c.metrics != nil {
		c.metrics.FanoutDuration.Observe(time.Since(start).Seconds())
	}

	for _, st := range states {
		if !st.spec.Done {
			st.spec.Result = ticket.RequestRecord{Ticket: st.ticket, Status: ticket.Dropped}
			st.spec.Done = true
		}
		nrDone++
		if isSuccessCode(st.spec.Result.AnswerCode) {
			successCount++
		}
	}

	return successCount, nrDone
}

func isSuccessCode(code int) bool {
	return code == http.StatusOK || code == http.StatusCreated || code == http.StatusAccepted
}

func clamp(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
