package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shardmesh/clustercomm/internal/comm/ticket"
)

// Callbacks are invoked exactly once per ticket, from the driver thread
// (the single goroutine that calls WorkOnce).
type Callbacks struct {
	OnSuccess func(resp *Response)
	OnError   func(code ErrorCode, resp *Response)
}

// ErrorCode classifies why a request did not complete successfully.
type ErrorCode int

const (
	// ErrConnectFailure means the transport could not establish a
	// connection to the destination.
	ErrConnectFailure ErrorCode = iota
	// ErrSendIncomplete means the deadline elapsed before the request was
	// fully sent.
	ErrSendIncomplete
	// ErrHTTPError means the exchange completed but returned an HTTP-level
	// error status understood as a failure by the caller.
	ErrHTTPError
)

// Response is the transport-level result of a completed request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Options bounds a single submitted request. ConnectTimeout and
// RequestTimeout are combined into a single context deadline: net/http's
// shared, pooled Transport has no per-call connect-phase hook, so the
// larger of the two values bounds the whole connect+send+read exchange.
type Options struct {
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// deadline returns the effective context deadline for opts.
func (o Options) deadline() time.Duration {
	if o.ConnectTimeout > o.RequestTimeout {
		return o.ConnectTimeout
	}
	return o.RequestTimeout
}

// Driver is the transport engine's external contract: submit is safe from
// any goroutine; WorkOnce/Wait are driven from one dedicated goroutine.
type Driver interface {
	Submit(tkt ticket.Ticket, req *http.Request, cb Callbacks, opts Options) error
	WorkOnce()
	Wait()
	Shutdown()
}

// completion is one finished request, queued for delivery by WorkOnce.
type completion struct {
	tkt  ticket.Ticket
	cb   Callbacks
	code ErrorCode
	resp *Response
	ok   bool
}

// HTTPDriver is the concrete Driver built on net/http.Client. Go's
// http.Transport already pools and multiplexes connections per host, so the
// concurrency control point here is a bounded worker pool plus a
// per-destination-host rate limiter, not a hand-rolled poll loop.
type HTTPDriver struct {
	client *http.Client
	cfg    Config

	sem chan struct{} // bounds concurrent in-flight requests

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	done      chan completion
	wake      chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

// Config configures an HTTPDriver.
type Config struct {
	// MaxConcurrent bounds in-flight requests across all destinations.
	MaxConcurrent int
	// PerHostRate bounds requests started per destination host per second
	// (every request waits on its host's token bucket), guarding against a
	// flapping peer monopolizing the shared budget. Zero disables the limiter.
	PerHostRate rate.Limit
	// PerHostBurst is the token bucket burst size for PerHostRate.
	PerHostBurst int
	// TLSClientConfig is used for https:// (ssl://) destinations.
	TLSClientConfig *tls.Config
}

// NewHTTPDriver creates an HTTPDriver.
func NewHTTPDriver(cfg Config) *HTTPDriver {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 64
	}

	transport := &http.Transport{
		TLSClientConfig: cfg.TLSClientConfig,
	}

	return &HTTPDriver{
		client:   &http.Client{Transport: transport},
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		limiters: make(map[string]*rate.Limiter),
		done:     make(chan completion, cfg.MaxConcurrent),
		wake:     make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

func (d *HTTPDriver) limiterFor(host string) *rate.Limiter {
	if d.cfg.PerHostRate <= 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	lim, ok := d.limiters[host]
	if !ok {
		lim = rate.NewLimiter(d.cfg.PerHostRate, d.cfg.PerHostBurst)
		d.limiters[host] = lim
	}
	return lim
}

// Submit schedules req for asynchronous execution. It is safe to call from
// any goroutine.
func (d *HTTPDriver) Submit(tkt ticket.Ticket, req *http.Request, cb Callbacks, opts Options) error {
	select {
	case <-d.closed:
		return fmt.Errorf("transport: driver is shut down")
	default:
	}

	go d.run(tkt, req, cb, opts)
	return nil
}

func (d *HTTPDriver) run(tkt ticket.Ticket, req *http.Request, cb Callbacks, opts Options) {
	select {
	case d.sem <- struct{}{}:
		defer func() { <-d.sem }()
	case <-d.closed:
		d.deliver(completion{tkt: tkt, cb: cb, code: ErrConnectFailure})
		return
	}

	if lim := d.limiterFor(req.URL.Host); lim != nil {
		if err := lim.Wait(req.Context()); err != nil {
			d.deliver(completion{tkt: tkt, cb: cb, code: ErrConnectFailure})
			return
		}
	}

	ctx := req.Context()
	var cancel context.CancelFunc
	if d := opts.deadline(); d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	req = req.WithContext(ctx)

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			d.deliver(completion{tkt: tkt, cb: cb, code: ErrSendIncomplete})
			return
		}
		d.deliver(completion{tkt: tkt, cb: cb, code: ErrConnectFailure})
		return
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		d.deliver(completion{tkt: tkt, cb: cb, code: ErrSendIncomplete})
		return
	}

	result := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}

	if resp.StatusCode >= 400 {
		d.deliver(completion{tkt: tkt, cb: cb, code: ErrHTTPError, resp: result})
		return
	}

	d.deliver(completion{tkt: tkt, cb: cb, resp: result, ok: true})
}

func (d *HTTPDriver) deliver(c completion) {
	select {
	case d.done <- c:
	case <-d.closed:
	}
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// WorkOnce performs one non-blocking drive of completed I/O, firing every
// callback that is currently ready. Must be called from a single dedicated
// goroutine.
func (d *HTTPDriver) WorkOnce() {
	for {
		select {
		case c := <-d.done:
			d.fire(c)
		default:
			return
		}
	}
}

func (d *HTTPDriver) fire(c completion) {
	if c.ok {
		if c.cb.OnSuccess != nil {
			c.cb.OnSuccess(c.resp)
		}
		return
	}
	if c.cb.OnError != nil {
		c.cb.OnError(c.code, c.resp)
	}
}

// Wait blocks until there is I/O to drive or an explicit wakeup, whichever
// comes first. Must be called from the same dedicated goroutine as WorkOnce.
func (d *HTTPDriver) Wait() {
	select {
	case <-d.wake:
	case <-d.closed:
	}
}

// Shutdown stops accepting new work and wakes any blocked Wait call.
func (d *HTTPDriver) Shutdown() {
	d.closeOnce.Do(func() {
		close(d.closed)
	})
}
