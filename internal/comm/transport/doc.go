// Package transport implements the dispatcher's shared multi-connection
// HTTP engine: submit/workOnce/wait over a bounded worker pool, built on
// net/http.Client (whose own Transport already pools and multiplexes
// connections per host) plus a per-destination rate limiter guarding
// against a flapping peer monopolizing the shared connection budget.
package transport
