// Package httpserver provides the coordinator's HTTP listener: the
// dispatcher's own inbound async-answer endpoint, the inter-coordinator
// topology control plane, and health/metrics surfaces, all using the
// standard library net/http.
package httpserver

import (
	"context"
	"crypto/tls"
	"net/http"
)

// Server wraps an http.Server with the lifecycle methods the daemon needs.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
}

// New creates a new HTTP server.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
		handler: handler,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// ListenAndServeTLS starts the HTTPS server. certFile and keyFile may both
// be empty if SetTLSConfig installed a GetCertificate callback instead.
func (s *Server) ListenAndServeTLS(certFile, keyFile string) error {
	return s.httpServer.ListenAndServeTLS(certFile, keyFile)
}

// SetTLSConfig installs a TLS config, e.g. one sourced from a
// tlsroots.Watcher's GetCertificate, for hot-reloadable server certificates.
func (s *Server) SetTLSConfig(cfg *tls.Config) {
	s.httpServer.TLSConfig = cfg
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
