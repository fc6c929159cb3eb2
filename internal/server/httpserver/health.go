package httpserver

import (
	"encoding/json"
	"net/http"
	"time"
)

// healthHandler reports liveness unconditionally — the process is up.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeHealthJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadyFunc reports whether the coordinator is ready to serve traffic.
// clustercommd installs one that always returns true; it checks neither
// Raft leadership nor the dispatcher's worker.
type ReadyFunc func() bool

// readyHandler reports readiness via isReady, used as the readiness gate a
// load balancer or orchestrator polls before routing traffic to this node.
func readyHandler(isReady ReadyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !isReady() {
			writeHealthJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeHealthJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func writeHealthJSON(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
