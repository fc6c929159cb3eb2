package answer

import (
	"crypto/rand"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/shardmesh/clustercomm/internal/comm/request"
)

// Dispatcher is the narrow contract Handler and AnswerSender consume from
// ClusterComm.
type Dispatcher interface {
	ProcessAnswer(coordHeader string, statusCode int, body []byte, inbound *http.Request) string
	AsyncAnswer(coordHeader string, statusCode int, body []byte, headers http.Header)
}

// Handler implements the coordinator-side endpoint a DB server PUTs async
// answers to: HTTP PUT /_api/shard-comm.
type Handler struct {
	dispatcher Dispatcher
	logger     *slog.Logger

	idMu      sync.Mutex
	idEntropy *ulid.MonotonicEntropy
}

// NewHandler constructs a Handler bound to the given dispatcher.
func NewHandler(dispatcher Dispatcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		dispatcher: dispatcher,
		logger:     logger,
		idEntropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

// ServeHTTP parses the echoed correlation header and original status code
// off the inbound answer, reads the body, and delegates to
// ClusterComm.ProcessAnswer. It responds 405 to a non-PUT method, 400 on a
// missing coordinator header or body-read failure, 200 otherwise —
// ProcessAnswer's own failure string (malformed header, untracked or
// already-dropped ticket) is logged, not surfaced as an error status, since
// the sender has no useful recovery to take on it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := h.nextRequestID()
	logger := h.logger.With("request_id", reqID)

	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	coordHeader := r.Header.Get(request.CoordinatorHeader)
	if coordHeader == "" {
		logger.Warn("answer: missing coordinator header")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	statusCode := http.StatusOK
	if raw := r.Header.Get(request.ResponseCodeHeader); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			statusCode = parsed
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Warn("answer: failed to read body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if msg := h.dispatcher.ProcessAnswer(coordHeader, statusCode, body, r); msg != "" {
		logger.Debug("answer: processAnswer declined the answer", "reason", msg, "coordinator", coordHeader)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) nextRequestID() string {
	h.idMu.Lock()
	defer h.idMu.Unlock()
	id, err := ulid.New(ulid.Now(), h.idEntropy)
	if err != nil {
		return "req-unknown"
	}
	return id.String()
}
