package answer

import "net/http"

// AnswerSender is the DB-server-side facade for relaying a completed local
// result back to the coordinator that issued it. It reuses the shared
// transport driver's client through the underlying Dispatcher rather than
// maintaining a connection pool of its own — Go's http.Transport already
// pools connections per host.
type AnswerSender struct {
	dispatcher Dispatcher
}

// NewAnswerSender wraps a dispatcher for answer delivery.
func NewAnswerSender(dispatcher Dispatcher) *AnswerSender {
	return &AnswerSender{dispatcher: dispatcher}
}

// Send relays a local result for the request identified by coordHeader
// (the echoed X-Arango-Coordinator header value from the original inbound
// request) back to its issuing coordinator. Delivery is best-effort: a
// failure is logged by the dispatcher, never returned here, since the
// coordinator's timeout sweep is the real backstop for a lost answer.
func (s *AnswerSender) Send(coordHeader string, statusCode int, body []byte, headers http.Header) {
	s.dispatcher.AsyncAnswer(coordHeader, statusCode, body, headers)
}
