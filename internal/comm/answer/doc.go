// Package answer provides the HTTP-facing plumbing around the async-answer
// correlation pattern: an inbound handler that turns a coordinator-side PUT
// /_api/shard-comm into a ClusterComm.ProcessAnswer call, and an
// AnswerSender facade DB-server code uses to relay a completed local result
// back to the coordinator via ClusterComm.AsyncAnswer.
//
// Neither type reimplements the correlation logic itself — that lives on
// ClusterComm, since it already owns the ticket registry and the shared
// transport driver. This package only owns the concerns specific to sitting
// on an HTTP boundary: parsing headers off an inbound request, assigning a
// request id for log correlation, and translating failures into status
// codes.
package answer
