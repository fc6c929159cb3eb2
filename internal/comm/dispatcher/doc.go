// Package dispatcher implements ClusterComm, the asynchronous inter-node
// RPC dispatcher: request submission (asyncRequest/syncRequest), caller
// polling and cancellation (enquire/wait/drop), fan-out batching
// (performRequests), and async-answer correlation (asyncAnswer on the
// sending side, processAnswer on the receiving side).
//
// ClusterComm owns no network code of its own; it drives a
// destination.Resolver, a request.Preparer, a transport.Driver, and a
// ticket.Registry, all consumed through narrow interfaces so any of the
// four can be swapped independently (notably the transport.Driver, which
// is the only piece that touches a socket).
package dispatcher
