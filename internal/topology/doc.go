// Package topology implements the cluster topology service that the
// dispatcher consumes through a narrow interface: shard-to-server and
// server-to-endpoint lookup.
//
// Internally the shard assignment table is replicated across coordinator
// replicas via Raft consensus, membership of DB-server peers is tracked via
// Gossip, and the last-known assignment table is cached to disk so a
// restarted coordinator can resolve destinations before Raft has caught up.
package topology
