// Package ticket implements the dispatcher's ticket registry: process-unique
// ticket allocation and the single TrackedResponses table (guarded by one
// mutex and a "somethingReceived" condition variable) that all dispatcher
// operations read and mutate.
package ticket
