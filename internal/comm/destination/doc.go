// Package destination resolves a destination string against the cluster
// topology service, producing either a fully resolved endpoint or a terminal
// BackendUnavailable failure.
package destination
