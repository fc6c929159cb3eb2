// Package request builds the outbound *http.Request for a resolved
// destination: injecting standard headers (authorization, coordinator
// identity, HLC timestamp, optional shard-nolock, optional async-answer
// correlation) and canonicalizing the endpoint scheme.
package request
