// Package identity implements the coordinator's server-identity/auth
// collaborator: this node's server id and the Authorization header value the
// dispatcher's request preparer injects into every outbound request.
package identity
