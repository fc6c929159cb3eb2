package identity

import (
	"fmt"

	"github.com/shardmesh/clustercomm/pkg/token"
)

// Service implements the dispatcher's identity contract: selfServerID() and
// authenticationHeaderValue().
type Service struct {
	serverID string
	bearer   string
}

// New creates an identity service for serverID, generating a fresh bearer
// credential.
func New(serverID string) (*Service, error) {
	bearer, err := token.Generate()
	if err != nil {
		return nil, fmt.Errorf("identity: generate credential: %w", err)
	}
	return &Service{serverID: serverID, bearer: bearer}, nil
}

// NewWithCredential creates an identity service using a pre-provisioned
// bearer credential instead of generating a fresh one, for coordinators that
// share a cluster-wide superuser credential distributed out of band.
func NewWithCredential(serverID, bearer string) *Service {
	return &Service{serverID: serverID, bearer: bearer}
}

// SelfServerID returns this coordinator's server id, used to populate the
// leading field of the X-Arango-Coordinator correlation header.
func (s *Service) SelfServerID() string { return s.serverID }

// AuthenticationHeaderValue returns the Authorization header value injected
// into every outbound dispatcher request.
func (s *Service) AuthenticationHeaderValue() string {
	return "bearer " + s.bearer
}
