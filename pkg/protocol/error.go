package protocol

import (
	"errors"
	"fmt"

	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/share"
)

var (
	// ErrNoServers is returned when no server list is available for a substation.
	ErrNoServers = errors.New("protocol: no servers available")
	// ErrNoParameters is returned when the public parameters of a construction are missing.
	ErrNoParameters = errors.New("protocol: public parameters unavailable")
	// ErrInvalidThreshold is returned unless 1 ≤ t ≤ m-1.
	ErrInvalidThreshold = errors.New("protocol: invalid threshold")
	// ErrWrongConstruction is returned when a record is handed to the wrong scheme.
	ErrWrongConstruction = errors.New("protocol: record belongs to another construction")
	// ErrSecretOutOfRange is returned for a secret outside of the range a construction can share.
	ErrSecretOutOfRange = errors.New("protocol: secret out of range")
)

// Error is a custom error for protocols which contains information about the round in
// which it occurred, and the party responsible.
type Error struct {
	// Round where the error occurred
	Round share.RoundKey
	// Culprit is empty if the identity of the misbehaving party cannot be known
	Culprit party.ID
	// Err is the underlying error
	Err error
}

func (e Error) Error() string {
	if e.Culprit == "" {
		return fmt.Sprintf("round %s: %s", e.Round, e.Err)
	}
	return fmt.Sprintf("round %s: party: %s: %s", e.Round, e.Culprit, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// ValidateThreshold checks 1 ≤ t ≤ m-1.
func ValidateThreshold(t, m int) error {
	if m < 2 {
		return fmt.Errorf("%w: need at least 2 servers, have %d", ErrNoServers, m)
	}
	if t < 1 || t > m-1 {
		return fmt.Errorf("%w: t = %d with %d servers", ErrInvalidThreshold, t, m)
	}
	return nil
}
