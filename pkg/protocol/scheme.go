package protocol

import (
	"math/big"

	"github.com/taurusgroup/vhss/pkg/field"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/share"
)

// Scheme is the client side of a construction.
//
// ShareSecret is synchronous and self-contained: all randomness is sampled
// freshly for every call, so concurrent calls share nothing.
type Scheme interface {
	Construction() share.Construction
	ShareSecret(secret *big.Int, tag share.Tag) (*share.Bundle, error)
}

// Evaluator is the server side of a construction. It folds the shares a server
// received for one round into a Partial.
type Evaluator interface {
	Construction() share.Construction
	Evaluate(server party.ID, round share.RoundKey, shares []*share.ServerShare) (*share.Partial, error)
}

// RoundVerifier is the verifier side of a construction.
type RoundVerifier interface {
	Construction() share.Construction
	// Needs declares the client artifacts needed, on top of all server partials.
	Needs() share.Needs
	// Verify reconstructs the sum of the round and checks it. A failed check is
	// reported through Outcome.Valid, errors are reserved for unusable input.
	Verify(in *share.RoundInput) (*share.Outcome, error)
}

// Directory provides the servers and security threshold of a substation.
type Directory interface {
	Servers(substation string) (party.IDSlice, error)
	Threshold(substation string) (int, error)
}

// FieldSource provides the prime field of a substation.
type FieldSource interface {
	Field(substation string) (*field.Field, error)
}

// Setup resolves the servers, threshold and field for a round, failing before any
// cryptographic work if something is missing.
func Setup(dir Directory, fields FieldSource, substation string) (party.IDSlice, int, *field.Field, error) {
	servers, err := dir.Servers(substation)
	if err != nil {
		return nil, 0, nil, err
	}
	if len(servers) == 0 {
		return nil, 0, nil, ErrNoServers
	}
	t, err := dir.Threshold(substation)
	if err != nil {
		return nil, 0, nil, err
	}
	if err = ValidateThreshold(t, len(servers)); err != nil {
		return nil, 0, nil, err
	}
	if fields == nil {
		return servers, t, nil, nil
	}
	f, err := fields.Field(substation)
	if err != nil {
		return nil, 0, nil, err
	}
	if f == nil {
		return nil, 0, nil, ErrNoParameters
	}
	return servers, t, f, nil
}
