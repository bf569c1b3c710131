// Package rsathreshold extends the homomorphic construction with a single-use
// threshold RSA signature on every client's commitment.
//
// For every call to ShareSecret the client derives a fresh key (N, e, d), splits d
// with an m × t matrix A into one key share per server, and sends each server its
// row of A⋅(d, r₁, …, rₜ₋₁) together with A, N and the commitment τ. Servers
// partially sign τ with their key share; the verifier recombines t partial
// signatures into τᵈ and checks it against e.
package rsathreshold

import (
	"fmt"
	"io"
	"math/big"

	"github.com/rs/zerolog/log"

	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
	"github.com/taurusgroup/vhss/protocols/homomorphic"
)

// Scheme is the client side of the construction.
type Scheme struct {
	rand        io.Reader
	directory   protocol.Directory
	fields      protocol.FieldSource
	primes      PrimeSource
	commitments *homomorphic.Scheme
}

var _ protocol.Scheme = (*Scheme)(nil)

// New returns a Scheme drawing randomness from rand, and RSA primes from primes.
func New(rand io.Reader, directory protocol.Directory, fields protocol.FieldSource, primes PrimeSource) *Scheme {
	return &Scheme{
		rand:        rand,
		directory:   directory,
		fields:      fields,
		primes:      primes,
		commitments: homomorphic.New(rand, directory, fields),
	}
}

// Construction implements protocol.Scheme.
func (*Scheme) Construction() share.Construction { return share.RSAThreshold }

// ShareSecret implements protocol.Scheme.
func (s *Scheme) ShareSecret(secret *big.Int, tag share.Tag) (*share.Bundle, error) {
	if tag.Construction != share.RSAThreshold {
		return nil, fmt.Errorf("rsathreshold.ShareSecret: %w: %s", protocol.ErrWrongConstruction, tag.Construction)
	}
	servers, t, f, err := protocol.Setup(s.directory, s.fields, tag.Substation)
	if err != nil {
		return nil, fmt.Errorf("rsathreshold.ShareSecret: %w", err)
	}
	if s.primes == nil {
		return nil, fmt.Errorf("rsathreshold.ShareSecret: %w: no RSA primes", protocol.ErrNoParameters)
	}
	primes, err := s.primes.RSAPrimes(tag.Substation, tag.FID)
	if err != nil {
		return nil, fmt.Errorf("rsathreshold.ShareSecret: %w", err)
	}
	key, err := GenerateKey(s.rand, primes, f.P(), len(servers), t)
	if err != nil {
		return nil, fmt.Errorf("rsathreshold.ShareSecret: %w", err)
	}

	bundle, err := s.commitments.Share(secret, tag)
	if err != nil {
		return nil, fmt.Errorf("rsathreshold.ShareSecret: %w", err)
	}
	for row, id := range servers {
		sh, ok := bundle.Shares[id]
		if !ok {
			return nil, fmt.Errorf("rsathreshold.ShareSecret: no share for %s", id)
		}
		sh.RSA = &share.RSAKeyShare{
			Commitment: new(big.Int).Set(bundle.Verifier.Commitment),
			Row:        row,
			KeyShare:   key.Shares[row],
			Matrix:     key.Matrix.ToRows(),
			N:          new(big.Int).Set(key.N),
		}
	}
	bundle.Verifier.PublicExponent = key.E

	log.Debug().
		Stringer("round", tag.RoundKey()).
		Str("client", string(tag.Client)).
		Int("modulusBits", key.N.BitLen()).
		Msg("threshold key generated")
	return bundle, nil
}
