// Package homomorphic implements sharing with a discrete-log commitment.
//
// A client with secret s draws a nonce n ∈ [0, p), publishes τ = g^(s+n) (mod p)
// and sends every server a weighted share of s. Servers sum their shares and prove
// the sum as g^Σ. The verifier multiplies all τ together with a term cancelling
// the sum of the nonces, and compares the product with g^(Σ partial sums) and with
// the product of the servers' proofs.
package homomorphic

import (
	"fmt"
	"io"
	"math/big"

	"github.com/rs/zerolog/log"

	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
)

// Scheme is the client side of the construction.
type Scheme struct {
	rand      io.Reader
	directory protocol.Directory
	fields    protocol.FieldSource
}

var _ protocol.Scheme = (*Scheme)(nil)

// New returns a Scheme drawing randomness from rand.
func New(rand io.Reader, directory protocol.Directory, fields protocol.FieldSource) *Scheme {
	return &Scheme{rand: rand, directory: directory, fields: fields}
}

// Construction implements protocol.Scheme.
func (*Scheme) Construction() share.Construction { return share.HomomorphicHash }

// ShareSecret implements protocol.Scheme.
func (s *Scheme) ShareSecret(secret *big.Int, tag share.Tag) (*share.Bundle, error) {
	if tag.Construction != share.HomomorphicHash {
		return nil, fmt.Errorf("homomorphic.ShareSecret: %w: %s", protocol.ErrWrongConstruction, tag.Construction)
	}
	return s.Share(secret, tag)
}

// Share builds the shares, nonce and commitment of secret without checking the
// construction of tag, so that other constructions can extend the bundle.
func (s *Scheme) Share(secret *big.Int, tag share.Tag) (*share.Bundle, error) {
	if secret == nil {
		return nil, fmt.Errorf("homomorphic.Share: nil secret")
	}
	if err := tag.Validate(); err != nil {
		return nil, fmt.Errorf("homomorphic.Share: %w", err)
	}
	servers, t, f, err := protocol.Setup(s.directory, s.fields, tag.Substation)
	if err != nil {
		return nil, fmt.Errorf("homomorphic.Share: %w", err)
	}

	if secret.Sign() < 0 || secret.Cmp(f.Order()) >= 0 {
		return nil, fmt.Errorf("homomorphic.Share: %w: %v ∉ [0, %v)", protocol.ErrSecretOutOfRange, secret, f.Order())
	}

	nonce := f.RandomElement(s.rand)
	// τ = g^(secret+nonce) (mod p)
	commitment := f.Hash(new(big.Int).Add(secret, nonce))

	// shares live in the exponent of g, so they are reduced mod ϕ(p)
	values, err := protocol.Distribute(s.rand, secret, f.Order(), servers, t)
	if err != nil {
		return nil, fmt.Errorf("homomorphic.Share: %w", err)
	}

	bundle := &share.Bundle{
		Tag:      tag,
		Shares:   make(map[party.ID]*share.ServerShare, len(values)),
		Nonce:    &share.NonceRecord{Tag: tag, Nonce: nonce},
		Verifier: &share.VerifierRecord{Tag: tag, Commitment: commitment},
	}
	for id, v := range values {
		bundle.Shares[id] = &share.ServerShare{Tag: tag, Server: id, Value: v}
	}

	log.Debug().
		Stringer("round", tag.RoundKey()).
		Str("client", string(tag.Client)).
		Int("servers", len(servers)).
		Int("threshold", t).
		Msg("shared secret")
	return bundle, nil
}
