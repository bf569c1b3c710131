// Package linear implements sharing with a delayed linearly homomorphic signature.
//
// A client first shares its secret s mod N together with a nonce n ∈ [0, N)
// (Share, giving an UnsignedShare). It then signs s+n (Sign, giving a SignedShare):
// with a salt s' ∈ [0, N⋅ê) it publishes x, the (N⋅ê)-th root of
// g₁^s'⋅h(client)⋅g₂^(s+n) mod N̂. Products of such x verify against the sum of the
// secrets reconstructed by the servers, once the verifier cancels the nonces.
package linear

import (
	"fmt"
	"io"
	"math/big"

	"github.com/rs/zerolog/log"

	"github.com/taurusgroup/vhss/pkg/math/sample"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
)

// UnsignedShare is the first stage of sharing: the servers' shares and the nonce,
// before the signature is computed.
type UnsignedShare struct {
	share.Tag
	Shares map[party.ID]*share.ServerShare
	Nonce  *share.NonceRecord
}

// SignedShare is an UnsignedShare completed with the client's signature.
type SignedShare struct {
	UnsignedShare
	Proof *share.LinearProof
}

// Bundle returns the records of s, ready to be routed.
func (s *SignedShare) Bundle() *share.Bundle {
	return &share.Bundle{
		Tag:      s.Tag,
		Shares:   s.Shares,
		Nonce:    s.Nonce,
		Verifier: &share.VerifierRecord{Tag: s.Tag, Linear: s.Proof},
	}
}

// Scheme is the client side of the construction.
type Scheme struct {
	rand      io.Reader
	directory protocol.Directory
	params    ParameterSource
}

var _ protocol.Scheme = (*Scheme)(nil)

// New returns a Scheme drawing randomness from rand.
func New(rand io.Reader, directory protocol.Directory, params ParameterSource) *Scheme {
	return &Scheme{rand: rand, directory: directory, params: params}
}

// Construction implements protocol.Scheme.
func (*Scheme) Construction() share.Construction { return share.LinearSignature }

// ShareSecret implements protocol.Scheme by running Share and Sign.
func (s *Scheme) ShareSecret(secret *big.Int, tag share.Tag) (*share.Bundle, error) {
	unsigned, err := s.Share(secret, tag)
	if err != nil {
		return nil, err
	}
	signed, err := s.Sign(unsigned, secret)
	if err != nil {
		return nil, err
	}
	return signed.Bundle(), nil
}

func (s *Scheme) parameters(substation string) (*PublicParameters, error) {
	if s.params == nil {
		return nil, protocol.ErrNoParameters
	}
	pp, err := s.params.LinearParameters(substation)
	if err != nil {
		return nil, err
	}
	if pp == nil {
		return nil, protocol.ErrNoParameters
	}
	if err = pp.Validate(); err != nil {
		return nil, err
	}
	return pp, nil
}

// Share splits secret mod N between the servers and draws the nonce.
func (s *Scheme) Share(secret *big.Int, tag share.Tag) (*UnsignedShare, error) {
	if tag.Construction != share.LinearSignature {
		return nil, fmt.Errorf("linear.Share: %w: %s", protocol.ErrWrongConstruction, tag.Construction)
	}
	if secret == nil {
		return nil, fmt.Errorf("linear.Share: nil secret")
	}
	if err := tag.Validate(); err != nil {
		return nil, fmt.Errorf("linear.Share: %w", err)
	}
	servers, t, _, err := protocol.Setup(s.directory, nil, tag.Substation)
	if err != nil {
		return nil, fmt.Errorf("linear.Share: %w", err)
	}
	pp, err := s.parameters(tag.Substation)
	if err != nil {
		return nil, fmt.Errorf("linear.Share: %w", err)
	}
	if secret.Sign() < 0 || secret.Cmp(pp.N) >= 0 {
		return nil, fmt.Errorf("linear.Share: %w: %v ∉ [0, N)", protocol.ErrSecretOutOfRange, secret)
	}

	values, err := protocol.Distribute(s.rand, secret, pp.N, servers, t)
	if err != nil {
		return nil, fmt.Errorf("linear.Share: %w", err)
	}
	u := &UnsignedShare{
		Tag:    tag,
		Shares: make(map[party.ID]*share.ServerShare, len(values)),
		Nonce:  &share.NonceRecord{Tag: tag, Nonce: sample.ModN(s.rand, pp.N)},
	}
	for id, v := range values {
		u.Shares[id] = &share.ServerShare{Tag: tag, Server: id, Value: v}
	}
	return u, nil
}

// Sign computes the signature of u for secret. u is not modified.
func (s *Scheme) Sign(u *UnsignedShare, secret *big.Int) (*SignedShare, error) {
	if u == nil || u.Nonce == nil || u.Nonce.Nonce == nil {
		return nil, fmt.Errorf("linear.Sign: missing nonce")
	}
	if secret == nil {
		return nil, fmt.Errorf("linear.Sign: nil secret")
	}
	pp, err := s.parameters(u.Substation)
	if err != nil {
		return nil, fmt.Errorf("linear.Sign: %w", err)
	}
	if secret.Sign() < 0 || secret.Cmp(pp.N) >= 0 {
		return nil, fmt.Errorf("linear.Sign: %w: %v ∉ [0, N)", protocol.ErrSecretOutOfRange, secret)
	}
	nE := new(big.Int).Mul(pp.N, pp.E)
	salt := sample.ModN(s.rand, nE)
	xR := new(big.Int).Add(u.Nonce.Nonce, secret)

	// xᴺᵉ = g₁ˢ⋅h(client)⋅g₂^(nonce+secret) (mod N̂)
	key := pp.Key
	xToE := key.Mul(key.Exp(pp.G1, salt), pp.H(u.Client), key.Exp(pp.G2, xR))
	x, err := key.Root(xToE, nE)
	if err != nil {
		return nil, fmt.Errorf("linear.Sign: %w", err)
	}

	log.Debug().
		Stringer("round", u.RoundKey()).
		Str("client", string(u.Client)).
		Msg("signed share")
	return &SignedShare{
		UnsignedShare: *u,
		Proof: &share.LinearProof{
			E: new(big.Int).Set(pp.E),
			S: salt,
			X: x,
		},
	}, nil
}
