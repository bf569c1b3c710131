package linear

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog/log"

	"github.com/taurusgroup/vhss/pkg/nonce"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
)

// FinalEval returns Σ partials (mod N), the sum of all clients' secrets.
func FinalEval(partials []*big.Int, pp *PublicParameters) *big.Int {
	return PartialEval(partials, pp.N)
}

// FinalProof aggregates the clients' signatures into x̃ = Π x (mod N̂) and s̃ = Σ s.
func FinalProof(proofs []*share.LinearProof, pp *PublicParameters) (x, s *big.Int) {
	xs := make([]*big.Int, 0, len(proofs))
	s = new(big.Int)
	for _, p := range proofs {
		xs = append(xs, p.X)
		s.Add(s, p.S)
	}
	return pp.Key.Mul(xs...), s
}

// Verify checks x̃^(N⋅ê)⋅g₂^rn ≡ g₁^s̃⋅Π h(client)⋅g₂^y (mod N̂), where rn cancels
// the sum of the clients' nonces and y is the reconstructed sum.
func Verify(pp *PublicParameters, clients party.IDSlice, finalEval, nonceSum, x, s *big.Int) (bool, error) {
	key := pp.Key
	rn, err := nonce.Inverse(nonceSum, key.P(), key.Q())
	if err != nil {
		return false, err
	}
	nE := new(big.Int).Mul(pp.N, pp.E)
	lhs := key.Mul(key.Exp(x, nE), key.Exp(pp.G2, rn))

	factors := make([]*big.Int, 0, len(clients)+2)
	factors = append(factors, key.Exp(pp.G1, s), key.Exp(pp.G2, finalEval))
	for _, id := range clients {
		factors = append(factors, pp.H(id))
	}
	rhs := key.Mul(factors...)
	if lhs.Cmp(rhs) == 0 {
		return true, nil
	}
	log.Warn().
		Str("signatureProof", lhs.String()).
		Str("resultProof", rhs.String()).
		Msg("proofs mismatch")
	return false, nil
}

// Verifier is the verifier side of the construction.
type Verifier struct {
	params ParameterSource
}

var _ protocol.RoundVerifier = (*Verifier)(nil)

// NewVerifier returns a Verifier resolving public parameters from params.
func NewVerifier(params ParameterSource) *Verifier {
	return &Verifier{params: params}
}

// Construction implements protocol.RoundVerifier.
func (*Verifier) Construction() share.Construction { return share.LinearSignature }

// Needs implements protocol.RoundVerifier.
func (*Verifier) Needs() share.Needs { return share.Needs{Nonces: true, Verifiers: true} }

// Verify implements protocol.RoundVerifier.
func (v *Verifier) Verify(in *share.RoundInput) (*share.Outcome, error) {
	pp, err := v.params.LinearParameters(in.Substation)
	if err != nil {
		return nil, fmt.Errorf("linear.Verify: %w", err)
	}
	if err = pp.Validate(); err != nil {
		return nil, fmt.Errorf("linear.Verify: %w", err)
	}
	partials, err := protocol.Partials(in)
	if err != nil {
		return nil, err
	}
	out := &share.Outcome{RoundKey: in.RoundKey}
	clients, reason := protocol.Clients(in, partials, v.Needs())
	if reason != "" {
		out.Reason = reason
		log.Warn().Stringer("round", in.RoundKey).Msg(reason)
		return out, nil
	}
	out.Clients = len(clients)

	evals := make([]*big.Int, 0, len(partials))
	for _, p := range partials {
		evals = append(evals, p.Eval)
	}
	finalEval := FinalEval(evals, pp)
	out.Sum = finalEval

	nE := new(big.Int).Mul(pp.N, pp.E)
	proofs := make([]*share.LinearProof, 0, len(clients))
	for _, id := range clients {
		r := in.Verifiers[id]
		if r == nil || r.Linear == nil || r.Linear.E == nil || r.Linear.S == nil || r.Linear.X == nil {
			return nil, protocol.Error{Round: in.RoundKey, Culprit: id, Err: errors.New("missing signature")}
		}
		p := r.Linear
		switch {
		case p.E.Cmp(pp.E) != 0:
			out.Reason = fmt.Sprintf("client %s signed with another exponent", id)
		case p.S.Sign() < 0 || p.S.Cmp(nE) >= 0:
			out.Reason = fmt.Sprintf("salt of client %s is out of range", id)
		case pp.Key.ValidateElement(p.X) != nil:
			out.Reason = fmt.Sprintf("signature of client %s is not a unit", id)
		}
		if out.Reason != "" {
			log.Warn().Stringer("round", in.RoundKey).Msg(out.Reason)
			return out, nil
		}
		proofs = append(proofs, p)
	}
	x, s := FinalProof(proofs, pp)

	nonceSum, err := protocol.NonceSum(in, clients)
	if err != nil {
		return nil, err
	}
	out.Valid, err = Verify(pp, clients, finalEval, nonceSum, x, s)
	if err != nil {
		return nil, fmt.Errorf("linear.Verify: %w", err)
	}
	if !out.Valid {
		out.Reason = "signatures do not match the aggregated result"
	}
	out.Digest = protocol.Transcript(in.RoundKey, finalEval, x, s)
	log.Debug().
		Stringer("round", in.RoundKey).
		Bool("valid", out.Valid).
		Int("clients", out.Clients).
		Msg("round verified")
	return out, nil
}
