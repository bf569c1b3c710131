package homomorphic

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog/log"

	"github.com/taurusgroup/vhss/pkg/field"
	"github.com/taurusgroup/vhss/pkg/nonce"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
)

// FinalEval returns the sum of all servers' partial evaluations, mod modulus.
// This is the sum of all clients' secrets.
func FinalEval(partials []*big.Int, modulus *big.Int) *big.Int {
	return PartialEval(partials, modulus)
}

// FinalProof returns Π proofs (mod p).
func FinalProof(proofs []*big.Int, f *field.Field) *big.Int {
	return f.Mul(proofs...)
}

// Verify computes clientAgg = Π clientProofs (mod p), where clientProofs contains
// every commitment and the nonce-cancelling term, and returns true iff
// clientAgg = g^finalEval and clientAgg = serverProof.
func Verify(f *field.Field, finalEval, serverProof *big.Int, clientProofs ...*big.Int) bool {
	clientAgg := f.Mul(clientProofs...)
	resultProof := f.Hash(finalEval)
	if clientAgg.Cmp(resultProof) == 0 && clientAgg.Cmp(serverProof) == 0 {
		return true
	}
	log.Warn().
		Str("clientProof", clientAgg.String()).
		Str("resultProof", resultProof.String()).
		Str("serverProof", serverProof.String()).
		Msg("proofs mismatch")
	return false
}

// Verifier is the verifier side of the construction.
type Verifier struct {
	fields protocol.FieldSource
}

var _ protocol.RoundVerifier = (*Verifier)(nil)

// NewVerifier returns a Verifier resolving fields from fields.
func NewVerifier(fields protocol.FieldSource) *Verifier {
	return &Verifier{fields: fields}
}

// Construction implements protocol.RoundVerifier.
func (*Verifier) Construction() share.Construction { return share.HomomorphicHash }

// Needs implements protocol.RoundVerifier.
func (*Verifier) Needs() share.Needs { return share.Needs{Nonces: true, Verifiers: true} }

// Verify implements protocol.RoundVerifier.
func (v *Verifier) Verify(in *share.RoundInput) (*share.Outcome, error) {
	f, err := v.fields.Field(in.Substation)
	if err != nil {
		return nil, fmt.Errorf("homomorphic.Verify: %w", err)
	}
	return VerifyRound(f, in, v.Needs())
}

// VerifyRound checks the homomorphic relation of a round: the sum of the partial
// evaluations, the servers' proofs and the clients' commitments must all agree.
func VerifyRound(f *field.Field, in *share.RoundInput, needs share.Needs) (*share.Outcome, error) {
	partials, err := protocol.Partials(in)
	if err != nil {
		return nil, err
	}
	out := &share.Outcome{RoundKey: in.RoundKey}
	clients, reason := protocol.Clients(in, partials, needs)
	if reason != "" {
		out.Reason = reason
		log.Warn().Stringer("round", in.RoundKey).Msg(reason)
		return out, nil
	}
	out.Clients = len(clients)

	evals := make([]*big.Int, 0, len(partials))
	proofs := make([]*big.Int, 0, len(partials))
	for _, p := range partials {
		if p.Proof == nil {
			return nil, protocol.Error{Round: in.RoundKey, Culprit: p.Server, Err: errors.New("missing proof")}
		}
		evals = append(evals, p.Eval)
		proofs = append(proofs, p.Proof)
	}
	finalEval := FinalEval(evals, f.Order())
	serverProof := FinalProof(proofs, f)
	out.Sum = finalEval

	nonceSum, err := protocol.NonceSum(in, clients)
	if err != nil {
		return nil, err
	}
	last, err := nonce.LastTerm(nonceSum, f)
	if err != nil {
		return nil, fmt.Errorf("homomorphic.VerifyRound: %w", err)
	}
	clientProofs := make([]*big.Int, 0, len(clients)+1)
	for _, id := range clients {
		r := in.Verifiers[id]
		if r == nil || r.Commitment == nil {
			return nil, protocol.Error{Round: in.RoundKey, Culprit: id, Err: errors.New("missing commitment")}
		}
		clientProofs = append(clientProofs, r.Commitment)
	}
	clientProofs = append(clientProofs, last)

	out.Valid = Verify(f, finalEval, serverProof, clientProofs...)
	if !out.Valid {
		out.Reason = "commitments do not match the aggregated result"
	}
	out.Digest = protocol.Transcript(in.RoundKey, finalEval, serverProof, f.Mul(clientProofs...))
	log.Debug().
		Stringer("round", in.RoundKey).
		Bool("valid", out.Valid).
		Int("clients", out.Clients).
		Msg("round verified")
	return out, nil
}
