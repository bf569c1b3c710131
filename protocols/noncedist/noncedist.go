// Package noncedist implements the homomorphic construction with the blinding
// nonce secret-shared among the servers instead of being sent to the verifier.
//
// Each server sums its shares of the secrets and of the nonces separately. The
// verifier reconstructs the sum of the nonces from the servers' partial results,
// derives the cancelling term, and checks the clients' commitments as in the
// homomorphic construction.
package noncedist

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/rs/zerolog/log"

	"github.com/taurusgroup/vhss/pkg/nonce"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
	"github.com/taurusgroup/vhss/protocols/homomorphic"
)

// Scheme is the client side of the construction.
type Scheme struct {
	rand        io.Reader
	directory   protocol.Directory
	fields      protocol.FieldSource
	commitments *homomorphic.Scheme
}

var _ protocol.Scheme = (*Scheme)(nil)

// New returns a Scheme drawing randomness from rand.
func New(rand io.Reader, directory protocol.Directory, fields protocol.FieldSource) *Scheme {
	return &Scheme{
		rand:        rand,
		directory:   directory,
		fields:      fields,
		commitments: homomorphic.New(rand, directory, fields),
	}
}

// Construction implements protocol.Scheme.
func (*Scheme) Construction() share.Construction { return share.NonceOnly }

// ShareSecret implements protocol.Scheme. The returned bundle has no nonce record.
func (s *Scheme) ShareSecret(secret *big.Int, tag share.Tag) (*share.Bundle, error) {
	if tag.Construction != share.NonceOnly {
		return nil, fmt.Errorf("noncedist.ShareSecret: %w: %s", protocol.ErrWrongConstruction, tag.Construction)
	}
	bundle, err := s.commitments.Share(secret, tag)
	if err != nil {
		return nil, fmt.Errorf("noncedist.ShareSecret: %w", err)
	}
	servers, t, f, err := protocol.Setup(s.directory, s.fields, tag.Substation)
	if err != nil {
		return nil, fmt.Errorf("noncedist.ShareSecret: %w", err)
	}
	nonceShares, err := protocol.Distribute(s.rand, bundle.Nonce.Nonce, f.Order(), servers, t)
	if err != nil {
		return nil, fmt.Errorf("noncedist.ShareSecret: %w", err)
	}
	for id, v := range nonceShares {
		sh, ok := bundle.Shares[id]
		if !ok {
			return nil, fmt.Errorf("noncedist.ShareSecret: no share for %s", id)
		}
		sh.NonceValue = v
	}
	bundle.Nonce = nil
	return bundle, nil
}

// Evaluator is the server side of the construction.
type Evaluator struct {
	fields protocol.FieldSource
}

var _ protocol.Evaluator = (*Evaluator)(nil)

// NewEvaluator returns an Evaluator resolving fields from fields.
func NewEvaluator(fields protocol.FieldSource) *Evaluator {
	return &Evaluator{fields: fields}
}

// Construction implements protocol.Evaluator.
func (*Evaluator) Construction() share.Construction { return share.NonceOnly }

// Evaluate implements protocol.Evaluator.
func (e *Evaluator) Evaluate(server party.ID, round share.RoundKey, shares []*share.ServerShare) (*share.Partial, error) {
	partial, err := homomorphic.Evaluate(e.fields, server, round, shares)
	if err != nil {
		return nil, err
	}
	f, err := e.fields.Field(round.Substation)
	if err != nil {
		return nil, fmt.Errorf("noncedist.Evaluate: %w", err)
	}
	nonces := make([]*big.Int, 0, len(shares))
	for _, s := range shares {
		if s.NonceValue == nil {
			return nil, protocol.Error{Round: round, Culprit: s.Client, Err: errors.New("missing nonce share")}
		}
		nonces = append(nonces, s.NonceValue)
	}
	partial.NonceEval = homomorphic.PartialEval(nonces, f.Order())
	return partial, nil
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
func (*Verifier) Construction() share.Construction { return share.NonceOnly }

// Needs implements protocol.RoundVerifier.
func (*Verifier) Needs() share.Needs { return share.Needs{Verifiers: true} }

// Verify implements protocol.RoundVerifier.
func (v *Verifier) Verify(in *share.RoundInput) (*share.Outcome, error) {
	f, err := v.fields.Field(in.Substation)
	if err != nil {
		return nil, fmt.Errorf("noncedist.Verify: %w", err)
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
	nonceEvals := make([]*big.Int, 0, len(partials))
	proofs := make([]*big.Int, 0, len(partials))
	for _, p := range partials {
		if p.Proof == nil || p.NonceEval == nil {
			return nil, protocol.Error{Round: in.RoundKey, Culprit: p.Server, Err: errors.New("incomplete partial result")}
		}
		evals = append(evals, p.Eval)
		nonceEvals = append(nonceEvals, p.NonceEval)
		proofs = append(proofs, p.Proof)
	}
	finalEval := homomorphic.FinalEval(evals, f.Order())
	serverProof := homomorphic.FinalProof(proofs, f)
	out.Sum = finalEval

	last, err := nonce.LastTerm(homomorphic.FinalEval(nonceEvals, f.Order()), f)
	if err != nil {
		return nil, fmt.Errorf("noncedist.Verify: %w", err)
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

	out.Valid = homomorphic.Verify(f, finalEval, serverProof, clientProofs...)
	if !out.Valid {
		out.Reason = "commitments do not match the aggregated result"
	}
	out.Digest = protocol.Transcript(in.RoundKey, finalEval, serverProof, last)
	return out, nil
}
