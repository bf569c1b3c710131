package rsathreshold

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog/log"

	"github.com/taurusgroup/vhss/pkg/math/matrix"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
	"github.com/taurusgroup/vhss/protocols/homomorphic"
)

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
func (*Verifier) Construction() share.Construction { return share.RSAThreshold }

// Needs implements protocol.RoundVerifier.
func (*Verifier) Needs() share.Needs { return share.Needs{Nonces: true, Verifiers: true} }

// Verify implements protocol.RoundVerifier.
//
// A round is valid when the homomorphic relation holds and, for every client, the
// partial signatures recombine into a signature on the client's commitment.
func (v *Verifier) Verify(in *share.RoundInput) (*share.Outcome, error) {
	f, err := v.fields.Field(in.Substation)
	if err != nil {
		return nil, fmt.Errorf("rsathreshold.Verify: %w", err)
	}
	out, err := homomorphic.VerifyRound(f, in, v.Needs())
	if err != nil {
		return nil, err
	}
	if out.Sum == nil {
		return out, nil
	}
	partials, err := protocol.Partials(in)
	if err != nil {
		return nil, err
	}
	for _, client := range partials[0].Clients {
		reason, err := verifyClient(in, partials, client)
		if err != nil {
			return nil, err
		}
		if reason == "" {
			continue
		}
		log.Warn().
			Stringer("round", in.RoundKey).
			Str("client", string(client)).
			Msg(reason)
		if out.Valid {
			out.Valid = false
			out.Reason = reason
		}
	}
	return out, nil
}

// verifyClient recombines the signature of one client over every row set of
// CoveringRows, so that the partial signature of each server is checked.
// Inconsistent material is reported as a reason, missing material as an error.
func verifyClient(in *share.RoundInput, partials []*share.Partial, client party.ID) (string, error) {
	rec := in.Verifiers[client]
	if rec == nil || rec.Commitment == nil || rec.PublicExponent == nil {
		return "", protocol.Error{Round: in.RoundKey, Culprit: client, Err: errors.New("missing public exponent")}
	}

	var (
		n      *big.Int
		a      *matrix.Matrix
		sigmas = make(map[int]*big.Int, len(partials))
	)
	for row, p := range partials {
		sig := p.Signatures[client]
		if sig == nil || sig.Sigma == nil || sig.N == nil {
			return "", protocol.Error{Round: in.RoundKey, Culprit: p.Server, Err: fmt.Errorf("missing partial signature for %s", client)}
		}
		if sig.Row != row {
			return fmt.Sprintf("server %s signed %s with row %d", p.Server, client, sig.Row), nil
		}
		m, err := matrix.FromRows(sig.Matrix)
		if err != nil {
			return fmt.Sprintf("server %s reported an invalid matrix for %s", p.Server, client), nil
		}
		if n == nil {
			n, a = sig.N, m
		} else if n.Cmp(sig.N) != 0 || !a.Equal(m) {
			return fmt.Sprintf("servers disagree on the key of %s", client), nil
		}
		sigmas[row] = sig.Sigma
	}

	t := a.Cols()
	if a.Rows() != len(partials) || t < 1 || t > len(partials) {
		return fmt.Sprintf("matrix of %s does not match the servers", client), nil
	}
	for _, rows := range CoveringRows(len(partials), t) {
		block := make([]*big.Int, t)
		for j, row := range rows {
			block[j] = sigmas[row]
		}
		server := partials[rows[t-1]].Server
		signature, err := Combine(a, rows, n, rec.PublicExponent, rec.Commitment, block)
		if err != nil {
			return fmt.Sprintf("cannot recombine the signature of %s with server %s: %v", client, server, err), nil
		}
		if !VerifySignature(n, rec.PublicExponent, rec.Commitment, signature) {
			return fmt.Sprintf("signature of %s does not verify with server %s", client, server), nil
		}
	}
	return "", nil
}
