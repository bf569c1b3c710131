package rsathreshold

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
	"github.com/taurusgroup/vhss/protocols/homomorphic"
)

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
func (*Evaluator) Construction() share.Construction { return share.RSAThreshold }

// Evaluate implements protocol.Evaluator. On top of the homomorphic partial result,
// the server partially signs every client's commitment with its key share.
func (e *Evaluator) Evaluate(server party.ID, round share.RoundKey, shares []*share.ServerShare) (*share.Partial, error) {
	partial, err := homomorphic.Evaluate(e.fields, server, round, shares)
	if err != nil {
		return nil, err
	}
	partial.Signatures = make(map[party.ID]*share.RSAPartialSignature, len(shares))
	for _, s := range shares {
		k := s.RSA
		if k == nil || k.Commitment == nil || k.KeyShare == nil || k.N == nil || k.N.Sign() <= 0 {
			return nil, protocol.Error{Round: round, Culprit: s.Client, Err: errors.New("missing key share")}
		}
		if k.Row < 0 || k.Row >= len(k.Matrix) {
			return nil, protocol.Error{Round: round, Culprit: s.Client, Err: errors.New("key share row out of range")}
		}
		partial.Signatures[s.Client] = &share.RSAPartialSignature{
			Sigma:  PartialSign(k.Commitment, k.KeyShare, k.N),
			Row:    k.Row,
			N:      k.N,
			Matrix: k.Matrix,
		}
	}
	log.Debug().
		Stringer("round", round).
		Str("server", string(server)).
		Int("signatures", len(partial.Signatures)).
		Msg("partial signatures ready")
	return partial, nil
}
