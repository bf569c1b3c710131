package homomorphic

import (
	"fmt"
	"math/big"

	"github.com/rs/zerolog/log"

	"github.com/taurusgroup/vhss/pkg/field"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
)

// PartialEval returns the sum of the shares received by a server, mod modulus.
// The order of the shares does not matter.
func PartialEval(shares []*big.Int, modulus *big.Int) *big.Int {
	sum := new(big.Int)
	for _, s := range shares {
		sum.Add(sum, s)
	}
	if modulus != nil {
		sum.Mod(sum, modulus)
	}
	return sum
}

// PartialProof returns g^(Σ shares) (mod p).
func PartialProof(shares []*big.Int, f *field.Field) *big.Int {
	return f.Hash(PartialEval(shares, f.Order()))
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
func (*Evaluator) Construction() share.Construction { return share.HomomorphicHash }

// Evaluate implements protocol.Evaluator.
func (e *Evaluator) Evaluate(server party.ID, round share.RoundKey, shares []*share.ServerShare) (*share.Partial, error) {
	return Evaluate(e.fields, server, round, shares)
}

// Evaluate folds shares into a Partial carrying Σ shares and g^Σ.
func Evaluate(fields protocol.FieldSource, server party.ID, round share.RoundKey, shares []*share.ServerShare) (*share.Partial, error) {
	clients, err := protocol.CheckShares(server, round, shares)
	if err != nil {
		return nil, err
	}
	f, err := fields.Field(round.Substation)
	if err != nil {
		return nil, fmt.Errorf("homomorphic.Evaluate: %w", err)
	}
	values := make([]*big.Int, 0, len(shares))
	for _, s := range shares {
		values = append(values, s.Value)
	}
	eval := PartialEval(values, f.Order())
	partial := &share.Partial{
		RoundKey: round,
		Server:   server,
		Clients:  clients,
		Eval:     eval,
		Proof:    f.Hash(eval),
	}
	log.Debug().
		Stringer("round", round).
		Str("server", string(server)).
		Int("clients", len(clients)).
		Msg("partial result ready")
	return partial, nil
}
