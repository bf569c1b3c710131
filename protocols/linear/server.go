package linear

import (
	"fmt"
	"math/big"

	"github.com/rs/zerolog/log"

	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
)

// PartialEval returns Σ shares (mod n).
func PartialEval(shares []*big.Int, n *big.Int) *big.Int {
	sum := new(big.Int)
	for _, s := range shares {
		sum.Add(sum, s)
	}
	return sum.Mod(sum, n)
}

// Evaluator is the server side of the construction. Servers only sum their shares,
// the proof is carried by the clients' signatures.
type Evaluator struct {
	params ParameterSource
}

var _ protocol.Evaluator = (*Evaluator)(nil)

// NewEvaluator returns an Evaluator resolving public parameters from params.
func NewEvaluator(params ParameterSource) *Evaluator {
	return &Evaluator{params: params}
}

// Construction implements protocol.Evaluator.
func (*Evaluator) Construction() share.Construction { return share.LinearSignature }

// Evaluate implements protocol.Evaluator.
func (e *Evaluator) Evaluate(server party.ID, round share.RoundKey, shares []*share.ServerShare) (*share.Partial, error) {
	clients, err := protocol.CheckShares(server, round, shares)
	if err != nil {
		return nil, err
	}
	pp, err := e.params.LinearParameters(round.Substation)
	if err != nil {
		return nil, fmt.Errorf("linear.Evaluate: %w", err)
	}
	if err = pp.Validate(); err != nil {
		return nil, fmt.Errorf("linear.Evaluate: %w", err)
	}
	values := make([]*big.Int, 0, len(shares))
	for _, s := range shares {
		values = append(values, s.Value)
	}
	log.Debug().
		Stringer("round", round).
		Str("server", string(server)).
		Int("clients", len(clients)).
		Msg("partial result ready")
	return &share.Partial{
		RoundKey: round,
		Server:   server,
		Clients:  clients,
		Eval:     PartialEval(values, pp.N),
	}, nil
}
