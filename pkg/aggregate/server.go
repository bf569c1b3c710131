package aggregate

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/taurusgroup/vhss/internal/hash"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
)

type serverRound struct {
	shares []*share.ServerShare
	seen   map[party.ID]hash.Fingerprint
}

// Server collects the shares sent to one server, and evaluates a round once the
// expected number of clients reported.
type Server struct {
	id         party.ID
	expected   int
	evaluators map[share.Construction]protocol.Evaluator
	rounds     *store[serverRound]
}

// NewServer returns the aggregator of server id, expecting shares from clients
// clients in every round.
func NewServer(id party.ID, clients int, evaluators ...protocol.Evaluator) *Server {
	s := &Server{
		id:         id,
		expected:   clients,
		evaluators: make(map[share.Construction]protocol.Evaluator, len(evaluators)),
		rounds: newStore(func() *serverRound {
			return &serverRound{seen: make(map[party.ID]hash.Fingerprint)}
		}),
	}
	for _, e := range evaluators {
		s.evaluators[e.Construction()] = e
	}
	return s
}

// ID returns the identity of the server.
func (s *Server) ID() party.ID { return s.id }

// Submit adds a share to its round. It returns the server's partial result when
// this share completes the round, and nil otherwise.
func (s *Server) Submit(sh *share.ServerShare) (*share.Partial, error) {
	if sh == nil {
		return nil, fmt.Errorf("aggregate.Server.Submit: nil share")
	}
	if err := sh.Tag.Validate(); err != nil {
		return nil, err
	}
	if sh.Server != s.id {
		return nil, fmt.Errorf("%w: share for %s received by %s", ErrWrongRecipient, sh.Server, s.id)
	}
	evaluator, ok := s.evaluators[sh.Construction]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConstruction, sh.Construction)
	}
	fp, err := fingerprint("vhss/share", sh)
	if err != nil {
		return nil, err
	}

	round := sh.RoundKey()
	sl := s.rounds.lock(round)
	defer sl.mu.Unlock()
	if sl.closed {
		return nil, protocol.Error{Round: round, Culprit: sh.Client, Err: ErrRoundClosed}
	}
	acc := sl.acc
	if prev, ok := acc.seen[sh.Client]; ok {
		if prev == fp {
			return nil, protocol.Error{Round: round, Culprit: sh.Client, Err: ErrDuplicate}
		}
		return nil, protocol.Error{Round: round, Culprit: sh.Client, Err: ErrConflict}
	}
	acc.seen[sh.Client] = fp
	acc.shares = append(acc.shares, sh)
	if len(acc.shares) < s.expected {
		return nil, nil
	}

	partial, err := evaluator.Evaluate(s.id, round, acc.shares)
	s.rounds.close(round, sl)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Stringer("round", round).
		Str("server", string(s.id)).
		Msg("round evaluated")
	return partial, nil
}

// Pending returns the rounds still waiting for shares.
func (s *Server) Pending() []share.RoundKey {
	return s.rounds.pending()
}
