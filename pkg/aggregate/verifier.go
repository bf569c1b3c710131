package aggregate

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/taurusgroup/vhss/internal/hash"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
)

type verifierRound struct {
	input *share.RoundInput
	seen  map[string]hash.Fingerprint
}

// Verifier collects the servers' partial results and the clients' records of
// every round. A round moves from collecting to ready once all servers of its
// substation reported and every record the construction needs arrived; it is
// then verified once and closed.
type Verifier struct {
	directory protocol.Directory
	verifiers map[share.Construction]protocol.RoundVerifier
	rounds    *store[verifierRound]
}

// NewVerifier returns a Verifier resolving the servers of a substation from directory.
func NewVerifier(directory protocol.Directory, verifiers ...protocol.RoundVerifier) *Verifier {
	v := &Verifier{
		directory: directory,
		verifiers: make(map[share.Construction]protocol.RoundVerifier, len(verifiers)),
		rounds: newStore(func() *verifierRound {
			return &verifierRound{seen: make(map[string]hash.Fingerprint)}
		}),
	}
	for _, rv := range verifiers {
		v.verifiers[rv.Construction()] = rv
	}
	return v
}

// SubmitPartial adds a server's partial result. It returns the outcome of the
// round if this completes it, and nil otherwise.
func (v *Verifier) SubmitPartial(p *share.Partial) (*share.Outcome, error) {
	if p == nil {
		return nil, fmt.Errorf("aggregate.Verifier.SubmitPartial: nil partial")
	}
	servers, err := v.directory.Servers(p.Substation)
	if err != nil {
		return nil, err
	}
	if !servers.Contains(p.Server) {
		return nil, protocol.Error{Round: p.RoundKey, Culprit: p.Server, Err: fmt.Errorf("%w: unknown server", ErrWrongRecipient)}
	}
	return v.submit(p.RoundKey, p.Server, "partial/"+string(p.Server), p, func(in *share.RoundInput) {
		in.Partials[p.Server] = p
	})
}

// SubmitNonce adds a client's nonce record.
func (v *Verifier) SubmitNonce(n *share.NonceRecord) (*share.Outcome, error) {
	if n == nil {
		return nil, fmt.Errorf("aggregate.Verifier.SubmitNonce: nil record")
	}
	if err := n.Tag.Validate(); err != nil {
		return nil, err
	}
	return v.submit(n.RoundKey(), n.Client, "nonce/"+string(n.Client), n, func(in *share.RoundInput) {
		in.Nonces[n.Client] = n
	})
}

// SubmitVerifier adds a client's verifier record.
func (v *Verifier) SubmitVerifier(r *share.VerifierRecord) (*share.Outcome, error) {
	if r == nil {
		return nil, fmt.Errorf("aggregate.Verifier.SubmitVerifier: nil record")
	}
	if err := r.Tag.Validate(); err != nil {
		return nil, err
	}
	return v.submit(r.RoundKey(), r.Client, "verifier/"+string(r.Client), r, func(in *share.RoundInput) {
		in.Verifiers[r.Client] = r
	})
}

func (v *Verifier) submit(round share.RoundKey, from party.ID, key string, record interface{}, add func(*share.RoundInput)) (*share.Outcome, error) {
	rv, ok := v.verifiers[round.Construction]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConstruction, round.Construction)
	}
	servers, err := v.directory.Servers(round.Substation)
	if err != nil {
		return nil, err
	}
	fp, err := fingerprint("vhss/verifier-input", record)
	if err != nil {
		return nil, err
	}

	sl := v.rounds.lock(round)
	defer sl.mu.Unlock()
	if sl.closed {
		return nil, protocol.Error{Round: round, Culprit: from, Err: ErrRoundClosed}
	}
	acc := sl.acc
	if acc.input == nil {
		acc.input = &share.RoundInput{
			RoundKey:  round,
			Partials:  make(map[party.ID]*share.Partial),
			Nonces:    make(map[party.ID]*share.NonceRecord),
			Verifiers: make(map[party.ID]*share.VerifierRecord),
		}
	}
	if prev, ok := acc.seen[key]; ok {
		if prev == fp {
			return nil, protocol.Error{Round: round, Culprit: from, Err: ErrDuplicate}
		}
		return nil, protocol.Error{Round: round, Culprit: from, Err: ErrConflict}
	}
	acc.seen[key] = fp
	add(acc.input)

	if !ready(acc.input, len(servers), rv.Needs()) {
		return nil, nil
	}
	log.Debug().Stringer("round", round).Msg("round ready")
	out, err := rv.Verify(acc.input)
	v.rounds.close(round, sl)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ready returns true when all m servers reported, and the records required by
// needs are present for every client the first server aggregated.
func ready(in *share.RoundInput, m int, needs share.Needs) bool {
	if len(in.Partials) < m {
		return false
	}
	var clients party.IDSlice
	for _, p := range in.Partials {
		clients = p.Clients
		break
	}
	for _, id := range clients {
		if _, ok := in.Nonces[id]; needs.Nonces && !ok {
			return false
		}
		if _, ok := in.Verifiers[id]; needs.Verifiers && !ok {
			return false
		}
	}
	return true
}

// Pending returns the rounds that did not reach the ready state yet.
func (v *Verifier) Pending() []share.RoundKey {
	return v.rounds.pending()
}

// Verified returns the number of rounds verified so far.
func (v *Verifier) Verified() int {
	return v.rounds.closedCount()
}
