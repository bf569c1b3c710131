package protocol

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/taurusgroup/vhss/internal/hash"
	"github.com/taurusgroup/vhss/pkg/math/polynomial"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/share"
)

var ErrEmptyRound = errors.New("protocol: round has no partial results")

// Distribute shares secret with a fresh random polynomial of degree t, and returns
// the weighted evaluation of every server at its point. Summing all values gives
// back the secret (mod modulus, if set).
func Distribute(rand io.Reader, secret, modulus *big.Int, servers party.IDSlice, t int) (map[party.ID]*big.Int, error) {
	if err := ValidateThreshold(t, len(servers)); err != nil {
		return nil, err
	}
	f, err := polynomial.NewPolynomial(rand, t, secret, modulus)
	if err != nil {
		return nil, err
	}
	byPoint, err := f.WeightedShares(servers.Points())
	if err != nil {
		return nil, err
	}
	out := make(map[party.ID]*big.Int, len(servers))
	for _, id := range servers {
		out[id] = byPoint[servers.Point(id)]
	}
	return out, nil
}

// CheckShares verifies that every share belongs to round and was addressed to server,
// and that no client appears twice.
func CheckShares(server party.ID, round share.RoundKey, shares []*share.ServerShare) (party.IDSlice, error) {
	clients := make([]party.ID, 0, len(shares))
	seen := make(map[party.ID]struct{}, len(shares))
	for _, s := range shares {
		if s == nil || s.Value == nil {
			return nil, Error{Round: round, Err: errors.New("empty share")}
		}
		if s.RoundKey() != round {
			return nil, Error{Round: round, Culprit: s.Client, Err: fmt.Errorf("share belongs to round %s", s.RoundKey())}
		}
		if s.Server != server {
			return nil, Error{Round: round, Culprit: s.Client, Err: fmt.Errorf("share addressed to %s", s.Server)}
		}
		if _, ok := seen[s.Client]; ok {
			return nil, Error{Round: round, Culprit: s.Client, Err: errors.New("duplicate share")}
		}
		seen[s.Client] = struct{}{}
		clients = append(clients, s.Client)
	}
	return party.NewIDSlice(clients), nil
}

// Partials returns the partial results of a round, ordered by server.
func Partials(in *share.RoundInput) ([]*share.Partial, error) {
	if len(in.Partials) == 0 {
		return nil, Error{Round: in.RoundKey, Err: ErrEmptyRound}
	}
	servers := maps.Keys(in.Partials)
	slices.Sort(servers)
	out := make([]*share.Partial, 0, len(servers))
	for _, id := range servers {
		p := in.Partials[id]
		if p == nil || p.Eval == nil {
			return nil, Error{Round: in.RoundKey, Culprit: id, Err: errors.New("empty partial result")}
		}
		out = append(out, p)
	}
	return out, nil
}

// Clients returns the clients aggregated by the round's servers. It returns a
// non-empty reason if servers disagree, or if the verifier's client records
// required by needs do not cover the same clients.
func Clients(in *share.RoundInput, partials []*share.Partial, needs share.Needs) (party.IDSlice, string) {
	clients := partials[0].Clients
	for _, p := range partials[1:] {
		if !slices.Equal(p.Clients, clients) {
			return nil, fmt.Sprintf("servers %s and %s aggregated different clients", partials[0].Server, p.Server)
		}
	}
	if needs.Nonces && !sameClients(clients, maps.Keys(in.Nonces)) {
		return nil, "nonce records do not match the aggregated clients"
	}
	if needs.Verifiers && !sameClients(clients, maps.Keys(in.Verifiers)) {
		return nil, "verifier records do not match the aggregated clients"
	}
	return clients, ""
}

func sameClients(clients party.IDSlice, ids []party.ID) bool {
	return slices.Equal(clients, party.NewIDSlice(ids))
}

// NonceSum returns the exact sum of the nonces of clients.
func NonceSum(in *share.RoundInput, clients party.IDSlice) (*big.Int, error) {
	sum := new(big.Int)
	for _, id := range clients {
		n := in.Nonces[id]
		if n == nil || n.Nonce == nil || n.Nonce.Sign() < 0 {
			return nil, Error{Round: in.RoundKey, Culprit: id, Err: errors.New("invalid nonce record")}
		}
		sum.Add(sum, n.Nonce)
	}
	return sum, nil
}

// Transcript returns a fingerprint binding a round to the values it was verified with.
func Transcript(round share.RoundKey, values ...*big.Int) string {
	data := make([]interface{}, 0, len(values)+3)
	data = append(data, round.Construction.String(), round.Substation, round.FID)
	for _, v := range values {
		if v == nil {
			v = new(big.Int)
		}
		data = append(data, v)
	}
	fp, err := hash.FingerprintOf("vhss/transcript", data...)
	if err != nil {
		return ""
	}
	return fp.String()
}
