package sim

import (
	"fmt"

	"github.com/taurusgroup/vhss/pkg/aggregate"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
)

// VerifierID addresses the verifier on the in-process network.
const VerifierID party.ID = "verifier"

// network routes encoded envelopes between clients, servers and the verifier.
// Every record is sealed by its sender and opened by its recipient.
type network struct {
	servers  map[party.ID]*aggregate.Server
	verifier *aggregate.Verifier
}

func newNetwork(servers party.IDSlice, clients int, e protocol.Evaluator, directory protocol.Directory, v protocol.RoundVerifier) *network {
	n := &network{
		servers:  make(map[party.ID]*aggregate.Server, len(servers)),
		verifier: aggregate.NewVerifier(directory, v),
	}
	for _, id := range servers {
		n.servers[id] = aggregate.NewServer(id, clients, e)
	}
	return n
}

// envelopes seals every record of b, addressed to its recipient.
func envelopes(b *share.Bundle) ([][]byte, error) {
	out := make([][]byte, 0, len(b.Shares)+2)
	for id, s := range b.Shares {
		data, err := share.Seal(b.Client, id, s)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	var records []interface{}
	if b.Nonce != nil {
		records = append(records, b.Nonce)
	}
	if b.Verifier != nil {
		records = append(records, b.Verifier)
	}
	for _, record := range records {
		data, err := share.Seal(b.Client, VerifierID, record)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// deliver hands an envelope to its recipient. A server's partial result is
// forwarded to the verifier; the outcome of the round is returned once verified.
func (n *network) deliver(data []byte) (*share.Outcome, error) {
	env, record, err := share.Open(data)
	if err != nil {
		return nil, err
	}
	switch r := record.(type) {
	case *share.ServerShare:
		server, ok := n.servers[env.To]
		if !ok {
			return nil, fmt.Errorf("sim: %w: no server %s", aggregate.ErrWrongRecipient, env.To)
		}
		partial, err := server.Submit(r)
		if err != nil || partial == nil {
			return nil, err
		}
		forward, err := share.Seal(server.ID(), VerifierID, partial)
		if err != nil {
			return nil, err
		}
		return n.deliver(forward)
	case *share.Partial:
		return n.verifier.SubmitPartial(r)
	case *share.NonceRecord:
		return n.verifier.SubmitNonce(r)
	case *share.VerifierRecord:
		return n.verifier.SubmitVerifier(r)
	default:
		return nil, fmt.Errorf("sim: %w: %s for %s", share.ErrUnknownKind, env.Kind, env.To)
	}
}
