// Package test contains fixtures shared by the tests of the schemes.
package test

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taurusgroup/vhss/pkg/field"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
)

// Substation is the substation used by all fixtures.
const Substation = "substation-1"

// Deployment is an in-memory protocol.Directory and protocol.FieldSource.
type Deployment struct {
	IDs         party.IDSlice
	T           int
	FieldParams *field.Field
}

var (
	_ protocol.Directory   = (*Deployment)(nil)
	_ protocol.FieldSource = (*Deployment)(nil)
)

// Servers implements protocol.Directory.
func (d *Deployment) Servers(string) (party.IDSlice, error) {
	if len(d.IDs) == 0 {
		return nil, protocol.ErrNoServers
	}
	return d.IDs, nil
}

// Threshold implements protocol.Directory.
func (d *Deployment) Threshold(string) (int, error) { return d.T, nil }

// Field implements protocol.FieldSource.
func (d *Deployment) Field(string) (*field.Field, error) {
	if d.FieldParams == nil {
		return nil, protocol.ErrNoParameters
	}
	return d.FieldParams, nil
}

// ServerIDs returns srv-1, …, srv-m.
func ServerIDs(m int) party.IDSlice {
	ids := make([]party.ID, m)
	for i := range ids {
		ids[i] = party.ID(fmt.Sprintf("srv-%d", i+1))
	}
	return party.NewIDSlice(ids)
}

// ClientIDs returns meter-1, …, meter-n.
func ClientIDs(n int) []party.ID {
	ids := make([]party.ID, n)
	for i := range ids {
		ids[i] = party.ID(fmt.Sprintf("meter-%d", i+1))
	}
	return ids
}

// MersenneField returns the field p = 2¹⁰⁷-1, g = 191.
func MersenneField(t testing.TB) *field.Field {
	p := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 107), big.NewInt(1))
	f, err := field.New(p, big.NewInt(191))
	require.NoError(t, err)
	return f
}

// NewDeployment returns m servers with threshold t over f.
func NewDeployment(m, t int, f *field.Field) *Deployment {
	return &Deployment{IDs: ServerIDs(m), T: t, FieldParams: f}
}

// Tag returns the tag of client in round fid.
func Tag(c share.Construction, fid uint64, client party.ID) share.Tag {
	return share.Tag{Construction: c, FID: fid, Client: client, Substation: Substation}
}

// Route delivers bundles the way servers and the verifier would receive them:
// the shares grouped by server, and the client records keyed by client.
func Route(bundles ...*share.Bundle) (map[party.ID][]*share.ServerShare, map[party.ID]*share.NonceRecord, map[party.ID]*share.VerifierRecord) {
	byServer := make(map[party.ID][]*share.ServerShare)
	nonces := make(map[party.ID]*share.NonceRecord)
	verifiers := make(map[party.ID]*share.VerifierRecord)
	for _, b := range bundles {
		for id, s := range b.Shares {
			byServer[id] = append(byServer[id], s)
		}
		if b.Nonce != nil {
			nonces[b.Client] = b.Nonce
		}
		if b.Verifier != nil {
			verifiers[b.Client] = b.Verifier
		}
	}
	return byServer, nonces, verifiers
}

// Evaluate runs every server's evaluator and collects the round input.
func Evaluate(t testing.TB, e protocol.Evaluator, round share.RoundKey, bundles ...*share.Bundle) *share.RoundInput {
	t.Helper()
	byServer, nonces, verifiers := Route(bundles...)
	in := &share.RoundInput{
		RoundKey:  round,
		Partials:  make(map[party.ID]*share.Partial, len(byServer)),
		Nonces:    nonces,
		Verifiers: verifiers,
	}
	for id, shares := range byServer {
		p, err := e.Evaluate(id, round, shares)
		require.NoError(t, err)
		in.Partials[id] = p
	}
	return in
}
