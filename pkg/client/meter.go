// Package client implements a meter: a client that shares one reading per round.
package client

import (
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
)

// Meter shares readings with the schemes it was configured with.
//
// Every call to Share opens a new round: the fid is incremented atomically, so
// concurrent calls never stamp the same round twice.
type Meter struct {
	id         party.ID
	substation string
	schemes    map[share.Construction]protocol.Scheme
	fid        uint64
}

// New returns a meter of substation, sharing with schemes.
func New(id party.ID, substation string, schemes ...protocol.Scheme) (*Meter, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if substation == "" {
		return nil, fmt.Errorf("client.New: empty substation")
	}
	m := &Meter{
		id:         id,
		substation: substation,
		schemes:    make(map[share.Construction]protocol.Scheme, len(schemes)),
	}
	for _, s := range schemes {
		m.schemes[s.Construction()] = s
	}
	return m, nil
}

// ID returns the identity of the meter.
func (m *Meter) ID() party.ID { return m.id }

// Substation returns the substation of the meter.
func (m *Meter) Substation() string { return m.substation }

// LastFID returns the fid of the last round shared.
func (m *Meter) LastFID() uint64 { return atomic.LoadUint64(&m.fid) }

// Share shares reading in the next round, with construction c.
func (m *Meter) Share(c share.Construction, reading *big.Int) (*share.Bundle, error) {
	scheme, ok := m.schemes[c]
	if !ok {
		return nil, fmt.Errorf("client.Share: %w: %s", share.ErrUnknownConstruction, c)
	}
	tag := share.Tag{
		Construction: c,
		FID:          atomic.AddUint64(&m.fid, 1),
		Client:       m.id,
		Substation:   m.substation,
	}
	bundle, err := scheme.ShareSecret(reading, tag)
	if err != nil {
		return nil, err
	}
	if err = bundle.Validate(); err != nil {
		return nil, fmt.Errorf("client.Share: %w", err)
	}
	log.Debug().Stringer("round", tag.RoundKey()).Str("client", string(m.id)).Msg("reading shared")
	return bundle, nil
}
