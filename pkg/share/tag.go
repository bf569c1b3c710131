// Package share defines the records exchanged between clients, servers and the
// verifier during one aggregation round, and their wire encoding.
package share

import (
	"errors"
	"fmt"
	"strings"

	"github.com/taurusgroup/vhss/pkg/party"
)

// Construction selects one of the interchangeable secret-sharing schemes.
type Construction uint8

const (
	HomomorphicHash Construction = iota + 1
	RSAThreshold
	LinearSignature
	NonceOnly
)

var ErrUnknownConstruction = errors.New("share: unknown construction")

var constructionNames = map[Construction]string{
	HomomorphicHash: "hash",
	RSAThreshold:    "rsa",
	LinearSignature: "linear",
	NonceOnly:       "nonce",
}

// Constructions lists every supported construction.
func Constructions() []Construction {
	return []Construction{HomomorphicHash, RSAThreshold, LinearSignature, NonceOnly}
}

func (c Construction) String() string {
	if name, ok := constructionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("construction(%d)", uint8(c))
}

// Valid returns true if c is one of the known constructions.
func (c Construction) Valid() bool {
	_, ok := constructionNames[c]
	return ok
}

// ParseConstruction is the inverse of Construction.String.
func ParseConstruction(s string) (Construction, error) {
	for c, name := range constructionNames {
		if strings.EqualFold(name, s) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownConstruction, s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Construction) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownConstruction, c)
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Construction) UnmarshalText(text []byte) error {
	parsed, err := ParseConstruction(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// RoundKey identifies an aggregation round: all clients of one substation, for
// one round identifier, under one construction.
type RoundKey struct {
	Construction Construction
	Substation   string
	FID          uint64
}

func (k RoundKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Construction, k.Substation, k.FID)
}

// Tag correlates every artifact produced by a single call to ShareSecret.
type Tag struct {
	Construction Construction
	FID          uint64
	Client       party.ID
	Substation   string
}

// RoundKey returns the round this tag belongs to.
func (t Tag) RoundKey() RoundKey {
	return RoundKey{Construction: t.Construction, Substation: t.Substation, FID: t.FID}
}

// Validate checks that all fields of the tag are set.
func (t Tag) Validate() error {
	if !t.Construction.Valid() {
		return fmt.Errorf("share: tag: %w: %d", ErrUnknownConstruction, t.Construction)
	}
	if err := t.Client.Validate(); err != nil {
		return fmt.Errorf("share: tag: client: %w", err)
	}
	if t.Substation == "" {
		return errors.New("share: tag: empty substation")
	}
	return nil
}

func (t Tag) String() string {
	return fmt.Sprintf("%s/%s", t.RoundKey(), t.Client)
}
