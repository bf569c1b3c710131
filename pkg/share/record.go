package share

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/taurusgroup/vhss/pkg/party"
)

// ServerShare is what a client sends to exactly one server.
type ServerShare struct {
	Tag
	// Server is the recipient.
	Server party.ID
	// Value is weight(x)⋅f(x) for the server's evaluation point x.
	Value *big.Int
	// NonceValue is the weighted share of the nonce polynomial (NonceOnly).
	NonceValue *big.Int `cbor:",omitempty"`
	// RSA carries the threshold key material (RSAThreshold).
	RSA *RSAKeyShare `cbor:",omitempty"`
}

// RSAKeyShare is the server's part of a client's single-use threshold RSA key.
type RSAKeyShare struct {
	// Commitment is the client's τ, which the server partially signs.
	Commitment *big.Int
	// Row is the index of the server's row in Matrix.
	Row int
	// KeyShare is Row ⋅ KeyVector.
	KeyShare *big.Int
	// Matrix is the full m × t client matrix.
	Matrix [][]*big.Int
	// N is the RSA modulus.
	N *big.Int
}

// NonceRecord carries the blinding nonce of one client, destined to the verifier.
type NonceRecord struct {
	Tag
	Nonce *big.Int
}

// LinearProof is the delayed signature of a LinearSignature client.
type LinearProof struct {
	// E is the public prime exponent ê.
	E *big.Int
	// S is the random salt, in [0, N⋅ê).
	S *big.Int
	// X satisfies X^(N⋅ê) = g₁ˢ⋅h(client)⋅g₂^(nonce+secret) (mod N̂).
	X *big.Int
}

// VerifierRecord carries the public, per client verification material.
type VerifierRecord struct {
	Tag
	// Commitment is τ = g^(secret+nonce) (mod p) (HomomorphicHash, RSAThreshold).
	Commitment *big.Int `cbor:",omitempty"`
	// PublicExponent is the RSA public exponent e (RSAThreshold).
	PublicExponent *big.Int `cbor:",omitempty"`
	// Linear is set for LinearSignature.
	Linear *LinearProof `cbor:",omitempty"`
}

// Bundle is everything produced by one ShareSecret call.
type Bundle struct {
	Tag
	Shares   map[party.ID]*ServerShare
	Nonce    *NonceRecord
	Verifier *VerifierRecord
}

// Validate checks that the bundle is internally consistent: every record carries
// the bundle's tag, and every share is addressed to the server it is keyed by.
func (b *Bundle) Validate() error {
	if err := b.Tag.Validate(); err != nil {
		return err
	}
	if len(b.Shares) == 0 {
		return errors.New("share: bundle has no shares")
	}
	for id, s := range b.Shares {
		if s == nil || s.Value == nil {
			return fmt.Errorf("share: bundle: empty share for %s", id)
		}
		if s.Tag != b.Tag {
			return fmt.Errorf("share: bundle: share for %s has tag %s, expected %s", id, s.Tag, b.Tag)
		}
		if s.Server != id {
			return fmt.Errorf("share: bundle: share keyed by %s is addressed to %s", id, s.Server)
		}
	}
	if b.Nonce != nil && b.Nonce.Tag != b.Tag {
		return fmt.Errorf("share: bundle: nonce has tag %s, expected %s", b.Nonce.Tag, b.Tag)
	}
	if b.Verifier != nil && b.Verifier.Tag != b.Tag {
		return fmt.Errorf("share: bundle: verifier record has tag %s, expected %s", b.Verifier.Tag, b.Tag)
	}
	return nil
}

// Servers returns the recipients of the bundle's shares, sorted.
func (b *Bundle) Servers() party.IDSlice {
	ids := make([]party.ID, 0, len(b.Shares))
	for id := range b.Shares {
		ids = append(ids, id)
	}
	return party.NewIDSlice(ids)
}

// RSAPartialSignature is σ = τ^keyShare (mod N) for one client, computed by one server.
type RSAPartialSignature struct {
	Sigma  *big.Int
	Row    int
	N      *big.Int
	Matrix [][]*big.Int
}

// Partial is the result of a server's aggregation of one round.
type Partial struct {
	RoundKey
	Server party.ID
	// Clients whose shares were aggregated, sorted.
	Clients party.IDSlice
	// Eval is the sum of the received shares.
	Eval *big.Int
	// Proof is g^Eval (mod p), unset for LinearSignature.
	Proof *big.Int `cbor:",omitempty"`
	// NonceEval is the sum of the nonce shares (NonceOnly).
	NonceEval *big.Int `cbor:",omitempty"`
	// Signatures are indexed by client (RSAThreshold).
	Signatures map[party.ID]*RSAPartialSignature `cbor:",omitempty"`
}

// Needs declares which client artifacts a verifier waits for before a round is Ready.
type Needs struct {
	Nonces    bool
	Verifiers bool
}

// RoundInput is everything the verifier collected for one round.
type RoundInput struct {
	RoundKey
	Partials  map[party.ID]*Partial
	Nonces    map[party.ID]*NonceRecord
	Verifiers map[party.ID]*VerifierRecord
}

// Outcome is the verifier's verdict on a round.
type Outcome struct {
	RoundKey
	// Valid is true when every check of the construction passed.
	Valid bool
	// Sum is the reconstructed sum of all clients' secrets.
	Sum *big.Int
	// Clients is the number of clients aggregated in the round.
	Clients int
	// Reason describes the first failed check, when Valid is false.
	Reason string `cbor:",omitempty"`
	// Digest is a fingerprint of the round's verification transcript.
	Digest string
}
