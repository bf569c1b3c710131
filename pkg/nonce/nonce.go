// Package nonce computes the term that cancels the sum of all clients' blinding
// nonces out of an aggregate commitment.
package nonce

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/taurusgroup/vhss/pkg/field"
	"github.com/taurusgroup/vhss/pkg/math/arith"
)

var ErrNegativeSum = errors.New("nonce: sum must be non-negative")

// Inverse returns the exponent r such that S + r is a multiple of ϕ(n), where
// n = p₁⋯pₖ is a product of distinct primes:
//
//	k = ⌈S / ϕ(n)⌉,
//	r = (k⋅ϕ(n) - S) mod n.
//
// By Euler's theorem, x^(S+r) ≡ 1 (mod n) for every unit x.
func Inverse(sum *big.Int, primes ...*big.Int) (*big.Int, error) {
	if sum.Sign() < 0 {
		return nil, ErrNegativeSum
	}
	phi, err := arith.Totient(primes...)
	if err != nil {
		return nil, fmt.Errorf("nonce.Inverse: %w", err)
	}
	k, err := arith.CeilDiv(sum, phi)
	if err != nil {
		return nil, fmt.Errorf("nonce.Inverse: %w", err)
	}
	r := k.Mul(k, phi)
	r.Sub(r, sum)
	return r.Mod(r, arith.Product(primes...)), nil
}

// LastTerm returns g^Inverse(sum, p) (mod p), the commitment of the "last client":
// multiplying it into g^sum gives 1.
func LastTerm(sum *big.Int, f *field.Field) (*big.Int, error) {
	r, err := Inverse(sum, f.P())
	if err != nil {
		return nil, err
	}
	return f.Exp(f.G(), r), nil
}
