// Package paillier holds the composite modulus N̂ = p̂⋅q̂ of the linear signature
// construction. Anyone can exponentiate mod N̂, while extracting roots requires the
// factorization held by the SecretKey.
package paillier

import (
	"errors"
	"math/big"

	"github.com/taurusgroup/vhss/pkg/math/arith"
)

var ErrNotUnit = errors.New("paillier: element is not a unit mod N")

type PublicKey struct {
	n    *arith.Modulus
	nBig *big.Int
}

// NewPublicKey returns the public key for the odd modulus n.
func NewPublicKey(n *big.Int) *PublicKey {
	return &PublicKey{
		n:    arith.ModulusFromBig(n),
		nBig: new(big.Int).Set(n),
	}
}

// N returns the big.Int N of the public key.
// For efficiency, the value returned is a pointer to the same underlying N.
// WARNING: Do not modify the returned value.
func (pk *PublicKey) N() *big.Int {
	return pk.nBig
}

// Equal returns true if pk = other.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	return pk.nBig.Cmp(other.nBig) == 0
}

// Exp returns xᵉ (mod N). A negative e requires x to be a unit.
func (pk *PublicKey) Exp(x, e *big.Int) *big.Int {
	return pk.n.ExpBig(x, e)
}

// Mul returns x₁⋅…⋅xₖ (mod N).
func (pk *PublicKey) Mul(xs ...*big.Int) *big.Int {
	return arith.ProductMod(pk.nBig, xs...)
}

// ValidateElement checks that 0 < x < N and gcd(x, N) = 1.
func (pk *PublicKey) ValidateElement(x *big.Int) error {
	if x == nil || x.Sign() <= 0 || x.Cmp(pk.nBig) >= 0 || !arith.IsCoprime(x, pk.nBig) {
		return ErrNotUnit
	}
	return nil
}
