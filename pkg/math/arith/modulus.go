package arith

import (
	"math/big"

	"github.com/cronokirby/saferith"
)

// Modulus wraps a saferith.Modulus and enables faster modular exponentiation when
// the factorization is known.
// When n = p⋅q, xᵉ (mod n) can be computed with only two exponentiations
// with p and q respectively.
//
// The modulus must be odd.
type Modulus struct {
	// represents modulus n
	*saferith.Modulus
	// n = p⋅q
	p, q *saferith.Modulus
	// pInv = p⁻¹ (mod q)
	pNat, pInv *saferith.Nat
	// nBig caches n as a big.Int for the big.Int front end.
	nBig *big.Int
}

// ModulusFromN creates a simple wrapper around a given modulus n.
// The modulus is not copied.
func ModulusFromN(n *saferith.Modulus) *Modulus {
	return &Modulus{
		Modulus: n,
		nBig:    n.Big(),
	}
}

// ModulusFromBig creates a Modulus from a positive odd big.Int.
func ModulusFromBig(n *big.Int) *Modulus {
	return ModulusFromN(saferith.ModulusFromNat(natFromBig(n)))
}

// ModulusFromFactors creates the necessary cached values to accelerate
// exponentiation mod n.
func ModulusFromFactors(p, q *saferith.Nat) *Modulus {
	nNat := new(saferith.Nat).Mul(p, q, -1)
	nMod := saferith.ModulusFromNat(nNat)
	pMod := saferith.ModulusFromNat(p)
	qMod := saferith.ModulusFromNat(q)
	pInvQ := new(saferith.Nat).ModInverse(p, qMod)
	pNat := new(saferith.Nat).SetNat(p)
	return &Modulus{
		Modulus: nMod,
		p:       pMod,
		q:       qMod,
		pNat:    pNat,
		pInv:    pInvQ,
		nBig:    nMod.Big(),
	}
}

// ModulusFromBigFactors is ModulusFromFactors for two distinct odd primes given as big.Int.
func ModulusFromBigFactors(p, q *big.Int) *Modulus {
	return ModulusFromFactors(natFromBig(p), natFromBig(q))
}

// Exp is equivalent to (saferith.Nat).Exp(x, e, n.Modulus).
// It returns xᵉ (mod n).
func (n *Modulus) Exp(x, e *saferith.Nat) *saferith.Nat {
	if n.hasFactorization() {
		var xp, xq saferith.Nat
		xp.Exp(x, e, n.p) // x₁ = xᵉ (mod p₁)
		xq.Exp(x, e, n.q) // x₂ = xᵉ (mod p₂)
		// r = x₁ + p₁ ⋅ [p₁⁻¹ (mod p₂)] ⋅ [x₁ - x₂] (mod n)
		r := xq.ModSub(&xq, &xp, n.Modulus)
		r.ModMul(r, n.pInv, n.Modulus)
		r.ModMul(r, n.pNat, n.Modulus)
		r.ModAdd(r, &xp, n.Modulus)
		return r
	}
	return new(saferith.Nat).Exp(x, e, n.Modulus)
}

// ExpI is equivalent to (saferith.Nat).ExpI(x, e, n.Modulus).
// It returns xᵉ (mod n).
func (n *Modulus) ExpI(x *saferith.Nat, e *saferith.Int) *saferith.Nat {
	if n.hasFactorization() {
		y := n.Exp(x, e.Abs())
		inverted := new(saferith.Nat).ModInverse(y, n.Modulus)
		y.CondAssign(e.IsNegative(), inverted)
		return y
	}
	return new(saferith.Nat).ExpI(x, e, n.Modulus)
}

// ExpBig returns xᵉ (mod n) for arbitrary integers x and e.
//
// x is first reduced into [0, n). A negative e is allowed and yields (x⁻¹)^|e|;
// x must then be a unit mod n, otherwise the result is meaningless.
func (n *Modulus) ExpBig(x, e *big.Int) *big.Int {
	base := natFromBig(new(big.Int).Mod(x, n.nBig))
	if e.Sign() >= 0 {
		return n.Exp(base, natFromBig(e)).Big()
	}
	exp := new(saferith.Int).SetNat(natFromBig(new(big.Int).Neg(e)))
	exp.Neg(1)
	return n.ExpI(base, exp).Big()
}

// Big returns a copy of n as a big.Int.
func (n *Modulus) Big() *big.Int {
	return new(big.Int).Set(n.nBig)
}

func (n Modulus) hasFactorization() bool {
	return n.p != nil && n.q != nil && n.pNat != nil && n.pInv != nil
}

// natFromBig converts a non-negative big.Int.
func natFromBig(x *big.Int) *saferith.Nat {
	bits := x.BitLen()
	if bits == 0 {
		bits = 1
	}
	return new(saferith.Nat).SetBig(x, bits)
}
