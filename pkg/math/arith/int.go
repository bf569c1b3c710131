package arith

import (
	"errors"
	"fmt"
	"math/big"
)

var one = big.NewInt(1)

// primalityIterations is the number of Miller-Rabin rounds used by IsProbablePrime.
//
// 20 is the same number that Go uses internally.
const primalityIterations = 20

var (
	ErrNotInvertible = errors.New("arith: element is not invertible")
	ErrNotPrime      = errors.New("arith: value is not prime")
	ErrZeroDivisor   = errors.New("arith: division by zero")
)

// IsCoprime returns true if gcd(a,b) = 1.
func IsCoprime(a, b *big.Int) bool {
	return GCD(a, b).Cmp(one) == 0
}

// GCD returns gcd(|a|, |b|).
func GCD(a, b *big.Int) *big.Int {
	x := new(big.Int).Abs(a)
	y := new(big.Int).Abs(b)
	return new(big.Int).GCD(nil, nil, x, y)
}

// Bezout returns (g, x, y) with x⋅a + y⋅b = g = gcd(a, b).
// a and b may be negative.
func Bezout(a, b *big.Int) (g, x, y *big.Int) {
	x, y = new(big.Int), new(big.Int)
	g = new(big.Int).GCD(x, y, a, b)
	return g, x, y
}

// ModInverse returns x⁻¹ (mod m), for any modulus m > 1 (including even moduli).
func ModInverse(x, m *big.Int) (*big.Int, error) {
	if m.Sign() <= 0 {
		return nil, ErrZeroDivisor
	}
	reduced := new(big.Int).Mod(x, m)
	inv := new(big.Int).ModInverse(reduced, m)
	if inv == nil {
		return nil, fmt.Errorf("%w: %v mod %v", ErrNotInvertible, reduced, m)
	}
	return inv, nil
}

// IsProbablePrime applies Miller-Rabin and Baillie-PSW to x.
func IsProbablePrime(x *big.Int) bool {
	return x.Sign() > 0 && x.ProbablyPrime(primalityIterations)
}

// Totient returns ϕ(p₁⋅…⋅pₖ) = (p₁-1)⋯(pₖ-1) for pairwise distinct primes.
func Totient(primes ...*big.Int) (*big.Int, error) {
	if len(primes) == 0 {
		return nil, fmt.Errorf("arith.Totient: %w: no factors", ErrNotPrime)
	}
	phi := new(big.Int).Set(one)
	pMinus1 := new(big.Int)
	for _, p := range primes {
		if p == nil || !IsProbablePrime(p) {
			return nil, fmt.Errorf("arith.Totient: %w: %v", ErrNotPrime, p)
		}
		pMinus1.Sub(p, one)
		phi.Mul(phi, pMinus1)
	}
	return phi, nil
}

// Product returns p₁⋅…⋅pₖ over the integers.
func Product(xs ...*big.Int) *big.Int {
	out := new(big.Int).Set(one)
	for _, x := range xs {
		out.Mul(out, x)
	}
	return out
}

// ProductMod returns x₁⋅…⋅xₖ (mod m).
func ProductMod(m *big.Int, xs ...*big.Int) *big.Int {
	out := new(big.Int).Set(one)
	for _, x := range xs {
		out.Mul(out, x)
		out.Mod(out, m)
	}
	return out.Mod(out, m)
}

// Sum returns x₁ + … + xₖ over the integers.
func Sum(xs ...*big.Int) *big.Int {
	out := new(big.Int)
	for _, x := range xs {
		out.Add(out, x)
	}
	return out
}

// CeilDiv returns ⌈a/b⌉ for a ≥ 0 and b > 0.
func CeilDiv(a, b *big.Int) (*big.Int, error) {
	if b.Sign() <= 0 {
		return nil, ErrZeroDivisor
	}
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, one)
	}
	return q, nil
}
