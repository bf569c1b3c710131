package paillier

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/taurusgroup/vhss/pkg/math/arith"
	"github.com/taurusgroup/vhss/pkg/math/sample"
	"github.com/taurusgroup/vhss/pkg/pool"
)

var (
	ErrPrimeBadLength = errors.New("prime factor is not the right length")
	ErrNotBlum        = errors.New("prime factor is not equivalent to 3 (mod 4)")
	ErrNotSafePrime   = errors.New("supposed prime factor is not a safe prime")
	ErrPrimeNil       = errors.New("prime is nil")
	ErrSamePrimes     = errors.New("prime factors are equal")
)

// SecretKey is the secret key corresponding to a PublicKey.
//
// A public key is a modulus N, and the secret key contains the information
// needed to factor N into two primes, P and Q. This allows us to take
// e-th roots mod N for any e coprime to ϕ(N).
type SecretKey struct {
	*PublicKey
	// p, q such that N = p⋅q
	p, q *big.Int
	// phi = ϕ = (p-1)(q-1)
	phi *big.Int
}

// P returns the first of the two factors composing this key.
func (sk *SecretKey) P() *big.Int {
	return new(big.Int).Set(sk.p)
}

// Q returns the second of the two factors composing this key.
func (sk *SecretKey) Q() *big.Int {
	return new(big.Int).Set(sk.q)
}

// Phi returns ϕ = (P-1)(Q-1).
//
// This is the result of the totient function ϕ(N), where N = P⋅Q
// is our public key. This function counts the number of units mod N.
func (sk *SecretKey) Phi() *big.Int {
	return new(big.Int).Set(sk.phi)
}

// KeyGen generates a new PublicKey and it's associated SecretKey, with safe prime
// factors of the given size.
func KeyGen(rand io.Reader, bits int, pl *pool.Pool) (pk *PublicKey, sk *SecretKey, err error) {
	sk, err = NewSecretKey(rand, bits, pl)
	if err != nil {
		return nil, nil, err
	}
	return sk.PublicKey, sk, nil
}

// NewSecretKey generates distinct safe primes p and q of the given size and
// returns the initialized SecretKey.
func NewSecretKey(rand io.Reader, bits int, pl *pool.Pool) (*SecretKey, error) {
	_, ps, err := sample.SafePrimePairs(rand, bits, nil, pl)
	if err != nil {
		return nil, fmt.Errorf("paillier.NewSecretKey: %w", err)
	}
	return NewSecretKeyFromPrimes(ps[0], ps[1])
}

// NewSecretKeyFromPrimes validates P and Q as distinct safe primes of equal size
// and returns the SecretKey of N = P⋅Q.
func NewSecretKeyFromPrimes(P, Q *big.Int) (*SecretKey, error) {
	if P == nil || Q == nil {
		return nil, ErrPrimeNil
	}
	bits := P.BitLen()
	if err := ValidatePrime(P, bits); err != nil {
		return nil, err
	}
	if err := ValidatePrime(Q, bits); err != nil {
		return nil, err
	}
	if P.Cmp(Q) == 0 {
		return nil, ErrSamePrimes
	}
	phi, err := arith.Totient(P, Q)
	if err != nil {
		return nil, err
	}
	n := new(big.Int).Mul(P, Q)
	return &SecretKey{
		PublicKey: &PublicKey{
			n:    arith.ModulusFromBigFactors(P, Q),
			nBig: n,
		},
		p:   new(big.Int).Set(P),
		q:   new(big.Int).Set(Q),
		phi: phi,
	}, nil
}

// Root returns the unique y with yᵉ ≡ x (mod N), for e coprime to ϕ(N).
func (sk *SecretKey) Root(x, e *big.Int) (*big.Int, error) {
	// eInv = e⁻¹ mod ϕ
	eInv, err := arith.ModInverse(e, sk.phi)
	if err != nil {
		return nil, fmt.Errorf("paillier.Root: %w", err)
	}
	return sk.n.ExpBig(x, eInv), nil
}

// ValidatePrime checks whether p is a suitable prime factor.
// Checks:
// - log₂(p) ≡ bits.
// - p ≡ 3 (mod 4).
// - q := (p-1)/2 is prime.
func ValidatePrime(p *big.Int, bits int) error {
	if p == nil {
		return ErrPrimeNil
	}
	// check bit lengths
	if have := p.BitLen(); have != bits {
		return fmt.Errorf("invalid prime size: have: %d, need %d: %w", have, bits, ErrPrimeBadLength)
	}
	// check == 3 (mod 4)
	if p.Bit(0) != 1 || p.Bit(1) != 1 {
		return ErrNotBlum
	}

	// check (p-1)/2 is prime
	pMinus1Div2 := new(big.Int).Rsh(p, 1)

	if !arith.IsProbablePrime(pMinus1Div2) || !arith.IsProbablePrime(p) {
		return ErrNotSafePrime
	}
	return nil
}
