// Package field holds the public prime field (p, g) in which client commitments
// and server proofs are computed.
package field

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/taurusgroup/vhss/pkg/math/arith"
	"github.com/taurusgroup/vhss/pkg/math/sample"
	"github.com/taurusgroup/vhss/pkg/pool"
)

var ErrInvalidField = errors.New("field: invalid parameters")

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// Field is the multiplicative group ℤₚˣ together with a public base g.
//
// Hash(x) = gˣ (mod p) is additively homomorphic:
// Hash(x)⋅Hash(y) = Hash(x+y).
type Field struct {
	p, g  *big.Int
	order *big.Int
	mod   *arith.Modulus
}

// New validates and returns the field defined by an odd prime p and a base 1 < g < p.
func New(p, g *big.Int) (*Field, error) {
	if p == nil || g == nil {
		return nil, fmt.Errorf("%w: nil parameter", ErrInvalidField)
	}
	if p.Bit(0) == 0 || !arith.IsProbablePrime(p) {
		return nil, fmt.Errorf("%w: p = %v is not an odd prime", ErrInvalidField, p)
	}
	if g.Cmp(one) <= 0 || g.Cmp(p) >= 0 {
		return nil, fmt.Errorf("%w: g = %v is not in (1, p)", ErrInvalidField, g)
	}
	return &Field{
		p:     new(big.Int).Set(p),
		g:     new(big.Int).Set(g),
		order: new(big.Int).Sub(p, one),
		mod:   arith.ModulusFromBig(p),
	}, nil
}

// Generate returns a field over a fresh safe prime p = 2q+1 of the given size,
// where g = h² generates the subgroup of quadratic residues, of prime order q.
func Generate(rand io.Reader, bits int, pl *pool.Pool) (*Field, error) {
	p, err := sample.SafePrime(rand, bits, pl)
	if err != nil {
		return nil, fmt.Errorf("field.Generate: %w", err)
	}
	pMinus1 := new(big.Int).Sub(p, one)
	g := new(big.Int)
	// h² ∉ {0, 1} whenever h ∉ {0, 1, p-1}
	for g.Cmp(one) <= 0 {
		h := sample.NonZeroModN(rand, p)
		if h.Cmp(one) == 0 || h.Cmp(pMinus1) == 0 {
			continue
		}
		g.Exp(h, two, p)
	}
	return New(p, g)
}

// P returns a copy of the field base p.
func (f *Field) P() *big.Int { return new(big.Int).Set(f.p) }

// G returns a copy of the generator g.
func (f *Field) G() *big.Int { return new(big.Int).Set(f.g) }

// Order returns ϕ(p) = p-1, the modulus in which exponents of g are reduced.
func (f *Field) Order() *big.Int { return new(big.Int).Set(f.order) }

// Hash returns gˣ (mod p). x may be any integer; it is reduced mod p-1 first.
func (f *Field) Hash(x *big.Int) *big.Int {
	e := new(big.Int).Mod(x, f.order)
	return f.mod.ExpBig(f.g, e)
}

// Exp returns xᵉ (mod p), for e ≥ 0.
func (f *Field) Exp(x, e *big.Int) *big.Int {
	return f.mod.ExpBig(x, e)
}

// Mul returns x₁⋅…⋅xₖ (mod p).
func (f *Field) Mul(xs ...*big.Int) *big.Int {
	return arith.ProductMod(f.p, xs...)
}

// RandomElement samples uniformly in [0, p).
func (f *Field) RandomElement(rand io.Reader) *big.Int {
	return sample.ModN(rand, f.p)
}

// Equal returns true if both fields have the same p and g.
func (f *Field) Equal(other *Field) bool {
	return f.p.Cmp(other.p) == 0 && f.g.Cmp(other.g) == 0
}

func (f *Field) String() string {
	return fmt.Sprintf("field(p: %d bits, g: %v)", f.p.BitLen(), f.g)
}
