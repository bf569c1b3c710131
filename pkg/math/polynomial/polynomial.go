package polynomial

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/taurusgroup/vhss/pkg/math/sample"
)

// DefaultCoefficientBits is the size of random coefficients when the polynomial
// is defined over the integers.
const DefaultCoefficientBits = 256

var ErrDegree = errors.New("polynomial: degree must be positive")

// Polynomial represents f(X) = a₀ + a₁⋅X + … + aₜ⋅Xᵗ.
//
// When modulus is set, all coefficients and evaluations live in ℤₘ,
// otherwise f is evaluated over the integers.
type Polynomial struct {
	coefficients []*big.Int
	modulus      *big.Int
}

// NewPolynomial generates a Polynomial f(X) = secret + a₁⋅X + … + aₜ⋅Xᵗ,
// with non-zero random coefficients in ℤₘ (or of DefaultCoefficientBits bits when
// modulus is nil), and degree t.
//
// The constant is reduced mod m when a modulus is given.
func NewPolynomial(rand io.Reader, degree int, constant, modulus *big.Int) (*Polynomial, error) {
	if degree < 1 {
		return nil, fmt.Errorf("polynomial.NewPolynomial: %w (got %d)", ErrDegree, degree)
	}
	if modulus != nil && modulus.Cmp(big.NewInt(2)) < 0 {
		return nil, fmt.Errorf("polynomial.NewPolynomial: modulus %v is too small", modulus)
	}

	var polynomial Polynomial
	polynomial.coefficients = make([]*big.Int, degree+1)

	// if the constant is nil, we interpret it as 0.
	a0 := new(big.Int)
	if constant != nil {
		a0.Set(constant)
	}
	if modulus != nil {
		polynomial.modulus = new(big.Int).Set(modulus)
		a0.Mod(a0, modulus)
	}
	polynomial.coefficients[0] = a0

	bound := modulus
	if bound == nil {
		bound = new(big.Int).Lsh(big.NewInt(1), DefaultCoefficientBits)
	}
	for i := 1; i <= degree; i++ {
		polynomial.coefficients[i] = sample.NonZeroModN(rand, bound)
	}

	return &polynomial, nil
}

// Evaluate evaluates a polynomial in a given variable index
// We use Horner's method: https://en.wikipedia.org/wiki/Horner%27s_method
func (p *Polynomial) Evaluate(index *big.Int) *big.Int {
	if index.Sign() == 0 {
		panic("attempt to leak secret")
	}

	result := new(big.Int)
	// reverse order
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		// bₙ₋₁ = bₙ * x + aₙ₋₁
		result.Mul(result, index)
		result.Add(result, p.coefficients[i])
		if p.modulus != nil {
			result.Mod(result, p.modulus)
		}
	}
	return result
}

// WeightedShares returns, for every point x, weight(x)⋅f(x), reduced mod the
// polynomial's modulus if it has one.
//
// Summing all returned values yields f(0), since the weights are the Lagrange
// coefficients at 0 of the full set of points.
func (p *Polynomial) WeightedShares(points []int) (map[int]*big.Int, error) {
	weights, err := Weights(points)
	if err != nil {
		return nil, err
	}
	shares := make(map[int]*big.Int, len(points))
	for _, x := range points {
		s := p.Evaluate(big.NewInt(int64(x)))
		s.Mul(s, weights[x])
		if p.modulus != nil {
			s.Mod(s, p.modulus)
		}
		shares[x] = s
	}
	return shares, nil
}

// Constant returns a copy of the constant coefficient of the polynomial.
func (p *Polynomial) Constant() *big.Int {
	return new(big.Int).Set(p.coefficients[0])
}

// Degree is the highest power of the Polynomial.
func (p *Polynomial) Degree() uint32 {
	return uint32(len(p.coefficients)) - 1
}

// Modulus returns the modulus of the coefficients, or nil over the integers.
func (p *Polynomial) Modulus() *big.Int {
	if p.modulus == nil {
		return nil
	}
	return new(big.Int).Set(p.modulus)
}
