package rsathreshold

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/taurusgroup/vhss/pkg/math/arith"
	"github.com/taurusgroup/vhss/pkg/math/matrix"
	"github.com/taurusgroup/vhss/pkg/math/sample"
	"github.com/taurusgroup/vhss/pkg/pool"
)

// PublicExponentBits is the size of the public exponent e.
const PublicExponentBits = 64

// maxIterations bounds the regeneration of the matrix and of e.
const maxIterations = 255

var (
	// ErrDegenerateMatrix is returned when the determinant of the key matrix is zero.
	// The whole ShareSecret call must be retried.
	ErrDegenerateMatrix = errors.New("rsathreshold: degenerate client matrix")
	// ErrInvalidPrimes is returned for primes which are not two distinct safe prime
	// pairs above the field base.
	ErrInvalidPrimes = errors.New("rsathreshold: invalid RSA primes")
	// ErrMaxIterations is returned when no full rank matrix or public exponent was found.
	ErrMaxIterations = fmt.Errorf("rsathreshold: key generation failed after %d iterations", maxIterations)
)

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// Primes holds two safe prime pairs (qᵢ, pᵢ = 2qᵢ+1).
//
// A set of primes must be used for a single round.
type Primes struct {
	Q, P [2]*big.Int
}

// PrimeSource provides single-use Primes for a round of a substation.
type PrimeSource interface {
	RSAPrimes(substation string, fid uint64) (*Primes, error)
}

// GeneratePrimes samples two distinct safe prime pairs of the given size with pᵢ > min.
func GeneratePrimes(rand io.Reader, bits int, min *big.Int, pl *pool.Pool) (*Primes, error) {
	q, p, err := sample.SafePrimePairs(rand, bits, min, pl)
	if err != nil {
		return nil, fmt.Errorf("rsathreshold.GeneratePrimes: %w", err)
	}
	return &Primes{Q: q, P: p}, nil
}

// Validate checks that pᵢ = 2qᵢ+1 are distinct safe primes, both larger than min.
func (ps *Primes) Validate(min *big.Int) error {
	if ps == nil {
		return fmt.Errorf("%w: nil primes", ErrInvalidPrimes)
	}
	for i := range ps.P {
		p, q := ps.P[i], ps.Q[i]
		if p == nil || q == nil {
			return fmt.Errorf("%w: missing pair %d", ErrInvalidPrimes, i)
		}
		twoQPlusOne := new(big.Int).Lsh(q, 1)
		if twoQPlusOne.Add(twoQPlusOne, one).Cmp(p) != 0 {
			return fmt.Errorf("%w: p%d ≠ 2q%d+1", ErrInvalidPrimes, i+1, i+1)
		}
		if !arith.IsProbablePrime(p) || !arith.IsProbablePrime(q) {
			return fmt.Errorf("%w: pair %d is not a safe prime", ErrInvalidPrimes, i+1)
		}
		if min != nil && p.Cmp(min) <= 0 {
			return fmt.Errorf("%w: p%d does not exceed the field base", ErrInvalidPrimes, i+1)
		}
	}
	if ps.P[0].Cmp(ps.P[1]) == 0 {
		return fmt.Errorf("%w: primes are equal", ErrInvalidPrimes)
	}
	return nil
}

// N returns p₁⋅p₂.
func (ps *Primes) N() *big.Int { return new(big.Int).Mul(ps.P[0], ps.P[1]) }

// NPrime returns N′ = q₁⋅q₂.
func (ps *Primes) NPrime() *big.Int { return new(big.Int).Mul(ps.Q[0], ps.Q[1]) }

// Key is a single-use threshold RSA key of one client.
type Key struct {
	// N is the RSA modulus p₁⋅p₂.
	N *big.Int
	// E is the public exponent.
	E *big.Int
	// Matrix is the m × t client matrix, row i belonging to the i-th server.
	Matrix *matrix.Matrix
	// Det is the determinant of the top t × t block of Matrix.
	Det *big.Int
	// Shares[i] = Matrix[i] ⋅ (d, r₁, …, rₜ₋₁).
	Shares []*big.Int

	// d = e⁻¹ (mod 2N′)
	d *big.Int
}

// GenerateKey derives a fresh key for m servers and threshold t from primes.
// Matrix entries and the filler values of the key vector are sampled in [0, bound).
func GenerateKey(rand io.Reader, primes *Primes, bound *big.Int, m, t int) (*Key, error) {
	if err := primes.Validate(bound); err != nil {
		return nil, err
	}
	if t < 1 || m < t {
		return nil, fmt.Errorf("rsathreshold.GenerateKey: invalid dimensions %d × %d", m, t)
	}
	n := primes.N()
	twoNPrime := new(big.Int).Mul(two, primes.NPrime())

	var (
		a    *matrix.Matrix
		dets []*big.Int
		err  error
	)
	for i := 0; ; i++ {
		if i == maxIterations {
			return nil, ErrMaxIterations
		}
		if a, err = matrix.Random(m, t, bound); err != nil {
			return nil, fmt.Errorf("rsathreshold.GenerateKey: %w", err)
		}
		if dets, err = coveringDets(a); err != nil {
			return nil, err
		}
		if dets != nil {
			break
		}
	}
	det := dets[0]

	var e *big.Int
	for i := 0; ; i++ {
		if i == maxIterations {
			return nil, ErrMaxIterations
		}
		if e, err = sample.Prime(rand, PublicExponentBits); err != nil {
			return nil, err
		}
		if arith.IsCoprime(e, twoNPrime) && coprimeToAll(e, dets) {
			break
		}
	}
	d, err := arith.ModInverse(e, twoNPrime)
	if err != nil {
		return nil, fmt.Errorf("rsathreshold.GenerateKey: %w", err)
	}

	vector := make([]*big.Int, t)
	vector[0] = d
	for j := 1; j < t; j++ {
		vector[j] = sample.ModN(rand, bound)
	}
	shares, err := a.MulVector(vector)
	if err != nil {
		return nil, fmt.Errorf("rsathreshold.GenerateKey: %w", err)
	}

	return &Key{
		N:      n,
		E:      e,
		Matrix: a,
		Det:    det,
		Shares: shares,
		d:      d,
	}, nil
}

// CoveringRows returns the row sets {0, …, t-2, i} for i = t-1, …, m-1. Every row
// of an m × t matrix belongs to one of them, and the first one is 0, …, t-1.
func CoveringRows(m, t int) [][]int {
	if t < 1 || m < t {
		return nil
	}
	out := make([][]int, 0, m-t+1)
	for i := t - 1; i < m; i++ {
		rows := make([]int, t)
		for j := 0; j < t-1; j++ {
			rows[j] = j
		}
		rows[t-1] = i
		out = append(out, rows)
	}
	return out
}

// coveringDets returns the determinants of the blocks of a given by CoveringRows,
// or nil if one of them is zero.
func coveringDets(a *matrix.Matrix) ([]*big.Int, error) {
	blocks := CoveringRows(a.Rows(), a.Cols())
	dets := make([]*big.Int, len(blocks))
	for k, rows := range blocks {
		block, err := a.SubRows(rows...)
		if err != nil {
			return nil, fmt.Errorf("rsathreshold.GenerateKey: %w", err)
		}
		if dets[k], err = block.Det(); err != nil {
			return nil, fmt.Errorf("rsathreshold.GenerateKey: %w", err)
		}
		if dets[k].Sign() == 0 {
			return nil, nil
		}
	}
	return dets, nil
}

func coprimeToAll(e *big.Int, xs []*big.Int) bool {
	for _, x := range xs {
		if !arith.IsCoprime(e, x) {
			return false
		}
	}
	return true
}

// PartialSign returns τ^keyShare (mod n).
func PartialSign(commitment, keyShare, n *big.Int) *big.Int {
	return arith.ModulusFromBig(n).ExpBig(commitment, keyShare)
}

// Combine recombines the partial signatures of the servers at the given t rows of a
// into a full signature on commitment, for public exponent e. sigmas[j] is the
// partial signature of the server at rows[j].
//
// With adj the adjugate of the block A of a at rows, Σ = Πⱼ σⱼ^adj₀ⱼ = τ^(det(A)⋅d).
// Since a⋅e + b⋅det(A) = 1, the signature is τᵃ⋅Σᵇ.
func Combine(a *matrix.Matrix, rows []int, n, e, commitment *big.Int, sigmas []*big.Int) (*big.Int, error) {
	t := a.Cols()
	if len(rows) != t || len(sigmas) != t {
		return nil, fmt.Errorf("rsathreshold.Combine: expected %d partial signatures, got %d for %d rows", t, len(sigmas), len(rows))
	}
	top, err := a.SubRows(rows...)
	if err != nil {
		return nil, fmt.Errorf("rsathreshold.Combine: %w", err)
	}
	det, err := top.Det()
	if err != nil {
		return nil, fmt.Errorf("rsathreshold.Combine: %w", err)
	}
	if det.Sign() == 0 {
		return nil, ErrDegenerateMatrix
	}
	adj, err := top.AdjugateRow0()
	if err != nil {
		return nil, fmt.Errorf("rsathreshold.Combine: %w", err)
	}
	g, x, y := arith.Bezout(e, det)
	if g.Cmp(one) != 0 {
		return nil, fmt.Errorf("rsathreshold.Combine: %w: e and det are not coprime", arith.ErrNotInvertible)
	}

	mod := arith.ModulusFromBig(n)
	sigma := big.NewInt(1)
	for j, s := range sigmas {
		sigma = arith.ProductMod(n, sigma, mod.ExpBig(s, adj[j]))
	}
	return arith.ProductMod(n, mod.ExpBig(commitment, x), mod.ExpBig(sigma, y)), nil
}

// VerifySignature returns true iff sigᵉ ≡ commitment (mod n).
func VerifySignature(n, e, commitment, sig *big.Int) bool {
	lhs := arith.ModulusFromBig(n).ExpBig(sig, e)
	return lhs.Cmp(new(big.Int).Mod(commitment, n)) == 0
}
