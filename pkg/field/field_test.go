package field

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mersenne107(t *testing.T) *Field {
	t.Helper()
	p := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 107), big.NewInt(1))
	f, err := New(p, big.NewInt(191))
	require.NoError(t, err)
	return f
}

func TestHash_Linearity(t *testing.T) {
	f := mersenne107(t)
	s1, s2, n1, n2 := big.NewInt(5), big.NewInt(7), big.NewInt(3), big.NewInt(9)

	left := f.Mul(f.Hash(new(big.Int).Add(s1, n1)), f.Hash(new(big.Int).Add(s2, n2)))
	right := f.Hash(big.NewInt(5 + 7 + 3 + 9))
	assert.Equal(t, 0, left.Cmp(right))
	assert.Equal(t, 0, right.Cmp(new(big.Int).Exp(big.NewInt(191), big.NewInt(24), f.P())))
}

func TestHash_ReducesExponent(t *testing.T) {
	f := mersenne107(t)
	x := big.NewInt(12345)
	shifted := new(big.Int).Add(x, new(big.Int).Mul(f.Order(), big.NewInt(3)))
	assert.Equal(t, 0, f.Hash(x).Cmp(f.Hash(shifted)))
	negative := new(big.Int).Sub(x, f.Order())
	assert.Equal(t, 0, f.Hash(x).Cmp(f.Hash(negative)))
}

func TestNew_Invalid(t *testing.T) {
	for _, tc := range []struct{ p, g int64 }{
		{22, 5},
		{21, 5},
		{2, 1},
		{23, 1},
		{23, 23},
		{23, 0},
	} {
		_, err := New(big.NewInt(tc.p), big.NewInt(tc.g))
		assert.ErrorIs(t, err, ErrInvalidField, "p = %d, g = %d", tc.p, tc.g)
	}
	_, err := New(nil, big.NewInt(2))
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestGenerate(t *testing.T) {
	f, err := Generate(rand.Reader, 64, nil)
	require.NoError(t, err)
	p, g := f.P(), f.G()
	q := new(big.Int).Rsh(p, 1)
	assert.True(t, q.ProbablyPrime(20))
	// g is a quadratic residue of order q
	assert.Equal(t, 1, big.Jacobi(g, p))
	assert.Equal(t, int64(1), new(big.Int).Exp(g, q, p).Int64())

	x := f.RandomElement(rand.Reader)
	assert.True(t, x.Cmp(p) < 0)
	assert.True(t, f.Equal(f))
}
