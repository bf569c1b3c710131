package arith

import (
	"math/big"
	mrand "math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// two safe primes, small enough to keep the test fast.
var (
	testP = big.NewInt(1019)
	testQ = big.NewInt(2027)
)

func TestModulus_ExpBig(t *testing.T) {
	r := mrand.New(mrand.NewSource(0))
	n := new(big.Int).Mul(testP, testQ)

	fast := ModulusFromBigFactors(testP, testQ)
	slow := ModulusFromBig(n)
	assert.Equal(t, 0, fast.Big().Cmp(slow.Big()), "n moduli should be the same")

	for i := 0; i < 50; i++ {
		x := new(big.Int).Rand(r, n)
		if !IsCoprime(x, n) {
			continue
		}
		e := new(big.Int).Rand(r, new(big.Int).Lsh(one, 64))

		expected := new(big.Int).Exp(x, e, n)
		assert.Equal(t, 0, expected.Cmp(fast.ExpBig(x, e)), "exponentiation with acceleration should give the same result")
		assert.Equal(t, 0, expected.Cmp(slow.ExpBig(x, e)), "exponentiation without acceleration should give the same result")

		eNeg := new(big.Int).Neg(e)
		inv := new(big.Int).ModInverse(expected, n)
		assert.Equal(t, 0, inv.Cmp(fast.ExpBig(x, eNeg)), "negative exponentiation with acceleration should give the same result")
		assert.Equal(t, 0, inv.Cmp(slow.ExpBig(x, eNeg)), "negative exponentiation should give the same result")
	}
}

func TestModulus_ExpBigReducesBase(t *testing.T) {
	n := ModulusFromBig(big.NewInt(23))
	// 28 ≡ -18 ≡ 5 (mod 23), 5³ = 125 ≡ 10
	assert.Equal(t, int64(10), n.ExpBig(big.NewInt(28), big.NewInt(3)).Int64())
	assert.Equal(t, int64(10), n.ExpBig(big.NewInt(-18), big.NewInt(3)).Int64())
	assert.Equal(t, int64(1), n.ExpBig(big.NewInt(5), big.NewInt(0)).Int64())
}

func TestModInverse(t *testing.T) {
	inv, err := ModInverse(big.NewInt(3), big.NewInt(22))
	require.NoError(t, err)
	assert.Equal(t, int64(15), inv.Int64())

	inv, err = ModInverse(big.NewInt(-3), big.NewInt(22))
	require.NoError(t, err)
	assert.Equal(t, int64(7), inv.Int64())

	_, err = ModInverse(big.NewInt(4), big.NewInt(22))
	assert.ErrorIs(t, err, ErrNotInvertible)

	_, err = ModInverse(big.NewInt(4), big.NewInt(0))
	assert.ErrorIs(t, err, ErrZeroDivisor)
}

func TestTotient(t *testing.T) {
	phi, err := Totient(big.NewInt(5), big.NewInt(7), big.NewInt(11))
	require.NoError(t, err)
	assert.Equal(t, int64(4*6*10), phi.Int64())

	_, err = Totient(big.NewInt(5), big.NewInt(9))
	assert.ErrorIs(t, err, ErrNotPrime)

	_, err = Totient()
	assert.ErrorIs(t, err, ErrNotPrime)
}

func TestBezout(t *testing.T) {
	a, b := big.NewInt(-240), big.NewInt(46)
	g, x, y := Bezout(a, b)
	// big.Int.GCD operates on |a|, |b| only for the result; the relation still holds.
	lhs := new(big.Int).Add(new(big.Int).Mul(x, a), new(big.Int).Mul(y, b))
	assert.Equal(t, 0, lhs.Cmp(g))
	assert.Equal(t, int64(2), g.Int64())
}

func TestCeilDiv(t *testing.T) {
	for _, tc := range []struct{ a, b, want int64 }{
		{0, 5, 0},
		{1, 5, 1},
		{5, 5, 1},
		{6, 5, 2},
		{17, 22, 1},
	} {
		got, err := CeilDiv(big.NewInt(tc.a), big.NewInt(tc.b))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Int64(), "⌈%d/%d⌉", tc.a, tc.b)
	}
	_, err := CeilDiv(one, new(big.Int))
	assert.ErrorIs(t, err, ErrZeroDivisor)
}

func TestProductSum(t *testing.T) {
	xs := []*big.Int{big.NewInt(3), big.NewInt(4), big.NewInt(5)}
	assert.Equal(t, int64(60), Product(xs...).Int64())
	assert.Equal(t, int64(60%7), ProductMod(big.NewInt(7), xs...).Int64())
	assert.Equal(t, int64(12), Sum(xs...).Int64())
}

func benchmarkExpBig(b *testing.B, m *Modulus) {
	r := mrand.New(mrand.NewSource(0))
	n := m.Big()
	for i := 0; i < b.N; i++ {
		x := new(big.Int).Rand(r, n)
		e := new(big.Int).Rand(r, n)
		m.ExpBig(x, e)
	}
}

func BenchmarkExpBig(b *testing.B) {
	b.Run("crt", func(b *testing.B) { benchmarkExpBig(b, ModulusFromBigFactors(testP, testQ)) })
	b.Run("plain", func(b *testing.B) { benchmarkExpBig(b, ModulusFromBig(new(big.Int).Mul(testP, testQ))) })
}
