package matrix

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromInts(t *testing.T, rows [][]int64) *Matrix {
	t.Helper()
	out := make([][]*big.Int, len(rows))
	for i, row := range rows {
		out[i] = make([]*big.Int, len(row))
		for j, x := range row {
			out[i][j] = big.NewInt(x)
		}
	}
	m, err := FromRows(out)
	require.NoError(t, err)
	return m
}

func TestDet(t *testing.T) {
	for _, tc := range []struct {
		rows [][]int64
		det  int64
	}{
		{[][]int64{{7}}, 7},
		{[][]int64{{1, 2}, {3, 4}}, -2},
		{[][]int64{{0, 1}, {1, 0}}, -1},
		{[][]int64{{2, 0, 1}, {1, 3, 2}, {1, 1, 2}}, 6},
		{[][]int64{{0, 2, 3}, {0, 5, 6}, {7, 8, 9}}, -21},
		{[][]int64{{1, 2, 3}, {2, 4, 6}, {1, 1, 1}}, 0},
		{[][]int64{{6, 1, 1, 3}, {4, -2, 5, 1}, {2, 8, 7, 6}, {3, 1, 9, 7}}, -1309},
	} {
		det, err := fromInts(t, tc.rows).Det()
		require.NoError(t, err)
		assert.Equal(t, tc.det, det.Int64(), "%v", tc.rows)
	}

	_, err := fromInts(t, [][]int64{{1, 2}}).Det()
	assert.ErrorIs(t, err, ErrDimension)
}

func TestRandom(t *testing.T) {
	bound := big.NewInt(17)
	m, err := Random(6, 3, bound)
	require.NoError(t, err)
	assert.Equal(t, 6, m.Rows())
	assert.Equal(t, 3, m.Cols())
	for _, row := range m.ToRows() {
		for _, x := range row {
			assert.True(t, x.Sign() >= 0 && x.Cmp(bound) < 0, "%v out of range", x)
		}
	}
}

func TestFromRows_Errors(t *testing.T) {
	_, err := FromRows([][]*big.Int{{big.NewInt(1), big.NewInt(2)}, {big.NewInt(3)}})
	assert.ErrorIs(t, err, ErrDimension)

	_, err = FromRows([][]*big.Int{{big.NewInt(1), nil}})
	assert.Error(t, err)
}

func TestAdjugateRow0(t *testing.T) {
	bound := new(big.Int).Lsh(big.NewInt(1), 64)
	for n := 1; n <= 5; n++ {
		m, err := Random(n, n, bound)
		require.NoError(t, err)
		v := make([]*big.Int, n)
		for i := range v {
			v[i], _ = rand.Int(rand.Reader, bound)
		}
		mv, err := m.MulVector(v)
		require.NoError(t, err)
		adj, err := m.AdjugateRow0()
		require.NoError(t, err)
		det, err := m.Det()
		require.NoError(t, err)

		lhs := new(big.Int)
		for j := range adj {
			lhs.Add(lhs, new(big.Int).Mul(adj[j], mv[j]))
		}
		assert.Equal(t, 0, lhs.Cmp(new(big.Int).Mul(det, v[0])), "n = %d", n)

		if det.Sign() != 0 {
			x0, err := m.SolveFirst(mv)
			require.NoError(t, err)
			assert.Equal(t, 0, x0.Cmp(v[0]))
		}
	}
}

func TestSolveFirst_Errors(t *testing.T) {
	singular := fromInts(t, [][]int64{{1, 2}, {2, 4}})
	_, err := singular.SolveFirst([]*big.Int{big.NewInt(1), big.NewInt(2)})
	assert.ErrorIs(t, err, ErrSingular)

	m := fromInts(t, [][]int64{{2, 0}, {0, 1}})
	_, err = m.SolveFirst([]*big.Int{big.NewInt(1), big.NewInt(1)})
	assert.ErrorIs(t, err, ErrNotIntegral)

	_, err = m.SolveFirst([]*big.Int{big.NewInt(1)})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestSubRowsMinorClone(t *testing.T) {
	m := fromInts(t, [][]int64{{1, 2}, {3, 4}, {5, 6}})
	sub, err := m.SubRows(2, 0)
	require.NoError(t, err)
	assert.True(t, sub.Equal(fromInts(t, [][]int64{{5, 6}, {1, 2}})))

	_, err = m.SubRows(3)
	assert.ErrorIs(t, err, ErrDimension)

	minor, err := m.Minor(1, 0)
	require.NoError(t, err)
	assert.True(t, minor.Equal(fromInts(t, [][]int64{{2}, {6}})))

	c := m.Clone()
	assert.True(t, c.Equal(m))
	c.entries[0][0].SetInt64(100)
	sub.entries[1][0].SetInt64(100)
	assert.False(t, c.Equal(m))
	assert.Equal(t, int64(1), m.At(0, 0).Int64())
}
