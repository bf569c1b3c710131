// Package matrix implements the small integer matrices used to split an RSA
// private exponent across servers.
//
// All arithmetic is exact, over ℤ.
package matrix

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/fentec-project/gofe/data"
	gofesample "github.com/fentec-project/gofe/sample"
)

var (
	ErrDimension   = errors.New("matrix: dimension mismatch")
	ErrSingular    = errors.New("matrix: matrix is singular")
	ErrNotIntegral = errors.New("matrix: solution is not integral")
)

// Matrix is a rows × cols matrix of integers.
type Matrix struct {
	entries data.Matrix
}

// FromRows copies rows into a new Matrix. All rows must have the same length.
func FromRows(rows [][]*big.Int) (*Matrix, error) {
	vectors := make([]data.Vector, len(rows))
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("matrix.FromRows: %w: row %d has %d entries, expected %d", ErrDimension, i, len(row), len(rows[0]))
		}
		for j, x := range row {
			if x == nil {
				return nil, fmt.Errorf("matrix.FromRows: nil entry (%d, %d)", i, j)
			}
		}
		vectors[i] = data.NewVector(copyVector(row))
	}
	m, err := data.NewMatrix(vectors)
	if err != nil {
		return nil, fmt.Errorf("matrix.FromRows: %w", err)
	}
	return &Matrix{entries: m}, nil
}

// Random returns a rows × cols matrix with entries sampled uniformly in [0, bound).
func Random(rows, cols int, bound *big.Int) (*Matrix, error) {
	m, err := data.NewRandomMatrix(rows, cols, gofesample.NewUniform(bound))
	if err != nil {
		return nil, fmt.Errorf("matrix.Random: %w", err)
	}
	return &Matrix{entries: m}, nil
}

// Rows returns the number of rows of m.
func (m *Matrix) Rows() int { return m.entries.Rows() }

// Cols returns the number of columns of m.
func (m *Matrix) Cols() int { return m.entries.Cols() }

// At returns a copy of the entry (i, j).
func (m *Matrix) At(i, j int) *big.Int {
	return new(big.Int).Set(m.entries[i][j])
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []*big.Int {
	return copyVector(m.entries[i])
}

// ToRows returns a deep copy of the entries of m.
func (m *Matrix) ToRows() [][]*big.Int {
	out := make([][]*big.Int, m.Rows())
	for i := range out {
		out[i] = m.Row(i)
	}
	return out
}

// Clone returns a deep copy of m.
func (m *Matrix) Clone() *Matrix {
	return &Matrix{entries: m.copyRows(seq(m.Rows()))}
}

// Equal returns true if both matrices have the same dimensions and entries.
func (m *Matrix) Equal(other *Matrix) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Rows() != other.Rows() || m.Cols() != other.Cols() {
		return false
	}
	for i, row := range m.entries {
		for j, x := range row {
			if x.Cmp(other.entries[i][j]) != 0 {
				return false
			}
		}
	}
	return true
}

// SubRows returns the matrix made of the given rows of m, in the given order.
func (m *Matrix) SubRows(idx ...int) (*Matrix, error) {
	for _, i := range idx {
		if i < 0 || i >= m.Rows() {
			return nil, fmt.Errorf("matrix.SubRows: %w: row %d out of %d", ErrDimension, i, m.Rows())
		}
	}
	return &Matrix{entries: m.copyRows(idx)}, nil
}

// Minor returns m with row i and column j removed.
func (m *Matrix) Minor(i, j int) (*Matrix, error) {
	minor, err := m.entries.Minor(i, j)
	if err != nil {
		return nil, fmt.Errorf("matrix.Minor: %w: %v", ErrDimension, err)
	}
	return &Matrix{entries: minor}, nil
}

// MulVector returns m⋅v.
func (m *Matrix) MulVector(v []*big.Int) ([]*big.Int, error) {
	if len(v) != m.Cols() {
		return nil, fmt.Errorf("matrix.MulVector: %w: %d columns, vector of length %d", ErrDimension, m.Cols(), len(v))
	}
	out, err := m.entries.MulVec(data.NewVector(v))
	if err != nil {
		return nil, fmt.Errorf("matrix.MulVector: %w", err)
	}
	return out, nil
}

func (m *Matrix) copyRows(idx []int) data.Matrix {
	out := make(data.Matrix, len(idx))
	for k, i := range idx {
		out[k] = data.NewVector(copyVector(m.entries[i]))
	}
	return out
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func copyVector(v []*big.Int) []*big.Int {
	out := make([]*big.Int, len(v))
	for i, x := range v {
		out[i] = new(big.Int).Set(x)
	}
	return out
}
