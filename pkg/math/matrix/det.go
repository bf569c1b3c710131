package matrix

import (
	"fmt"
	"math/big"
)

// Det returns the determinant of a square matrix, expanded along its first row.
func (m *Matrix) Det() (*big.Int, error) {
	if m.Rows() != m.Cols() {
		return nil, fmt.Errorf("matrix.Det: %w: %d × %d is not square", ErrDimension, m.Rows(), m.Cols())
	}
	if m.Rows() == 0 {
		return big.NewInt(1), nil
	}
	det, err := m.entries.Determinant()
	if err != nil {
		return nil, fmt.Errorf("matrix.Det: %w", err)
	}
	return det, nil
}

// AdjugateRow0 returns the first row of the adjugate of a square matrix:
// adj(m)₀ⱼ = (-1)ʲ⋅det(Minor(j, 0)).
//
// It satisfies Σⱼ adj(m)₀ⱼ⋅(m⋅v)ⱼ = det(m)⋅v₀ for any vector v.
func (m *Matrix) AdjugateRow0() ([]*big.Int, error) {
	if m.Rows() != m.Cols() {
		return nil, fmt.Errorf("matrix.AdjugateRow0: %w: %d × %d is not square", ErrDimension, m.Rows(), m.Cols())
	}
	if m.Rows() == 1 {
		return []*big.Int{big.NewInt(1)}, nil
	}
	out := make([]*big.Int, m.Rows())
	for j := range out {
		minor, err := m.Minor(j, 0)
		if err != nil {
			return nil, err
		}
		d, err := minor.Det()
		if err != nil {
			return nil, err
		}
		if j%2 == 1 {
			d.Neg(d)
		}
		out[j] = d
	}
	return out, nil
}

// SolveFirst returns x₀, where x is the unique solution of m⋅x = values over ℤ.
//
// It fails if m is singular or if x₀ is not an integer.
func (m *Matrix) SolveFirst(values []*big.Int) (*big.Int, error) {
	if len(values) != m.Rows() {
		return nil, fmt.Errorf("matrix.SolveFirst: %w: %d rows, %d values", ErrDimension, m.Rows(), len(values))
	}
	det, err := m.Det()
	if err != nil {
		return nil, err
	}
	if det.Sign() == 0 {
		return nil, ErrSingular
	}
	adj, err := m.AdjugateRow0()
	if err != nil {
		return nil, err
	}
	// Cramer: x₀ = Σⱼ adj₀ⱼ⋅valuesⱼ / det
	numerator := new(big.Int)
	tmp := new(big.Int)
	for j, a := range adj {
		numerator.Add(numerator, tmp.Mul(a, values[j]))
	}
	x0, r := new(big.Int).QuoRem(numerator, det, new(big.Int))
	if r.Sign() != 0 {
		return nil, fmt.Errorf("matrix.SolveFirst: %w", ErrNotIntegral)
	}
	return x0, nil
}
