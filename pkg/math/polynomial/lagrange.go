package polynomial

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrZeroPoint      = errors.New("polynomial: evaluation point must be non-zero")
	ErrDuplicatePoint = errors.New("polynomial: evaluation points must be distinct")
	ErrUnknownPoint   = errors.New("polynomial: point is not in the evaluation set")
	ErrNotIntegral    = errors.New("polynomial: lagrange coefficient is not an integer")
)

// EvaluationPoints returns the public evaluation points 1, …, m, one per server.
func EvaluationPoints(m int) []int {
	points := make([]int, m)
	for i := range points {
		points[i] = i + 1
	}
	return points
}

// Weight returns the Lagrange coefficient at 0 of point over the integers.
//
// The following formula is taken from
// https://en.wikipedia.org/wiki/Lagrange_polynomial
//
//	                   ∏ⱼ≠ᵢ xⱼ
//	lᵢ(0) =	------------------
//	           ∏ⱼ≠ᵢ (xⱼ - xᵢ)
//
// The division must be exact, which always holds for the points 1, …, m.
func Weight(point int, points []int) (*big.Int, error) {
	if err := validatePoints(points); err != nil {
		return nil, err
	}
	found := false
	numerator := big.NewInt(1)
	denominator := big.NewInt(1)
	tmp := new(big.Int)
	for _, x := range points {
		if x == point {
			found = true
			continue
		}
		numerator.Mul(numerator, tmp.SetInt64(int64(x)))
		denominator.Mul(denominator, tmp.SetInt64(int64(x-point)))
	}
	if !found {
		return nil, fmt.Errorf("polynomial.Weight: %w: %d", ErrUnknownPoint, point)
	}
	quotient, remainder := new(big.Int).QuoRem(numerator, denominator, new(big.Int))
	if remainder.Sign() != 0 {
		return nil, fmt.Errorf("polynomial.Weight: %w: %v / %v", ErrNotIntegral, numerator, denominator)
	}
	return quotient, nil
}

// Weights returns the Lagrange coefficients at 0 for all points.
func Weights(points []int) (map[int]*big.Int, error) {
	weights := make(map[int]*big.Int, len(points))
	for _, x := range points {
		w, err := Weight(x, points)
		if err != nil {
			return nil, err
		}
		weights[x] = w
	}
	return weights, nil
}

func validatePoints(points []int) error {
	seen := make(map[int]struct{}, len(points))
	for _, x := range points {
		if x == 0 {
			return ErrZeroPoint
		}
		if _, ok := seen[x]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicatePoint, x)
		}
		seen[x] = struct{}{}
	}
	return nil
}
