package sample

import (
	crand "crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/taurusgroup/vhss/pkg/math/arith"
)

const maxIterations = 255

var ErrMaxIterations = fmt.Errorf("sample: failed to generate after %d iterations", maxIterations)

var one = big.NewInt(1)

func mustReadBits(rand io.Reader, buf []byte) {
	for i := 0; i < maxIterations; i++ {
		if _, err := io.ReadFull(rand, buf); err == nil {
			return
		}
	}
	panic(ErrMaxIterations)
}

// ModN samples an element of ℤₙ, uniformly in [0, n).
func ModN(rand io.Reader, n *big.Int) *big.Int {
	if n.Sign() <= 0 {
		panic("sample.ModN: modulus must be positive")
	}
	bits := n.BitLen()
	buf := make([]byte, (bits+7)/8)
	// mask the excess bits of the leading byte so that rejection happens at most half the time
	mask := byte(0xff)
	if excess := len(buf)*8 - bits; excess > 0 {
		mask >>= excess
	}
	out := new(big.Int)
	for {
		mustReadBits(rand, buf)
		buf[0] &= mask
		out.SetBytes(buf)
		if out.Cmp(n) < 0 {
			return out
		}
	}
}

// NonZeroModN samples an element of [1, n).
func NonZeroModN(rand io.Reader, n *big.Int) *big.Int {
	for i := 0; i < maxIterations; i++ {
		x := ModN(rand, n)
		if x.Sign() != 0 {
			return x
		}
	}
	panic(ErrMaxIterations)
}

// UnitModN returns a u ∈ ℤₙˣ.
func UnitModN(rand io.Reader, n *big.Int) *big.Int {
	for i := 0; i < maxIterations; i++ {
		u := ModN(rand, n)
		if arith.IsCoprime(u, n) {
			return u
		}
	}
	panic(ErrMaxIterations)
}

// Bits samples a non-negative integer with at most bits bits.
func Bits(rand io.Reader, bits int) *big.Int {
	return ModN(rand, new(big.Int).Lsh(one, uint(bits)))
}

// Prime returns a random probable prime of exactly bits bits.
func Prime(rand io.Reader, bits int) (*big.Int, error) {
	p, err := crand.Prime(rand, bits)
	if err != nil {
		return nil, fmt.Errorf("sample.Prime: %w", err)
	}
	return p, nil
}
