package sample

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"sync"

	"github.com/taurusgroup/vhss/pkg/pool"
)

// primes generates an array containing all the odd prime numbers < below
func primes(below uint32) []uint32 {
	sieve := make([]bool, below)
	// Initially, all numbers starting from 2 are considered prime
	for i := 2; i < len(sieve); i++ {
		sieve[i] = true
	}
	// Now, we remove the multiples of every prime number we encounter
	for p := 2; p*p < len(sieve); p++ {
		if !sieve[p] {
			continue
		}
		for i := p << 1; i < len(sieve); i += p {
			sieve[i] = false
		}
	}
	// It is believed that there are approximately N / log N primes below N, so this
	// bounds is a decent estimate of our output size
	nF := float64(below)
	out := make([]uint32, 0, int(nF/math.Log(nF)))
	for p := uint32(3); p < below; p++ {
		if sieve[p] {
			out = append(out, p)
		}
	}

	return out
}

// The number of numbers to check after our initial prime guess
const sieveSize = 1 << 18

// The upper bound on the prime numbers used for sieving
const primeBound = 1 << 20

// MinSafePrimeBits is the smallest size accepted by SafePrime.
const MinSafePrimeBits = 8

// the number of iterations to use when checking primality
//
// More iterations mean fewer false positives, but more expensive calculations.
//
// 20 is the same number that Go uses internally.
const safePrimalityIterations = 20

// maxPrimeIterations is the number of times to try generating a new prime.
//
// This is substantially larger than the other max iterations we have for generation,
// because of the sparsity of safe primes.
const maxPrimeIterations = 100_000

// ErrMaxPrimeIterations is the error we return when we fail to generate a prime.
var ErrMaxPrimeIterations = fmt.Errorf("sample: failed to generate prime after %d iterations", maxPrimeIterations)

var ErrPrimeSize = fmt.Errorf("sample: safe primes must have at least %d bits", MinSafePrimeBits)

// We want to avoid calculating our prime numbers multiple times, but we also
// don't want to waste time sieving them before they're needed. Using sync.Once
// lets us initialize this array of primes only once, the first time we need them.
var thePrimes []uint32
var initPrimes sync.Once

// We use a large buffer for sieving, but we would like to reuse these buffers
// to avoid allocating a bunch of them.
var sievePool = sync.Pool{
	New: func() interface{} {
		sieve := make([]bool, sieveSize)
		return &sieve
	},
}

// trySafePrime returns a safe prime of exactly bits bits found in a window after a
// random starting point, or nil if that window contains none.
func trySafePrime(rand io.Reader, bits int) *big.Int {
	initPrimes.Do(func() {
		thePrimes = primes(primeBound)
	})

	bytes := make([]byte, (bits+7)/8)
	if _, err := io.ReadFull(rand, bytes); err != nil {
		return nil
	}
	// The number of significant bits in the leading byte
	lastBits := uint(bits % 8)
	if lastBits == 0 {
		lastBits = 8
	}
	bytes[0] &= uint8(int(1<<lastBits) - 1)
	// Ensure that the top two bits are set
	//
	// This makes it so that when multiplying two primes generated with this method,
	// the resulting number has twice the number of bits.
	if lastBits >= 2 {
		bytes[0] |= 0b11 << (lastBits - 2)
	} else {
		bytes[0] |= 1
		bytes[1] |= 0b1000_0000
	}
	// For both p and (p - 1) / 2 to be prime, it must be the case that p = 3 mod 4
	bytes[len(bytes)-1] |= 3
	base := new(big.Int).SetBytes(bytes)

	// Only primes r with r < q can be used to rule out candidates, otherwise q itself
	// would be sieved out. The base is at least 3⋅2ᵇⁱᵗˢ⁻², so this bound is safe.
	bound := uint64(primeBound)
	if bits-2 < 20 {
		bound = uint64(1) << (bits - 2)
	}

	// sieve checks the candidacy of base, base+1, base+2, etc.
	sievePtr := sievePool.Get().(*[]bool)
	sieve := *sievePtr
	defer sievePool.Put(sievePtr)
	for i := 0; i < len(sieve); i++ {
		sieve[i] = true
	}
	// Remove candidates that aren't 3 mod 4
	for i := 1; i+2 < len(sieve); i += 4 {
		sieve[i] = false
		sieve[i+1] = false
		sieve[i+2] = false
	}
	remainder := new(big.Int)
	for _, prime := range thePrimes {
		if uint64(prime) >= bound {
			break
		}
		// If x = 0 mod r, then x can't be prime. If x = 1 mod r, then (x - 1) / 2
		// can't be prime, so x can't be a safe prime.
		remainder.SetUint64(uint64(prime))
		remainder.Mod(base, remainder)
		r := int(remainder.Uint64())
		primeInt := int(prime)
		firstMultiple := primeInt - r
		if r == 0 {
			firstMultiple = 0
		}
		for i := firstMultiple; i+1 < len(sieve); i += primeInt {
			sieve[i] = false
			sieve[i+1] = false
		}
	}
	p := new(big.Int)
	q := new(big.Int)
	for delta := 0; delta < len(sieve); delta++ {
		if !sieve[delta] {
			continue
		}

		p.SetUint64(uint64(delta))
		p.Add(p, base)
		if p.BitLen() > bits {
			return nil
		}
		// Since p is odd, this is equivalent to (p - 1) / 2
		q.Rsh(p, 1)
		// p is likely to be prime already, so let's first do the other check,
		// which is more likely to fail.
		if !q.ProbablyPrime(safePrimalityIterations) {
			continue
		}
		// This will do a single iteration of miller rabin, which can be shown
		// to be sufficient when q is prime.
		if !p.ProbablyPrime(0) {
			continue
		}
		return p
	}

	return nil
}

// SafePrimes returns count safe primes p of exactly bits bits, i.e. (p - 1) / 2 is also
// prime. The primes are not guaranteed to be distinct.
func SafePrimes(rand io.Reader, bits, count int, pl *pool.Pool) ([]*big.Int, error) {
	if bits < MinSafePrimeBits {
		return nil, ErrPrimeSize
	}
	reader := pool.NewLockedReader(rand)
	results := pool.Search(pl, count, maxPrimeIterations, func() (*big.Int, bool) {
		p := trySafePrime(reader, bits)
		return p, p != nil
	})
	if len(results) < count {
		return nil, ErrMaxPrimeIterations
	}
	return results, nil
}

// SafePrime returns a safe prime p of exactly bits bits.
func SafePrime(rand io.Reader, bits int, pl *pool.Pool) (*big.Int, error) {
	ps, err := SafePrimes(rand, bits, 1, pl)
	if err != nil {
		return nil, err
	}
	return ps[0], nil
}

// SafePrimePair returns (q, p) with p = 2q+1 a safe prime of bits bits, and p > min.
// min may be nil.
func SafePrimePair(rand io.Reader, bits int, min *big.Int, pl *pool.Pool) (q, p *big.Int, err error) {
	if min != nil && min.BitLen() > bits {
		return nil, nil, fmt.Errorf("sample.SafePrimePair: %d bits cannot exceed %v", bits, min)
	}
	for i := 0; i < maxIterations; i++ {
		p, err = SafePrime(rand, bits, pl)
		if err != nil {
			return nil, nil, fmt.Errorf("sample.SafePrimePair: %w", err)
		}
		if min == nil || p.Cmp(min) > 0 {
			return new(big.Int).Rsh(p, 1), p, nil
		}
	}
	return nil, nil, fmt.Errorf("sample.SafePrimePair: %w", ErrMaxIterations)
}

// ErrNotDistinct is returned when two distinct safe primes could not be found.
var ErrNotDistinct = errors.New("sample: failed to find distinct safe primes")

// SafePrimePairs returns two distinct safe prime pairs (q₁, p₁), (q₂, p₂), with pᵢ > min.
func SafePrimePairs(rand io.Reader, bits int, min *big.Int, pl *pool.Pool) (q, p [2]*big.Int, err error) {
	if q[0], p[0], err = SafePrimePair(rand, bits, min, pl); err != nil {
		return
	}
	for i := 0; i < maxIterations; i++ {
		if q[1], p[1], err = SafePrimePair(rand, bits, min, pl); err != nil {
			return
		}
		if p[0].Cmp(p[1]) != 0 {
			return
		}
	}
	err = ErrNotDistinct
	return
}
