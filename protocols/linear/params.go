package linear

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/taurusgroup/vhss/pkg/math/arith"
	"github.com/taurusgroup/vhss/pkg/math/sample"
	"github.com/taurusgroup/vhss/pkg/paillier"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/pool"
)

// ExponentBits is the size of the public prime exponent ê.
const ExponentBits = 64

const maxIterations = 255

var (
	// ErrMalformedParameters is returned when a public parameter bundle is unusable.
	ErrMalformedParameters = errors.New("linear: malformed public parameters")
	// ErrMaxIterations is returned when Setup could not find compatible parameters.
	ErrMaxIterations = fmt.Errorf("linear: setup failed after %d iterations", maxIterations)
)

// cSHAKE function name and customization for the per-client bases.
var (
	hashFunctionName  = []byte("vhss")
	hashCustomization = []byte("linear/h")
)

// PublicParameters is the bundle shared by the clients, servers and verifier of a
// substation.
type PublicParameters struct {
	// N is the sharing modulus, a product of two safe primes.
	N *big.Int
	// E is the prime exponent ê.
	E *big.Int
	// G1 and G2 are units mod N̂.
	G1, G2 *big.Int
	// Key is N̂ together with its factorization.
	Key *paillier.SecretKey
}

// ParameterSource provides the public parameters of a substation.
type ParameterSource interface {
	LinearParameters(substation string) (*PublicParameters, error)
}

// Setup samples public parameters where N̂ is the product of two safe primes of
// bits bits, and N the product of two safe primes of bitsN bits.
func Setup(rand io.Reader, bits, bitsN int, pl *pool.Pool) (*PublicParameters, error) {
	key, err := paillier.NewSecretKey(rand, bits, pl)
	if err != nil {
		return nil, fmt.Errorf("linear.Setup: %w", err)
	}
	phi := key.Phi()

	var e *big.Int
	for i := 0; ; i++ {
		if i == maxIterations {
			return nil, ErrMaxIterations
		}
		if e, err = sample.Prime(rand, ExponentBits); err != nil {
			return nil, fmt.Errorf("linear.Setup: %w", err)
		}
		if arith.IsCoprime(e, phi) {
			break
		}
	}

	var n *big.Int
	for i := 0; ; i++ {
		if i == maxIterations {
			return nil, ErrMaxIterations
		}
		_, ps, err := sample.SafePrimePairs(rand, bitsN, nil, pl)
		if err != nil {
			return nil, fmt.Errorf("linear.Setup: %w", err)
		}
		n = new(big.Int).Mul(ps[0], ps[1])
		if arith.IsCoprime(n, phi) {
			break
		}
	}

	pp := &PublicParameters{
		N:   n,
		E:   e,
		G1:  sample.UnitModN(rand, key.N()),
		G2:  sample.UnitModN(rand, key.N()),
		Key: key,
	}
	return pp, pp.Validate()
}

// NHat returns N̂.
func (pp *PublicParameters) NHat() *big.Int {
	return new(big.Int).Set(pp.Key.N())
}

// Validate checks the bundle before any of it is used.
func (pp *PublicParameters) Validate() error {
	if pp == nil || pp.N == nil || pp.E == nil || pp.G1 == nil || pp.G2 == nil || pp.Key == nil {
		return fmt.Errorf("%w: missing value", ErrMalformedParameters)
	}
	if pp.N.Cmp(big.NewInt(3)) < 0 || pp.N.Bit(0) == 0 {
		return fmt.Errorf("%w: N must be odd and larger than 2", ErrMalformedParameters)
	}
	if !arith.IsProbablePrime(pp.E) {
		return fmt.Errorf("%w: ê is not prime", ErrMalformedParameters)
	}
	if !arith.IsCoprime(new(big.Int).Mul(pp.N, pp.E), pp.Key.Phi()) {
		return fmt.Errorf("%w: N⋅ê is not invertible mod ϕ(N̂)", ErrMalformedParameters)
	}
	if err := pp.Key.ValidateElement(pp.G1); err != nil {
		return fmt.Errorf("%w: g1: %v", ErrMalformedParameters, err)
	}
	if err := pp.Key.ValidateElement(pp.G2); err != nil {
		return fmt.Errorf("%w: g2: %v", ErrMalformedParameters, err)
	}
	return nil
}

// H returns the base of client, a unit mod N̂ derived with cSHAKE128.
func (pp *PublicParameters) H(client party.ID) *big.Int {
	nHat := pp.Key.N()
	xof := sha3.NewCShake128(hashFunctionName, hashCustomization)
	_, _ = xof.Write([]byte(client))

	// oversampled by 128 bits before reduction mod N̂
	buf := make([]byte, (nHat.BitLen()+7)/8+16)
	h := new(big.Int)
	for {
		_, _ = io.ReadFull(xof, buf)
		h.SetBytes(buf)
		h.Mod(h, nHat)
		if pp.Key.ValidateElement(h) == nil {
			return h
		}
	}
}
