package linear

import (
	"crypto/rand"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taurusgroup/vhss/internal/test"
	"github.com/taurusgroup/vhss/pkg/math/arith"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
)

var (
	paramsOnce sync.Once
	testParams *PublicParameters
	paramsErr  error
)

func parameters(t *testing.T) *PublicParameters {
	t.Helper()
	paramsOnce.Do(func() {
		testParams, paramsErr = Setup(rand.Reader, 96, 48, nil)
	})
	require.NoError(t, paramsErr)
	return testParams
}

type staticParameters struct {
	pp  *PublicParameters
	err error
}

func (s staticParameters) LinearParameters(string) (*PublicParameters, error) {
	return s.pp, s.err
}

func newScheme(t *testing.T, m, th int) (*test.Deployment, staticParameters, *Scheme) {
	d := test.NewDeployment(m, th, nil)
	params := staticParameters{pp: parameters(t)}
	return d, params, New(rand.Reader, d, params)
}

func shareAll(t *testing.T, scheme *Scheme, secrets ...int64) []*share.Bundle {
	t.Helper()
	clients := test.ClientIDs(len(secrets))
	bundles := make([]*share.Bundle, len(secrets))
	for i, s := range secrets {
		b, err := scheme.ShareSecret(big.NewInt(s), test.Tag(share.LinearSignature, 9, clients[i]))
		require.NoError(t, err)
		require.NoError(t, b.Validate())
		bundles[i] = b
	}
	return bundles
}

func verify(t *testing.T, params staticParameters, bundles ...*share.Bundle) *share.Outcome {
	t.Helper()
	in := test.Evaluate(t, NewEvaluator(params), bundles[0].RoundKey(), bundles...)
	out, err := NewVerifier(params).Verify(in)
	require.NoError(t, err)
	return out
}

func TestSetup(t *testing.T) {
	pp := parameters(t)
	require.NoError(t, pp.Validate())
	assert.True(t, arith.IsCoprime(new(big.Int).Mul(pp.N, pp.E), pp.Key.Phi()))
	assert.Equal(t, 96, pp.Key.P().BitLen())
	assert.Equal(t, 0, pp.NHat().Cmp(new(big.Int).Mul(pp.Key.P(), pp.Key.Q())))
}

func TestH(t *testing.T) {
	pp := parameters(t)
	h1 := pp.H("meter-1")
	assert.Equal(t, 0, h1.Cmp(pp.H("meter-1")), "h must be deterministic")
	assert.NotEqual(t, 0, h1.Cmp(pp.H("meter-2")))
	assert.NoError(t, pp.Key.ValidateElement(h1))
}

func TestValidate(t *testing.T) {
	pp := parameters(t)
	cases := map[string]func(*PublicParameters){
		"nil g1":        func(p *PublicParameters) { p.G1 = nil },
		"even N":        func(p *PublicParameters) { p.N = new(big.Int).Lsh(p.N, 1) },
		"composite ê":   func(p *PublicParameters) { p.E = new(big.Int).Mul(p.E, big.NewInt(3)) },
		"g2 not a unit": func(p *PublicParameters) { p.G2 = p.Key.P() },
		"ê divides ϕ":   func(p *PublicParameters) { p.E = big.NewInt(2) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			bad := *pp
			mutate(&bad)
			assert.ErrorIs(t, bad.Validate(), ErrMalformedParameters)
		})
	}
	assert.ErrorIs(t, (*PublicParameters)(nil).Validate(), ErrMalformedParameters)
}

func TestShareSign(t *testing.T) {
	_, params, scheme := newScheme(t, 3, 2)
	pp := params.pp
	tag := test.Tag(share.LinearSignature, 1, "meter-1")

	unsigned, err := scheme.Share(big.NewInt(42), tag)
	require.NoError(t, err)
	assert.Len(t, unsigned.Shares, 3)
	sum := new(big.Int)
	for _, s := range unsigned.Shares {
		sum.Add(sum, s.Value)
	}
	assert.Equal(t, int64(42), sum.Mod(sum, pp.N).Int64())

	signed, err := scheme.Sign(unsigned, big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, unsigned.Tag, signed.Tag)
	assert.Equal(t, 0, pp.E.Cmp(signed.Proof.E))
	assert.True(t, signed.Proof.S.Cmp(new(big.Int).Mul(pp.N, pp.E)) < 0)

	// xᴺᵉ = g₁ˢ⋅h⋅g₂^(nonce+secret)
	key := pp.Key
	lhs := key.Exp(signed.Proof.X, new(big.Int).Mul(pp.N, pp.E))
	rhs := key.Mul(key.Exp(pp.G1, signed.Proof.S), pp.H("meter-1"), key.Exp(pp.G2, new(big.Int).Add(unsigned.Nonce.Nonce, big.NewInt(42))))
	assert.Equal(t, 0, lhs.Cmp(rhs))

	b := signed.Bundle()
	require.NoError(t, b.Validate())
	assert.Nil(t, b.Verifier.Commitment)
	assert.NotNil(t, b.Verifier.Linear)
}

func TestRoundTrip(t *testing.T) {
	_, params, scheme := newScheme(t, 3, 2)
	out := verify(t, params, shareAll(t, scheme, 42)...)
	assert.True(t, out.Valid, out.Reason)
	assert.Equal(t, int64(42), out.Sum.Int64())
}

func TestRoundTrip_ManyClients(t *testing.T) {
	_, params, scheme := newScheme(t, 4, 2)
	out := verify(t, params, shareAll(t, scheme, 100, 250, 0, 7)...)
	assert.True(t, out.Valid, out.Reason)
	assert.Equal(t, int64(357), out.Sum.Int64())
	assert.Equal(t, 4, out.Clients)
	assert.NotEmpty(t, out.Digest)
}

func TestTampering(t *testing.T) {
	cases := map[string]func(bundles []*share.Bundle){
		"share": func(bundles []*share.Bundle) {
			s := bundles[1].Shares["srv-2"]
			s.Value.Add(s.Value, big.NewInt(1))
		},
		"nonce": func(bundles []*share.Bundle) {
			n := bundles[0].Nonce
			n.Nonce.Add(n.Nonce, big.NewInt(1))
		},
		"salt": func(bundles []*share.Bundle) {
			p := bundles[1].Verifier.Linear
			p.S.Add(p.S, big.NewInt(1))
		},
		"signature": func(bundles []*share.Bundle) {
			p := bundles[0].Verifier.Linear
			p.X = parameters(t).Key.Mul(p.X, big.NewInt(2))
		},
	}
	for name, tamper := range cases {
		t.Run(name, func(t *testing.T) {
			_, params, scheme := newScheme(t, 3, 2)
			bundles := shareAll(t, scheme, 42, 17)
			tamper(bundles)
			out := verify(t, params, bundles...)
			assert.False(t, out.Valid)
			assert.NotEmpty(t, out.Reason)
		})
	}
}

func TestLyingClient(t *testing.T) {
	_, params, scheme := newScheme(t, 3, 2)
	unsigned, err := scheme.Share(big.NewInt(42), test.Tag(share.LinearSignature, 9, "meter-1"))
	require.NoError(t, err)
	signed, err := scheme.Sign(unsigned, big.NewInt(41))
	require.NoError(t, err)

	out := verify(t, params, signed.Bundle())
	assert.False(t, out.Valid)
	assert.Equal(t, int64(42), out.Sum.Int64())
}

func TestWrongExponent(t *testing.T) {
	_, params, scheme := newScheme(t, 3, 2)
	bundles := shareAll(t, scheme, 1)
	bundles[0].Verifier.Linear.E = big.NewInt(65537)

	out := verify(t, params, bundles...)
	assert.False(t, out.Valid)
	assert.Contains(t, out.Reason, "exponent")
}

func TestShare_SecretOutOfRange(t *testing.T) {
	_, params, scheme := newScheme(t, 3, 2)
	n := params.pp.N
	tag := test.Tag(share.LinearSignature, 1, "meter-1")
	for _, secret := range []*big.Int{big.NewInt(-5), n, new(big.Int).Add(n, big.NewInt(7))} {
		_, err := scheme.ShareSecret(secret, tag)
		assert.ErrorIs(t, err, protocol.ErrSecretOutOfRange, "secret %v", secret)
	}

	largest := new(big.Int).Sub(n, big.NewInt(1))
	unsigned, err := scheme.Share(largest, tag)
	require.NoError(t, err)
	_, err = scheme.Sign(unsigned, n)
	assert.ErrorIs(t, err, protocol.ErrSecretOutOfRange)
	_, err = scheme.Sign(unsigned, largest)
	assert.NoError(t, err)
}

func TestErrors(t *testing.T) {
	d, params, scheme := newScheme(t, 3, 2)

	_, err := scheme.ShareSecret(big.NewInt(1), test.Tag(share.HomomorphicHash, 1, "meter-1"))
	assert.ErrorIs(t, err, protocol.ErrWrongConstruction)

	tag := test.Tag(share.LinearSignature, 1, "meter-1")
	_, err = New(rand.Reader, d, nil).ShareSecret(big.NewInt(1), tag)
	assert.ErrorIs(t, err, protocol.ErrNoParameters)

	_, err = New(rand.Reader, d, staticParameters{}).ShareSecret(big.NewInt(1), tag)
	assert.ErrorIs(t, err, protocol.ErrNoParameters)

	unavailable := errors.New("parameters unavailable")
	_, err = New(rand.Reader, d, staticParameters{err: unavailable}).ShareSecret(big.NewInt(1), tag)
	assert.ErrorIs(t, err, unavailable)

	bad := *params.pp
	bad.G2 = big.NewInt(0)
	_, err = New(rand.Reader, d, staticParameters{pp: &bad}).ShareSecret(big.NewInt(1), tag)
	assert.ErrorIs(t, err, ErrMalformedParameters)

	_, err = New(rand.Reader, &test.Deployment{}, params).ShareSecret(big.NewInt(1), tag)
	assert.ErrorIs(t, err, protocol.ErrNoServers)

	_, err = scheme.Sign(&UnsignedShare{Tag: tag}, big.NewInt(1))
	assert.Error(t, err)
}
