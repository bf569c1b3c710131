package homomorphic

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taurusgroup/vhss/internal/test"
	"github.com/taurusgroup/vhss/pkg/field"
	"github.com/taurusgroup/vhss/pkg/nonce"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
)

func shareAll(t *testing.T, d *test.Deployment, fid uint64, secrets ...int64) []*share.Bundle {
	t.Helper()
	scheme := New(rand.Reader, d, d)
	clients := test.ClientIDs(len(secrets))
	bundles := make([]*share.Bundle, len(secrets))
	for i, s := range secrets {
		b, err := scheme.ShareSecret(big.NewInt(s), test.Tag(share.HomomorphicHash, fid, clients[i]))
		require.NoError(t, err)
		require.NoError(t, b.Validate())
		bundles[i] = b
	}
	return bundles
}

func TestRoundTrip(t *testing.T) {
	d := test.NewDeployment(3, 2, test.MersenneField(t))
	bundles := shareAll(t, d, 1, 42)

	b := bundles[0]
	assert.Len(t, b.Shares, 3)
	// the shares reconstruct the secret by summation
	sum := new(big.Int)
	for _, s := range b.Shares {
		sum.Add(sum, s.Value)
	}
	assert.Equal(t, int64(42), sum.Mod(sum, d.FieldParams.Order()).Int64())
	assert.Equal(t, 0, b.Verifier.Commitment.Cmp(d.FieldParams.Hash(new(big.Int).Add(big.NewInt(42), b.Nonce.Nonce))))

	in := test.Evaluate(t, NewEvaluator(d), b.RoundKey(), bundles...)
	out, err := NewVerifier(d).Verify(in)
	require.NoError(t, err)
	assert.True(t, out.Valid, out.Reason)
	assert.Equal(t, int64(42), out.Sum.Int64())
	assert.Equal(t, 1, out.Clients)
	assert.NotEmpty(t, out.Digest)
}

func TestRoundTrip_ManyClients(t *testing.T) {
	f, err := field.Generate(rand.Reader, 128, nil)
	require.NoError(t, err)
	d := test.NewDeployment(5, 3, f)
	secrets := []int64{10, 0, 7, 1234, 99, 5}
	bundles := shareAll(t, d, 3, secrets...)

	in := test.Evaluate(t, NewEvaluator(d), bundles[0].RoundKey(), bundles...)
	out, err := NewVerifier(d).Verify(in)
	require.NoError(t, err)
	assert.True(t, out.Valid, out.Reason)
	assert.Equal(t, int64(10+0+7+1234+99+5), out.Sum.Int64())
	assert.Equal(t, len(secrets), out.Clients)
}

func TestTamperedShare(t *testing.T) {
	d := test.NewDeployment(3, 2, test.MersenneField(t))
	for _, server := range d.IDs {
		bundles := shareAll(t, d, 1, 42, 8)
		s := bundles[1].Shares[server]
		s.Value.Add(s.Value, big.NewInt(1))

		in := test.Evaluate(t, NewEvaluator(d), bundles[0].RoundKey(), bundles...)
		out, err := NewVerifier(d).Verify(in)
		require.NoError(t, err)
		assert.False(t, out.Valid, "tampering with the share of %s should be detected", server)
		assert.NotEmpty(t, out.Reason)
	}
}

func TestTamperedProof(t *testing.T) {
	d := test.NewDeployment(4, 1, test.MersenneField(t))
	bundles := shareAll(t, d, 1, 5, 6, 7)
	in := test.Evaluate(t, NewEvaluator(d), bundles[0].RoundKey(), bundles...)
	p := in.Partials["srv-2"]
	p.Proof = d.FieldParams.Mul(p.Proof, d.FieldParams.G())

	out, err := NewVerifier(d).Verify(in)
	require.NoError(t, err)
	assert.False(t, out.Valid)
}

func TestLyingClient(t *testing.T) {
	d := test.NewDeployment(3, 2, test.MersenneField(t))
	bundles := shareAll(t, d, 1, 42, 8)
	// the commitment claims a different secret than the shares
	v := bundles[0].Verifier
	v.Commitment = d.FieldParams.Hash(new(big.Int).Add(big.NewInt(43), bundles[0].Nonce.Nonce))

	in := test.Evaluate(t, NewEvaluator(d), bundles[0].RoundKey(), bundles...)
	out, err := NewVerifier(d).Verify(in)
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Equal(t, int64(50), out.Sum.Int64())
}

func TestMissingClientRecords(t *testing.T) {
	d := test.NewDeployment(3, 2, test.MersenneField(t))
	bundles := shareAll(t, d, 1, 1, 2)
	in := test.Evaluate(t, NewEvaluator(d), bundles[0].RoundKey(), bundles...)
	delete(in.Verifiers, bundles[1].Client)

	out, err := NewVerifier(d).Verify(in)
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Contains(t, out.Reason, "verifier records")
}

func TestPureFunctions(t *testing.T) {
	f := test.MersenneField(t)
	shares := []*big.Int{big.NewInt(3), big.NewInt(-3), big.NewInt(1), big.NewInt(41)}
	assert.Equal(t, int64(42), PartialEval(shares, nil).Int64())
	// order does not matter
	reversed := []*big.Int{shares[3], shares[2], shares[1], shares[0]}
	assert.Equal(t, 0, PartialProof(shares, f).Cmp(PartialProof(reversed, f)))
	assert.Equal(t, 0, PartialProof(shares, f).Cmp(f.Hash(big.NewInt(42))))

	nonceSum := big.NewInt(1000)
	last, err := nonce.LastTerm(nonceSum, f)
	require.NoError(t, err)
	commitment := f.Hash(big.NewInt(1042))
	assert.True(t, Verify(f, big.NewInt(42), f.Hash(big.NewInt(42)), commitment, last))
	assert.False(t, Verify(f, big.NewInt(41), f.Hash(big.NewInt(42)), commitment, last))
	assert.False(t, Verify(f, big.NewInt(42), f.Hash(big.NewInt(41)), commitment, last))
	assert.Equal(t, 0, FinalProof([]*big.Int{f.Hash(big.NewInt(2)), f.Hash(big.NewInt(40))}, f).Cmp(f.Hash(big.NewInt(42))))
}

func TestShareSecret_Errors(t *testing.T) {
	d := test.NewDeployment(3, 2, test.MersenneField(t))
	scheme := New(rand.Reader, d, d)

	_, err := scheme.ShareSecret(big.NewInt(1), test.Tag(share.RSAThreshold, 1, "meter-1"))
	assert.ErrorIs(t, err, protocol.ErrWrongConstruction)

	_, err = New(rand.Reader, &test.Deployment{T: 2}, d).ShareSecret(big.NewInt(1), test.Tag(share.HomomorphicHash, 1, "meter-1"))
	assert.ErrorIs(t, err, protocol.ErrNoServers)

	_, err = New(rand.Reader, d, &test.Deployment{}).ShareSecret(big.NewInt(1), test.Tag(share.HomomorphicHash, 1, "meter-1"))
	assert.ErrorIs(t, err, protocol.ErrNoParameters)

	_, err = New(rand.Reader, test.NewDeployment(3, 3, d.FieldParams), d).ShareSecret(big.NewInt(1), test.Tag(share.HomomorphicHash, 1, "meter-1"))
	assert.ErrorIs(t, err, protocol.ErrInvalidThreshold)
}

func TestShareSecret_OutOfRange(t *testing.T) {
	d := test.NewDeployment(3, 2, test.MersenneField(t))
	scheme := New(rand.Reader, d, d)
	tag := test.Tag(share.HomomorphicHash, 1, "meter-1")
	order := d.FieldParams.Order()
	for _, secret := range []*big.Int{big.NewInt(-5), big.NewInt(-1), order, new(big.Int).Add(order, big.NewInt(5))} {
		_, err := scheme.ShareSecret(secret, tag)
		assert.ErrorIs(t, err, protocol.ErrSecretOutOfRange, "secret %v", secret)
	}

	bundles := shareAll(t, d, 1, 0)
	in := test.Evaluate(t, NewEvaluator(d), bundles[0].RoundKey(), bundles...)
	out, err := NewVerifier(d).Verify(in)
	require.NoError(t, err)
	assert.True(t, out.Valid, out.Reason)
	assert.Zero(t, out.Sum.Sign())
}

func TestEvaluate_RejectsForeignShares(t *testing.T) {
	d := test.NewDeployment(3, 2, test.MersenneField(t))
	bundles := shareAll(t, d, 1, 1, 2)
	round := bundles[0].RoundKey()
	e := NewEvaluator(d)

	_, err := e.Evaluate("srv-1", round, []*share.ServerShare{bundles[0].Shares["srv-2"]})
	var perr protocol.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, bundles[0].Client, perr.Culprit)

	_, err = e.Evaluate("srv-1", round, []*share.ServerShare{bundles[0].Shares["srv-1"], bundles[0].Shares["srv-1"]})
	assert.Error(t, err)

	other := round
	other.FID = 2
	_, err = e.Evaluate("srv-1", other, []*share.ServerShare{bundles[0].Shares["srv-1"]})
	assert.Error(t, err)
}
