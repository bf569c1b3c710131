package aggregate

import (
	"crypto/rand"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/taurusgroup/vhss/internal/test"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/share"
	"github.com/taurusgroup/vhss/protocols/homomorphic"
)

type deployment struct {
	*test.Deployment
	servers  map[party.ID]*Server
	verifier *Verifier
}

func newDeployment(t *testing.T, m, th, clients int) *deployment {
	d := test.NewDeployment(m, th, test.MersenneField(t))
	out := &deployment{
		Deployment: d,
		servers:    make(map[party.ID]*Server, m),
		verifier:   NewVerifier(d, homomorphic.NewVerifier(d)),
	}
	for _, id := range d.IDs {
		out.servers[id] = NewServer(id, clients, homomorphic.NewEvaluator(d))
	}
	return out
}

func (d *deployment) share(t *testing.T, fid uint64, secrets ...int64) []*share.Bundle {
	t.Helper()
	scheme := homomorphic.New(rand.Reader, d, d)
	clients := test.ClientIDs(len(secrets))
	bundles := make([]*share.Bundle, len(secrets))
	for i, s := range secrets {
		b, err := scheme.ShareSecret(big.NewInt(s), test.Tag(share.HomomorphicHash, fid, clients[i]))
		require.NoError(t, err)
		bundles[i] = b
	}
	return bundles
}

// run delivers every record of bundles concurrently, forwarding partial results to
// the verifier as soon as they are produced, and returns all outcomes.
func (d *deployment) run(bundles []*share.Bundle) ([]*share.Outcome, error) {
	var (
		mu       sync.Mutex
		outcomes []*share.Outcome
	)
	collect := func(out *share.Outcome) {
		if out == nil {
			return
		}
		mu.Lock()
		outcomes = append(outcomes, out)
		mu.Unlock()
	}

	var eg errgroup.Group
	for _, b := range bundles {
		b := b
		for id, s := range b.Shares {
			server, s := d.servers[id], s
			eg.Go(func() error {
				partial, err := server.Submit(s)
				if err != nil || partial == nil {
					return err
				}
				out, err := d.verifier.SubmitPartial(partial)
				collect(out)
				return err
			})
		}
		eg.Go(func() error {
			out, err := d.verifier.SubmitNonce(b.Nonce)
			collect(out)
			return err
		})
		eg.Go(func() error {
			out, err := d.verifier.SubmitVerifier(b.Verifier)
			collect(out)
			return err
		})
	}
	err := eg.Wait()
	return outcomes, err
}

func TestConcurrentArrivals(t *testing.T) {
	for i := 0; i < 20; i++ {
		d := newDeployment(t, 3, 2, 5)
		bundles := d.share(t, 1, 1, 2, 3, 4, 5)

		outcomes, err := d.run(bundles)
		require.NoError(t, err)
		require.Len(t, outcomes, 1, "a round must be verified exactly once")
		assert.True(t, outcomes[0].Valid, outcomes[0].Reason)
		assert.Equal(t, int64(15), outcomes[0].Sum.Int64())
		assert.Equal(t, 1, d.verifier.Verified())
		assert.Empty(t, d.verifier.Pending())
	}
}

func TestConcurrentRounds(t *testing.T) {
	d := newDeployment(t, 4, 3, 3)
	var all []*share.Bundle
	for fid := uint64(1); fid <= 5; fid++ {
		all = append(all, d.share(t, fid, int64(fid), 10, 100)...)
	}

	outcomes, err := d.run(all)
	require.NoError(t, err)
	require.Len(t, outcomes, 5)
	sums := make(map[uint64]int64)
	for _, out := range outcomes {
		assert.True(t, out.Valid, out.Reason)
		sums[out.FID] = out.Sum.Int64()
	}
	for fid := uint64(1); fid <= 5; fid++ {
		assert.Equal(t, int64(fid)+110, sums[fid])
	}
}

func TestTamperedRound(t *testing.T) {
	d := newDeployment(t, 3, 2, 2)
	bundles := d.share(t, 1, 20, 22)
	s := bundles[0].Shares["srv-2"]
	s.Value.Add(s.Value, big.NewInt(1))

	outcomes, err := d.run(bundles)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Valid)
}

func TestLateArrival(t *testing.T) {
	d := newDeployment(t, 3, 2, 1)
	bundles := d.share(t, 1, 7)
	outcomes, err := d.run(bundles)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	_, err = d.servers["srv-1"].Submit(bundles[0].Shares["srv-1"])
	assert.ErrorIs(t, err, ErrRoundClosed)
	_, err = d.verifier.SubmitVerifier(bundles[0].Verifier)
	assert.ErrorIs(t, err, ErrRoundClosed)

	// a new round is unaffected
	outcomes, err = d.run(d.share(t, 2, 8))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, int64(8), outcomes[0].Sum.Int64())

	// completed rounds are released, and still reject late records
	assert.Zero(t, d.verifier.rounds.size())
	assert.Zero(t, d.servers["srv-1"].rounds.size())
	assert.Equal(t, 2, d.verifier.Verified())
	_, err = d.servers["srv-1"].Submit(bundles[0].Shares["srv-1"])
	assert.ErrorIs(t, err, ErrRoundClosed)
}

func TestDuplicates(t *testing.T) {
	d := newDeployment(t, 3, 2, 2)
	bundles := d.share(t, 1, 1, 2)
	server := d.servers["srv-1"]

	partial, err := server.Submit(bundles[0].Shares["srv-1"])
	require.NoError(t, err)
	assert.Nil(t, partial)

	_, err = server.Submit(bundles[0].Shares["srv-1"])
	assert.ErrorIs(t, err, ErrDuplicate)

	other := *bundles[0].Shares["srv-1"]
	other.Value = big.NewInt(5)
	_, err = server.Submit(&other)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = d.verifier.SubmitNonce(bundles[0].Nonce)
	require.NoError(t, err)
	_, err = d.verifier.SubmitNonce(bundles[0].Nonce)
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.Equal(t, []share.RoundKey{bundles[0].RoundKey()}, server.Pending())
	assert.Equal(t, []share.RoundKey{bundles[0].RoundKey()}, d.verifier.Pending())
}

func TestRejections(t *testing.T) {
	d := newDeployment(t, 3, 2, 1)
	bundles := d.share(t, 1, 1)

	_, err := d.servers["srv-1"].Submit(bundles[0].Shares["srv-2"])
	assert.ErrorIs(t, err, ErrWrongRecipient)

	rsa := *bundles[0].Shares["srv-1"]
	rsa.Construction = share.RSAThreshold
	_, err = d.servers["srv-1"].Submit(&rsa)
	assert.ErrorIs(t, err, ErrUnknownConstruction)

	partial := &share.Partial{RoundKey: bundles[0].RoundKey(), Server: "srv-9", Eval: big.NewInt(1)}
	_, err = d.verifier.SubmitPartial(partial)
	assert.ErrorIs(t, err, ErrWrongRecipient)

	_, err = d.verifier.SubmitNonce(nil)
	assert.Error(t, err)
}

func TestStore_LockIsPerRound(t *testing.T) {
	s := newStore(func() *int { return new(int) })
	a := share.RoundKey{Construction: share.HomomorphicHash, Substation: "a", FID: 1}
	b := share.RoundKey{Construction: share.HomomorphicHash, Substation: "b", FID: 1}

	held := s.lock(a)
	var done int32
	var eg errgroup.Group
	eg.Go(func() error {
		sl := s.lock(b)
		atomic.StoreInt32(&done, 1)
		sl.mu.Unlock()
		return nil
	})
	require.NoError(t, eg.Wait())
	assert.Equal(t, int32(1), atomic.LoadInt32(&done))
	held.mu.Unlock()

	var counter errgroup.Group
	for i := 0; i < 100; i++ {
		counter.Go(func() error {
			sl := s.lock(a)
			*sl.acc++
			sl.mu.Unlock()
			return nil
		})
	}
	require.NoError(t, counter.Wait())
	sl := s.lock(a)
	assert.Equal(t, 100, *sl.acc)
	s.close(a, sl)
	sl.mu.Unlock()
	assert.Equal(t, 1, s.closedCount())
	assert.Equal(t, []share.RoundKey{b}, s.pending())
}

func TestStore_PrunesClosedPrefix(t *testing.T) {
	s := newStore(func() *int { return new(int) })
	key := func(fid uint64) share.RoundKey {
		return share.RoundKey{Construction: share.HomomorphicHash, Substation: "a", FID: fid}
	}
	closeRound := func(fid uint64) {
		sl := s.lock(key(fid))
		s.close(key(fid), sl)
		sl.mu.Unlock()
	}

	// rounds 2 and 3 close before round 1
	for fid := uint64(1); fid <= 4; fid++ {
		s.lock(key(fid)).mu.Unlock()
	}
	closeRound(3)
	closeRound(2)
	assert.Equal(t, 4, s.size())
	assert.Equal(t, []share.RoundKey{key(1), key(4)}, s.pending())

	closeRound(1)
	assert.Equal(t, 1, s.size())
	assert.Equal(t, []share.RoundKey{key(4)}, s.pending())
	assert.Equal(t, 3, s.closedCount())

	// pruned rounds stay closed
	for fid := uint64(1); fid <= 3; fid++ {
		sl := s.lock(key(fid))
		assert.True(t, sl.closed, "round %d", fid)
		assert.Nil(t, sl.acc)
		sl.mu.Unlock()
	}
	assert.Equal(t, 1, s.size())

	// other streams are not affected by the watermark
	other := share.RoundKey{Construction: share.NonceOnly, Substation: "a", FID: 1}
	sl := s.lock(other)
	assert.False(t, sl.closed)
	sl.mu.Unlock()

	for fid := uint64(4); fid <= 100; fid++ {
		closeRound(fid)
	}
	assert.Equal(t, 1, s.size())
	assert.Equal(t, 100, s.closedCount())
}
