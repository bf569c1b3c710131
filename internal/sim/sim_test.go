package sim

import (
	"bytes"
	"context"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taurusgroup/vhss/internal/config"
	"github.com/taurusgroup/vhss/pkg/aggregate"
	"github.com/taurusgroup/vhss/pkg/params"
	"github.com/taurusgroup/vhss/pkg/share"
)

func testConfig(c share.Construction) *config.Config {
	cfg := config.Default()
	cfg.Substations = []string{"north", "south"}
	cfg.Servers = 3
	cfg.Threshold = 2
	cfg.Clients = 5
	cfg.Rounds = 3
	cfg.WarmupRounds = 1
	cfg.Construction = c
	cfg.FieldBits = 32
	cfg.RSABits = 48
	cfg.LinearBits = 96
	cfg.LinearModulusBits = 48
	cfg.MaxReading = 100
	cfg.Workers = 2
	return cfg
}

func TestRun(t *testing.T) {
	for _, c := range share.Constructions() {
		c := c
		t.Run(c.String(), func(t *testing.T) {
			cfg := testConfig(c)
			report, err := Run(context.Background(), cfg)
			require.NoError(t, err)

			assert.NotEmpty(t, report.RunID)
			assert.Equal(t, c, report.Construction)
			require.Len(t, report.Rounds, cfg.Rounds*len(cfg.Substations))
			assert.Equal(t, len(report.Rounds), report.Valid)
			assert.Zero(t, report.Incorrect)
			for _, r := range report.Rounds {
				assert.True(t, r.Correct(), "%s: sum %v, expected %v", r.RoundKey, r.Outcome.Sum, r.Expected)
				assert.Equal(t, cfg.Clients, r.Outcome.Clients)
				assert.Equal(t, r.FID <= uint64(cfg.WarmupRounds), r.Warmup)
			}
			assert.Greater(t, report.Mean, 0.0)
			assert.GreaterOrEqual(t, report.P95, report.Median)

			var buf bytes.Buffer
			require.NoError(t, report.Print(&buf))
			assert.Contains(t, buf.String(), report.RunID)
		})
	}
}

func TestRun_Tampered(t *testing.T) {
	for _, c := range []share.Construction{share.HomomorphicHash, share.NonceOnly} {
		cfg := testConfig(c)
		cfg.TamperRound = 2
		report, err := Run(context.Background(), cfg)
		require.NoError(t, err)

		assert.Zero(t, report.Incorrect)
		assert.Equal(t, len(report.Rounds)-len(cfg.Substations), report.Valid)
		for _, r := range report.Rounds {
			assert.Equal(t, r.FID == 2, r.Tampered)
			assert.Equal(t, !r.Tampered, r.Outcome.Valid)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, testConfig(share.HomomorphicHash))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig(share.HomomorphicHash)
	cfg.Threshold = cfg.Servers
	_, err := Run(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNetwork_Deliver(t *testing.T) {
	cfg := testConfig(share.HomomorphicHash)
	cfg.Substations = []string{"north"}
	cfg.Clients = 1
	static, err := params.Generate(rand.Reader, nil, cfg.Options())
	require.NoError(t, err)
	d, err := newDeployment(cfg, rand.Reader, static)
	require.NoError(t, err)

	b, err := d.meters["north"][0].Share(share.HomomorphicHash, big.NewInt(42))
	require.NoError(t, err)
	messages, err := envelopes(b)
	require.NoError(t, err)
	// one share per server, the nonce and the verifier record
	require.Len(t, messages, cfg.Servers+2)

	var outcomes []*share.Outcome
	for _, data := range messages {
		out, err := d.network.deliver(data)
		require.NoError(t, err)
		if out != nil {
			outcomes = append(outcomes, out)
		}
	}
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Valid, outcomes[0].Reason)
	assert.Equal(t, int64(42), outcomes[0].Sum.Int64())

	// replays are rejected once the round is closed
	_, err = d.network.deliver(messages[0])
	assert.ErrorIs(t, err, aggregate.ErrRoundClosed)

	misrouted, err := share.Seal(b.Client, "srv-unknown", b.Shares[b.Servers()[0]])
	require.NoError(t, err)
	_, err = d.network.deliver(misrouted)
	assert.ErrorIs(t, err, aggregate.ErrWrongRecipient)

	outcome, err := share.Seal(VerifierID, b.Client, outcomes[0])
	require.NoError(t, err)
	_, err = d.network.deliver(outcome)
	assert.ErrorIs(t, err, share.ErrUnknownKind)

	_, err = d.network.deliver([]byte{0xff})
	assert.Error(t, err)
}
