// Package sim runs a deployment of meters, servers and a verifier in a single
// process, exchanging encoded records.
package sim

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/taurusgroup/vhss/internal/config"
	"github.com/taurusgroup/vhss/pkg/client"
	"github.com/taurusgroup/vhss/pkg/math/sample"
	"github.com/taurusgroup/vhss/pkg/params"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/pool"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
	"github.com/taurusgroup/vhss/protocols/homomorphic"
	"github.com/taurusgroup/vhss/protocols/linear"
	"github.com/taurusgroup/vhss/protocols/noncedist"
	"github.com/taurusgroup/vhss/protocols/rsathreshold"
)

// ErrStalled is returned when a round received every record without being verified.
var ErrStalled = errors.New("sim: round stalled")

// RoundResult is the outcome of one round of one substation.
type RoundResult struct {
	share.RoundKey
	// Expected is the true sum of the readings.
	Expected *big.Int
	Outcome  *share.Outcome
	// Tampered is set when a share of this round was altered in transit.
	Tampered bool
	Warmup   bool
	Latency  time.Duration
}

// Correct returns true when the verdict is the one expected: a valid outcome with
// the true sum, or an invalid one for a tampered round.
func (r *RoundResult) Correct() bool {
	if r.Tampered {
		return !r.Outcome.Valid
	}
	return r.Outcome.Valid && r.Outcome.Sum.Cmp(r.Expected) == 0
}

type deployment struct {
	cfg     *config.Config
	rand    io.Reader
	logger  zerolog.Logger
	network *network
	meters  map[string][]*client.Meter
}

// Run sets up the deployment described by cfg, and runs every round of it.
// Rounds run one after the other; within a round all substations, and all
// meters of a substation, run concurrently.
func Run(ctx context.Context, cfg *config.Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pl := pool.NewPool(cfg.Workers)
	defer pl.TearDown()

	runID := xid.New().String()
	logger := log.With().Str("run", runID).Str("construction", cfg.Construction.String()).Logger()

	start := time.Now()
	static, err := params.Generate(rand.Reader, pl, cfg.Options())
	if err != nil {
		return nil, fmt.Errorf("sim.Run: %w", err)
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("public parameters ready")

	d, err := newDeployment(cfg, rand.Reader, static)
	if err != nil {
		return nil, fmt.Errorf("sim.Run: %w", err)
	}
	d.logger = logger

	report := &Report{RunID: runID, Construction: cfg.Construction}
	for round := 1; round <= cfg.Rounds; round++ {
		if err = ctx.Err(); err != nil {
			return report, err
		}
		results, err := d.round(ctx, round)
		if err != nil {
			return report, err
		}
		report.Rounds = append(report.Rounds, results...)
	}
	report.summarize()
	return report, nil
}

func newDeployment(cfg *config.Config, rand io.Reader, static *params.Static) (*deployment, error) {
	scheme, evaluator, verifier, err := components(cfg.Construction, rand, static)
	if err != nil {
		return nil, err
	}
	servers, err := static.Servers(cfg.Substations[0])
	if err != nil {
		return nil, err
	}
	d := &deployment{
		cfg:     cfg,
		rand:    rand,
		logger:  log.Logger,
		network: newNetwork(servers, cfg.Clients, evaluator, static, verifier),
		meters:  make(map[string][]*client.Meter, len(cfg.Substations)),
	}
	for _, substation := range cfg.Substations {
		for i := 1; i <= cfg.Clients; i++ {
			m, err := client.New(party.ID(fmt.Sprintf("%s/meter-%d", substation, i)), substation, scheme)
			if err != nil {
				return nil, err
			}
			d.meters[substation] = append(d.meters[substation], m)
		}
	}
	return d, nil
}

// components returns the client, server and verifier sides of construction c.
func components(c share.Construction, rand io.Reader, static *params.Static) (protocol.Scheme, protocol.Evaluator, protocol.RoundVerifier, error) {
	switch c {
	case share.HomomorphicHash:
		return homomorphic.New(rand, static, static), homomorphic.NewEvaluator(static), homomorphic.NewVerifier(static), nil
	case share.RSAThreshold:
		return rsathreshold.New(rand, static, static, static), rsathreshold.NewEvaluator(static), rsathreshold.NewVerifier(static), nil
	case share.LinearSignature:
		return linear.New(rand, static, static), linear.NewEvaluator(static), linear.NewVerifier(static), nil
	case share.NonceOnly:
		return noncedist.New(rand, static, static), noncedist.NewEvaluator(static), noncedist.NewVerifier(static), nil
	default:
		return nil, nil, nil, fmt.Errorf("%w: %s", share.ErrUnknownConstruction, c)
	}
}

// round runs round number r for every substation concurrently.
func (d *deployment) round(ctx context.Context, r int) ([]*RoundResult, error) {
	results := make([]*RoundResult, len(d.cfg.Substations))
	eg, ctx := errgroup.WithContext(ctx)
	for i, substation := range d.cfg.Substations {
		i, substation := i, substation
		eg.Go(func() (err error) {
			results[i], err = d.substationRound(ctx, substation, r)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (d *deployment) substationRound(ctx context.Context, substation string, r int) (*RoundResult, error) {
	meters := d.meters[substation]
	start := time.Now()

	bundles := make([]*share.Bundle, len(meters))
	readings := make([]*big.Int, len(meters))
	bound := big.NewInt(d.cfg.MaxReading + 1)
	eg, egCtx := errgroup.WithContext(ctx)
	for i, m := range meters {
		i, m := i, m
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			readings[i] = sample.ModN(d.rand, bound)
			b, err := m.Share(d.cfg.Construction, readings[i])
			if err != nil {
				return fmt.Errorf("%s: %w", m.ID(), err)
			}
			bundles[i] = b
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := &RoundResult{
		RoundKey: bundles[0].RoundKey(),
		Expected: new(big.Int),
		Warmup:   r <= d.cfg.WarmupRounds,
		Tampered: r == d.cfg.TamperRound,
	}
	for _, x := range readings {
		result.Expected.Add(result.Expected, x)
	}
	if result.Tampered {
		tamper(bundles[0])
	}

	var messages [][]byte
	for _, b := range bundles {
		sealed, err := envelopes(b)
		if err != nil {
			return nil, err
		}
		messages = append(messages, sealed...)
	}

	var mu sync.Mutex
	eg, egCtx = errgroup.WithContext(ctx)
	for _, data := range messages {
		data := data
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			out, err := d.network.deliver(data)
			if err != nil || out == nil {
				return err
			}
			mu.Lock()
			result.Outcome = out
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if result.Outcome == nil {
		return nil, fmt.Errorf("%w: %s, pending %v", ErrStalled, result.RoundKey, d.network.verifier.Pending())
	}
	result.Latency = time.Since(start)

	event := d.logger.Info()
	if !result.Correct() {
		event = d.logger.Error()
	}
	event.
		Stringer("round", result.RoundKey).
		Bool("valid", result.Outcome.Valid).
		Str("sum", result.Outcome.Sum.String()).
		Str("expected", result.Expected.String()).
		Bool("tampered", result.Tampered).
		Dur("latency", result.Latency).
		Msg("round verified")
	return result, nil
}

// tamper alters the share b sends to its first server.
func tamper(b *share.Bundle) {
	s := b.Shares[b.Servers()[0]]
	s.Value = new(big.Int).Add(s.Value, big.NewInt(1))
}
