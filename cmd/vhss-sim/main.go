// Command vhss-sim runs a simulated aggregation deployment in a single process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/taurusgroup/vhss/internal/config"
	"github.com/taurusgroup/vhss/internal/sim"
	"github.com/taurusgroup/vhss/pkg/share"
)

func main() {
	app := &cli.App{
		Name:  "vhss-sim",
		Usage: "simulate verifiable aggregation of meter readings",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run a deployment, and print every round's verdict and timings",
				Flags:  runFlags,
				Action: run,
			},
			{
				Name:  "config",
				Usage: "print the default configuration",
				Action: func(c *cli.Context) error {
					data, err := config.Default().Marshal()
					if err != nil {
						return err
					}
					_, err = c.App.Writer.Write(data)
					return err
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("vhss-sim failed")
	}
}

var runFlags = []cli.Flag{
	&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration `FILE`"},
	&cli.StringFlag{Name: "construction", Usage: "one of hash, rsa, linear, nonce"},
	&cli.StringSliceFlag{Name: "substation", Usage: "substation name, repeatable"},
	&cli.IntFlag{Name: "servers", Usage: "number of servers"},
	&cli.IntFlag{Name: "threshold", Usage: "security threshold"},
	&cli.IntFlag{Name: "clients", Usage: "meters per substation"},
	&cli.IntFlag{Name: "rounds", Usage: "rounds to run"},
	&cli.IntFlag{Name: "warmup", Usage: "rounds left out of the timing summary"},
	&cli.IntFlag{Name: "field-bits", Usage: "size of the field base"},
	&cli.IntFlag{Name: "rsa-bits", Usage: "size of the RSA primes"},
	&cli.IntFlag{Name: "linear-bits", Usage: "size of the primes of N̂"},
	&cli.IntFlag{Name: "linear-modulus-bits", Usage: "size of the primes of N"},
	&cli.Int64Flag{Name: "max-reading", Usage: "largest reading of a meter"},
	&cli.IntFlag{Name: "tamper-round", Usage: "round in which a share is altered in transit"},
	&cli.IntFlag{Name: "workers", Usage: "prime search workers, 0 for all CPUs"},
	&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error"},
}

func load(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if c.IsSet("construction") {
		construction, err := share.ParseConstruction(c.String("construction"))
		if err != nil {
			return nil, err
		}
		cfg.Construction = construction
	}
	if c.IsSet("substation") {
		cfg.Substations = c.StringSlice("substation")
	}
	ints := map[string]*int{
		"servers":             &cfg.Servers,
		"threshold":           &cfg.Threshold,
		"clients":             &cfg.Clients,
		"rounds":              &cfg.Rounds,
		"warmup":              &cfg.WarmupRounds,
		"field-bits":          &cfg.FieldBits,
		"rsa-bits":            &cfg.RSABits,
		"linear-bits":         &cfg.LinearBits,
		"linear-modulus-bits": &cfg.LinearModulusBits,
		"tamper-round":        &cfg.TamperRound,
		"workers":             &cfg.Workers,
	}
	for name, field := range ints {
		if c.IsSet(name) {
			*field = c.Int(name)
		}
	}
	if c.IsSet("max-reading") {
		cfg.MaxReading = c.Int64("max-reading")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	return cfg, cfg.Validate()
}

func run(c *cli.Context) error {
	cfg, err := load(c)
	if err != nil {
		return err
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := sim.Run(ctx, cfg)
	if err != nil {
		return err
	}
	if err = report.Print(c.App.Writer); err != nil {
		return err
	}
	if report.Incorrect > 0 {
		return fmt.Errorf("%d rounds were not verified as expected", report.Incorrect)
	}
	return nil
}
