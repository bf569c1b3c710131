// Package config describes a simulated deployment, as read from a YAML file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"
	"os"

	"github.com/rs/zerolog"
	"sigs.k8s.io/yaml"

	"github.com/taurusgroup/vhss/pkg/math/sample"
	"github.com/taurusgroup/vhss/pkg/params"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
)

var ErrInvalid = errors.New("config: invalid configuration")

// Config is a simulated deployment: every substation has Clients meters, all
// reporting to the same Servers servers, for Rounds rounds.
type Config struct {
	Substations []string `json:"substations"`
	Servers     int      `json:"servers"`
	Threshold   int      `json:"threshold"`
	// Clients is the number of meters per substation.
	Clients int `json:"clients"`
	Rounds  int `json:"rounds"`
	// WarmupRounds are run first and left out of the timing report.
	WarmupRounds int                `json:"warmupRounds"`
	Construction share.Construction `json:"construction"`

	FieldBits         int `json:"fieldBits"`
	RSABits           int `json:"rsaBits"`
	LinearBits        int `json:"linearBits"`
	LinearModulusBits int `json:"linearModulusBits"`

	// MaxReading bounds the readings sampled for every meter, inclusive.
	MaxReading int64 `json:"maxReading"`
	// TamperRound is the round in which one share is altered in transit; 0 disables it.
	TamperRound int `json:"tamperRound,omitempty"`
	// Workers is the size of the prime search pool; 0 uses every CPU.
	Workers  int    `json:"workers,omitempty"`
	LogLevel string `json:"logLevel"`
}

// Default returns a small deployment using the homomorphic hash construction.
func Default() *Config {
	return &Config{
		Substations:       []string{"substation-1"},
		Servers:           params.Servers,
		Threshold:         params.Threshold,
		Clients:           10,
		Rounds:            10,
		WarmupRounds:      2,
		Construction:      share.HomomorphicHash,
		FieldBits:         params.FieldBits,
		RSABits:           params.RSABits,
		LinearBits:        params.LinearBits,
		LinearModulusBits: params.LinearModulusBits,
		MaxReading:        1000,
		LogLevel:          zerolog.InfoLevel.String(),
	}
}

// Load reads the YAML file at path on top of Default, and validates the result.
func Load(path string) (*Config, error) {
	yamlBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return Parse(yamlBytes)
}

// Parse is Load for an in-memory document. Unknown keys are rejected.
func Parse(yamlBytes []byte) (*Config, error) {
	jsonBytes, err := yaml.YAMLToJSON(yamlBytes)
	if err != nil {
		return nil, fmt.Errorf("config.Parse: converting YAML to JSON: %w", err)
	}
	cfg := Default()
	if len(bytes.TrimSpace(jsonBytes)) > 0 && !bytes.Equal(bytes.TrimSpace(jsonBytes), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(jsonBytes))
		dec.DisallowUnknownFields()
		if err = dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config.Parse: %w", err)
		}
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal returns cfg as a YAML document.
func (cfg *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Validate checks the deployment is consistent, and that the sum of all readings
// of a substation can be recovered by the chosen construction.
func (cfg *Config) Validate() error {
	if len(cfg.Substations) == 0 {
		return fmt.Errorf("%w: no substation", ErrInvalid)
	}
	seen := make(map[string]bool, len(cfg.Substations))
	for _, s := range cfg.Substations {
		if s == "" || seen[s] {
			return fmt.Errorf("%w: empty or repeated substation %q", ErrInvalid, s)
		}
		seen[s] = true
	}
	if err := protocol.ValidateThreshold(cfg.Threshold, cfg.Servers); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if cfg.Clients < 1 {
		return fmt.Errorf("%w: need at least one client", ErrInvalid)
	}
	if cfg.Rounds < 1 || cfg.WarmupRounds < 0 || cfg.WarmupRounds >= cfg.Rounds {
		return fmt.Errorf("%w: need 0 ≤ warmupRounds < rounds, have %d and %d", ErrInvalid, cfg.WarmupRounds, cfg.Rounds)
	}
	if cfg.TamperRound < 0 || cfg.TamperRound > cfg.Rounds {
		return fmt.Errorf("%w: tamperRound %d outside of [0, %d]", ErrInvalid, cfg.TamperRound, cfg.Rounds)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("%w: negative workers", ErrInvalid)
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !cfg.Construction.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalid, share.ErrUnknownConstruction)
	}
	if cfg.MaxReading < 1 {
		return fmt.Errorf("%w: maxReading must be positive", ErrInvalid)
	}
	if cfg.FieldBits < sample.MinSafePrimeBits {
		return fmt.Errorf("%w: fieldBits must be at least %d", ErrInvalid, sample.MinSafePrimeBits)
	}

	// bounds the size of the largest possible sum of a round
	sumBits := bits.Len64(uint64(cfg.MaxReading)) + bits.Len64(uint64(cfg.Clients))
	switch cfg.Construction {
	case share.HomomorphicHash, share.NonceOnly:
		if sumBits >= cfg.FieldBits-1 {
			return fmt.Errorf("%w: sums of %d bits do not fit a field of %d bits", ErrInvalid, sumBits, cfg.FieldBits)
		}
	case share.RSAThreshold:
		if sumBits >= cfg.FieldBits-1 {
			return fmt.Errorf("%w: sums of %d bits do not fit a field of %d bits", ErrInvalid, sumBits, cfg.FieldBits)
		}
		if cfg.RSABits <= cfg.FieldBits {
			return fmt.Errorf("%w: rsaBits must exceed fieldBits", ErrInvalid)
		}
	case share.LinearSignature:
		if cfg.LinearBits < sample.MinSafePrimeBits || cfg.LinearModulusBits < sample.MinSafePrimeBits {
			return fmt.Errorf("%w: linear primes must have at least %d bits", ErrInvalid, sample.MinSafePrimeBits)
		}
		// N is the product of two primes of LinearModulusBits bits
		if sumBits >= 2*cfg.LinearModulusBits-2 {
			return fmt.Errorf("%w: sums of %d bits do not fit N of %d bits", ErrInvalid, sumBits, 2*cfg.LinearModulusBits)
		}
	}
	return nil
}

// Options returns the parameters needed to run cfg.
func (cfg *Config) Options() params.Options {
	return params.Options{
		Substations:       append([]string(nil), cfg.Substations...),
		Servers:           cfg.Servers,
		Threshold:         cfg.Threshold,
		Constructions:     []share.Construction{cfg.Construction},
		FieldBits:         cfg.FieldBits,
		RSABits:           cfg.RSABits,
		LinearBits:        cfg.LinearBits,
		LinearModulusBits: cfg.LinearModulusBits,
	}
}

// Level returns the configured log level.
func (cfg *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
