// Package params provides the public parameters of an in-process deployment.
package params

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/taurusgroup/vhss/pkg/field"
	"github.com/taurusgroup/vhss/pkg/party"
	"github.com/taurusgroup/vhss/pkg/pool"
	"github.com/taurusgroup/vhss/pkg/protocol"
	"github.com/taurusgroup/vhss/pkg/share"
	"github.com/taurusgroup/vhss/protocols/linear"
	"github.com/taurusgroup/vhss/protocols/rsathreshold"
)

// Options describes the deployment generated by Generate.
type Options struct {
	Substations []string
	Servers     int
	Threshold   int
	// Constructions selects which public parameters are generated; the field of
	// every substation is always generated.
	Constructions     []share.Construction
	FieldBits         int
	RSABits           int
	LinearBits        int
	LinearModulusBits int
}

// DefaultOptions returns a deployment of a single substation using every construction.
func DefaultOptions() Options {
	return Options{
		Substations:       []string{"substation-1"},
		Servers:           Servers,
		Threshold:         Threshold,
		Constructions:     share.Constructions(),
		FieldBits:         FieldBits,
		RSABits:           RSABits,
		LinearBits:        LinearBits,
		LinearModulusBits: LinearModulusBits,
	}
}

type substation struct {
	field  *field.Field
	linear *linear.PublicParameters

	mu     sync.Mutex
	primes map[uint64]*rsathreshold.Primes
}

// Static holds the public parameters of every substation of a deployment.
// RSA primes are generated lazily, once per round.
type Static struct {
	rand      io.Reader
	pool      *pool.Pool
	rsaBits   int
	servers   party.IDSlice
	threshold int
	stations  map[string]*substation
}

var (
	_ protocol.Directory       = (*Static)(nil)
	_ protocol.FieldSource     = (*Static)(nil)
	_ linear.ParameterSource   = (*Static)(nil)
	_ rsathreshold.PrimeSource = (*Static)(nil)
)

// Generate samples the servers and public parameters described by opts.
// rand must be safe for concurrent use, since RSAPrimes may be called concurrently.
func Generate(rand io.Reader, pl *pool.Pool, opts Options) (*Static, error) {
	if len(opts.Substations) == 0 {
		return nil, fmt.Errorf("params.Generate: no substation")
	}
	if err := protocol.ValidateThreshold(opts.Threshold, opts.Servers); err != nil {
		return nil, fmt.Errorf("params.Generate: %w", err)
	}
	uses := make(map[share.Construction]bool, len(opts.Constructions))
	for _, c := range opts.Constructions {
		uses[c] = true
	}
	if uses[share.RSAThreshold] && opts.RSABits <= opts.FieldBits {
		return nil, fmt.Errorf("params.Generate: RSA primes of %d bits cannot exceed a field of %d bits", opts.RSABits, opts.FieldBits)
	}

	ids := make([]party.ID, opts.Servers)
	for i := range ids {
		u, err := uuid.NewRandomFromReader(rand)
		if err != nil {
			return nil, fmt.Errorf("params.Generate: %w", err)
		}
		ids[i] = party.ID("srv-" + u.String())
	}

	s := &Static{
		rand:      rand,
		pool:      pl,
		rsaBits:   opts.RSABits,
		servers:   party.NewIDSlice(ids),
		threshold: opts.Threshold,
		stations:  make(map[string]*substation, len(opts.Substations)),
	}
	for _, name := range opts.Substations {
		if _, ok := s.stations[name]; ok || name == "" {
			return nil, fmt.Errorf("params.Generate: invalid or repeated substation %q", name)
		}
		st := &substation{primes: make(map[uint64]*rsathreshold.Primes)}
		f, err := field.Generate(rand, opts.FieldBits, pl)
		if err != nil {
			return nil, fmt.Errorf("params.Generate: %s: %w", name, err)
		}
		st.field = f
		if uses[share.LinearSignature] {
			if st.linear, err = linear.Setup(rand, opts.LinearBits, opts.LinearModulusBits, pl); err != nil {
				return nil, fmt.Errorf("params.Generate: %s: %w", name, err)
			}
		}
		s.stations[name] = st
		log.Debug().Str("substation", name).Stringer("field", f).Msg("public parameters generated")
	}
	return s, nil
}

func (s *Static) station(name string) (*substation, error) {
	st, ok := s.stations[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown substation %q", protocol.ErrNoParameters, name)
	}
	return st, nil
}

// Substations returns the substations of the deployment, sorted.
func (s *Static) Substations() []string {
	names := maps.Keys(s.stations)
	slices.Sort(names)
	return names
}

// Servers implements protocol.Directory.
func (s *Static) Servers(substation string) (party.IDSlice, error) {
	if _, err := s.station(substation); err != nil {
		return nil, protocol.ErrNoServers
	}
	return s.servers.Copy(), nil
}

// Threshold implements protocol.Directory.
func (s *Static) Threshold(string) (int, error) { return s.threshold, nil }

// Field implements protocol.FieldSource.
func (s *Static) Field(substation string) (*field.Field, error) {
	st, err := s.station(substation)
	if err != nil {
		return nil, err
	}
	return st.field, nil
}

// LinearParameters implements linear.ParameterSource.
func (s *Static) LinearParameters(substation string) (*linear.PublicParameters, error) {
	st, err := s.station(substation)
	if err != nil {
		return nil, err
	}
	if st.linear == nil {
		return nil, fmt.Errorf("%w: no linear parameters for %q", protocol.ErrNoParameters, substation)
	}
	return st.linear, nil
}

// RSAPrimes implements rsathreshold.PrimeSource.
//
// All clients of a round receive the same primes; they are generated by the
// first request and kept for the most recent rounds only.
func (s *Static) RSAPrimes(substation string, fid uint64) (*rsathreshold.Primes, error) {
	st, err := s.station(substation)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if ps, ok := st.primes[fid]; ok {
		return ps, nil
	}
	ps, err := rsathreshold.GeneratePrimes(s.rand, s.rsaBits, st.field.P(), s.pool)
	if err != nil {
		return nil, err
	}
	st.primes[fid] = ps
	if len(st.primes) > primeWindow {
		fids := maps.Keys(st.primes)
		slices.Sort(fids)
		for _, old := range fids[:len(fids)-primeWindow] {
			delete(st.primes, old)
		}
	}
	log.Debug().Str("substation", substation).Uint64("fid", fid).Msg("RSA primes generated")
	return ps, nil
}
