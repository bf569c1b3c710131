// Package aggregate accumulates the records of concurrent rounds on the server and
// verifier side, and triggers evaluation and verification exactly once per round.
package aggregate

import (
	"errors"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/taurusgroup/vhss/internal/hash"
	"github.com/taurusgroup/vhss/pkg/share"
)

var (
	// ErrRoundClosed is returned for records of a round that was already completed.
	ErrRoundClosed = errors.New("aggregate: round is closed")
	// ErrDuplicate is returned when the exact same record was already received.
	ErrDuplicate = errors.New("aggregate: duplicate record")
	// ErrConflict is returned when a party sends two different records for a round.
	ErrConflict = errors.New("aggregate: conflicting record")
	// ErrUnknownConstruction is returned for a construction with no registered handler.
	ErrUnknownConstruction = errors.New("aggregate: no handler for construction")
	// ErrWrongRecipient is returned for a share addressed to another server.
	ErrWrongRecipient = errors.New("aggregate: record addressed to another party")
)

// slot is the state of one round. Its mutex guards every field, so that appending,
// checking completion and closing happen in one critical section.
type slot[A any] struct {
	mu     sync.Mutex
	closed bool
	acc    *A
}

// stream is the sequence of rounds of one construction at one substation.
type stream struct {
	construction share.Construction
	substation   string
}

func streamOf(key share.RoundKey) stream {
	return stream{construction: key.Construction, substation: key.Substation}
}

// store maps round keys to slots.
//
// Closed slots are removed once every earlier round of their stream is closed too:
// the watermark of a stream is the largest fid up to which all rounds are closed,
// and records at or below it are answered with a closed slot.
type store[A any] struct {
	mu         sync.Mutex
	rounds     map[share.RoundKey]*slot[A]
	finished   map[share.RoundKey]struct{}
	watermarks map[stream]uint64
	completed  int
	init       func() *A
}

func newStore[A any](init func() *A) *store[A] {
	return &store[A]{
		rounds:     make(map[share.RoundKey]*slot[A]),
		finished:   make(map[share.RoundKey]struct{}),
		watermarks: make(map[stream]uint64),
		init:       init,
	}
}

// lock returns the slot of key with its mutex held, creating it if needed.
func (s *store[A]) lock(key share.RoundKey) *slot[A] {
	s.mu.Lock()
	if key.FID <= s.watermarks[streamOf(key)] {
		s.mu.Unlock()
		sl := &slot[A]{closed: true}
		sl.mu.Lock()
		return sl
	}
	sl, ok := s.rounds[key]
	if !ok {
		sl = &slot[A]{acc: s.init()}
		s.rounds[key] = sl
	}
	s.mu.Unlock()

	sl.mu.Lock()
	return sl
}

// close marks the slot of key as terminal, drops its accumulator and prunes the
// closed prefix of its stream. sl must be locked.
func (s *store[A]) close(key share.RoundKey, sl *slot[A]) {
	if sl.closed {
		return
	}
	sl.closed = true
	sl.acc = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed++
	s.finished[key] = struct{}{}
	st := streamOf(key)
	next := share.RoundKey{Construction: key.Construction, Substation: key.Substation, FID: s.watermarks[st] + 1}
	for {
		if _, ok := s.finished[next]; !ok {
			break
		}
		delete(s.finished, next)
		delete(s.rounds, next)
		s.watermarks[st] = next.FID
		next.FID++
	}
}

// pending returns the rounds that are not closed yet, sorted.
func (s *store[A]) pending() []share.RoundKey {
	s.mu.Lock()
	out := make([]share.RoundKey, 0, len(s.rounds))
	for k := range s.rounds {
		if _, ok := s.finished[k]; !ok {
			out = append(out, k)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b share.RoundKey) bool { return a.String() < b.String() })
	return out
}

// closedCount returns the number of completed rounds.
func (s *store[A]) closedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// size returns the number of slots held.
func (s *store[A]) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rounds)
}

// fingerprint identifies a record by its deterministic encoding.
func fingerprint(domain string, record interface{}) (hash.Fingerprint, error) {
	data, err := share.Marshal(record)
	if err != nil {
		return hash.Fingerprint{}, err
	}
	return hash.FingerprintOf(domain, data)
}
