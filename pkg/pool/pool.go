package pool

import (
	"io"
	"runtime"
	"sync"
	"sync/atomic"
)

// job is a unit of work executed by a single worker.
type job func()

// Pool represents a pool of workers, used for parallelizing functions.
//
// Functions needing a *Pool will work with a nil receiver, doing the equivalent
// work on the current goroutine instead.
//
// By creating a pool, you avoid the overhead of spinning up goroutines for
// each new operation.
type Pool struct {
	// The common channel used to send jobs to the workers.
	//
	// This effectively makes a work stealing pool.
	jobs chan job
	// This holds the number of workers we've created
	workerCount int
	closeOnce   sync.Once
}

// NewPool creates a new pool, with a certain number of workers.
//
// If count <= 0, this will use the number of available CPUs instead.
func NewPool(count int) *Pool {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	p := &Pool{
		jobs:        make(chan job),
		workerCount: count,
	}
	for i := 0; i < count; i++ {
		go func() {
			for j := range p.jobs {
				j()
			}
		}()
	}
	return p
}

// TearDown cleanly tears down a pool. It is safe to call more than once.
func (p *Pool) TearDown() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() { close(p.jobs) })
}

// Workers returns the number of goroutines backing p, or 1 for a nil pool.
func (p *Pool) Workers() int {
	if p == nil {
		return 1
	}
	return p.workerCount
}

// Search queries the function f, until count successes are found, or until f
// has been called maxTries times in total (maxTries <= 0 means unbounded).
//
// f is supposed to try a single candidate, returning ok = false if that candidate isn't
// successful.
//
// The result contains at most count successes, in no particular order.
func Search[T any](p *Pool, count, maxTries int, f func() (T, bool)) []T {
	results := make([]T, 0, count)
	if p == nil {
		for tries := 0; len(results) < count && (maxTries <= 0 || tries < maxTries); tries++ {
			if r, ok := f(); ok {
				results = append(results, r)
			}
		}
		return results
	}

	var (
		mu        sync.Mutex
		remaining = int64(count)
		tries     = int64(maxTries)
		wg        sync.WaitGroup
	)
	wg.Add(p.workerCount)
	search := func() {
		defer wg.Done()
		for atomic.LoadInt64(&remaining) > 0 {
			if maxTries > 0 && atomic.AddInt64(&tries, -1) < 0 {
				return
			}
			r, ok := f()
			if !ok {
				continue
			}
			if atomic.AddInt64(&remaining, -1) < 0 {
				return
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}
	}
	for i := 0; i < p.workerCount; i++ {
		p.jobs <- search
	}
	wg.Wait()
	return results
}

// Parallelize calls a function count times, passing in indices from 0..count-1.
//
// The result will be a slice containing [f(0), f(1), ..., f(count - 1)].
func Parallelize[T any](p *Pool, count int, f func(int) T) []T {
	results := make([]T, count)
	if p == nil {
		for i := range results {
			results[i] = f(i)
		}
		return results
	}

	var wg sync.WaitGroup
	wg.Add(count)
	for i := 0; i < count; i++ {
		i := i
		p.jobs <- func() {
			defer wg.Done()
			results[i] = f(i)
		}
	}
	wg.Wait()
	return results
}

// LockedReader wraps an io.Reader to be safe for concurrent reads.
//
// This type implements io.Reader, returning the same output.
//
// This means acquiring a lock whenever a read happens, so be aware of that
// for performance or concurrency reasons.
type LockedReader struct {
	reader io.Reader
	m      sync.Mutex
}

// NewLockedReader creates a LockedReader by wrapping an underlying value.
func NewLockedReader(r io.Reader) *LockedReader {
	return &LockedReader{reader: r}
}

// Read implements io.Reader for LockedReader.
//
// Naturally, when calling this function concurrently, what value ends up getting
// read is raced, but you won't end up reading the same value twice, or otherwise
// messing up the state of the reader.
func (r *LockedReader) Read(p []byte) (int, error) {
	r.m.Lock()
	defer r.m.Unlock()
	return r.reader.Read(p)
}
