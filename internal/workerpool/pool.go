// Package workerpool provides the fixed-size fork-join pool used to
// parallelize per-attribute and per-attribute-set work in the exploration
// algorithms: the greedy algorithms' per-attribute entropy scans and
// FPSelect's per-level exploration. Adapted from the dispatcher/worker
// split of the originating codebase's job-queue worker pool, but reshaped
// into a synchronous Map: every call blocks until all chunks complete and
// partition errors are combined rather than dropped.
package workerpool

import (
	"sync"

	"go.uber.org/multierr"

	"github.com/tandriamil/BrFAST/internal/attribute"
)

// Pool runs a fixed number of concurrent workers over a partitioned slice
// of work. It holds no goroutines between calls; MapAttributes and MapSets
// spin up one goroutine per chunk (at most `workers` of them) per call and
// tear them down on completion.
type Pool struct {
	workers int
}

// New returns a pool sized max(1, cores-freeCores), the sizing rule shared
// by every caller of the pool.
func New(cores, freeCores int) *Pool {
	n := cores - freeCores
	if n < 1 {
		n = 1
	}
	return &Pool{workers: n}
}

// Workers returns the pool's configured worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// chunkBounds splits n items into up to `workers` contiguous chunks of
// ceil(n/workers), the last chunk possibly shorter. It never returns more
// chunks than there are items.
func chunkBounds(n, workers int) [][2]int {
	if n == 0 {
		return nil
	}
	chunkSize := (n + workers - 1) / workers
	if chunkSize < 1 {
		chunkSize = 1
	}
	var bounds [][2]int
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		bounds = append(bounds, [2]int{start, end})
	}
	return bounds
}

// MapAttributes partitions attrs into contiguous chunks, one per worker,
// and runs fn over each chunk concurrently. Errors from every partition are
// combined with multierr rather than short-circuiting, so a caller sees
// every failure in one run.
func (p *Pool) MapAttributes(attrs []attribute.Attribute, fn func(chunk []attribute.Attribute) error) error {
	bounds := chunkBounds(len(attrs), p.workers)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, b := range bounds {
		b := b
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(attrs[b[0]:b[1]]); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}

// MapSets partitions sets into contiguous chunks, one per worker, and runs
// fn over each chunk concurrently, combining errors the same way as
// MapAttributes. Used by FPSelect's per-level explore fan-out; FPSelect's
// expand step runs on the calling goroutine and does not use the pool.
func (p *Pool) MapSets(sets []attribute.AttributeSet, fn func(chunk []attribute.AttributeSet) error) error {
	bounds := chunkBounds(len(sets), p.workers)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, b := range bounds {
		b := b
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(sets[b[0]:b[1]]); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}
