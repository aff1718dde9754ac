// Package parallel provides the worker-pool primitives used by the
// processing frameworks. Parallelism is purely data-parallel: a fixed number
// of workers, each owning a disjoint part of the coordinate space, with no
// locking and no work stealing. Determinism comes from the fixed
// partitioning, not from ordering between workers.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Threshold is the estimated number of per-sample operations below which
// starting workers costs more than it saves and work runs on the calling
// goroutine.
const Threshold = 100_000

var maxWorkers = runtime.GOMAXPROCS(0)

// SetMaxWorkers overrides the worker-count ceiling, for tests and for
// embedders that manage CPU budgets themselves. n < 1 resets to GOMAXPROCS.
func SetMaxWorkers(n int) {
	if n < 1 {
		n = runtime.GOMAXPROCS(0)
	}
	maxWorkers = n
}

// MaxWorkers returns the current worker-count ceiling.
func MaxWorkers() int { return maxWorkers }

// Workers decides how many workers to use for a job of the given estimated
// operation count that can be split into at most chunks parts. Small jobs
// run single-threaded.
func Workers(operations, chunks int) int {
	n := maxWorkers
	if chunks < n {
		n = chunks
	}
	if n <= 1 || operations < Threshold {
		return 1
	}
	return n
}

// Run executes f(0) … f(workers-1) concurrently and returns the first error.
// With a single worker f runs on the calling goroutine. Run returns only
// after every worker has finished, so callers may merge per-worker state
// immediately afterwards.
func Run(workers int, f func(thread int) error) error {
	if workers <= 1 {
		return f(0)
	}
	var g errgroup.Group
	for t := 0; t < workers; t++ {
		t := t
		g.Go(func() error { return f(t) })
	}
	return g.Wait()
}
