// Package poly implements polynomial arithmetic over the Goldilocks field
// using number-theoretic transforms (NTT).
//
// The transform is an iterative Cooley-Tukey FFT specialized to the prime
// field: a bit-reversal permutation followed by log2(n) butterfly stages.
// Stages run in order, but the butterfly groups inside a stage touch
// disjoint index ranges, so the engine fans groups out across goroutines
// when the transform is large enough to pay for it. The parallel and
// sequential paths perform the exact same field operations in the exact
// same order per index, so results are bit-identical regardless of the
// worker budget.
package poly

import (
	"errors"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/nholt/zkminer/internal/field"
	"github.com/nholt/zkminer/internal/logging"
)

// Poly is a polynomial in coefficient form; index i holds the
// coefficient of x^i.
type Poly = []field.Element

// Default thresholds. These are tuning knobs only: correctness never
// depends on them, and tests run the same inputs through both paths.
const (
	// DefaultNaiveMulThreshold is the result length below which Mul uses
	// schoolbook multiplication instead of the transform pipeline.
	DefaultNaiveMulThreshold = 64

	// DefaultParallelThreshold is the transform length at which butterfly
	// stages start fanning groups out across goroutines.
	DefaultParallelThreshold = 1024

	// DefaultBitRevThreshold is the transform length at which the
	// bit-reversal gather is chunked across goroutines. The gather is a
	// pure copy, so it takes a larger input than the butterflies to pay
	// for the fan-out.
	DefaultBitRevThreshold = 4096

	// DefaultHadamardThreshold is the vector length at which pointwise
	// products are chunked across goroutines.
	DefaultHadamardThreshold = 1024
)

var (
	// ErrLengthNotPow2 is returned when a transform input length is not a
	// power of two.
	ErrLengthNotPow2 = errors.New("poly: transform length must be a power of two")

	// ErrLengthMismatch is returned by Hadamard when the operand lengths
	// differ.
	ErrLengthMismatch = errors.New("poly: hadamard operands must have equal length")
)

// Options configures an Engine.
type Options struct {
	// NaiveMulThreshold is the result length below which Mul uses the
	// schoolbook algorithm. If 0, DefaultNaiveMulThreshold is used.
	NaiveMulThreshold int
	// ParallelThreshold is the minimum transform length for parallel
	// butterfly stages. If 0, DefaultParallelThreshold is used.
	ParallelThreshold int
	// BitRevThreshold is the minimum transform length for a parallel
	// bit-reversal gather. If 0, DefaultBitRevThreshold is used.
	BitRevThreshold int
	// HadamardThreshold is the minimum vector length for parallel
	// pointwise products. If 0, DefaultHadamardThreshold is used.
	HadamardThreshold int
	// MaxWorkers bounds the number of extra goroutines the engine may
	// have in flight at once. If 0, runtime.NumCPU() is used.
	MaxWorkers int
}

// normalizeOptions returns a copy of opts with defaults filled in for
// zero values.
func normalizeOptions(opts Options) Options {
	normalized := opts
	if normalized.NaiveMulThreshold == 0 {
		normalized.NaiveMulThreshold = DefaultNaiveMulThreshold
	}
	if normalized.ParallelThreshold == 0 {
		normalized.ParallelThreshold = DefaultParallelThreshold
	}
	if normalized.BitRevThreshold == 0 {
		normalized.BitRevThreshold = DefaultBitRevThreshold
	}
	if normalized.HadamardThreshold == 0 {
		normalized.HadamardThreshold = DefaultHadamardThreshold
	}
	if normalized.MaxWorkers == 0 {
		normalized.MaxWorkers = runtime.NumCPU()
	}
	return normalized
}

// Engine performs NTT-based polynomial arithmetic with a bounded worker
// budget. An Engine is safe for concurrent use; the budget is shared
// across all operations in flight.
type Engine struct {
	opts    Options
	workers *semaphore.Weighted
	log     logging.Logger
}

// New creates an Engine with the given logger and options. A nil logger
// disables logging.
func New(log logging.Logger, opts Options) *Engine {
	opts = normalizeOptions(opts)
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		opts:    opts,
		workers: semaphore.NewWeighted(int64(opts.MaxWorkers)),
		log:     log,
	}
}

// tryAcquireWorkers claims up to want extra worker slots from the shared
// budget without blocking. It returns the number actually claimed, which
// may be zero; the caller releases that many when done.
func (e *Engine) tryAcquireWorkers(want int) int {
	got := 0
	for got < want && e.workers.TryAcquire(1) {
		got++
	}
	return got
}

// nextPow2 returns the smallest power of two >= n. n must be positive.
func nextPow2(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

// isPow2 reports whether n is a positive power of two.
func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}
