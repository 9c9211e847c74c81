package poly

import (
	"context"
	"fmt"
	"math/bits"
	"sync"

	"github.com/nholt/zkminer/internal/field"
)

// Transform computes the forward NTT of coeffs over the multiplicative
// subgroup of order len(coeffs). The input is not modified.
//
// Parameters:
//   - ctx: cancellation is checked between butterfly stages.
//   - coeffs: coefficient vector; its length must be a power of two no
//     larger than 2^field.TwoAdicity.
//
// Returns:
//   - []field.Element: the evaluation vector, same length as coeffs.
//   - error: ErrLengthNotPow2, field.ErrNoSubgroup, or ctx.Err().
func (e *Engine) Transform(ctx context.Context, coeffs []field.Element) ([]field.Element, error) {
	root, err := transformRoot(len(coeffs))
	if err != nil {
		return nil, err
	}
	return e.transform(ctx, coeffs, root)
}

// InverseTransform computes the inverse NTT of evals, recovering the
// coefficient vector. It is the exact inverse of Transform: the forward
// butterfly network run with the inverted root, followed by a scale by
// n^-1. The input is not modified.
func (e *Engine) InverseTransform(ctx context.Context, evals []field.Element) ([]field.Element, error) {
	root, err := transformRoot(len(evals))
	if err != nil {
		return nil, err
	}
	invRoot, err := field.Inv(root)
	if err != nil {
		return nil, err
	}
	return e.inverseTransform(ctx, evals, invRoot)
}

// InverseTransformWithRoot is InverseTransform with the inverse root
// supplied by the caller, skipping the per-call root derivation and
// inversion. invRoot must be the inverse of the primitive root of order
// len(evals); callers holding precomputed domain data use this to spend
// the derivation cost once at insert time instead of on every call.
func (e *Engine) InverseTransformWithRoot(ctx context.Context, evals []field.Element, invRoot field.Element) ([]field.Element, error) {
	if !isPow2(len(evals)) {
		return nil, fmt.Errorf("%w: got length %d", ErrLengthNotPow2, len(evals))
	}
	return e.inverseTransform(ctx, evals, invRoot)
}

func (e *Engine) inverseTransform(ctx context.Context, evals []field.Element, invRoot field.Element) ([]field.Element, error) {
	dst, err := e.transform(ctx, evals, invRoot)
	if err != nil {
		return nil, err
	}
	invN, err := field.Inv(field.New(uint64(len(evals))))
	if err != nil {
		return nil, err
	}
	for i := range dst {
		dst[i] = field.Mul(dst[i], invN)
	}
	return dst, nil
}

// transformRoot resolves the primitive root for a transform of size n.
func transformRoot(n int) (field.Element, error) {
	if !isPow2(n) {
		return field.Zero, fmt.Errorf("%w: got length %d", ErrLengthNotPow2, n)
	}
	return field.OrderedRoot(uint64(n))
}

// transform runs the iterative Cooley-Tukey network: bit-reversal gather,
// then log2(n) stages of butterflies.
func (e *Engine) transform(ctx context.Context, src []field.Element, root field.Element) ([]field.Element, error) {
	n := len(src)
	dst := e.bitReverseCopy(src)
	if n == 1 {
		return dst, nil
	}

	for span := 1; span < n; span <<= 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Each stage uses the subgroup root of order 2*span. The group
		// twiddle resets to one at every group start, so groups are
		// fully independent within a stage.
		stageRoot := field.Pow(root, uint64(n/(2*span)))
		e.stage(dst, span, stageRoot)
	}
	return dst, nil
}

// bitReverseCopy returns src permuted so that index i holds src[rev(i)],
// where rev reverses the low log2(n) bits. rev is a bijection, so chunks
// of the source range scatter to disjoint destinations and large inputs
// can be gathered in parallel without coordination.
func (e *Engine) bitReverseCopy(src []field.Element) []field.Element {
	n := len(src)
	dst := make([]field.Element, n)
	if n == 1 {
		dst[0] = src[0]
		return dst
	}
	shift := 64 - uint(bits.TrailingZeros(uint(n)))

	if n < e.opts.BitRevThreshold {
		bitRevRange(dst, src, shift, 0, n)
		return dst
	}

	extra := e.tryAcquireWorkers(e.opts.MaxWorkers - 1)
	if extra == 0 {
		bitRevRange(dst, src, shift, 0, n)
		return dst
	}
	defer e.workers.Release(int64(extra))

	chunks := extra + 1
	per := (n + chunks - 1) / chunks
	var wg sync.WaitGroup
	for lo := per; lo < n; lo += per {
		hi := lo + per
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			bitRevRange(dst, src, shift, lo, hi)
		}(lo, hi)
	}
	bitRevRange(dst, src, shift, 0, per)
	wg.Wait()
	return dst
}

// bitRevRange gathers source indices [lo, hi) into their bit-reversed
// destinations.
func bitRevRange(dst, src []field.Element, shift uint, lo, hi int) {
	for i := lo; i < hi; i++ {
		dst[bits.Reverse64(uint64(i))>>shift] = src[i]
	}
}

// stage applies one butterfly stage in place. Groups start every 2*span
// indices and never overlap, so they can run on separate goroutines
// without coordination.
func (e *Engine) stage(dst []field.Element, span int, stageRoot field.Element) {
	n := len(dst)
	step := 2 * span
	groups := n / step

	if n < e.opts.ParallelThreshold || groups < 2 {
		stageRange(dst, span, stageRoot, 0, groups)
		return
	}

	extra := e.tryAcquireWorkers(groups - 1)
	if extra == 0 {
		stageRange(dst, span, stageRoot, 0, groups)
		return
	}
	defer e.workers.Release(int64(extra))

	chunks := extra + 1
	per := (groups + chunks - 1) / chunks
	var wg sync.WaitGroup
	for lo := per; lo < groups; lo += per {
		hi := lo + per
		if hi > groups {
			hi = groups
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			stageRange(dst, span, stageRoot, lo, hi)
		}(lo, hi)
	}
	stageRange(dst, span, stageRoot, 0, per)
	wg.Wait()
}

// stageRange runs the butterflies for groups [first, last) of one stage.
func stageRange(dst []field.Element, span int, stageRoot field.Element, first, last int) {
	step := 2 * span
	for g := first; g < last; g++ {
		start := g * step
		twiddle := field.One
		for i := start; i < start+span; i++ {
			lo := dst[i]
			hi := field.Mul(dst[i+span], twiddle)
			dst[i] = field.Add(lo, hi)
			dst[i+span] = field.Sub(lo, hi)
			twiddle = field.Mul(twiddle, stageRoot)
		}
	}
}
