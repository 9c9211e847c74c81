package poly

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nholt/zkminer/internal/field"
	"github.com/nholt/zkminer/internal/logging"
)

// Mul computes the product of the polynomials with coefficient vectors a
// and b (index i holds the coefficient of x^i). The result has length
// len(a)+len(b)-1, except that a zero-length or all-absent operand yields
// the zero polynomial of length one.
//
// Small products use schoolbook multiplication; above NaiveMulThreshold
// the engine pads both operands to the next power of two, runs the two
// forward transforms concurrently, multiplies pointwise and inverts.
// Both paths produce identical coefficients.
func (e *Engine) Mul(ctx context.Context, a, b []field.Element) (res []field.Element, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in poly.Mul: %v\nStack: %s", r, debug.Stack())
		}
	}()

	if len(a) == 0 || len(b) == 0 {
		return []field.Element{field.Zero}, nil
	}

	resLen := len(a) + len(b) - 1
	if resLen <= e.opts.NaiveMulThreshold {
		return naiveMul(a, b), nil
	}

	size := nextPow2(resLen)
	e.log.Debug("transform multiply",
		logging.Int("result_len", resLen),
		logging.Int("transform_size", size),
	)

	fa := acquireScratch(size)
	defer releaseScratch(fa)
	fb := acquireScratch(size)
	defer releaseScratch(fb)
	copy(fa, a)
	copy(fb, b)

	root, err := transformRoot(size)
	if err != nil {
		return nil, err
	}

	var ea, eb []field.Element
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var terr error
		ea, terr = e.transform(gctx, fa, root)
		return terr
	})
	g.Go(func() error {
		var terr error
		eb, terr = e.transform(gctx, fb, root)
		return terr
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prod, err := e.Hadamard(ea, eb)
	if err != nil {
		return nil, err
	}

	coeffs, err := e.InverseTransform(ctx, prod)
	if err != nil {
		return nil, err
	}
	return coeffs[:resLen], nil
}

// Hadamard returns the pointwise product of a and b. The operands must
// have equal length; otherwise ErrLengthMismatch is returned. Vectors at
// or above HadamardThreshold are chunked across the worker budget.
func (e *Engine) Hadamard(a, b []field.Element) ([]field.Element, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}
	out := make([]field.Element, len(a))
	if len(a) < e.opts.HadamardThreshold {
		hadamardRange(out, a, b, 0, len(a))
		return out, nil
	}

	extra := e.tryAcquireWorkers(e.opts.MaxWorkers - 1)
	if extra == 0 {
		hadamardRange(out, a, b, 0, len(a))
		return out, nil
	}
	defer e.workers.Release(int64(extra))

	chunks := extra + 1
	per := (len(a) + chunks - 1) / chunks
	var wg sync.WaitGroup
	for lo := per; lo < len(a); lo += per {
		hi := lo + per
		if hi > len(a) {
			hi = len(a)
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			hadamardRange(out, a, b, lo, hi)
		}(lo, hi)
	}
	hadamardRange(out, a, b, 0, per)
	wg.Wait()
	return out, nil
}

func hadamardRange(out, a, b []field.Element, lo, hi int) {
	for i := lo; i < hi; i++ {
		out[i] = field.Mul(a[i], b[i])
	}
}

// naiveMul is the schoolbook O(n*m) product. It doubles as the reference
// implementation the transform path is tested against.
func naiveMul(a, b []field.Element) []field.Element {
	out := make([]field.Element, len(a)+len(b)-1)
	for i, ai := range a {
		if ai.IsZero() {
			continue
		}
		for j, bj := range b {
			out[i+j] = field.Add(out[i+j], field.Mul(ai, bj))
		}
	}
	return out
}
