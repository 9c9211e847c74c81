package domain

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/nholt/zkminer/internal/field"
	"github.com/nholt/zkminer/internal/poly"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return NewCache(nil, poly.New(nil, poly.Options{}))
}

func randomPoly(rng *rand.Rand, n int) []field.Element {
	p := make([]field.Element, n)
	for i := range p {
		p[i] = field.New(rng.Uint64())
	}
	return p
}

func TestPrecomputedLadder(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)

	for size := uint64(32); size <= 4096; size <<= 1 {
		data, ok := c.Lookup(size, field.One)
		if !ok {
			t.Fatalf("domain (%d, 1) not precomputed", size)
		}
		if uint64(len(data.Powers)) != size {
			t.Errorf("domain (%d, 1) has %d powers", size, len(data.Powers))
		}
		// Offset one means every power is one.
		for i, p := range data.Powers {
			if p != field.One {
				t.Fatalf("domain (%d, 1) power %d = %d, want 1", size, i, p)
			}
		}
		if got := field.Pow(data.Root, size); got != field.One {
			t.Errorf("root^%d = %d, want 1", size, got)
		}
		if got := field.Mul(data.Root, data.InvRoot); got != field.One {
			t.Errorf("root * invRoot = %d for size %d, want 1", got, size)
		}
	}

	if got := c.Stats().Domains; got != 8 {
		t.Errorf("precomputed domain count = %d, want 8", got)
	}
}

func TestLookupCounters(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)

	if _, ok := c.Lookup(64, field.One); !ok {
		t.Fatal("expected hit on precomputed domain")
	}
	if s := c.Stats(); s.Hits != 1 || s.Misses != 0 {
		t.Errorf("after hit: hits=%d misses=%d, want 1/0", s.Hits, s.Misses)
	}

	if _, ok := c.Lookup(64, field.New(2)); ok {
		t.Fatal("expected miss on uncached offset")
	}
	if s := c.Stats(); s.Hits != 1 || s.Misses != 1 {
		t.Errorf("after miss: hits=%d misses=%d, want 1/1", s.Hits, s.Misses)
	}

	if s := c.Stats(); s.HitRate() != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", s.HitRate())
	}
}

func TestGetOrComputeStablePointer(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	offset := field.New(7)

	first, err := c.GetOrCompute(128, offset)
	if err != nil {
		t.Fatalf("GetOrCompute returned error: %v", err)
	}
	second, err := c.GetOrCompute(128, offset)
	if err != nil {
		t.Fatalf("GetOrCompute returned error: %v", err)
	}
	if first != second {
		t.Error("GetOrCompute returned different pointers for the same key")
	}

	s := c.Stats()
	if s.Misses != 1 || s.Hits != 1 {
		t.Errorf("hits=%d misses=%d, want 1/1", s.Hits, s.Misses)
	}
}

func TestPrecomputeRejectsBadDomains(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)

	if err := c.Precompute(64, field.Zero); !errors.Is(err, ErrZeroOffset) {
		t.Errorf("Precompute with zero offset error = %v, want ErrZeroOffset", err)
	}
	if err := c.Precompute(100, field.One); !errors.Is(err, field.ErrNoSubgroup) {
		t.Errorf("Precompute with non power of two size error = %v, want ErrNoSubgroup", err)
	}
}

func TestShiftCachedMatchesFallback(t *testing.T) {
	t.Parallel()

	warm := newTestCache(t)
	cold := newTestCache(t)
	offset := field.New(3)
	if err := warm.Precompute(64, offset); err != nil {
		t.Fatalf("Precompute returned error: %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	p := randomPoly(rng, 64)

	cached := warm.Shift(p, offset)
	direct := cold.Shift(p, offset)
	for i := range cached {
		if cached[i] != direct[i] {
			t.Fatalf("index %d: cached %d vs fallback %d", i, cached[i], direct[i])
		}
	}

	// Spot check against the definition.
	want := field.Mul(p[2], field.Mul(offset, offset))
	if cached[2] != want {
		t.Errorf("shift[2] = %d, want %d", cached[2], want)
	}

	if got := warm.Stats().ShiftCalls; got != 1 {
		t.Errorf("warm shift calls = %d, want 1", got)
	}
}

func TestIntercosateRoundTrip(t *testing.T) {
	t.Parallel()

	// Evaluating shifted coefficients over H equals evaluating the
	// original polynomial over offset*H, so Transform(Shift(p)) followed
	// by Intercosate must return p.
	engine := poly.New(nil, poly.Options{})
	c := NewCache(nil, engine)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(8))

	for _, offset := range []field.Element{field.One, field.New(3), field.New(12345)} {
		const order = 64
		coeffs := randomPoly(rng, order)

		evals, err := engine.Transform(ctx, c.Shift(coeffs, offset))
		if err != nil {
			t.Fatalf("Transform returned error: %v", err)
		}

		got, err := c.Intercosate(ctx, offset, order, evals)
		if err != nil {
			t.Fatalf("Intercosate returned error: %v", err)
		}
		for i := range coeffs {
			if got[i] != coeffs[i] {
				t.Fatalf("offset %d index %d: got %d, want %d", offset, i, got[i], coeffs[i])
			}
		}
	}
}

func TestIntercosateCachedMatchesFallback(t *testing.T) {
	t.Parallel()

	engine := poly.New(nil, poly.Options{})
	warm := NewCache(nil, engine)
	cold := NewCache(nil, engine)
	offset := field.New(9)
	const order = 128
	if err := warm.Precompute(order, offset); err != nil {
		t.Fatalf("Precompute returned error: %v", err)
	}

	rng := rand.New(rand.NewSource(9))
	values := randomPoly(rng, order)
	ctx := context.Background()

	cached, err := warm.Intercosate(ctx, offset, order, values)
	if err != nil {
		t.Fatalf("cached Intercosate returned error: %v", err)
	}
	direct, err := cold.Intercosate(ctx, offset, order, values)
	if err != nil {
		t.Fatalf("fallback Intercosate returned error: %v", err)
	}
	for i := range cached {
		if cached[i] != direct[i] {
			t.Fatalf("index %d: cached %d vs fallback %d", i, cached[i], direct[i])
		}
	}
}

func TestIntercosateConsumesCachedRoot(t *testing.T) {
	t.Parallel()

	engine := poly.New(nil, poly.Options{})
	c := NewCache(nil, engine)
	offset := field.New(5)
	const order = 64
	if err := c.Precompute(order, offset); err != nil {
		t.Fatalf("Precompute returned error: %v", err)
	}

	rng := rand.New(rand.NewSource(12))
	values := randomPoly(rng, order)
	ctx := context.Background()

	want, err := c.Intercosate(ctx, offset, order, values)
	if err != nil {
		t.Fatalf("Intercosate returned error: %v", err)
	}

	// Plant a wrong inverse root in the entry. The hit path must feed it
	// to the transform, so the output has to change.
	c.mu.Lock()
	data := c.domains[Key{Size: order, Offset: offset}]
	saved := data.InvRoot
	data.InvRoot = field.One
	c.mu.Unlock()

	planted, err := c.Intercosate(ctx, offset, order, values)
	if err != nil {
		t.Fatalf("Intercosate returned error: %v", err)
	}
	data.InvRoot = saved

	differs := false
	for i := range want {
		if planted[i] != want[i] {
			differs = true
			break
		}
	}
	if !differs {
		t.Error("planted inverse root did not reach the inverse transform")
	}
}

func TestIntercosateValidation(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()

	testCases := []struct {
		name   string
		offset field.Element
		order  uint64
		values int
		want   error
	}{
		{name: "order not power of two", offset: field.One, order: 3, values: 3, want: ErrOrderNotPow2},
		{name: "order zero", offset: field.One, order: 0, values: 0, want: ErrOrderNotPow2},
		{name: "values length mismatch", offset: field.One, order: 8, values: 7, want: ErrValuesLength},
		{name: "zero offset", offset: field.Zero, order: 8, values: 8, want: ErrZeroOffset},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := c.Intercosate(ctx, tc.offset, tc.order, make([]field.Element, tc.values))
			if !errors.Is(err, tc.want) {
				t.Errorf("Intercosate error = %v, want %v", err, tc.want)
			}
		})
	}
}
