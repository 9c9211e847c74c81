// Package domain memoizes the evaluation-domain data used by coset
// polynomial operations: for each (size, offset) pair it holds the
// subgroup root, the ladder of offset powers, and the inverse ladder.
// Proving workloads hit the same handful of domains over and over, so a
// warm cache turns the per-call cost of coset shift and interpolation
// from a power ladder into a table lookup.
//
// Entries are written once and read many times. Cache misses fall back
// to direct computation and produce exactly the same values as the
// cached path.
package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nholt/zkminer/internal/field"
	"github.com/nholt/zkminer/internal/logging"
	"github.com/nholt/zkminer/internal/poly"
)

// Eager precompute ladder. STARK traces in the prover land on these
// sizes, always with offset one.
const (
	precomputeMinLog = 5  // 32
	precomputeMaxLog = 12 // 4096
)

var (
	// ErrZeroOffset is returned for domains with offset zero, which has
	// no inverse and therefore no coset.
	ErrZeroOffset = errors.New("domain: offset must be nonzero")

	// ErrOrderNotPow2 is returned by Intercosate when the requested
	// order is not a power of two.
	ErrOrderNotPow2 = errors.New("domain: order must be a power of two")

	// ErrValuesLength is returned by Intercosate when the value vector
	// length does not match the order.
	ErrValuesLength = errors.New("domain: values length must equal order")
)

// Key identifies a cached domain.
type Key struct {
	Size   uint64
	Offset field.Element
}

// Data holds the precomputed tables for one domain. All slices have
// length Size. Data is immutable after insertion and safe to share.
type Data struct {
	// Root generates the multiplicative subgroup of order Size.
	Root field.Element
	// InvRoot is the inverse of Root.
	InvRoot field.Element
	// Powers holds Offset^i for i in [0, Size).
	Powers []field.Element
	// InvPowers holds Offset^-i for i in [0, Size).
	InvPowers []field.Element
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Domains          int
	Hits             uint64
	Misses           uint64
	ShiftCalls       uint64
	IntercosateCalls uint64
}

// HitRate returns the fraction of lookups that were hits, or 0 when no
// lookups have happened.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache memoizes domain data keyed by (size, offset). It is safe for
// concurrent use.
type Cache struct {
	mu      sync.RWMutex
	domains map[Key]*Data

	hits             atomic.Uint64
	misses           atomic.Uint64
	shiftCalls       atomic.Uint64
	intercosateCalls atomic.Uint64

	engine *poly.Engine
	log    logging.Logger
}

// NewCache creates a cache bound to the given transform engine and
// eagerly precomputes the offset-one domains from 2^5 through 2^12.
// A nil logger disables logging.
func NewCache(log logging.Logger, engine *poly.Engine) *Cache {
	if log == nil {
		log = logging.Nop()
	}
	c := &Cache{
		domains: make(map[Key]*Data),
		engine:  engine,
		log:     log,
	}
	for logSize := precomputeMinLog; logSize <= precomputeMaxLog; logSize++ {
		size := uint64(1) << logSize
		if err := c.Precompute(size, field.One); err != nil {
			// The ladder stays well inside the field's two-adicity, so
			// this only fires on a programming error.
			c.log.Error("domain precompute failed", err, logging.Uint64("size", size))
			continue
		}
	}
	c.log.Info("domain cache initialized", logging.Int("domains", len(c.domains)))
	return c
}

// Precompute computes and inserts the domain for (size, offset) if it
// is not already present.
func (c *Cache) Precompute(size uint64, offset field.Element) error {
	key := Key{Size: size, Offset: offset}

	c.mu.RLock()
	_, ok := c.domains[key]
	c.mu.RUnlock()
	if ok {
		return nil
	}

	data, err := computeDomain(size, offset)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have raced us here. First insert wins so
	// that handed-out *Data pointers stay stable.
	if _, ok := c.domains[key]; !ok {
		c.domains[key] = data
	}
	return nil
}

// Lookup returns the cached domain for (size, offset) if present. Every
// call counts as a hit or a miss.
func (c *Cache) Lookup(size uint64, offset field.Element) (*Data, bool) {
	c.mu.RLock()
	data, ok := c.domains[Key{Size: size, Offset: offset}]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
		cacheLookupsTotal.WithLabelValues("hit").Inc()
	} else {
		c.misses.Add(1)
		cacheLookupsTotal.WithLabelValues("miss").Inc()
	}
	return data, ok
}

// GetOrCompute returns the cached domain for (size, offset), computing
// and inserting it on a miss.
func (c *Cache) GetOrCompute(size uint64, offset field.Element) (*Data, error) {
	if data, ok := c.Lookup(size, offset); ok {
		return data, nil
	}
	if err := c.Precompute(size, offset); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.domains[Key{Size: size, Offset: offset}], nil
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	domains := len(c.domains)
	c.mu.RUnlock()
	return Stats{
		Domains:          domains,
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		ShiftCalls:       c.shiftCalls.Load(),
		IntercosateCalls: c.intercosateCalls.Load(),
	}
}

// Shift scales coefficient i of p by offset^i, mapping an evaluation
// over the subgroup to one over the coset offset*H. A cached domain
// supplies the power ladder; on a miss the ladder is walked directly.
func (c *Cache) Shift(p []field.Element, offset field.Element) []field.Element {
	c.shiftCalls.Add(1)
	shiftCallsTotal.Inc()

	out := make([]field.Element, len(p))
	if data, ok := c.Lookup(uint64(len(p)), offset); ok {
		for i := range p {
			out[i] = field.Mul(p[i], data.Powers[i])
		}
		return out
	}

	power := field.One
	for i := range p {
		out[i] = field.Mul(p[i], power)
		power = field.Mul(power, offset)
	}
	return out
}

// Intercosate interpolates the polynomial taking the given values over
// the coset offset*H, where H is the subgroup of the given order: an
// inverse transform followed by an offset^-1 shift. The cached and
// fallback paths return identical coefficients.
func (c *Cache) Intercosate(ctx context.Context, offset field.Element, order uint64, values []field.Element) ([]field.Element, error) {
	c.intercosateCalls.Add(1)
	intercosateCallsTotal.Inc()

	if order == 0 || order&(order-1) != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrOrderNotPow2, order)
	}
	if uint64(len(values)) != order {
		return nil, fmt.Errorf("%w: %d values for order %d", ErrValuesLength, len(values), order)
	}
	if offset.IsZero() {
		return nil, ErrZeroOffset
	}

	// On a hit the cached entry supplies both the inverse twiddle root
	// and the inverse offset ladder, so nothing is re-derived.
	if data, ok := c.Lookup(order, offset); ok {
		coeffs, err := c.engine.InverseTransformWithRoot(ctx, values, data.InvRoot)
		if err != nil {
			return nil, err
		}
		for i := range coeffs {
			coeffs[i] = field.Mul(coeffs[i], data.InvPowers[i])
		}
		return coeffs, nil
	}

	coeffs, err := c.engine.InverseTransform(ctx, values)
	if err != nil {
		return nil, err
	}

	invOffset, err := field.Inv(offset)
	if err != nil {
		return nil, err
	}
	power := field.One
	for i := range coeffs {
		coeffs[i] = field.Mul(coeffs[i], power)
		power = field.Mul(power, invOffset)
	}
	return coeffs, nil
}

// computeDomain builds the tables for one domain.
func computeDomain(size uint64, offset field.Element) (*Data, error) {
	if offset.IsZero() {
		return nil, ErrZeroOffset
	}
	root, err := field.OrderedRoot(size)
	if err != nil {
		return nil, err
	}
	invRoot, err := field.Inv(root)
	if err != nil {
		return nil, err
	}
	invOffset, err := field.Inv(offset)
	if err != nil {
		return nil, err
	}

	powers := make([]field.Element, size)
	invPowers := make([]field.Element, size)
	p, ip := field.One, field.One
	for i := uint64(0); i < size; i++ {
		powers[i] = p
		invPowers[i] = ip
		p = field.Mul(p, offset)
		ip = field.Mul(ip, invOffset)
	}

	return &Data{
		Root:      root,
		InvRoot:   invRoot,
		Powers:    powers,
		InvPowers: invPowers,
	}, nil
}
