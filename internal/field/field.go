// Package field implements scalar arithmetic in the prime field used by the
// proving protocol: the integers modulo P = 2^64 - 2^32 + 1 (the Goldilocks
// prime). The modulus is chosen so that the multiplicative group contains a
// cyclic subgroup of order 2^32, which is what makes radix-2 Number-Theoretic
// Transforms over this field possible for every power-of-two domain the
// prover uses.
//
// All operations are total over reduced inputs, side-effect-free and
// allocation-free. Every Element stored anywhere in this module is reduced
// into [0, P).
package field

import (
	"errors"
	"fmt"
	"math/bits"
)

// Modulus is the field prime P = 2^64 - 2^32 + 1.
const Modulus uint64 = 0xFFFFFFFF00000001

// epsilon = 2^64 mod P = 2^32 - 1. Used when folding carries back into the
// field: adding epsilon is the same as adding 2^64.
const epsilon uint64 = 0xFFFFFFFF

// Generator is a fixed generator of the full multiplicative group F_P^*.
// Roots of unity of every order dividing P-1 are derived from it.
const Generator = 7

// TwoAdicity is the largest k such that 2^k divides P-1. Transform domains
// larger than 2^32 do not exist in this field.
const TwoAdicity = 32

// Element is a field scalar, always reduced into [0, Modulus).
type Element uint64

// Distinguished constants.
const (
	Zero Element = 0
	One  Element = 1
)

// ErrZeroInverse is returned by Inv for the zero element, which has no
// multiplicative inverse.
var ErrZeroInverse = errors.New("field: zero has no inverse")

// ErrNoSubgroup is returned by OrderedRoot when the requested order does not
// identify a cyclic subgroup of F_P^*: the order must be a power of two no
// larger than 2^32.
var ErrNoSubgroup = errors.New("field: no subgroup of requested order")

// New reduces an arbitrary uint64 into the field.
func New(v uint64) Element {
	if v >= Modulus {
		v -= Modulus
	}
	return Element(v)
}

// Uint64 returns the canonical representative of e in [0, Modulus).
func (e Element) Uint64() uint64 { return uint64(e) }

// IsZero reports whether e is the additive identity.
func (e Element) IsZero() bool { return e == 0 }

// String implements fmt.Stringer.
func (e Element) String() string { return fmt.Sprintf("%d", uint64(e)) }

// Add returns a + b mod P.
func Add(a, b Element) Element {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	// A carry means the true sum is sum + 2^64; fold 2^64 back in as epsilon.
	// Both operands are < P, so at most one final subtraction is needed.
	sum += carry * epsilon
	if sum >= Modulus {
		sum -= Modulus
	}
	return Element(sum)
}

// Sub returns a - b mod P.
func Sub(a, b Element) Element {
	diff, borrow := bits.Sub64(uint64(a), uint64(b), 0)
	// A borrow means the machine result is a - b + 2^64; correct by epsilon.
	diff -= borrow * epsilon
	return Element(diff)
}

// Neg returns -a mod P.
func Neg(a Element) Element {
	if a == 0 {
		return 0
	}
	return Element(Modulus - uint64(a))
}

// Mul returns a * b mod P using the full 128-bit product and the Goldilocks
// fold: 2^64 = 2^32 - 1 and 2^96 = -1 (mod P), so the high limb reduces with
// two shifts and no division.
func Mul(a, b Element) Element {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	hiHi := hi >> 32
	hiLo := hi & epsilon

	t, borrow := bits.Sub64(lo, hiHi, 0)
	t -= borrow * epsilon

	res, carry := bits.Add64(t, hiLo*epsilon, 0)
	res += carry * epsilon
	if res >= Modulus {
		res -= Modulus
	}
	return Element(res)
}

// Pow returns base^exp mod P by binary exponentiation.
func Pow(base Element, exp uint64) Element {
	result := One
	for exp > 0 {
		if exp&1 == 1 {
			result = Mul(result, base)
		}
		base = Mul(base, base)
		exp >>= 1
	}
	return result
}

// Inv returns the multiplicative inverse of a, computed as a^(P-2) per
// Fermat. Inverting zero is an input-contract error.
func Inv(a Element) (Element, error) {
	if a == 0 {
		return 0, ErrZeroInverse
	}
	return Pow(a, Modulus-2), nil
}

// OrderedRoot returns a generator of the unique cyclic subgroup of F_P^* of
// the given order. In this protocol order is always a power of two (the NTT
// domain size), so any order that is zero, not a power of two, or larger
// than 2^32 yields ErrNoSubgroup.
//
// The returned element r satisfies r^order = 1 and r^(order/2) != 1.
func OrderedRoot(order uint64) (Element, error) {
	if order == 0 || order&(order-1) != 0 {
		return 0, fmt.Errorf("%w: order %d is not a power of two", ErrNoSubgroup, order)
	}
	if bits.TrailingZeros64(order) > TwoAdicity {
		return 0, fmt.Errorf("%w: order %d exceeds the 2-adicity of the field", ErrNoSubgroup, order)
	}
	// order divides P-1, so the exponent is exact.
	return Pow(Generator, (Modulus-1)/order), nil
}
