package field

import (
	"math/big"
	"testing"
)

func TestAddSubKnownValues(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		a, b uint64
		sum  uint64
		diff uint64
	}{
		{name: "small", a: 3, b: 5, sum: 8, diff: Modulus - 2},
		{name: "zero identity", a: 42, b: 0, sum: 42, diff: 42},
		{name: "wrap at modulus", a: Modulus - 1, b: 1, sum: 0, diff: Modulus - 2},
		{name: "both near modulus", a: Modulus - 1, b: Modulus - 1, sum: Modulus - 2, diff: 0},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Add(Element(tc.a), Element(tc.b)); got.Uint64() != tc.sum {
				t.Errorf("Add(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.sum)
			}
			if got := Sub(Element(tc.a), Element(tc.b)); got.Uint64() != tc.diff {
				t.Errorf("Sub(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.diff)
			}
		})
	}
}

func TestMulKnownValues(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		a, b uint64
		want uint64
	}{
		{name: "small", a: 6, b: 7, want: 42},
		{name: "one identity", a: Modulus - 3, b: 1, want: Modulus - 3},
		{name: "zero annihilates", a: Modulus - 1, b: 0, want: 0},
		// (P-1)^2 = (-1)^2 = 1 mod P
		{name: "minus one squared", a: Modulus - 1, b: Modulus - 1, want: 1},
		// 2^32 * 2^32 = 2^64 = 2^32 - 1 mod P
		{name: "high limb fold", a: 1 << 32, b: 1 << 32, want: (1 << 32) - 1},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Mul(Element(tc.a), Element(tc.b)); got.Uint64() != tc.want {
				t.Errorf("Mul(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

// TestMulMatchesBigInt cross-checks the folded 128-bit reduction against
// math/big over values chosen to stress every carry and borrow path.
func TestMulMatchesBigInt(t *testing.T) {
	t.Parallel()

	values := []uint64{
		0, 1, 2, epsilon, epsilon + 1, 1 << 32, 1 << 63,
		Modulus - 1, Modulus - 2, Modulus - epsilon,
		0x123456789ABCDEF0, 0xFEDCBA9876543210 % Modulus,
	}

	mod := new(big.Int).SetUint64(Modulus)
	for _, a := range values {
		for _, b := range values {
			got := Mul(New(a), New(b))

			want := new(big.Int).SetUint64(New(a).Uint64())
			want.Mul(want, new(big.Int).SetUint64(New(b).Uint64()))
			want.Mod(want, mod)

			if got.Uint64() != want.Uint64() {
				t.Fatalf("Mul(%d, %d) = %d, want %s", a, b, got, want)
			}
		}
	}
}

func TestNeg(t *testing.T) {
	t.Parallel()

	for _, v := range []uint64{0, 1, 2, Modulus - 1, 1 << 40} {
		e := New(v)
		if got := Add(e, Neg(e)); got != Zero {
			t.Errorf("e + Neg(e) = %d for e = %d, want 0", got, v)
		}
	}
}

func TestInv(t *testing.T) {
	t.Parallel()

	for _, v := range []uint64{1, 2, 3, epsilon, Modulus - 1, 0xDEADBEEF} {
		inv, err := Inv(Element(v))
		if err != nil {
			t.Fatalf("Inv(%d) returned error: %v", v, err)
		}
		if got := Mul(Element(v), inv); got != One {
			t.Errorf("v * Inv(v) = %d for v = %d, want 1", got, v)
		}
	}

	if _, err := Inv(Zero); err != ErrZeroInverse {
		t.Errorf("Inv(0) error = %v, want ErrZeroInverse", err)
	}
}

func TestPow(t *testing.T) {
	t.Parallel()

	if got := Pow(New(2), 10); got.Uint64() != 1024 {
		t.Errorf("2^10 = %d, want 1024", got)
	}
	if got := Pow(New(12345), 0); got != One {
		t.Errorf("x^0 = %d, want 1", got)
	}
	// Fermat: g^(P-1) = 1.
	if got := Pow(New(Generator), Modulus-1); got != One {
		t.Errorf("g^(P-1) = %d, want 1", got)
	}
}

func TestOrderedRootPrimitivity(t *testing.T) {
	t.Parallel()

	for k := 0; k <= 12; k++ {
		order := uint64(1) << k
		root, err := OrderedRoot(order)
		if err != nil {
			t.Fatalf("OrderedRoot(%d) returned error: %v", order, err)
		}
		if got := Pow(root, order); got != One {
			t.Errorf("root^%d = %d, want 1", order, got)
		}
		if order > 1 {
			if got := Pow(root, order/2); got == One {
				t.Errorf("root of order %d is not primitive: root^%d = 1", order, order/2)
			}
		}
	}
}

func TestOrderedRootInvalidOrders(t *testing.T) {
	t.Parallel()

	invalid := []uint64{0, 3, 6, 100, 1 << 33, 1 << 40}
	for _, order := range invalid {
		if _, err := OrderedRoot(order); err == nil {
			t.Errorf("OrderedRoot(%d) succeeded, want error", order)
		}
	}
}
