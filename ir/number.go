package ir

import "math/big"

// Number is an arbitrary-precision non-negative integer used for circuit
// constants, primes, and moduli. TypeSpec.field(prime) takes a prime
// chosen at circuit-declaration time, which rules out fixed-curve field
// arithmetic libraries (SPEC_FULL.md section 11) — Number is a thin
// wrapper over math/big.Int, the one place this module reaches for the
// standard library over a pack dependency, and only because no pack
// library supports an arbitrary runtime modulus.
type Number struct {
	v *big.Int
}

// NewNumber builds a Number from a small non-negative integer.
func NewNumber(n int64) Number {
	return Number{v: big.NewInt(n)}
}

// NumberFromString parses a base-10 non-negative integer.
func NumberFromString(s string) (Number, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Number{}, false
	}
	return Number{v: v}, true
}

// NumberFromBig wraps an existing big.Int, for backend implementations
// that compute with math/big directly (e.g. modular inverse via
// big.Int.Exp) and need to hand the result back as a Number. The big.Int
// is copied so the caller may keep mutating its own.
func NumberFromBig(v *big.Int) Number {
	return Number{v: new(big.Int).Set(v)}
}

// Big exposes the underlying big.Int for callers (e.g. backend
// implementations) that need full math/big access.
func (n Number) Big() *big.Int {
	if n.v == nil {
		return big.NewInt(0)
	}
	return n.v
}

// Lsh returns base << bits as a new Number.
func (n Number) Lsh(base Number, bits uint) Number {
	return Number{v: new(big.Int).Lsh(base.Big(), bits)}
}

// Cmp compares two Numbers as big.Int.Cmp does.
func (n Number) Cmp(o Number) int { return n.Big().Cmp(o.Big()) }

// LessThan reports whether n < o.
func (n Number) LessThan(o Number) bool { return n.Cmp(o) < 0 }

// IsZero reports whether n == 0.
func (n Number) IsZero() bool { return n.Big().Sign() == 0 }

func (n Number) String() string { return n.Big().String() }

// MarshalJSON/UnmarshalJSON delegate to big.Int's own JSON encoding (a
// bare decimal literal, not a quoted string), so Number round-trips
// through protocol's wire events without losing precision the way a
// float64 would for primes larger than 2^53.
func (n Number) MarshalJSON() ([]byte, error) { return n.Big().MarshalJSON() }

func (n *Number) UnmarshalJSON(data []byte) error {
	v := new(big.Int)
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	n.v = v
	return nil
}

// Mod returns n mod m, always in [0, m).
func (n Number) Mod(m Number) Number {
	r := new(big.Int).Mod(n.Big(), m.Big())
	return Number{v: r}
}

// Add, Sub, Mul perform modular-free arithmetic; callers reduce with Mod.
func (n Number) Add(o Number) Number { return Number{v: new(big.Int).Add(n.Big(), o.Big())} }
func (n Number) Sub(o Number) Number { return Number{v: new(big.Int).Sub(n.Big(), o.Big())} }
func (n Number) Mul(o Number) Number { return Number{v: new(big.Int).Mul(n.Big(), o.Big())} }
