package backend

import (
	"errors"
	"math/big"

	"github.com/sieveir/sievekit/ir"
)

var errZeroInverse = errors.New("backend: no multiplicative inverse of zero")

// Field implements TypeBackend for a prime field GF(p), and RingMod
// below implements it for a power-of-two ring. Both share the same
// reduce-and-wrap shape; they differ only in their modulus and in how
// IsBoolean recognizes the boolean case (p == 2, or bit width 1).
type Field struct {
	spec    ir.TypeSpec
	modulus ir.Number
}

// NewField builds a Field backend for a FieldType TypeSpec.
func NewField(spec ir.TypeSpec) *Field {
	return &Field{spec: spec, modulus: spec.Modulus()}
}

func (f *Field) Type() ir.TypeSpec { return f.spec }

func (f *Field) Add(a, b Value) Value { return f.Reduce(a.N.Add(b.N)) }
func (f *Field) Mul(a, b Value) Value { return f.Reduce(a.N.Mul(b.N)) }
func (f *Field) AddC(a Value, c ir.Number) Value { return f.Reduce(a.N.Add(c)) }
func (f *Field) MulC(a Value, c ir.Number) Value { return f.Reduce(a.N.Mul(c)) }

func (f *Field) Reduce(n ir.Number) Value { return Value{N: n.Mod(f.modulus)} }

func (f *Field) IsZero(v Value) bool { return v.N.IsZero() }

func (f *Field) IsBoolean() bool { return f.modulus.Cmp(ir.NewNumber(2)) == 0 }

// Check implements TypeBackend.Check: a field's only well-formedness
// requirement is a modulus greater than one, checked once at
// construction time in spirit but reported here so interp.Run can
// confirm it at the end of evaluation the way spec.md section 2's data
// flow diagram describes.
func (f *Field) Check() bool { return f.modulus.Cmp(ir.NewNumber(1)) > 0 }

// Inverse returns a's multiplicative inverse mod the field's prime,
// using Fermat's little theorem (a^(p-2) mod p). Zero has no inverse
// and is an error.
func (f *Field) Inverse(a Value) (Value, error) {
	if a.N.IsZero() {
		return Value{}, errZeroInverse
	}
	exp := new(big.Int).Sub(f.modulus.Big(), big.NewInt(2))
	r := new(big.Int).Exp(a.N.Big(), exp, f.modulus.Big())
	return Value{N: ir.NumberFromBig(r)}, nil
}

// RingMod implements TypeBackend for a power-of-two ring Z/2^bitWidth.
type RingMod struct {
	spec    ir.TypeSpec
	modulus ir.Number
}

// NewRingMod builds a RingMod backend for a RingType TypeSpec.
func NewRingMod(spec ir.TypeSpec) *RingMod {
	return &RingMod{spec: spec, modulus: spec.Modulus()}
}

func (r *RingMod) Type() ir.TypeSpec { return r.spec }

func (r *RingMod) Add(a, b Value) Value { return r.Reduce(a.N.Add(b.N)) }
func (r *RingMod) Mul(a, b Value) Value { return r.Reduce(a.N.Mul(b.N)) }
func (r *RingMod) AddC(a Value, c ir.Number) Value { return r.Reduce(a.N.Add(c)) }
func (r *RingMod) MulC(a Value, c ir.Number) Value { return r.Reduce(a.N.Mul(c)) }

func (r *RingMod) Reduce(n ir.Number) Value { return Value{N: n.Mod(r.modulus)} }

func (r *RingMod) IsZero(v Value) bool { return v.N.IsZero() }

func (r *RingMod) IsBoolean() bool { return r.spec.BitWidth == 1 }

// Check implements TypeBackend.Check; see Field.Check.
func (r *RingMod) Check() bool { return r.modulus.Cmp(ir.NewNumber(1)) > 0 }
