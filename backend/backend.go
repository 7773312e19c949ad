// Package backend defines the per-type gate semantics (TypeBackend) and
// cross-type conversion (Converter) the interpreter delegates arithmetic
// to, plus a math/big-based prime-field and boolean-ring implementation
// of each (spec.md section 3's type system, section 4.1's gate set).
//
// SPEC_FULL.md section 11 explains why these implementations sit on
// math/big rather than a fixed-curve field library from the example
// pack: a SIEVE IR circuit declares its prime at header-parse time, so
// the arithmetic backend must accept an arbitrary runtime modulus, which
// rules out gnark-crypto's compile-time curve selection.
package backend

import (
	"github.com/sieveir/sievekit/ir"
)

// Value is the opaque per-wire payload a TypeBackend produces and
// consumes. wire.Scope[Value] holds one of these per live wire.
type Value struct {
	N ir.Number
}

// TypeBackend implements the arithmetic and I/O gates for one declared
// type (spec.md section 4.1). Every method takes already-validated
// operand Values and returns the gate's result; range checking against
// the type's modulus happens once, in Reduce, not on every call.
type TypeBackend interface {
	// Type reports the TypeSpec this backend was built for.
	Type() ir.TypeSpec

	Add(a, b Value) Value
	Mul(a, b Value) Value
	AddC(a Value, c ir.Number) Value
	MulC(a Value, c ir.Number) Value

	// Reduce normalizes a raw constant or stream value into the type's
	// canonical range (spec.md section 3: field elements in [0,prime),
	// ring elements in [0,2^bitWidth)).
	Reduce(n ir.Number) Value

	// IsZero reports whether v is the additive identity, used by
	// assertZero.
	IsZero(v Value) bool

	// IsBoolean reports whether this backend's modulus is 2. The switch
	// lowering in transform does not call it: its Fermat-little-theorem
	// selector covers GF(2) with the same gate sequence as any other
	// prime.
	IsBoolean() bool

	// Check reports end-of-evaluation validity (spec.md section 6's
	// backend capability set, and section 2's data-flow diagram, which
	// names "TypeBackend -> check()" as the pipeline's final step). A
	// prime-field or ring backend carries no per-evaluation accumulator
	// to validate — every gate's result is already reduced into range by
	// Reduce — so Check only needs to confirm the backend was built over
	// a well-formed modulus; a ZK backend with accumulated constraint
	// state would use this hook to report whether that state is
	// satisfied.
	Check() bool
}

// Converter implements a single registered (fromType,inLen)->(toType,
// outLen) conversion (spec.md section 4.1's Convert gate). Converters
// are registered in a registry.ConverterRegistry keyed by the 4-tuple of
// types and lengths; the modulus-wrapping flag on the Convert gate
// itself selects between Convert's two defined semantics at call time,
// not at registration time (SPEC_FULL.md section 13's Open Question
// resolution).
type Converter interface {
	From() ir.TypeSpec
	To() ir.TypeSpec
	InLength() uint64
	OutLength() uint64

	// Convert maps in (InLength values of From()) to OutLength values of
	// To(). wrap selects modulus-wrapping vs. exact (out-of-range is an
	// error) semantics.
	Convert(in []Value, wrap bool) ([]Value, error)
}

// ValidateShape reports whether a Converter's declared lengths match the
// shapes the circuit header's ConversionSpec names, catching a
// registration mismatch before any gate tries to use it (SPEC_FULL.md
// section 12, supplemented from wtk's Converter validation pass).
func ValidateShape(c Converter, spec ir.ConversionSpec) bool {
	return c.InLength() == spec.InLength && c.OutLength() == spec.OutLength
}
