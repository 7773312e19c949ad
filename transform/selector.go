package transform

import (
	"math/big"

	"github.com/sieveir/sievekit/backend"
	"github.com/sieveir/sievekit/ir"
)

// emitSelector builds the gate sequence computing the indicator bit
// "cond == match" in the condition's own type, via Fermat's little
// theorem: for a prime p, x^(p-1) is 1 when x != 0 and 0 when x == 0 (any
// nonzero element of GF(p) generates the multiplicative group, whose
// order is p-1), so 1 - (cond-match)^(p-1) is 1 exactly when cond ==
// match. This covers the boolean field (p == 2) as a special case
// without a separate code path: there (cond-match)^1 is already the XOR
// difference, so the same formula collapses to 1 - (cond-match).
//
// The exponentiation itself becomes a wire-level square-and-multiply
// chain (O(log p) Mul gates) rather than a host-computed value, since
// cond is a witness-dependent wire, not known at transform time — only
// the exponent p-1 is a transform-time constant.
func (tr *Transformer) emitSelector(condLoc ir.TypeIndex, field *backend.Field, cond ir.Wire, match ir.Number) (ir.Wire, []ir.Gate) {
	var gates []ir.Gate

	diff := tr.allocEphemeral(1).First
	gates = append(gates, ir.Gate{Kind: ir.AddC, Type: condLoc, Left: cond, Const: ir.NewNumber(0).Sub(match), Out: diff})

	pow, powGates := tr.emitPow(condLoc, diff, new(big.Int).Sub(field.Type().Modulus().Big(), big.NewInt(1)))
	gates = append(gates, powGates...)

	negPow := tr.allocEphemeral(1).First
	gates = append(gates, ir.Gate{Kind: ir.MulC, Type: condLoc, Left: pow, Const: ir.NewNumber(-1), Out: negPow})

	selector := tr.allocEphemeral(1).First
	gates = append(gates, ir.Gate{Kind: ir.AddC, Type: condLoc, Left: negPow, Const: ir.NewNumber(1), Out: selector})

	return selector, gates
}

// emitPow returns the wire holding base^exponent, built by left-to-right
// square-and-multiply over exponent's bits. exponent is always a
// transform-time constant (p-1 for some declared prime p); base is a
// runtime wire.
func (tr *Transformer) emitPow(typ ir.TypeIndex, base ir.Wire, exponent *big.Int) (ir.Wire, []ir.Gate) {
	var gates []ir.Gate
	bitLen := exponent.BitLen()
	if bitLen == 0 {
		one := tr.allocEphemeral(1).First
		gates = append(gates, ir.Gate{Kind: ir.Assign, Type: typ, Out: one, Const: ir.NewNumber(1)})
		return one, gates
	}

	acc := base // the top bit is always 1, so the accumulator starts at base^1
	for i := bitLen - 2; i >= 0; i-- {
		sq := tr.allocEphemeral(1).First
		gates = append(gates, ir.Gate{Kind: ir.Mul, Type: typ, Left: acc, Right: acc, Out: sq})
		acc = sq
		if exponent.Bit(i) == 1 {
			mul := tr.allocEphemeral(1).First
			gates = append(gates, ir.Gate{Kind: ir.Mul, Type: typ, Left: acc, Right: base, Out: mul})
			acc = mul
		}
	}
	return acc, gates
}

// crossTypeSelector materializes a boolean selector, already computed in
// srcType, into dstType via a Convert gate — used when a case body's
// output or an assertZero inside it lives in a different declared type
// than the switch condition. The circuit must have a registered (1->1)
// converter between the two types, checked at interpretation time, not
// here (transform.LowerSwitches only emits the gate; registry.Converter
// lookup happens in the interpreter, same as any other Convert gate).
func crossTypeSelector(tr *Transformer, srcType ir.TypeIndex, src ir.Wire, dstType ir.TypeIndex) (ir.Wire, ir.Gate) {
	dst := tr.allocEphemeral(1).First
	g := ir.Gate{
		Kind: ir.Convert, Type: dstType, FromType: srcType,
		InLength: 1, OutLength: 1,
		InRanges: []ir.Range{ir.Single(src)}, OutRange: ir.Single(dst),
	}
	return dst, g
}
