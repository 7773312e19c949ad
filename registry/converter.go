package registry

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/sieveir/sievekit/backend"
	"github.com/sieveir/sievekit/diag"
	"github.com/sieveir/sievekit/ir"
)

// convKey is the 4-tuple a Convert gate is looked up by: source and
// destination type, and their declared lengths. The modulus-wrapping
// flag is deliberately excluded — it selects behavior within a single
// registered converter (backend.Converter.Convert's wrap parameter), not
// a different converter (SPEC_FULL.md section 13's Open Question
// resolution).
type convKey struct {
	from, to     ir.TypeIndex
	inL, outL    uint64
}

// ConverterRegistry maps a declared conversion shape to its
// backend.Converter, and tracks, per type index, which other types it
// has a registered conversion path to/from — a bitset.BitSet per type
// keeps that adjacency query (used by the interpreter to report "no
// registered converter" diagnostics that name every type a given type
// *could* convert to) O(1) rather than a full registry scan.
type ConverterRegistry struct {
	byKey map[convKey]backend.Converter
	// reachableFrom[t] has bit i set if some converter takes type t to
	// type i (regardless of length).
	reachableFrom map[ir.TypeIndex]*bitset.BitSet
}

// NewConverterRegistry returns an empty registry.
func NewConverterRegistry() *ConverterRegistry {
	return &ConverterRegistry{
		byKey:         make(map[convKey]backend.Converter),
		reachableFrom: make(map[ir.TypeIndex]*bitset.BitSet),
	}
}

// Register adds c under the shape declared by spec, validating that c's
// own lengths match spec's (backend.ValidateShape) before accepting it.
func (r *ConverterRegistry) Register(fromIdx, toIdx ir.TypeIndex, spec ir.ConversionSpec, c backend.Converter) error {
	if !backend.ValidateShape(c, spec) {
		return diag.Err(diag.StructuralError, diag.GateRef{}, "converter for type %d -> %d does not match its declared shape", fromIdx, toIdx)
	}
	key := convKey{from: fromIdx, to: toIdx, inL: spec.InLength, outL: spec.OutLength}
	if _, exists := r.byKey[key]; exists {
		return diag.Err(diag.StructuralError, diag.GateRef{}, "duplicate converter registered for type %d -> %d, lengths %d -> %d", fromIdx, toIdx, spec.InLength, spec.OutLength)
	}
	r.byKey[key] = c

	bs, ok := r.reachableFrom[fromIdx]
	if !ok {
		bs = bitset.New(256)
		r.reachableFrom[fromIdx] = bs
	}
	bs.Set(uint(toIdx))
	return nil
}

// Lookup returns the converter registered for exactly this shape.
func (r *ConverterRegistry) Lookup(fromIdx, toIdx ir.TypeIndex, inLength, outLength uint64) (backend.Converter, bool) {
	c, ok := r.byKey[convKey{from: fromIdx, to: toIdx, inL: inLength, outL: outLength}]
	return c, ok
}

// ReachableTargets lists the type indices some registered converter can
// take fromIdx to, for diagnostics on a failed Lookup.
func (r *ConverterRegistry) ReachableTargets(fromIdx ir.TypeIndex) []ir.TypeIndex {
	bs, ok := r.reachableFrom[fromIdx]
	if !ok {
		return nil
	}
	var out []ir.TypeIndex
	for i, e := bs.NextSet(0); e; i, e = bs.NextSet(i + 1) {
		out = append(out, ir.TypeIndex(i))
	}
	return out
}

func (k convKey) String() string {
	return fmt.Sprintf("(%d,%d)->(%d,%d)", k.from, k.inL, k.to, k.outL)
}
