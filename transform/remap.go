package transform

import (
	"sort"

	"github.com/sieveir/sievekit/ir"
)

// writtenSet records, per type, the set of wire indices a switch case's
// (already switch-lowered) body writes. Every such wire is privatized
// into fresh ephemeral space before the case's gates are emitted
// unconditionally, so that two cases writing the "same" wire number
// (the common case: both cases assign the switch's own Outputs range)
// don't collide once flattened into one gate list.
type writtenSet map[ir.TypeIndex]map[ir.Wire]bool

func (w writtenSet) mark(t ir.TypeIndex, r ir.Range) {
	if !r.Valid() {
		return
	}
	m, ok := w[t]
	if !ok {
		m = make(map[ir.Wire]bool)
		w[t] = m
	}
	for i := r.First; ; i++ {
		m[i] = true
		if i == r.Last {
			break
		}
	}
}

// allocate assigns each marked wire a fresh ephemeral wire, preserving
// relative order within each type: wires are visited lowest-to-highest
// and handed out sequential ephemeral indices, so any contiguous
// sub-range of the original written set (e.g. a CopyMulti's OutRange)
// maps onto a contiguous ephemeral sub-range too, as long as no foreign
// written wire falls inside that sub-range — true of any well-formed
// case body, which never interleaves unrelated writes inside a
// multi-wire operation's destination range.
func (w writtenSet) allocate(tr *Transformer) map[ir.TypeIndex]map[ir.Wire]ir.Wire {
	out := make(map[ir.TypeIndex]map[ir.Wire]ir.Wire, len(w))
	for t, wires := range w {
		sorted := make([]ir.Wire, 0, len(wires))
		for wr := range wires {
			sorted = append(sorted, wr)
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		m := make(map[ir.Wire]ir.Wire, len(sorted))
		for _, wr := range sorted {
			m[wr] = tr.allocEphemeral(1).First
		}
		out[t] = m
	}
	return out
}

// collectWrites scans a gate list for every wire each gate writes.
// Gates with no write target (AssertZero, Delete) contribute nothing;
// Call and ForLoop are assumed already rejected by the caller.
func collectWrites(gates []ir.Gate) writtenSet {
	w := make(writtenSet)
	for _, g := range gates {
		switch g.Kind {
		case ir.Add, ir.Mul, ir.AddC, ir.MulC, ir.Copy, ir.Assign, ir.PublicIn, ir.PrivateIn:
			w.mark(g.Type, ir.Single(g.Out))
		case ir.CopyMulti, ir.PublicInMulti, ir.PrivateInMulti, ir.Convert, ir.New:
			w.mark(g.Type, g.OutRange)
		}
	}
	return w
}

// remapGates rewrites every wire reference in gates that appears in
// remap (keyed by the gate's own type, or FromType for a Convert's
// source range) to its ephemeral counterpart, leaving references to
// wires outside the case (read-only boundary values shared across every
// case) untouched.
func remapGates(gates []ir.Gate, remap map[ir.TypeIndex]map[ir.Wire]ir.Wire) []ir.Gate {
	out := make([]ir.Gate, len(gates))
	for i, g := range gates {
		out[i] = remapGate(g, remap)
	}
	return out
}

func remapWire(t ir.TypeIndex, w ir.Wire, remap map[ir.TypeIndex]map[ir.Wire]ir.Wire) ir.Wire {
	if m, ok := remap[t]; ok {
		if nw, ok := m[w]; ok {
			return nw
		}
	}
	return w
}

// remapRange maps r by remapping its First wire, then assumes the
// remainder follows contiguously (guaranteed by writtenSet.allocate's
// order-preserving allocation, given a well-formed case body). A range
// whose First wire isn't in remap is an outer-scope reference and is
// returned unchanged.
func remapRange(t ir.TypeIndex, r ir.Range, remap map[ir.TypeIndex]map[ir.Wire]ir.Wire) ir.Range {
	if !r.Valid() {
		return r
	}
	m, ok := remap[t]
	if !ok {
		return r
	}
	nf, ok := m[r.First]
	if !ok {
		return r
	}
	return ir.Range{First: nf, Last: nf + ir.Wire(r.Len()) - 1}
}

// enableAsserts rewrites every AssertZero gate in a (private, already
// remapped) body into "multiply the asserted value by this type's
// selector, then assert the product is zero" — forcing the assertion to
// hold trivially when the case wasn't taken (selector 0) while leaving
// it fully enforced when it was (selector 1).
func enableAsserts(tr *Transformer, selectorFor func(ir.TypeIndex) ir.Wire, gates []ir.Gate) []ir.Gate {
	out := make([]ir.Gate, 0, len(gates))
	for _, g := range gates {
		if g.Kind != ir.AssertZero {
			out = append(out, g)
			continue
		}
		masked := tr.allocEphemeral(1).First
		out = append(out, ir.Gate{Kind: ir.Mul, Type: g.Type, Left: g.Left, Right: selectorFor(g.Type), Out: masked})
		out = append(out, ir.Gate{Kind: ir.AssertZero, Type: g.Type, Left: masked})
	}
	return out
}

func remapGate(g ir.Gate, remap map[ir.TypeIndex]map[ir.Wire]ir.Wire) ir.Gate {
	switch g.Kind {
	case ir.Add, ir.Mul:
		g.Left = remapWire(g.Type, g.Left, remap)
		g.Right = remapWire(g.Type, g.Right, remap)
		g.Out = remapWire(g.Type, g.Out, remap)
	case ir.AddC, ir.MulC, ir.Copy:
		g.Left = remapWire(g.Type, g.Left, remap)
		g.Out = remapWire(g.Type, g.Out, remap)
	case ir.Assign, ir.PublicIn, ir.PrivateIn:
		g.Out = remapWire(g.Type, g.Out, remap)
	case ir.AssertZero:
		g.Left = remapWire(g.Type, g.Left, remap)
	case ir.CopyMulti, ir.PublicInMulti, ir.PrivateInMulti:
		g.OutRange = remapRange(g.Type, g.OutRange, remap)
		if len(g.InRanges) == 1 {
			g.InRanges = []ir.Range{remapRange(g.Type, g.InRanges[0], remap)}
		}
	case ir.Convert:
		g.OutRange = remapRange(g.Type, g.OutRange, remap)
		if len(g.InRanges) == 1 {
			g.InRanges = []ir.Range{remapRange(g.FromType, g.InRanges[0], remap)}
		}
	case ir.New:
		g.OutRange = remapRange(g.Type, g.OutRange, remap)
	case ir.Delete:
		g.OutRange = remapRange(g.Type, g.OutRange, remap)
	}
	return g
}
