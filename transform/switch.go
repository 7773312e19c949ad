package transform

import (
	"github.com/sieveir/sievekit/backend"
	"github.com/sieveir/sievekit/diag"
	"github.com/sieveir/sievekit/ir"
	"github.com/sieveir/sievekit/iterexpr"
)

// lowerSwitch replaces one Switch directive with a flat oblivious gate
// sequence. Per spec.md section 4.5 step 1, it first ingests the
// per-type maximum public/private stream usage across all cases exactly
// once, into a shared block of ephemeral wires, and rewrites every
// case's own publicIn/privateIn/publicInMulti/privateInMulti gates to
// copy their values from that shared buffer instead of reading the real
// stream again: this is what makes a switch's total stream consumption
// the per-type MAX across cases rather than the sum, matching the
// reference's "every case drains the shared max-buffer" behavior
// (SPEC_FULL.md section 13). Only then does each case body run,
// unconditionally, into a private block of ephemeral wires; a per-case
// selector (1 if the condition matched that case, 0 otherwise) masks
// every assertZero in the body and the case's final output; and the
// masked outputs are summed into the switch's declared Outputs range.
//
// Case bodies are expected to assign their result directly into the same
// wire numbers named by Outputs (spec.md section 4.4's convention,
// mirrored by interp.execSwitch's direct, non-lowered evaluation) and to
// contain only straight-line gates — a nested Call or ForLoop inside a
// case body is rejected, since privatizing its dynamically-expressed
// output range into ephemeral space is not supported by this pass
// (documented in DESIGN.md as a scope limitation). When
// StrictSwitchStreamCounts is set, every case must also consume the same
// per-type count of stream values as case 0; the check runs against each
// case's raw, pre-ingest body, since after the rewrite below no case
// body has a publicIn/privateIn gate left to count.
func (tr *Transformer) lowerSwitch(sw *ir.Switch) ([]ir.Gate, error) {
	condBackend, err := tr.backendFor(sw.CondLoc)
	if err != nil {
		return nil, err
	}
	field, ok := condBackend.(*backend.Field)
	if !ok {
		return nil, diag.Err(diag.StructuralError, diag.GateRef{}, "switch condition type must be a field, not a ring")
	}

	outLen := sw.Outputs.Len()
	var out []ir.Gate
	// sums[i] is the running accumulator wire for output position i, or
	// unset (zero Wire, flagged by haveSum) before the first case.
	sums := make([]ir.Wire, outLen)
	haveSum := make([]bool, outLen)

	var wantStreamCounts map[ir.TypeIndex]uint64
	var selSum ir.Wire

	pubMax, privMax := maxStreamCounts(sw.Cases)
	pubBuf, ingestGates := tr.emitStreamIngest(pubMax, true)
	out = append(out, ingestGates...)
	privBuf, ingestGates := tr.emitStreamIngest(privMax, false)
	out = append(out, ingestGates...)

	for ci, c := range sw.Cases {
		if tr.StrictSwitchStreamCounts {
			counts := streamCounts(c.Body)
			if ci == 0 {
				wantStreamCounts = counts
			} else if !sameStreamCounts(wantStreamCounts, counts) {
				return nil, diag.Err(diag.StructuralError, diag.GateRef{}, "switch case %d consumes a different per-type stream count than case 0 (strict switch stream counts enabled)", ci)
			}
		}

		drawnBody := drawFromBuffer(c.Body, pubBuf, privBuf)
		loweredBody, err := tr.lowerGates(drawnBody)
		if err != nil {
			return nil, err
		}
		if err := rejectUnsupportedGates(loweredBody, sw); err != nil {
			return nil, err
		}

		written := collectWrites(loweredBody)
		written.mark(sw.OutType, sw.Outputs)
		remap := written.allocate(tr)
		privateBody := remapGates(loweredBody, remap)

		selector, selGates := tr.emitSelector(sw.CondLoc, field, sw.Cond, c.Match)
		out = append(out, selGates...)
		if ci == 0 {
			selSum = selector
		} else {
			next := tr.allocEphemeral(1).First
			out = append(out, ir.Gate{Kind: ir.Add, Type: sw.CondLoc, Left: selSum, Right: selector, Out: next})
			selSum = next
		}

		// selectorFor lazily converts the base selector (computed in
		// CondLoc) into whatever other declared type a case's output or
		// an assertZero inside it needs it in, caching one conversion
		// per type per case.
		selectorCache := map[ir.TypeIndex]ir.Wire{sw.CondLoc: selector}
		selectorFor := func(t ir.TypeIndex) ir.Wire {
			if w, ok := selectorCache[t]; ok {
				return w
			}
			w, g := crossTypeSelector(tr, sw.CondLoc, selector, t)
			out = append(out, g)
			selectorCache[t] = w
			return w
		}

		// Gate every assertZero in the private body by its type's
		// selector: a case that wasn't taken still runs, so its internal
		// assertions must be forced to hold regardless of what garbage
		// its inputs produce.
		out = append(out, enableAsserts(tr, selectorFor, privateBody)...)

		var outSelector ir.Wire
		if outLen > 0 {
			outSelector = selectorFor(sw.OutType)
		}
		for i := uint64(0); i < outLen; i++ {
			origOut := sw.Outputs.First + ir.Wire(i)
			caseOut, ok := remap[sw.OutType][origOut]
			if !ok {
				return nil, diag.Err(diag.StructuralError, diag.GateRef{}, "switch case did not assign output wire %d", origOut)
			}
			masked := tr.allocEphemeral(1).First
			out = append(out, ir.Gate{Kind: ir.Mul, Type: sw.OutType, Left: caseOut, Right: outSelector, Out: masked})

			if !haveSum[i] {
				sums[i] = masked
				haveSum[i] = true
				continue
			}
			next := tr.allocEphemeral(1).First
			out = append(out, ir.Gate{Kind: ir.Add, Type: sw.OutType, Left: sums[i], Right: masked, Out: next})
			sums[i] = next
		}
	}

	// Assert the selectors sum to 1, so a condition that matches no
	// declared case fails the lowered circuit (spec.md section 4.4's
	// exhaustive-match invariant). With distinct match values exactly one
	// selector is then 1, and each output sum below equals that case's
	// masked value.
	if len(sw.Cases) > 0 {
		chk := tr.allocEphemeral(1).First
		out = append(out, ir.Gate{Kind: ir.AddC, Type: sw.CondLoc, Left: selSum, Const: ir.NewNumber(-1), Out: chk})
		out = append(out, ir.Gate{Kind: ir.AssertZero, Type: sw.CondLoc, Left: chk})
	}

	// Project the accumulated, case-selected sums into the switch's
	// declared outputs.
	for i := uint64(0); i < outLen; i++ {
		out = append(out, ir.Gate{Kind: ir.Copy, Type: sw.OutType, Left: sums[i], Out: sw.Outputs.First + ir.Wire(i)})
	}

	return out, nil
}

// streamCounts tallies, per declared type, how many values a gate list
// reads from the public/private input streams (spec.md section 4.1's
// publicIn/privateIn/publicInMulti/privateInMulti gates each consume one
// value per wire in their output range). Used only when
// Transformer.StrictSwitchStreamCounts is set.
func streamCounts(gates []ir.Gate) map[ir.TypeIndex]uint64 {
	counts := make(map[ir.TypeIndex]uint64)
	for _, g := range gates {
		switch g.Kind {
		case ir.PublicIn, ir.PrivateIn:
			counts[g.Type]++
		case ir.PublicInMulti, ir.PrivateInMulti:
			counts[g.Type] += g.OutRange.Len()
		}
	}
	return counts
}

func sameStreamCounts(a, b map[ir.TypeIndex]uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for t, n := range a {
		if b[t] != n {
			return false
		}
	}
	return true
}

// maxStreamCounts computes, per declared type, the maximum number of
// public/private stream values any single case's raw (pre-lowering,
// pre-ingest) body consumes directly — the "ingest maxima" spec.md
// section 4.5 step 1 sizes the shared ephemeral buffer with. Only a
// case's own top-level gates count: a nested Switch gate's inner cases
// perform their own, independent ingest once lowerGates recurses into
// them, and must not be double-counted here.
func maxStreamCounts(cases []ir.SwitchCase) (pub, priv map[ir.TypeIndex]uint64) {
	pub = make(map[ir.TypeIndex]uint64)
	priv = make(map[ir.TypeIndex]uint64)
	for _, c := range cases {
		curPub := make(map[ir.TypeIndex]uint64)
		curPriv := make(map[ir.TypeIndex]uint64)
		for _, g := range c.Body {
			switch g.Kind {
			case ir.PublicIn:
				curPub[g.Type]++
			case ir.PublicInMulti:
				curPub[g.Type] += g.OutRange.Len()
			case ir.PrivateIn:
				curPriv[g.Type]++
			case ir.PrivateInMulti:
				curPriv[g.Type] += g.OutRange.Len()
			}
		}
		for t, n := range curPub {
			if n > pub[t] {
				pub[t] = n
			}
		}
		for t, n := range curPriv {
			if n > priv[t] {
				priv[t] = n
			}
		}
	}
	return pub, priv
}

// emitStreamIngest allocates one ephemeral range per type named in
// maxima and emits a single publicInMulti (or privateInMulti, when
// public is false) gate reading that many values from the real stream
// into it — the shared buffer every case's own stream reads are
// rewritten to copy from, instead of reading the real stream again.
func (tr *Transformer) emitStreamIngest(maxima map[ir.TypeIndex]uint64, public bool) (map[ir.TypeIndex]ir.Range, []ir.Gate) {
	bufs := make(map[ir.TypeIndex]ir.Range, len(maxima))
	var gates []ir.Gate
	for t, n := range maxima {
		if n == 0 {
			continue
		}
		r := tr.allocEphemeral(n)
		kind := ir.PrivateInMulti
		if public {
			kind = ir.PublicInMulti
		}
		gates = append(gates, ir.Gate{Kind: kind, Type: t, OutRange: r})
		bufs[t] = r
	}
	return bufs, gates
}

// drawFromBuffer rewrites a case body's own publicIn/privateIn/
// publicInMulti/privateInMulti gates into copy/copyMulti gates reading
// sequentially from the front of pubBuf/privBuf (spec.md section 4.5
// step 1's "rewrite each case's publicIn/privateIn to copy from [the
// shared buffer]"), starting at position zero for every case: each case
// is entitled to see the same shared values from the same starting
// offset, since at most one case's reads are ever meaningful. Gates that
// are neither are returned unchanged, including a nested Switch or
// ForLoop, which perform their own ingest independently once lowerGates
// recurses into them afterward.
func drawFromBuffer(body []ir.Gate, pubBuf, privBuf map[ir.TypeIndex]ir.Range) []ir.Gate {
	pubPos := make(map[ir.TypeIndex]uint64)
	privPos := make(map[ir.TypeIndex]uint64)
	out := make([]ir.Gate, len(body))
	for i, g := range body {
		switch g.Kind {
		case ir.PublicIn:
			src := pubBuf[g.Type].First + ir.Wire(pubPos[g.Type])
			pubPos[g.Type]++
			out[i] = ir.Gate{Kind: ir.Copy, Type: g.Type, Left: src, Out: g.Out}
		case ir.PrivateIn:
			src := privBuf[g.Type].First + ir.Wire(privPos[g.Type])
			privPos[g.Type]++
			out[i] = ir.Gate{Kind: ir.Copy, Type: g.Type, Left: src, Out: g.Out}
		case ir.PublicInMulti:
			n := g.OutRange.Len()
			first := pubBuf[g.Type].First + ir.Wire(pubPos[g.Type])
			pubPos[g.Type] += n
			src := ir.Range{First: first, Last: first + ir.Wire(n) - 1}
			out[i] = ir.Gate{Kind: ir.CopyMulti, Type: g.Type, InRanges: []ir.Range{src}, OutRange: g.OutRange}
		case ir.PrivateInMulti:
			n := g.OutRange.Len()
			first := privBuf[g.Type].First + ir.Wire(privPos[g.Type])
			privPos[g.Type] += n
			src := ir.Range{First: first, Last: first + ir.Wire(n) - 1}
			out[i] = ir.Gate{Kind: ir.CopyMulti, Type: g.Type, InRanges: []ir.Range{src}, OutRange: g.OutRange}
		default:
			out[i] = g
		}
	}
	return out
}

// rejectUnsupportedGates walks a (already switch-lowered) gate list and
// rejects every Call and every ForLoop, since this pass cannot privatize
// a dynamically addressed output range (CallOutputs, or a for-loop's
// iteration-expression ranges) into fixed ephemeral space the way it
// privatizes a Kind-fixed gate's Out/OutRange. The threshold analysis
// below only decides which of two errors a ForLoop is rejected with.
func rejectUnsupportedGates(gates []ir.Gate, sw *ir.Switch) error {
	for _, g := range gates {
		if g.Kind == ir.Call {
			return diag.Err(diag.StructuralError, diag.GateRef{}, "switch case bodies may not contain calls")
		}
		if g.ForLoop != nil {
			if err := rejectStraddlingForLoop(g.ForLoop, sw); err != nil {
				return err
			}
			return diag.Err(diag.StructuralError, diag.GateRef{},
				"switch case bodies may not contain for-loops (loop at iterator %q does not straddle the switch's output boundary, but privatizing a non-straddling nested loop into ephemeral space is not implemented; see SPEC_FULL.md section 13)",
				g.ForLoop.Iterator)
		}
	}
	return nil
}

// rejectStraddlingForLoop runs spec.md section 4.5's IterExpr threshold
// analysis over a for-loop nested in a switch case, checking whether any
// of its per-iteration input/output ranges straddle the switch's own
// declared Outputs boundary (the one fixed wire-range boundary this pass
// privatizes against). A straddling range addresses wires both inside
// and outside that boundary across a single loop — a hazard no static,
// per-wire remap table can express — and is always rejected outright,
// independent of whether full nested-loop lowering is ever implemented.
func rejectStraddlingForLoop(loop *ir.ForLoop, sw *ir.Switch) error {
	threshold := int64(sw.Outputs.First)
	for _, r := range loop.OutputExprs {
		straddles, err := iterexpr.RangeExprStraddle(r, loop.Iterator, loop.First, loop.Last, threshold)
		if err != nil {
			return err
		}
		if straddles {
			return diag.Err(diag.StructuralError, diag.GateRef{}, "for-loop at iterator %q straddles the switch's output boundary and cannot be lowered", loop.Iterator)
		}
	}
	for _, r := range loop.InputExprs {
		straddles, err := iterexpr.RangeExprStraddle(r, loop.Iterator, loop.First, loop.Last, threshold)
		if err != nil {
			return err
		}
		if straddles {
			return diag.Err(diag.StructuralError, diag.GateRef{}, "for-loop at iterator %q straddles the switch's output boundary and cannot be lowered", loop.Iterator)
		}
	}
	return nil
}
