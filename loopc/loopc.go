// Package loopc classifies a for-loop directive's execution strategy
// (spec.md sections 4.4 and 4.6) and, for the strategy that permits it,
// dispatches iterations concurrently. The three strategies mirror
// WizToolKit's loop compiler (original_source/.../PLASMASnooze.t.h,
// SPEC_FULL.md section 12 point 4):
//
//   - HardUnroll: iterations are evaluated one at a time, each rebuilding
//     its own bound ranges from scratch — the safe fallback for any loop
//     whose shape this package can't reason about, and for loops too
//     short to bother optimizing.
//   - SoftUnroll: the loop's boundary expressions are linear and don't
//     overflow, but iterations share or carry state across each other
//     (an accumulator pattern), so they still run strictly in order —
//     the benefit is purely that callers can reuse a compiled per-
//     iteration template rather than re-deriving its shape from scratch.
//   - Shortcut: iterations are linear, don't overflow, and are provably
//     independent (no iteration's input wires can observe another
//     iteration's output wires) — safe to run concurrently.
//
// Classification never changes a loop's semantics, only how a caller may
// safely schedule its iterations; interp.Interpreter's own execForLoop
// always runs sequentially and doesn't consult this package, since
// wire.Scope is not safe for concurrent access from multiple goroutines
// (SPEC_FULL.md section 12's Open Question resolution) — loopc is for a
// caller that wants to drive iterations itself, outside a single shared
// Scope, such as a pre-pass that evaluates independent iterations into
// separate witnesses before merging them.
package loopc

import (
	"github.com/sieveir/sievekit/ir"
	"github.com/sieveir/sievekit/iterexpr"
)

// Strategy is the execution strategy Classify assigns to one for-loop.
type Strategy int

const (
	HardUnroll Strategy = iota
	SoftUnroll
	Shortcut
)

func (s Strategy) String() string {
	switch s {
	case HardUnroll:
		return "HardUnroll"
	case SoftUnroll:
		return "SoftUnroll"
	case Shortcut:
		return "Shortcut"
	default:
		return "Unknown"
	}
}

// defaultSoftUnrollOverlapThreshold is the iteration count at or below
// which Classify never bothers with Shortcut/SoftUnroll reasoning and just
// returns HardUnroll — up to this span the bookkeeping a smarter
// strategy needs costs more than the fully-unrolled baseline it would
// save (SPEC_FULL.md section 13's Open Question resolution).
const defaultSoftUnrollOverlapThreshold = 8

// Builder classifies for-loops and, for Shortcut loops, drives their
// iterations concurrently.
type Builder struct {
	// SoftUnrollOverlapThreshold overrides defaultSoftUnrollOverlapThreshold.
	SoftUnrollOverlapThreshold int64
}

// NewBuilder returns a Builder with the default overlap threshold.
func NewBuilder() *Builder {
	return &Builder{SoftUnrollOverlapThreshold: defaultSoftUnrollOverlapThreshold}
}

// Classify inspects loop's boundary expressions and iteration count and
// returns the strategy it's safe to execute it under.
func (b *Builder) Classify(loop *ir.ForLoop) Strategy {
	if loop.Last < loop.First {
		return HardUnroll
	}
	if !allLinear(loop.OutputExprs, loop.Iterator) || !allLinear(loop.InputExprs, loop.Iterator) {
		return HardUnroll
	}
	if anyOverflows(loop.OutputExprs, loop.Iterator, loop.First, loop.Last) ||
		anyOverflows(loop.InputExprs, loop.Iterator, loop.First, loop.Last) {
		return HardUnroll
	}

	threshold := b.SoftUnrollOverlapThreshold
	if threshold <= 0 {
		threshold = defaultSoftUnrollOverlapThreshold
	}
	if loop.Last-loop.First+1 <= threshold {
		return HardUnroll
	}

	if independent(loop) {
		return Shortcut
	}
	return SoftUnroll
}

func allLinear(exprs []ir.RangeExpr, iterator string) bool {
	for _, e := range exprs {
		if !iterexpr.IsLinear(e.First) || !iterexpr.IsLinear(e.Last) {
			return false
		}
	}
	return true
}

func anyOverflows(exprs []ir.RangeExpr, iterator string, first, last int64) bool {
	for _, e := range exprs {
		if iterexpr.WouldOverflow(e.First, iterator, first, last) || iterexpr.WouldOverflow(e.Last, iterator, first, last) {
			return true
		}
	}
	return false
}

// independent reports whether loop's iterations can run in any order (or
// concurrently) without one observing another's effects: every output
// range must be disjoint from every other iteration's output range of
// the same type (a write/write conflict, or a loop-carried accumulator
// reusing the same wires each time), and no input range may overlap the
// total wire span any output range ever touches across the whole
// iteration count (which would let one iteration read another's write).
func independent(loop *ir.ForLoop) bool {
	for _, e := range loop.OutputExprs {
		if !selfDisjointAcrossIterations(e, loop.Iterator) {
			return false
		}
	}

	outBounds := aggregateBoundsByType(loop.OutputExprs, loop.Iterator, loop.First, loop.Last)
	inBounds := aggregateBoundsByType(loop.InputExprs, loop.Iterator, loop.First, loop.Last)
	for t, in := range inBounds {
		out, ok := outBounds[t]
		if !ok {
			continue
		}
		if in.lo <= out.hi && out.lo <= in.hi {
			return false
		}
	}
	return true
}

// selfDisjointAcrossIterations reports whether e's range at iteration i
// never overlaps its own range at any other iteration j != i, for e
// linear in the iterator. Since a linear range's width and per-step
// movement are both constant, this reduces to comparing the (constant)
// range width against the (constant) per-iteration step.
func selfDisjointAcrossIterations(e ir.RangeExpr, iterator string) bool {
	f0, f1 := iterexpr.Coefficients(e.First, iterator)
	l0, l1 := iterexpr.Coefficients(e.Last, iterator)
	if f1 != l1 {
		// Width isn't constant across iterations; too irregular to
		// reason about safely.
		return false
	}
	width := l0 - f0 + 1
	if width <= 0 {
		return false
	}
	step := f1
	if step == 0 {
		// Every iteration targets the exact same range: a loop-carried
		// accumulator, never safe to run out of order.
		return false
	}
	if step < 0 {
		step = -step
	}
	return step >= width
}

type bounds struct{ lo, hi int64 }

// aggregateBoundsByType evaluates every RangeExpr's extent at the loop's
// first and last iteration (sufficient for a linear expression, whose
// extrema over an interval sit at its endpoints) and unions them per
// declared type.
func aggregateBoundsByType(exprs []ir.RangeExpr, iterator string, first, last int64) map[ir.TypeIndex]bounds {
	out := make(map[ir.TypeIndex]bounds)
	for _, e := range exprs {
		for _, i := range [2]int64{first, last} {
			lo, errLo := iterexpr.Eval(e.First, iterator, i)
			hi, errHi := iterexpr.Eval(e.Last, iterator, i)
			if errLo != nil || errHi != nil {
				continue
			}
			if lo > hi {
				lo, hi = hi, lo
			}
			b, ok := out[e.Type]
			if !ok {
				out[e.Type] = bounds{lo: lo, hi: hi}
				continue
			}
			if lo < b.lo {
				b.lo = lo
			}
			if hi > b.hi {
				b.hi = hi
			}
			out[e.Type] = b
		}
	}
	return out
}
