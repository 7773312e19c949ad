// Package iterexpr evaluates the linear iteration expressions a for-loop
// directive uses to describe its per-iteration input/output ranges
// (spec.md sections 4.4 and 4.5): literals, the loop iterator itself,
// +, -, *, and division by a literal.
package iterexpr

import (
	"github.com/sieveir/sievekit/diag"
	"github.com/sieveir/sievekit/ir"
)

// Eval evaluates e with the iterator bound to i, returning a StructuralError
// if the expression divides by zero or divides unevenly (SIEVE IR
// restricts division to exact, literal divisors — spec.md section 4.4).
func Eval(e ir.IterExpr, iterator string, i int64) (int64, error) {
	switch e.Kind {
	case ir.IterConst:
		return e.Literal.Big().Int64(), nil
	case ir.IterVar:
		if e.Var != iterator {
			return 0, diag.Err(diag.StructuralError, diag.GateRef{}, "iteration expression refers to unknown variable %q", e.Var)
		}
		return i, nil
	case ir.IterAdd:
		l, err := Eval(*e.Left, iterator, i)
		if err != nil {
			return 0, err
		}
		r, err := Eval(*e.Right, iterator, i)
		if err != nil {
			return 0, err
		}
		return l + r, nil
	case ir.IterSub:
		l, err := Eval(*e.Left, iterator, i)
		if err != nil {
			return 0, err
		}
		r, err := Eval(*e.Right, iterator, i)
		if err != nil {
			return 0, err
		}
		return l - r, nil
	case ir.IterMul:
		l, err := Eval(*e.Left, iterator, i)
		if err != nil {
			return 0, err
		}
		r, err := Eval(*e.Right, iterator, i)
		if err != nil {
			return 0, err
		}
		return l * r, nil
	case ir.IterDivLiteral:
		l, err := Eval(*e.Left, iterator, i)
		if err != nil {
			return 0, err
		}
		d := e.Divisor.Big().Int64()
		if d == 0 {
			return 0, diag.Err(diag.StructuralError, diag.GateRef{}, "iteration expression divides by zero")
		}
		if l%d != 0 {
			return 0, diag.Err(diag.StructuralError, diag.GateRef{}, "iteration expression divides %d by %d without an exact quotient", l, d)
		}
		return l / d, nil
	default:
		return 0, diag.Err(diag.StructuralError, diag.GateRef{}, "unknown iteration expression kind %d", e.Kind)
	}
}

// IsConstant reports whether e's value is independent of the iterator —
// it contains no IterVar node, so every evaluation over the loop's range
// produces the same result. Used to fast-path loop bodies whose
// boundaries don't actually move per iteration.
func IsConstant(e ir.IterExpr) bool {
	switch e.Kind {
	case ir.IterConst:
		return true
	case ir.IterVar:
		return false
	case ir.IterAdd, ir.IterSub, ir.IterMul:
		return IsConstant(*e.Left) && IsConstant(*e.Right)
	case ir.IterDivLiteral:
		return IsConstant(*e.Left)
	default:
		return false
	}
}

// IsLinear reports whether e is an affine function of the iterator —
// c0 + c1*iterator for some constants c0, c1 — the shape loopc's
// shortcut-execution classification requires (SPEC_FULL.md section 12):
// a multiplication of two non-constant (iterator-dependent) subexpressions,
// or a division whose dividend is non-constant, breaks linearity.
func IsLinear(e ir.IterExpr) bool {
	switch e.Kind {
	case ir.IterConst, ir.IterVar:
		return true
	case ir.IterAdd, ir.IterSub:
		return IsLinear(*e.Left) && IsLinear(*e.Right)
	case ir.IterMul:
		// At most one side may depend on the iterator; the other must be
		// constant, or the product is quadratic.
		return (IsConstant(*e.Left) && IsLinear(*e.Right)) ||
			(IsConstant(*e.Right) && IsLinear(*e.Left))
	case ir.IterDivLiteral:
		return IsConstant(*e.Left)
	default:
		return false
	}
}

// Coefficients returns (c0, c1) such that Eval(e, iterator, i) == c0 +
// c1*i for every i, when IsLinear(e) holds. It is undefined for a
// non-linear expression; callers must check IsLinear first.
func Coefficients(e ir.IterExpr, iterator string) (c0, c1 int64) {
	zero, _ := Eval(e, iterator, 0)
	one, _ := Eval(e, iterator, 1)
	return zero, one - zero
}

// WouldOverflow reports whether evaluating e anywhere across [first,last]
// would overflow a 64-bit signed integer at any intermediate step, by
// checking the two endpoints of a linear expression (sufficient since a
// linear function's extrema over an interval are at its endpoints) or,
// for a non-linear expression, by evaluating at every point — slow but
// only reached when IsLinear is false, which for-loop bodies in practice
// rarely produce (SPEC_FULL.md section 12, loopc's corner-point analysis).
func WouldOverflow(e ir.IterExpr, iterator string, first, last int64) bool {
	if IsLinear(e) {
		c0, c1 := Coefficients(e, iterator)
		for _, x := range [2]int64{first, last} {
			m, overflow := safeMul(c1, x)
			if overflow {
				return true
			}
			if _, overflow := safeAdd(c0, m); overflow {
				return true
			}
		}
		return false
	}
	for i := first; i <= last; i++ {
		if _, err := Eval(e, iterator, i); err != nil {
			return true
		}
	}
	return false
}

// Extent returns the minimum and maximum value e takes as the iterator
// ranges over [first, last]. It uses the fast corner-point path when e is
// linear (an affine function's extrema over an interval are at its
// endpoints) and falls back to evaluating every point otherwise (spec.md
// section 4.5's "IterExpr threshold analysis").
func Extent(e ir.IterExpr, iterator string, first, last int64) (min, max int64, err error) {
	if IsLinear(e) {
		c0, c1 := Coefficients(e, iterator)
		a := c0 + c1*first
		b := c0 + c1*last
		if a > b {
			a, b = b, a
		}
		return a, b, nil
	}
	min, max = 0, 0
	for i := first; i <= last; i++ {
		v, err := Eval(e, iterator, i)
		if err != nil {
			return 0, 0, err
		}
		if i == first || v < min {
			min = v
		}
		if i == first || v > max {
			max = v
		}
	}
	return min, max, nil
}

// Straddle reports whether e's value, evaluated at every point the
// iterator visits across [first, last], falls entirely below threshold,
// entirely at-or-above it, or straddles it (some evaluations on each
// side). This is exactly spec.md section 4.5's threshold analysis:
// "determine whether all evaluations are below, all above, or straddle a
// threshold T", using the same fast/slow path split as Extent. A
// straddling expression addresses wires on both sides of a hard boundary
// (e.g. the real/ephemeral wire-space split transform.Transformer
// allocates against) across a single loop, which no static remap table
// keyed by a fixed wire number can express.
func Straddle(e ir.IterExpr, iterator string, first, last, threshold int64) (straddles bool, err error) {
	min, max, err := Extent(e, iterator, first, last)
	if err != nil {
		return false, err
	}
	below := max < threshold
	above := min >= threshold
	return !below && !above, nil
}

// RangeExprStraddle reports whether r's First or Last bound straddles
// threshold across the iterator's range — used the same way Straddle is,
// but against both endpoints of a RangeExpr in one call, since a range
// that straddles on either bound addresses wires on both sides of the
// boundary somewhere in the loop.
func RangeExprStraddle(r ir.RangeExpr, iterator string, first, last, threshold int64) (straddles bool, err error) {
	fs, err := Straddle(r.First, iterator, first, last, threshold)
	if err != nil {
		return false, err
	}
	if fs {
		return true, nil
	}
	return Straddle(r.Last, iterator, first, last, threshold)
}

func safeMul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	p := a * b
	return p, p/a != b
}

func safeAdd(a, b int64) (int64, bool) {
	s := a + b
	return s, (b > 0 && s < a) || (b < 0 && s > a)
}
