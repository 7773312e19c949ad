package interp

import (
	"testing"

	"github.com/sieveir/sievekit/backend"
	"github.com/sieveir/sievekit/ir"
	"github.com/sieveir/sievekit/registry"
	"github.com/sieveir/sievekit/stream"
)

func fieldBackends(prime int64) map[ir.TypeIndex]backend.TypeBackend {
	return map[ir.TypeIndex]backend.TypeBackend{
		0: backend.NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(prime)}),
	}
}

func TestInterpreterArithmeticAndAssertZero(t *testing.T) {
	tree := ir.New(
		ir.Header{Types: []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(101)}}},
		nil,
		[]ir.Gate{
			{Kind: ir.Assign, Type: 0, Out: 0, Const: ir.NewNumber(5)},
			{Kind: ir.Assign, Type: 0, Out: 1, Const: ir.NewNumber(5)},
			{Kind: ir.Add, Type: 0, Left: 0, Right: 1, Out: 2},
			{Kind: ir.AddC, Type: 0, Left: 2, Const: ir.NewNumber(91), Out: 3}, // 10+91=101=0 mod 101
			{Kind: ir.AssertZero, Type: 0, Left: 3},
		},
	)

	it := New(tree, fieldBackends(101), registry.NewConverterRegistry(), stream.NewSet(), nil)
	log, err := it.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v\nlog:\n%s", err, log)
	}
	if log.ContainsErrors() {
		t.Fatalf("unexpected diagnostics: %s", log)
	}
}

func TestInterpreterAssertZeroFails(t *testing.T) {
	tree := ir.New(
		ir.Header{Types: []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(101)}}},
		nil,
		[]ir.Gate{
			{Kind: ir.Assign, Type: 0, Out: 0, Const: ir.NewNumber(1)},
			{Kind: ir.AssertZero, Type: 0, Left: 0},
		},
	)
	it := New(tree, fieldBackends(101), registry.NewConverterRegistry(), stream.NewSet(), nil)
	if _, err := it.Run(); err == nil {
		t.Fatalf("expected assertZero on a nonzero wire to fail")
	}
}

func TestInterpreterSuppressedAssertZeroDoesNotAbort(t *testing.T) {
	tree := ir.New(
		ir.Header{Types: []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(101)}}},
		nil,
		[]ir.Gate{
			{Kind: ir.Assign, Type: 0, Out: 0, Const: ir.NewNumber(1)},
			{Kind: ir.AssertZero, Type: 0, Left: 0},
		},
	)
	it := New(tree, fieldBackends(101), registry.NewConverterRegistry(), stream.NewSet(), nil).
		WithSuppressedAssertions(true)
	log, err := it.Run()
	if err != nil {
		t.Fatalf("expected a suppressed assertZero failure not to abort Run, got: %v", err)
	}
	if len(log.Entries) == 0 {
		t.Fatalf("expected the suppressed failure to still be recorded as a diagnostic")
	}
}

func TestInterpreterPublicPrivateInAndStreamExhaustion(t *testing.T) {
	tree := ir.New(
		ir.Header{Types: []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(101)}}},
		nil,
		[]ir.Gate{
			{Kind: ir.PublicIn, Type: 0, Out: 0},
			{Kind: ir.PrivateIn, Type: 0, Out: 1},
			{Kind: ir.Add, Type: 0, Left: 0, Right: 1, Out: 2},
			{Kind: ir.AddC, Type: 0, Left: 2, Const: ir.NewNumber(95), Out: 3}, // 3+3+95=101=0
			{Kind: ir.AssertZero, Type: 0, Left: 3},
		},
	)
	streams := stream.NewSet()
	streams.Public[0] = stream.NewSlice([]ir.Number{ir.NewNumber(3)})
	streams.Private[0] = stream.NewSlice([]ir.Number{ir.NewNumber(3)})

	it := New(tree, fieldBackends(101), registry.NewConverterRegistry(), streams, nil)
	if _, err := it.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Leftover input values should be rejected.
	streams2 := stream.NewSet()
	streams2.Public[0] = stream.NewSlice([]ir.Number{ir.NewNumber(3), ir.NewNumber(9)})
	streams2.Private[0] = stream.NewSlice([]ir.Number{ir.NewNumber(3)})
	it2 := New(tree, fieldBackends(101), registry.NewConverterRegistry(), streams2, nil)
	if _, err := it2.Run(); err == nil {
		t.Fatalf("expected leftover input values to be rejected")
	}
}

func TestInterpreterCall(t *testing.T) {
	double := &ir.Function{
		Signature: ir.Signature{
			Name:    "double",
			Outputs: []ir.TypeCount{{Type: 0, Count: 1}},
			Inputs:  []ir.TypeCount{{Type: 0, Count: 1}},
		},
		Body: []ir.Gate{
			{Kind: ir.Add, Type: 0, Left: 1, Right: 1, Out: 0},
		},
	}
	tree := ir.New(
		ir.Header{Types: []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(101)}}},
		[]ir.NamedFunction{{Name: "double", Fn: double}},
		[]ir.Gate{
			{Kind: ir.Assign, Type: 0, Out: 0, Const: ir.NewNumber(7)},
			{
				Kind: ir.Call, CallName: "double",
				CallOutputs: []ir.Range{{First: 1, Last: 1}},
				CallInputs:  []ir.Range{{First: 0, Last: 0}},
			},
			{Kind: ir.AddC, Type: 0, Left: 1, Const: ir.NewNumber(87), Out: 2}, // 14+87=101=0
			{Kind: ir.AssertZero, Type: 0, Left: 2},
		},
	)
	it := New(tree, fieldBackends(101), registry.NewConverterRegistry(), stream.NewSet(), nil)
	if _, err := it.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInterpreterNoRecursionRejected(t *testing.T) {
	selfCall := &ir.Function{
		Signature: ir.Signature{Name: "loopy"},
		Body: []ir.Gate{
			{Kind: ir.Call, CallName: "loopy"},
		},
	}
	tree := ir.New(
		ir.Header{Types: []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(101)}}},
		[]ir.NamedFunction{{Name: "loopy", Fn: selfCall}},
		nil,
	)
	it := New(tree, fieldBackends(101), registry.NewConverterRegistry(), stream.NewSet(), nil)
	if _, err := it.Run(); err == nil {
		t.Fatalf("expected self-recursion to be rejected during declaration")
	}
}

func TestInterpreterForLoopInline(t *testing.T) {
	iterVar := func() ir.IterExpr { return ir.IterExpr{Kind: ir.IterVar, Var: "i"} }
	tenPlusI := func() ir.IterExpr {
		return ir.IterExpr{Kind: ir.IterAdd, Left: ptrIter(ir.IterExpr{Kind: ir.IterConst, Literal: ir.NewNumber(10)}), Right: ptrIter(iterVar())}
	}

	// For i in [0,2]: copy wire i (holding i+1) into wire 10+i.
	tree := ir.New(
		ir.Header{Types: []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(101)}}},
		nil,
		[]ir.Gate{
			{Kind: ir.Assign, Type: 0, Out: 0, Const: ir.NewNumber(1)},
			{Kind: ir.Assign, Type: 0, Out: 1, Const: ir.NewNumber(2)},
			{Kind: ir.Assign, Type: 0, Out: 2, Const: ir.NewNumber(3)},
			{
				ForLoop: &ir.ForLoop{
					Iterator: "i", First: 0, Last: 2,
					OutputExprs: []ir.RangeExpr{{First: tenPlusI(), Last: tenPlusI(), Type: 0}},
					InputExprs:  []ir.RangeExpr{{First: iterVar(), Last: iterVar(), Type: 0}},
					Body: ir.ForLoopBody{
						Anonymous: []ir.Gate{
							{Kind: ir.Copy, Type: 0, Left: 1, Out: 0},
						},
						AnonSignature: ir.Signature{
							Outputs: []ir.TypeCount{{Type: 0, Count: 1}},
							Inputs:  []ir.TypeCount{{Type: 0, Count: 1}},
						},
					},
				},
			},
			// wire10==1, wire11==2, wire12==3; check wire10+wire11+wire12-6==0
			{Kind: ir.Add, Type: 0, Left: 10, Right: 11, Out: 20},
			{Kind: ir.Add, Type: 0, Left: 20, Right: 12, Out: 21},
			{Kind: ir.AddC, Type: 0, Left: 21, Const: ir.NewNumber(95), Out: 22}, // 6+95=101=0
			{Kind: ir.AssertZero, Type: 0, Left: 22},
		},
	)

	it := New(tree, fieldBackends(101), registry.NewConverterRegistry(), stream.NewSet(), nil)
	log, err := it.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v\nlog:\n%s", err, log)
	}
	if log.ContainsErrors() {
		t.Fatalf("unexpected diagnostics: %s", log)
	}
}

func ptrIter(e ir.IterExpr) *ir.IterExpr { return &e }

// TestExecSwitchSkipsUntakenCaseFailure is scenario S4: a switch whose
// untaken case would fail an assertion must still pass, since only the
// matched case's body is ever observed to run.
func TestExecSwitchSkipsUntakenCaseFailure(t *testing.T) {
	cases := []ir.SwitchCase{
		{Match: ir.NewNumber(0), Body: []ir.Gate{
			{Kind: ir.Assign, Type: 0, Out: 5, Const: ir.NewNumber(1)},
			{Kind: ir.AssertZero, Type: 0, Left: 5}, // would fail: 1 != 0
		}},
		{Match: ir.NewNumber(1), Body: []ir.Gate{
			{Kind: ir.Assign, Type: 0, Out: 5, Const: ir.NewNumber(0)},
			{Kind: ir.AssertZero, Type: 0, Left: 5},
		}},
	}
	tree := ir.New(
		ir.Header{Types: []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(101)}}},
		nil,
		[]ir.Gate{
			{Kind: ir.Assign, Type: 0, Out: 0, Const: ir.NewNumber(1)},
			{Switch: &ir.Switch{Cond: 0, CondLoc: 0, Cases: cases, Outputs: ir.Range{First: 5, Last: 5}, OutType: 0}},
		},
	)
	it := New(tree, fieldBackends(101), registry.NewConverterRegistry(), stream.NewSet(), nil)
	log, err := it.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v\nlog:\n%s", err, log)
	}
	if log.ContainsErrors() {
		t.Fatalf("unexpected diagnostics: %s", log)
	}
}

// TestExecSwitchStreamConservationUsesMax confirms that a not-yet-lowered
// switch whose cases consume different per-type stream counts drains the
// real stream by the per-type MAX across cases exactly once, not the sum:
// only 2 values are available, and the taken case reads 1, but the other
// (untaken) case declares 2 — if consumption were summed, the stream
// would be exhausted before the switch finishes.
func TestExecSwitchStreamConservationUsesMax(t *testing.T) {
	cases := []ir.SwitchCase{
		{Match: ir.NewNumber(0), Body: []ir.Gate{
			{Kind: ir.PublicIn, Type: 0, Out: 5},
			{Kind: ir.PublicIn, Type: 0, Out: 6},
		}},
		{Match: ir.NewNumber(1), Body: []ir.Gate{
			{Kind: ir.PublicIn, Type: 0, Out: 5},
		}},
	}
	tree := ir.New(
		ir.Header{Types: []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(101)}}},
		nil,
		[]ir.Gate{
			{Kind: ir.Assign, Type: 0, Out: 0, Const: ir.NewNumber(1)},
			{Switch: &ir.Switch{Cond: 0, CondLoc: 0, Cases: cases, Outputs: ir.Range{}, OutType: 0}},
		},
	)
	streams := stream.NewSet()
	streams.Public[0] = stream.NewSlice([]ir.Number{ir.NewNumber(7), ir.NewNumber(8)})

	it := New(tree, fieldBackends(101), registry.NewConverterRegistry(), streams, nil)
	log, err := it.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v\nlog:\n%s", err, log)
	}
	if log.ContainsErrors() {
		t.Fatalf("unexpected diagnostics: %s", log)
	}
	if !streams.AllExhausted() {
		t.Fatalf("expected the max-sized drain to consume the whole stream")
	}
}

// TestExecSwitchRejectsDuplicateCaseMatch covers invariant 6's
// distinct-case-match-value half.
func TestExecSwitchRejectsDuplicateCaseMatch(t *testing.T) {
	cases := []ir.SwitchCase{
		{Match: ir.NewNumber(0), Body: nil},
		{Match: ir.NewNumber(0), Body: nil},
	}
	tree := ir.New(
		ir.Header{Types: []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(101)}}},
		nil,
		[]ir.Gate{
			{Kind: ir.Assign, Type: 0, Out: 0, Const: ir.NewNumber(0)},
			{Switch: &ir.Switch{Cond: 0, CondLoc: 0, Cases: cases, Outputs: ir.Range{}, OutType: 0}},
		},
	)
	it := New(tree, fieldBackends(101), registry.NewConverterRegistry(), stream.NewSet(), nil)
	if _, err := it.Run(); err == nil {
		t.Fatalf("expected duplicate case match values to be rejected")
	}
}
