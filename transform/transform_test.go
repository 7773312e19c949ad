package transform

import (
	"testing"

	"github.com/sieveir/sievekit/backend"
	"github.com/sieveir/sievekit/interp"
	"github.com/sieveir/sievekit/ir"
	"github.com/sieveir/sievekit/registry"
	"github.com/sieveir/sievekit/stream"
)

// switchTree builds a tree with a single switch-case over field type 0,
// wire 0 holding the declared condition value, three cases (match 0,1,2)
// each writing wire 10 to 10*match and asserting, via a case-local temp
// wire, that the condition actually equals their own match value — an
// assertion that is only true for the taken case, so it doubles as a
// check that LowerSwitches' enable-masking actually disables the other
// cases' assertions rather than just their outputs.
func switchTree(condValue int64, expectedOut int64) *ir.Tree {
	cases := make([]ir.SwitchCase, 0, 3)
	for _, m := range []int64{0, 1, 2} {
		cases = append(cases, ir.SwitchCase{
			Match: ir.NewNumber(m),
			Body: []ir.Gate{
				{Kind: ir.Assign, Type: 0, Out: 10, Const: ir.NewNumber(10 * m)},
				{Kind: ir.AddC, Type: 0, Left: 0, Const: ir.NewNumber(0).Sub(ir.NewNumber(m)), Out: 11},
				{Kind: ir.AssertZero, Type: 0, Left: 11},
			},
		})
	}

	body := []ir.Gate{
		{Kind: ir.Assign, Type: 0, Out: 0, Const: ir.NewNumber(condValue)},
		{Switch: &ir.Switch{
			Cond: 0, CondLoc: 0,
			Cases:   cases,
			Outputs: ir.Range{First: 10, Last: 10},
			OutType: 0,
		}},
		{Kind: ir.AddC, Type: 0, Left: 10, Const: ir.NewNumber(0).Sub(ir.NewNumber(expectedOut)), Out: 20},
		{Kind: ir.AssertZero, Type: 0, Left: 20},
	}

	return ir.New(
		ir.Header{Types: []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(101)}}},
		nil,
		body,
	)
}

func fieldBackends(prime int64) map[ir.TypeIndex]backend.TypeBackend {
	return map[ir.TypeIndex]backend.TypeBackend{
		0: backend.NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(prime)}),
	}
}

func TestLowerSwitchSelectsMatchingCase(t *testing.T) {
	for _, cond := range []int64{0, 1, 2} {
		tree := switchTree(cond, 10*cond)
		tr := NewTransformer(fieldBackends(101))
		lowered, err := tr.LowerTree(tree)
		if err != nil {
			t.Fatalf("cond=%d: LowerTree: %v", cond, err)
		}
		for _, g := range lowered.Body {
			if g.Switch != nil {
				t.Fatalf("cond=%d: lowered tree still contains a Switch gate", cond)
			}
		}

		it := interp.New(lowered, fieldBackends(101), registry.NewConverterRegistry(), stream.NewSet(), nil)
		log, err := it.Run()
		if err != nil {
			t.Fatalf("cond=%d: unexpected error: %v\nlog:\n%s", cond, err, log)
		}
		if log.ContainsErrors() {
			t.Fatalf("cond=%d: unexpected diagnostics: %s", cond, log)
		}
	}
}

func TestLowerSwitchWrongExpectedOutputFails(t *testing.T) {
	tree := switchTree(1, 999) // wrong expectation: case 1 actually writes 10, not 999
	tr := NewTransformer(fieldBackends(101))
	lowered, err := tr.LowerTree(tree)
	if err != nil {
		t.Fatalf("LowerTree: %v", err)
	}
	it := interp.New(lowered, fieldBackends(101), registry.NewConverterRegistry(), stream.NewSet(), nil)
	if _, err := it.Run(); err == nil {
		t.Fatalf("expected the final assertZero on the wrong expected output to fail")
	}
}

func TestLowerSwitchBooleanCondition(t *testing.T) {
	// A boolean (GF(2)) condition exercises emitSelector/emitPow's p==2
	// path (exponent p-1 == 1), where the Fermat construction collapses
	// to a plain 1-(cond-match) selector.
	cases := []ir.SwitchCase{
		{Match: ir.NewNumber(0), Body: []ir.Gate{{Kind: ir.Assign, Type: 0, Out: 5, Const: ir.NewNumber(0)}}},
		{Match: ir.NewNumber(1), Body: []ir.Gate{{Kind: ir.Assign, Type: 0, Out: 5, Const: ir.NewNumber(1)}}},
	}
	body := []ir.Gate{
		{Kind: ir.Assign, Type: 0, Out: 0, Const: ir.NewNumber(1)},
		{Switch: &ir.Switch{Cond: 0, CondLoc: 0, Cases: cases, Outputs: ir.Range{First: 5, Last: 5}, OutType: 0}},
		{Kind: ir.AddC, Type: 0, Left: 5, Const: ir.NewNumber(-1), Out: 6},
		{Kind: ir.AssertZero, Type: 0, Left: 6},
	}
	tree := ir.New(ir.Header{Types: []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(2)}}}, nil, body)

	tr := NewTransformer(fieldBackends(2))
	lowered, err := tr.LowerTree(tree)
	if err != nil {
		t.Fatalf("LowerTree: %v", err)
	}
	it := interp.New(lowered, fieldBackends(2), registry.NewConverterRegistry(), stream.NewSet(), nil)
	if _, err := it.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLowerSwitchCrossTypeOutput(t *testing.T) {
	// Condition lives in type 0 (mod 101); the switch's output lives in
	// type 1 (mod 7), requiring crossTypeSelector's Convert-gate path.
	backends := map[ir.TypeIndex]backend.TypeBackend{
		0: backend.NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(101)}),
		1: backend.NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(7)}),
	}
	conv := registry.NewConverterRegistry()
	if err := conv.Register(0, 1,
		ir.ConversionSpec{FromType: 0, InLength: 1, ToType: 1, OutLength: 1},
		backend.NewBigIntConverter(backends[0], backends[1], 1, 1),
	); err != nil {
		t.Fatalf("registering converter: %v", err)
	}

	cases := []ir.SwitchCase{
		{Match: ir.NewNumber(0), Body: []ir.Gate{{Kind: ir.Assign, Type: 1, Out: 5, Const: ir.NewNumber(3)}}},
		{Match: ir.NewNumber(1), Body: []ir.Gate{{Kind: ir.Assign, Type: 1, Out: 5, Const: ir.NewNumber(4)}}},
	}
	body := []ir.Gate{
		{Kind: ir.Assign, Type: 0, Out: 0, Const: ir.NewNumber(1)},
		{Switch: &ir.Switch{Cond: 0, CondLoc: 0, Cases: cases, Outputs: ir.Range{First: 5, Last: 5}, OutType: 1}},
		{Kind: ir.AddC, Type: 1, Left: 5, Const: ir.NewNumber(-4), Out: 6},
		{Kind: ir.AssertZero, Type: 1, Left: 6},
	}
	tree := ir.New(ir.Header{Types: []ir.TypeSpec{
		{Kind: ir.FieldType, Prime: ir.NewNumber(101)},
		{Kind: ir.FieldType, Prime: ir.NewNumber(7)},
	}}, nil, body)

	tr := NewTransformer(backends)
	lowered, err := tr.LowerTree(tree)
	if err != nil {
		t.Fatalf("LowerTree: %v", err)
	}
	it := interp.New(lowered, backends, conv, stream.NewSet(), nil)
	if _, err := it.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLowerSwitchStrictStreamCountsRejectsMismatch(t *testing.T) {
	cases := []ir.SwitchCase{
		{Match: ir.NewNumber(0), Body: []ir.Gate{
			{Kind: ir.PublicIn, Type: 0, Out: 5},
		}},
		{Match: ir.NewNumber(1), Body: []ir.Gate{
			{Kind: ir.PublicIn, Type: 0, Out: 5},
			{Kind: ir.PublicIn, Type: 0, Out: 6},
		}},
	}
	body := []ir.Gate{
		{Kind: ir.Assign, Type: 0, Out: 0, Const: ir.NewNumber(0)},
		{Switch: &ir.Switch{Cond: 0, CondLoc: 0, Cases: cases, Outputs: ir.Range{First: 5, Last: 5}, OutType: 0}},
	}
	tree := ir.New(ir.Header{Types: []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(101)}}}, nil, body)

	tr := NewTransformer(fieldBackends(101))
	tr.StrictSwitchStreamCounts = true
	if _, err := tr.LowerTree(tree); err == nil {
		t.Fatalf("expected mismatched per-case stream counts to be rejected in strict mode")
	}
}

func TestLowerSwitchRejectsRingCondition(t *testing.T) {
	backends := map[ir.TypeIndex]backend.TypeBackend{
		0: backend.NewRingMod(ir.TypeSpec{Kind: ir.RingType, BitWidth: 8}),
	}
	body := []ir.Gate{
		{Switch: &ir.Switch{
			Cond: 0, CondLoc: 0,
			Cases:   []ir.SwitchCase{{Match: ir.NewNumber(0), Body: nil}},
			Outputs: ir.Range{First: 1, Last: 1},
			OutType: 0,
		}},
	}
	tree := ir.New(ir.Header{Types: []ir.TypeSpec{{Kind: ir.RingType, BitWidth: 8}}}, nil, body)
	tr := NewTransformer(backends)
	if _, err := tr.LowerTree(tree); err == nil {
		t.Fatalf("expected a ring-typed switch condition to be rejected")
	}
}
