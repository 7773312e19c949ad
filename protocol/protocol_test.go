package protocol

import (
	"bytes"
	"testing"

	"github.com/sieveir/sievekit/backend"
	"github.com/sieveir/sievekit/interp"
	"github.com/sieveir/sievekit/ir"
	"github.com/sieveir/sievekit/registry"
	"github.com/sieveir/sievekit/stream"
)

func simpleTree() *ir.Tree {
	return ir.New(
		ir.Header{
			VersionMajor: 1,
			ResourceType: "circuit",
			Types:        []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(101)}},
		},
		nil,
		[]ir.Gate{
			{Kind: ir.Assign, Type: 0, Out: 0, Const: ir.NewNumber(5)},
			{Kind: ir.AddC, Type: 0, Left: 0, Const: ir.NewNumber(-5), Out: 1},
			{Kind: ir.AssertZero, Type: 0, Left: 1},
		},
	)
}

func buildViaHandler(t *testing.T, tree *ir.Tree) *ir.Tree {
	t.Helper()
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Tree(tree); err != nil {
		t.Fatalf("encoding: %v", err)
	}
	b := NewTreeBuilder()
	if err := Decode(&buf, b); err != nil {
		t.Fatalf("decoding: %v\nwire:\n%s", err, buf.String())
	}
	got, err := b.Tree()
	if err != nil {
		t.Fatalf("Tree(): %v", err)
	}
	return got
}

func TestTreeBuilderRoundTripRunsCorrectly(t *testing.T) {
	rebuilt := buildViaHandler(t, simpleTree())

	backends := map[ir.TypeIndex]backend.TypeBackend{
		0: backend.NewField(rebuilt.Header.Types[0]),
	}
	it := interp.New(rebuilt, backends, registry.NewConverterRegistry(), stream.NewSet(), nil)
	log, err := it.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v\nlog:\n%s", err, log)
	}
	if log.ContainsErrors() {
		t.Fatalf("unexpected diagnostics: %s", log)
	}
}

func TestTreeBuilderRoundTripPreservesFunctions(t *testing.T) {
	tree := ir.New(
		ir.Header{Types: []ir.TypeSpec{{Kind: ir.FieldType, Prime: ir.NewNumber(101)}}},
		[]ir.NamedFunction{
			{Name: "double", Fn: &ir.Function{
				Signature: ir.Signature{
					Name:    "double",
					Outputs: []ir.TypeCount{{Type: 0, Count: 1}},
					Inputs:  []ir.TypeCount{{Type: 0, Count: 1}},
				},
				Body: []ir.Gate{
					{Kind: ir.Add, Type: 0, Left: 1, Right: 1, Out: 0},
				},
			}},
		},
		[]ir.Gate{
			{Kind: ir.Assign, Type: 0, Out: 1, Const: ir.NewNumber(3)},
			{Kind: ir.Call, CallName: "double", CallOutputs: []ir.Range{{First: 2, Last: 2}}, CallInputs: []ir.Range{{First: 1, Last: 1}}},
			{Kind: ir.AddC, Type: 0, Left: 2, Const: ir.NewNumber(-6), Out: 3},
			{Kind: ir.AssertZero, Type: 0, Left: 3},
		},
	)

	rebuilt := buildViaHandler(t, tree)
	if len(rebuilt.Functions) != 1 || rebuilt.Functions[0].Name != "double" {
		t.Fatalf("expected one function named %q, got %+v", "double", rebuilt.Functions)
	}

	backends := map[ir.TypeIndex]backend.TypeBackend{
		0: backend.NewField(rebuilt.Header.Types[0]),
	}
	it := interp.New(rebuilt, backends, registry.NewConverterRegistry(), stream.NewSet(), nil)
	if _, err := it.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTreeBuilderRejectsOutOfOrderCalls(t *testing.T) {
	b := NewTreeBuilder()
	if ok, err := b.BeginBody(); ok || err == nil {
		t.Fatalf("expected beginBody before setHeader to be rejected")
	}
	if ok, err := b.SetHeader(Version{Major: 1}, "circuit"); !ok || err != nil {
		t.Fatalf("setHeader: %v", err)
	}
	if ok, err := b.Gate(ir.Gate{}); ok || err == nil {
		t.Fatalf("expected a gate before beginBody to be rejected")
	}
	if ok, err := b.DeclareType(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(7)}); !ok || err != nil {
		t.Fatalf("declareType: %v", err)
	}
	if ok, err := b.BeginBody(); !ok || err != nil {
		t.Fatalf("beginBody: %v", err)
	}
	if ok, err := b.EndFunction(); ok || err == nil {
		t.Fatalf("expected endFunction with no open function to be rejected")
	}
	if ok, err := b.EndBody(); !ok || err != nil {
		t.Fatalf("endBody: %v", err)
	}
	if _, err := b.Tree(); err != nil {
		t.Fatalf("Tree(): %v", err)
	}
}

func TestTreeBuilderRejectsDuplicateFunctionName(t *testing.T) {
	b := NewTreeBuilder()
	if _, err := b.SetHeader(Version{Major: 1}, "circuit"); err != nil {
		t.Fatalf("setHeader: %v", err)
	}
	if _, err := b.DeclareType(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(7)}); err != nil {
		t.Fatalf("declareType: %v", err)
	}
	if _, err := b.BeginBody(); err != nil {
		t.Fatalf("beginBody: %v", err)
	}
	sig := ir.Signature{Name: "f"}
	if _, err := b.StartFunction(sig); err != nil {
		t.Fatalf("startFunction: %v", err)
	}
	if _, err := b.RegularFunction(); err != nil {
		t.Fatalf("regularFunction: %v", err)
	}
	if _, err := b.EndFunction(); err != nil {
		t.Fatalf("endFunction: %v", err)
	}
	if _, err := b.StartFunction(sig); err == nil {
		t.Fatalf("expected declaring %q twice to be rejected", sig.Name)
	}
}

func TestDecodeRejectsUnknownEvent(t *testing.T) {
	r := bytes.NewBufferString(`{"event":"frobnicate"}`)
	if err := Decode(r, NewTreeBuilder()); err == nil {
		t.Fatalf("expected an unknown event name to be rejected")
	}
}

func TestVersionCompare(t *testing.T) {
	older := Version{Major: 1, Minor: 2, Patch: 3}
	newer := Version{Major: 1, Minor: 3, Patch: 0}
	if older.Compare(newer) >= 0 {
		t.Fatalf("expected %v < %v", older, newer)
	}
	if newer.Compare(older) <= 0 {
		t.Fatalf("expected %v > %v", newer, older)
	}
	if older.Compare(older) != 0 {
		t.Fatalf("expected equal versions to compare as 0")
	}
}
