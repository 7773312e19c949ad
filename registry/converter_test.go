package registry

import (
	"testing"

	"github.com/sieveir/sievekit/backend"
	"github.com/sieveir/sievekit/ir"
)

func TestConverterRegistryRegisterAndLookup(t *testing.T) {
	from := backend.NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(11)})
	to := backend.NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(3)})
	conv := backend.NewBigIntConverter(from, to, 1, 3)

	r := NewConverterRegistry()
	spec := ir.ConversionSpec{FromType: 0, InLength: 1, ToType: 1, OutLength: 3}
	if err := r.Register(0, 1, spec, conv); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(0, 1, spec, conv); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}

	got, ok := r.Lookup(0, 1, 1, 3)
	if !ok || got != backend.Converter(conv) {
		t.Fatalf("expected to find the registered converter")
	}
	if _, ok := r.Lookup(0, 1, 1, 4); ok {
		t.Fatalf("did not expect a match for a different output length")
	}

	targets := r.ReachableTargets(0)
	if len(targets) != 1 || targets[0] != 1 {
		t.Fatalf("expected type 0 to reach only type 1, got %v", targets)
	}
	if len(r.ReachableTargets(5)) != 0 {
		t.Fatalf("expected no reachable targets for an unregistered source type")
	}
}

func TestConverterRegistryRejectsShapeMismatch(t *testing.T) {
	from := backend.NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(11)})
	to := backend.NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(3)})
	conv := backend.NewBigIntConverter(from, to, 1, 3)

	r := NewConverterRegistry()
	badSpec := ir.ConversionSpec{FromType: 0, InLength: 2, ToType: 1, OutLength: 3}
	if err := r.Register(0, 1, badSpec, conv); err == nil {
		t.Fatalf("expected a shape mismatch to be rejected")
	}
}
