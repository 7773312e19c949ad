package backend

import (
	"testing"

	"github.com/sieveir/sievekit/ir"
)

func TestFieldArithmeticWraps(t *testing.T) {
	f := NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(7)})
	a := f.Reduce(ir.NewNumber(5))
	b := f.Reduce(ir.NewNumber(4))

	if sum := f.Add(a, b); sum.N.String() != "2" {
		t.Errorf("expected 5+4 mod 7 = 2, got %s", sum.N)
	}
	if prod := f.Mul(a, b); prod.N.String() != "6" {
		t.Errorf("expected 5*4 mod 7 = 6, got %s", prod.N)
	}
	if f.IsBoolean() {
		t.Errorf("did not expect GF(7) to be boolean")
	}
}

func TestFieldInverse(t *testing.T) {
	f := NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(7)})
	a := f.Reduce(ir.NewNumber(3))
	inv, err := f.Inverse(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prod := f.Mul(a, inv); prod.N.String() != "1" {
		t.Errorf("expected a * a^-1 == 1 mod 7, got %s", prod.N)
	}
	if _, err := f.Inverse(f.Reduce(ir.NewNumber(0))); err == nil {
		t.Errorf("expected inverting zero to fail")
	}
}

func TestBooleanField(t *testing.T) {
	f := NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(2)})
	if !f.IsBoolean() {
		t.Errorf("expected GF(2) to be boolean")
	}
}

func TestRingModWraps(t *testing.T) {
	r := NewRingMod(ir.TypeSpec{Kind: ir.RingType, BitWidth: 4})
	a := r.Reduce(ir.NewNumber(15))
	b := r.Reduce(ir.NewNumber(2))
	if sum := r.Add(a, b); sum.N.String() != "1" {
		t.Errorf("expected 15+2 mod 16 = 1, got %s", sum.N)
	}
}

func TestBigIntConverterRoundTrips(t *testing.T) {
	from := NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(11)})
	to := NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(3)})
	conv := NewBigIntConverter(from, to, 1, 3)

	in := []Value{from.Reduce(ir.NewNumber(10))}
	out, err := conv.Convert(in, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 output digits, got %d", len(out))
	}
	// 10 base-3 is 101: digits [1,0,1].
	want := []string{"1", "0", "1"}
	for i, w := range want {
		if out[i].N.String() != w {
			t.Errorf("digit %d: expected %s, got %s", i, w, out[i].N)
		}
	}
}

func TestBigIntConverterOverflowRequiresWrap(t *testing.T) {
	from := NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(101)})
	to := NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(3)})
	conv := NewBigIntConverter(from, to, 1, 1)

	in := []Value{from.Reduce(ir.NewNumber(100))}
	if _, err := conv.Convert(in, false); err == nil {
		t.Fatalf("expected an overflowing conversion without wrap to fail")
	}
	out, err := conv.Convert(in, true)
	if err != nil {
		t.Fatalf("unexpected error with wrap=true: %v", err)
	}
	if out[0].N.String() != "1" {
		t.Errorf("expected 100 mod 3 = 1, got %s", out[0].N)
	}
}

func TestValidateShape(t *testing.T) {
	from := NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(11)})
	to := NewField(ir.TypeSpec{Kind: ir.FieldType, Prime: ir.NewNumber(3)})
	conv := NewBigIntConverter(from, to, 1, 3)

	spec := ir.ConversionSpec{InLength: 1, OutLength: 3}
	if !ValidateShape(conv, spec) {
		t.Errorf("expected matching shapes to validate")
	}
	if ValidateShape(conv, ir.ConversionSpec{InLength: 2, OutLength: 3}) {
		t.Errorf("expected mismatched InLength to fail validation")
	}
}
