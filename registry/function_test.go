package registry

import (
	"testing"

	"github.com/sieveir/sievekit/ir"
)

func makeFn(numOut, numIn uint64) *ir.Function {
	return &ir.Function{
		Signature: ir.Signature{
			Outputs: []ir.TypeCount{{Type: 0, Count: numOut}},
			Inputs:  []ir.TypeCount{{Type: 0, Count: numIn}},
		},
	}
}

func TestFunctionRegistryDeclareAndLookup(t *testing.T) {
	r := NewFunctionRegistry()
	if err := r.Declare("double", makeFn(1, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Declare("double", makeFn(1, 1)); err == nil {
		t.Fatalf("expected duplicate declaration to fail")
	}
	if _, ok := r.Lookup("double"); !ok {
		t.Fatalf("expected to find double")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Fatalf("did not expect to find missing")
	}
}

func TestFunctionRegistryPrecheckCallArity(t *testing.T) {
	r := NewFunctionRegistry()
	_ = r.Declare("add2", makeFn(1, 2))

	if err := r.PrecheckCallArity("add2", 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.PrecheckCallArity("add2", 2, 2); err == nil {
		t.Fatalf("expected output arity mismatch to fail")
	}
	if err := r.PrecheckCallArity("add2", 1, 3); err == nil {
		t.Fatalf("expected input arity mismatch to fail")
	}
	if err := r.PrecheckCallArity("missing", 0, 0); err == nil {
		t.Fatalf("expected call to undeclared function to fail")
	}
}

func TestFunctionRegistryNoRecursion(t *testing.T) {
	r := NewFunctionRegistry()
	_ = r.Declare("first", makeFn(1, 1))
	_ = r.Declare("second", makeFn(1, 1))

	if err := r.CheckDeclaredBefore("first", 1); err != nil {
		t.Fatalf("unexpected error: second (pos 1) calling first (pos 0): %v", err)
	}
	if err := r.CheckDeclaredBefore("second", 1); err == nil {
		t.Fatalf("expected self-recursion (second calling second) to fail")
	}
	if err := r.CheckDeclaredBefore("second", 0); err == nil {
		t.Fatalf("expected first (pos 0) calling second (pos 1, declared later) to fail")
	}
}
