// Package registry implements the two lookup tables the interpreter
// consults by name/shape rather than by position: FunctionRegistry
// (spec.md section 4.4's no-recursion invariant) and ConverterRegistry
// (spec.md section 4.1's Convert gate, keyed by declared shape).
package registry

import (
	"github.com/sieveir/sievekit/diag"
	"github.com/sieveir/sievekit/ir"
)

// FunctionRegistry maps a declared function's name to its body and
// declaration position. Declaration order matters: a function may only
// call functions declared strictly before it (spec.md section 4.4, Pass
// 1), which rules out recursion and mutual recursion without a call-graph
// walk — the position check alone is sufficient and is what Pass 1 does.
type FunctionRegistry struct {
	byName map[string]entry
	order  []string
}

type entry struct {
	fn  *ir.Function
	pos int
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{byName: make(map[string]entry)}
}

// Declare registers fn under name at the next declaration position. It
// is a StructuralError to declare the same name twice.
func (r *FunctionRegistry) Declare(name string, fn *ir.Function) error {
	if _, exists := r.byName[name]; exists {
		return diag.Err(diag.StructuralError, diag.GateRef{}, "function %q declared more than once", name)
	}
	pos := len(r.order)
	r.byName[name] = entry{fn: fn, pos: pos}
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the function declared under name, or false.
func (r *FunctionRegistry) Lookup(name string) (*ir.Function, bool) {
	e, ok := r.byName[name]
	return e.fn, ok
}

// PrecheckCallArity reports whether name's declared signature matches
// the number of output and input wires a call site supplies, without
// needing the callee's position — a cheap structural check the
// interpreter runs before attempting the (possibly much later, for
// forward-declared plugin functions) full call, supplementing the
// original CircuitIR's eager arity validation (original_source/.../
// Functions.t.h, SPEC_FULL.md section 12).
func (r *FunctionRegistry) PrecheckCallArity(name string, numOutputs, numInputs uint64) error {
	fn, ok := r.Lookup(name)
	if !ok {
		return diag.Err(diag.StructuralError, diag.GateRef{}, "call to undeclared function %q", name)
	}
	if fn.Signature.NumOutputs() != numOutputs {
		return diag.Err(diag.StructuralError, diag.GateRef{}, "call to %q supplies %d output wires, declared %d", name, numOutputs, fn.Signature.NumOutputs())
	}
	if fn.Signature.NumInputs() != numInputs {
		return diag.Err(diag.StructuralError, diag.GateRef{}, "call to %q supplies %d input wires, declared %d", name, numInputs, fn.Signature.NumInputs())
	}
	return nil
}

// CheckDeclaredBefore enforces spec.md's no-recursion invariant: caller
// may only name a callee declared strictly earlier. calleeName and
// callerPos (the caller's own declaration position, or len(order) for a
// call from the top-level body) are supplied by Pass 1 as it walks
// declarations in order.
func (r *FunctionRegistry) CheckDeclaredBefore(calleeName string, callerPos int) error {
	e, ok := r.byName[calleeName]
	if !ok {
		return diag.Err(diag.StructuralError, diag.GateRef{}, "call to undeclared function %q", calleeName)
	}
	if e.pos >= callerPos {
		return diag.Err(diag.StructuralError, diag.GateRef{}, "function %q may not call %q, which is not declared before it", orderName(r, callerPos), calleeName)
	}
	return nil
}

func orderName(r *FunctionRegistry, pos int) string {
	if pos < 0 || pos >= len(r.order) {
		return "<top-level>"
	}
	return r.order[pos]
}

// Names returns every declared function name, in declaration order.
func (r *FunctionRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
