package ir

// ConversionSpec declares one registered converter shape: InLength wires of
// FromType convert to OutLength wires of ToType (spec.md section 6,
// declareConversion).
type ConversionSpec struct {
	FromType  TypeIndex
	InLength  uint64
	ToType    TypeIndex
	OutLength uint64
}

// Header carries the circuit-wide declarations emitted once by the parser
// before any function or gate (spec.md section 6: setHeader, declarePlugin,
// declareType, declareConversion).
type Header struct {
	VersionMajor int
	VersionMinor int
	VersionPatch int
	VersionExtra string

	ResourceType string

	Plugins     []string
	Types       []TypeSpec
	Conversions []ConversionSpec
}

// Tree is a fully parsed, immutable circuit: a header, a set of named
// function declarations, and a top-level gate list. Transformations (e.g.
// transform.LowerSwitches) build and return a new Tree rather than
// mutating this one, following wtk::irregular::CircuitIR's whole-tree
// immutability discipline (SPEC_FULL.md section 12, point 5).
//
// Tree exclusively owns all gates, functions, nested directive lists, and
// iteration expressions (spec.md section 3's ownership summary); it lives
// from parse time until after interpretation.
type Tree struct {
	Header    Header
	Functions []NamedFunction
	Body      []Gate
}

// NamedFunction pairs a declared function with its name, in declaration
// order — order matters for the no-recursion invariant (spec.md section
// 4.4, Pass 1).
type NamedFunction struct {
	Name string
	Fn   *Function
}

// New builds an immutable Tree from already-assembled parts. Parsing
// (surface syntax to this shape) is out of scope here; spec.md section 1
// treats it as an external collaborator emitting either a Handler
// callback stream (see package protocol) or a materialized Tree directly.
func New(header Header, functions []NamedFunction, body []Gate) *Tree {
	fns := make([]NamedFunction, len(functions))
	copy(fns, functions)
	gates := make([]Gate, len(body))
	copy(gates, body)
	return &Tree{Header: header, Functions: fns, Body: gates}
}

// FunctionNamed returns the function declared under name, if any, and the
// position of its declaration (used by callers that must enforce "refers
// to a name declared before this one").
func (t *Tree) FunctionNamed(name string) (*Function, int, bool) {
	for i, nf := range t.Functions {
		if nf.Name == name {
			return nf.Fn, i, true
		}
	}
	return nil, -1, false
}

// TypeOf returns the TypeSpec for idx, or false if idx is out of range
// (a StructuralError per spec.md section 7).
func (t *Tree) TypeOf(idx TypeIndex) (TypeSpec, bool) {
	if int(idx) < 0 || int(idx) >= len(t.Header.Types) {
		return TypeSpec{}, false
	}
	return t.Header.Types[idx], true
}
