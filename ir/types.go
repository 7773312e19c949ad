// Package ir defines the SIEVE IR data model: wire/type indices, ranges,
// type specifications, plugin bindings, functions, the gate taxonomy, and
// the Tree that owns all of it. See spec.md section 3 and 4.1.
//
// A Tree is built once by a parser (out of scope here; spec.md section 1)
// and is immutable thereafter. Transformations such as transform.LowerSwitches
// build a new Tree rather than mutating the original, following the
// whole-tree-immutable-after-parse discipline in wtk::irregular::CircuitIR
// (SPEC_FULL.md section 12, point 5).
package ir

// Wire is a 64-bit, scope-local wire identifier. The same integer may
// name different wires in different scopes.
type Wire uint64

// TypeIndex selects one TypeBackend out of the fixed list declared in the
// circuit header. It fits in 8 bits (spec.md section 3).
type TypeIndex uint8

// Range is an inclusive (First, Last) span of wire indices. A single wire
// is the degenerate range where First == Last.
type Range struct {
	First Wire
	Last  Wire
}

// Single builds the degenerate range naming exactly one wire.
func Single(w Wire) Range { return Range{First: w, Last: w} }

// Len returns the number of wires spanned by the range.
func (r Range) Len() uint64 {
	if r.Last < r.First {
		return 0
	}
	return uint64(r.Last-r.First) + 1
}

// Valid reports whether First <= Last.
func (r Range) Valid() bool { return r.First <= r.Last }

// Overlaps reports whether r and o share at least one wire.
func (r Range) Overlaps(o Range) bool {
	return r.First <= o.Last && o.First <= r.Last
}

// Adjacent reports whether r and o are contiguous (touching, no overlap,
// no gap) so they could be coalesced into one allocation.
func (r Range) Adjacent(o Range) bool {
	if r.Overlaps(o) {
		return false
	}
	if r.Last+1 == o.First {
		return true
	}
	if o.Last+1 == r.First {
		return true
	}
	return false
}

// TypeKind tags the shape of a TypeSpec.
type TypeKind int

const (
	FieldType TypeKind = iota
	RingType
	PluginType
)

// TypeSpec is one entry of the circuit header's type list (spec.md
// section 3): a prime field, a bit-width ring, or an opaque plugin type
// the backend must recognize by name.
type TypeSpec struct {
	Kind TypeKind

	// Prime is set when Kind == FieldType.
	Prime Number
	// BitWidth is set when Kind == RingType; the modulus is 2^BitWidth.
	BitWidth uint
	// PluginName/PluginOperation are set when Kind == PluginType.
	PluginName      string
	PluginOperation string
}

// Modulus returns the effective modulus for a field or ring type. It
// panics for plugin types, which have no numeric modulus.
func (t TypeSpec) Modulus() Number {
	switch t.Kind {
	case FieldType:
		return t.Prime
	case RingType:
		return NewNumber(1).Lsh(NewNumber(1), t.BitWidth)
	default:
		panic("ir: Modulus called on a plugin TypeSpec")
	}
}

// PluginParam is one ordered parameter of a PluginBinding: either a
// numeric literal or an identifier (spec.md section 3).
type PluginParam struct {
	IsIdent bool
	Number  Number
	Ident   string
}

// PluginBinding describes a function body implemented by a named plugin
// primitive rather than a gate sequence (spec.md section 3).
type PluginBinding struct {
	Name      string
	Operation string
	Params    []PluginParam
	// PublicInputCount/PrivateInputCount are indexed by TypeIndex.
	PublicInputCount  map[TypeIndex]uint64
	PrivateInputCount map[TypeIndex]uint64
}

// Signature describes the shape of a function's boundary: an ordered
// list of (type, count) output groups followed by an ordered list of
// (type, count) input groups.
type Signature struct {
	Name    string
	Outputs []TypeCount
	Inputs  []TypeCount
}

// TypeCount pairs a type index with a wire count.
type TypeCount struct {
	Type  TypeIndex
	Count uint64
}

// NumOutputs/NumInputs sum the counts across all type groups, i.e. the
// total dense span a callee's scope reserves for that region (spec.md
// section 4.3's remapOutputs/remapInputs contract).
func (s Signature) NumOutputs() uint64 { return sumCounts(s.Outputs) }
func (s Signature) NumInputs() uint64  { return sumCounts(s.Inputs) }

func sumCounts(tc []TypeCount) uint64 {
	var n uint64
	for _, c := range tc {
		n += c.Count
	}
	return n
}

// Function is a named, immutable declaration: either a regular gate-list
// body or a plugin-bound body (spec.md section 3). Functions are created
// once during the declaration phase and referenced by zero or more call
// sites thereafter.
type Function struct {
	Signature Signature
	Body      []Gate
	Plugin    *PluginBinding
}

// IsPlugin reports whether this function's body is a plugin binding
// rather than a gate sequence.
func (f *Function) IsPlugin() bool { return f.Plugin != nil }
