package ir

// GateKind tags the ~15 closed gate variants (spec.md section 4.1). The
// gate set is closed and stable, so dispatch uses a single tagged union
// switched on Kind rather than a class hierarchy (SPEC_FULL.md's design
// notes, section 9, carried over from spec.md's own design notes): that
// keeps the interpreter's hot loop a flat switch instead of an interface
// dispatch per gate.
type GateKind int

const (
	Add GateKind = iota
	Mul
	AddC
	MulC
	Copy
	CopyMulti
	Assign
	AssertZero
	PublicIn
	PrivateIn
	PublicInMulti
	PrivateInMulti
	Convert
	New
	Delete
	Call
)

func (k GateKind) String() string {
	switch k {
	case Add:
		return "Add"
	case Mul:
		return "Mul"
	case AddC:
		return "AddC"
	case MulC:
		return "MulC"
	case Copy:
		return "Copy"
	case CopyMulti:
		return "CopyMulti"
	case Assign:
		return "Assign"
	case AssertZero:
		return "AssertZero"
	case PublicIn:
		return "PublicIn"
	case PrivateIn:
		return "PrivateIn"
	case PublicInMulti:
		return "PublicInMulti"
	case PrivateInMulti:
		return "PrivateInMulti"
	case Convert:
		return "Convert"
	case New:
		return "New"
	case Delete:
		return "Delete"
	case Call:
		return "Call"
	default:
		return "Unknown"
	}
}

// Gate is one instruction in a function body. Only the fields relevant to
// Kind are meaningful, and callers read them directly. A switch or
// for-loop directive is marked by a non-nil Switch or ForLoop field
// rather than by Kind, which such a gate leaves at its zero value; a
// Switch keeps its output range in Switch.Outputs, not in Out.
type Gate struct {
	Kind GateKind
	Line int // opaque source location, used only for diagnostics

	Type TypeIndex

	// Single-wire operands, used by Add/Mul/AddC/MulC/Copy/Assign/
	// AssertZero/PublicIn/PrivateIn.
	Left  Wire
	Right Wire
	Out   Wire
	Const Number

	// Range operands, used by CopyMulti/PublicInMulti/PrivateInMulti/
	// Convert/New/Delete.
	OutRange  Range
	InRanges  []Range
	FromType  TypeIndex // Convert's source type (Type is the destination)
	InLength  uint64    // Convert's declared source length
	OutLength uint64    // Convert's declared destination length
	Modulus   bool      // Convert's modulus flag (wrapping vs exact)

	// Call fields.
	CallName    string
	CallInputs  []Range
	CallOutputs []Range

	// Switch is non-nil when this gate is a (not-yet-lowered) switch
	// directive (spec.md section 4.4).
	Switch *Switch

	// ForLoop is non-nil when this gate is a for-loop directive (spec.md
	// section 4.4).
	ForLoop *ForLoop
}

// SwitchCase is one arm of a Switch: a field-element match value and a
// body evaluated obliviously under an enable bit.
type SwitchCase struct {
	Match Number
	Body  []Gate
}

// Switch is the switch-case directive (spec.md section 4.4), present only
// in trees that have not yet been run through transform.LowerSwitches.
type Switch struct {
	// Cond is the condition wire, read from the parent scope of type
	// CondLoc.
	Cond    Wire
	CondLoc TypeIndex
	Cases   []SwitchCase
	Outputs Range
	OutType TypeIndex
}

// IterExprKind tags the shape of an iteration expression (spec.md
// section 4.4 and section 4.5).
type IterExprKind int

const (
	IterConst IterExprKind = iota
	IterVar
	IterAdd
	IterSub
	IterMul
	IterDivLiteral
)

// IterExpr is a linear expression over loop iterator names and literals,
// restricted to +, -, *, and division by a literal (spec.md section 4.4).
type IterExpr struct {
	Kind IterExprKind

	Literal Number
	Var     string

	Left  *IterExpr
	Right *IterExpr
	// Divisor is set when Kind == IterDivLiteral.
	Divisor Number
}

// ForLoopBody is either a named function call or an inline anonymous
// function body (spec.md section 4.4).
type ForLoopBody struct {
	// CallName is set when the body is a named call.
	CallName string
	// Anonymous is set when the body is an inline anonymous function.
	Anonymous []Gate
	// AnonSignature describes the anonymous body's boundary; ignored
	// when CallName is set.
	AnonSignature Signature
}

// ForLoop is the for-loop directive (spec.md section 4.4).
type ForLoop struct {
	Iterator string
	First    int64
	Last     int64

	// Outputs/Inputs are expressed in the parent scope via iteration
	// expressions, one list of ranges per iteration boundary.
	OutputExprs []RangeExpr
	InputExprs  []RangeExpr

	Body ForLoopBody
}

// RangeExpr is a contiguous range whose endpoints are iteration
// expressions, e.g. "$(5*i) ... $(5*i+4)".
type RangeExpr struct {
	First IterExpr
	Last  IterExpr
	Type  TypeIndex
}
