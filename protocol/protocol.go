// Package protocol implements the parser-to-interpreter callback sequence
// (spec.md section 6) that separates surface-syntax parsing (out of
// scope here) from the ir.Tree this module's own packages consume. It is
// grounded on the teacher's engine/protocol package: that package also
// sits between an external caller and the core engine, accruing state
// across a sequence of calls (its State.State/Mode/Dir fields built up
// across Open/Setdir/etc.) and reporting success with an "OK"/"Error"
// reply rather than panicking on a malformed request.
//
// Where the teacher dispatches named JSON commands ("open", "setdir",
// "xrun", ...) against a shared *State, this package dispatches named
// JSON events ("setHeader", "declareType", "gate", ...) against a
// Handler, matching the fixed textual order spec.md section 6 specifies:
//
//	setHeader(version, resource_type)
//	declarePlugin(name)                     (0+ times)
//	declareType(TypeSpec)                   (1+ times)
//	declareConversion(ConversionSpec)       (0+ times)
//	beginBody()
//	[ startFunction(sig); ( regularFunction(); gate*; endFunction() | pluginFunction(binding) ) ]*
//	gate*
//	endBody()
package protocol

import (
	"strconv"

	"github.com/sieveir/sievekit/ir"
)

// Version is the three-integer-plus-extra version identification spec.md
// section 6 describes. Comparison is left to the enclosing tool (the
// core never rejects a circuit on version grounds), which is why Compare
// lives here rather than on ir.Header.
type Version struct {
	Major int
	Minor int
	Patch int
	Extra string
}

// Compare orders v against o by (Major, Minor, Patch), ignoring Extra
// (an alphanumeric tag with no defined ordering). Returns -1, 0, or 1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return sign(v.Major - o.Major)
	case v.Minor != o.Minor:
		return sign(v.Minor - o.Minor)
	default:
		return sign(v.Patch - o.Patch)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func (v Version) String() string {
	s := strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor) + "." + strconv.Itoa(v.Patch)
	if v.Extra != "" {
		s += "-" + v.Extra
	}
	return s
}

// Handler receives the parser's callback sequence in textual order. Every
// method returns (bool, error): a false result (conventionally paired
// with a non-nil error describing why) tells the caller driving the
// sequence — Decode, or a parser calling a Handler directly — to stop
// feeding further events, mirroring spec.md section 6's "the callback
// may return false to abort" and the teacher's own Command.Validate
// returning (bool, error) before Run proceeds.
type Handler interface {
	SetHeader(version Version, resourceType string) (bool, error)
	DeclarePlugin(name string) (bool, error)
	DeclareType(spec ir.TypeSpec) (bool, error)
	DeclareConversion(spec ir.ConversionSpec) (bool, error)
	BeginBody() (bool, error)
	StartFunction(sig ir.Signature) (bool, error)
	RegularFunction() (bool, error)
	PluginFunction(binding ir.PluginBinding) (bool, error)
	EndFunction() (bool, error)
	Gate(g ir.Gate) (bool, error)
	EndBody() (bool, error)
}
