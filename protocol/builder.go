package protocol

import (
	"github.com/sieveir/sievekit/diag"
	"github.com/sieveir/sievekit/ir"
)

// phase tracks where a TreeBuilder sits in spec.md section 6's fixed
// call order, the same role the teacher's State.State int plays across
// Open/Setdir/etc. (0 = nothing configured, 1 = opened, 2 = filesystem
// configured) — here the phases are the grammar's own production
// boundaries instead of the teacher's three ad hoc milestones.
type phase int

const (
	phaseInit phase = iota
	phaseHeader
	phaseBody
	phaseFunctionDecl
	phaseFunctionBody
	phaseDone
)

// TreeBuilder is a Handler that accumulates exactly one ir.Tree out of a
// call sequence, validating that every call arrives in the order spec.md
// section 6 requires (the equivalent of the teacher's per-command
// Validate checks against state.State, generalized to the grammar's own
// phase transitions rather than three hand-picked milestones).
type TreeBuilder struct {
	ph phase

	header ir.Header

	functions []ir.NamedFunction
	topBody   []ir.Gate

	curName string
	curSig  ir.Signature
	curBody []ir.Gate
}

// NewTreeBuilder returns an empty builder, ready to receive SetHeader.
func NewTreeBuilder() *TreeBuilder {
	return &TreeBuilder{ph: phaseInit}
}

func outOfOrder(call string) (bool, error) {
	return false, diag.Err(diag.StructuralError, diag.GateRef{}, "protocol: %s called out of order", call)
}

func (b *TreeBuilder) SetHeader(version Version, resourceType string) (bool, error) {
	if b.ph != phaseInit {
		return outOfOrder("setHeader")
	}
	b.header.VersionMajor = version.Major
	b.header.VersionMinor = version.Minor
	b.header.VersionPatch = version.Patch
	b.header.VersionExtra = version.Extra
	b.header.ResourceType = resourceType
	b.ph = phaseHeader
	return true, nil
}

func (b *TreeBuilder) DeclarePlugin(name string) (bool, error) {
	if b.ph != phaseHeader {
		return outOfOrder("declarePlugin")
	}
	b.header.Plugins = append(b.header.Plugins, name)
	return true, nil
}

func (b *TreeBuilder) DeclareType(spec ir.TypeSpec) (bool, error) {
	if b.ph != phaseHeader {
		return outOfOrder("declareType")
	}
	b.header.Types = append(b.header.Types, spec)
	return true, nil
}

func (b *TreeBuilder) DeclareConversion(spec ir.ConversionSpec) (bool, error) {
	if b.ph != phaseHeader {
		return outOfOrder("declareConversion")
	}
	if len(b.header.Types) == 0 {
		return outOfOrder("declareConversion (no types declared yet)")
	}
	b.header.Conversions = append(b.header.Conversions, spec)
	return true, nil
}

func (b *TreeBuilder) BeginBody() (bool, error) {
	if b.ph != phaseHeader || len(b.header.Types) == 0 {
		return outOfOrder("beginBody")
	}
	b.ph = phaseBody
	return true, nil
}

func (b *TreeBuilder) StartFunction(sig ir.Signature) (bool, error) {
	if b.ph != phaseBody {
		return outOfOrder("startFunction")
	}
	for _, nf := range b.functions {
		if nf.Name == sig.Name {
			return false, diag.Err(diag.StructuralError, diag.GateRef{}, "function %q declared more than once", sig.Name)
		}
	}
	b.curName = sig.Name
	b.curSig = sig
	b.curBody = nil
	b.ph = phaseFunctionDecl
	return true, nil
}

func (b *TreeBuilder) RegularFunction() (bool, error) {
	if b.ph != phaseFunctionDecl {
		return outOfOrder("regularFunction")
	}
	b.ph = phaseFunctionBody
	return true, nil
}

func (b *TreeBuilder) PluginFunction(binding ir.PluginBinding) (bool, error) {
	if b.ph != phaseFunctionDecl {
		return outOfOrder("pluginFunction")
	}
	fn := &ir.Function{Signature: b.curSig, Plugin: &binding}
	b.functions = append(b.functions, ir.NamedFunction{Name: b.curName, Fn: fn})
	b.curName, b.curSig, b.curBody = "", ir.Signature{}, nil
	b.ph = phaseBody
	return true, nil
}

func (b *TreeBuilder) EndFunction() (bool, error) {
	if b.ph != phaseFunctionBody {
		return outOfOrder("endFunction")
	}
	fn := &ir.Function{Signature: b.curSig, Body: b.curBody}
	b.functions = append(b.functions, ir.NamedFunction{Name: b.curName, Fn: fn})
	b.curName, b.curSig, b.curBody = "", ir.Signature{}, nil
	b.ph = phaseBody
	return true, nil
}

func (b *TreeBuilder) Gate(g ir.Gate) (bool, error) {
	switch b.ph {
	case phaseFunctionBody:
		b.curBody = append(b.curBody, g)
	case phaseBody:
		b.topBody = append(b.topBody, g)
	default:
		return outOfOrder("gate")
	}
	return true, nil
}

func (b *TreeBuilder) EndBody() (bool, error) {
	if b.ph != phaseBody {
		return outOfOrder("endBody")
	}
	b.ph = phaseDone
	return true, nil
}

// Tree returns the accumulated tree. It errors unless the call sequence
// reached EndBody, since a partially built tree (e.g. one still inside a
// function declaration) is never a valid ir.Tree.
func (b *TreeBuilder) Tree() (*ir.Tree, error) {
	if b.ph != phaseDone {
		return nil, diag.Err(diag.StructuralError, diag.GateRef{}, "protocol: endBody never called")
	}
	return ir.New(b.header, b.functions, b.topBody), nil
}
