package interp

import (
	"fmt"

	"github.com/sieveir/sievekit/backend"
	"github.com/sieveir/sievekit/diag"
	"github.com/sieveir/sievekit/ir"
	"github.com/sieveir/sievekit/wire"
)

// frame is one function/for-loop activation: one wire.Scope per declared
// type, plus the trail of enclosing frames used to build diagnostics.
type frame struct {
	scopes map[ir.TypeIndex]*wire.Scope[backend.Value]
	trail  FrameTrail
}

func newFrame(types []ir.TypeSpec, trail FrameTrail) *frame {
	f := &frame{scopes: make(map[ir.TypeIndex]*wire.Scope[backend.Value]), trail: trail}
	for i := range types {
		f.scopes[ir.TypeIndex(i)] = wire.NewScope[backend.Value]()
	}
	return f
}

func (f *frame) scopeFor(t ir.TypeIndex) *wire.Scope[backend.Value] { return f.scopes[t] }

// FrameTrail is the stack of enclosing function/for-loop/switch-case
// frames a diagnostic is raised within, recovered the way
// wtk::firealarm::TreeAlarm recovers a source trail for an assertion
// failure deep in nested calls (SPEC_FULL.md section 12): instead of a
// file/line pair, each entry names the construct (function name, loop
// iterator binding, case match value) that the evaluator descended
// through to reach the failing gate.
type FrameTrail []string

// Push returns a new trail with label appended, leaving the receiver
// untouched (frames fork when a function is called from more than one
// site, so sibling calls must not share a mutable trail).
func (t FrameTrail) Push(label string) FrameTrail {
	out := make(FrameTrail, len(t)+1)
	copy(out, t)
	out[len(t)] = label
	return out
}

func (t FrameTrail) ref(funcName string, gateIndex int, gateKind string) diag.GateRef {
	return diag.GateRef{FuncName: funcName, GateIndex: gateIndex, GateKind: gateKind, Path: []string(t)}
}

func callLabel(name string, pos int) string { return fmt.Sprintf("%s#%d", name, pos) }

func loopLabel(iterator string, i int64) string { return fmt.Sprintf("for %s=%d", iterator, i) }

func caseLabel(match ir.Number) string { return fmt.Sprintf("case %s", match) }
