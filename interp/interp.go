// Package interp implements the two-pass tree-walking interpreter
// (spec.md section 4.4): Pass 1 collects function declarations and
// checks the no-recursion invariant; Pass 2 executes the top-level gate
// list against a fresh per-type wire.Scope frame, descending into calls
// and for-loops as it goes.
package interp

import (
	"github.com/sirupsen/logrus"

	"github.com/sieveir/sievekit/backend"
	"github.com/sieveir/sievekit/diag"
	"github.com/sieveir/sievekit/ir"
	"github.com/sieveir/sievekit/iterexpr"
	"github.com/sieveir/sievekit/registry"
	"github.com/sieveir/sievekit/stream"
)

// Interpreter evaluates one Tree against a concrete set of per-type
// backends, converters, and input streams, recording diagnostics in a
// Log. Evaluation stops at the first error (see Run); only a failed
// assertion under WithSuppressedAssertions(true) is recorded and then
// passed over (spec.md section 7).
type Interpreter struct {
	tree       *ir.Tree
	backends   map[ir.TypeIndex]backend.TypeBackend
	converters *registry.ConverterRegistry
	functions  *registry.FunctionRegistry
	streams    *stream.Set
	log        *diag.Log
	trace      *logrus.Entry

	// suppressAssertions mirrors config.Mode.SuppressesAssertionFailures:
	// verifier/preprocess modes record an AssertionFailed diagnostic but
	// let Run continue rather than aborting, since the witness needed to
	// evaluate the assertion honestly may not exist yet (spec.md section
	// 6's Exit Codes paragraph). Default false preserves prove-mode's
	// abort-on-first-failed-assertion behavior for every existing caller
	// of New.
	suppressAssertions bool
}

// WithSuppressedAssertions sets whether a failed AssertZero aborts Run
// (the default) or is merely logged and skipped over, per config.Mode.
// It returns in for chaining at the call site, e.g.
// interp.New(...).WithSuppressedAssertions(opts.Mode.SuppressesAssertionFailures()).
func (in *Interpreter) WithSuppressedAssertions(suppress bool) *Interpreter {
	in.suppressAssertions = suppress
	return in
}

// New builds an Interpreter for tree, ready to Run. backends must have
// one entry per declared type; converters holds every registered
// Convert-gate implementation.
func New(tree *ir.Tree, backends map[ir.TypeIndex]backend.TypeBackend, converters *registry.ConverterRegistry, streams *stream.Set, trace *logrus.Logger) *Interpreter {
	if trace == nil {
		trace = logrus.New()
		trace.SetLevel(logrus.WarnLevel)
	}
	return &Interpreter{
		tree:       tree,
		backends:   backends,
		converters: converters,
		functions:  registry.NewFunctionRegistry(),
		streams:    streams,
		log:        diag.NewLog(),
		trace:      trace.WithField("component", "interp"),
	}
}

// Run executes the tree and returns the accumulated diagnostics. A
// non-nil error is a hard abort (StructuralError/WireError/StreamError/
// BackendError, per spec.md section 7's propagation policy);
// AssertionFailed entries are recorded in the Log and also abort, since
// a single failed assertion invalidates the whole witness, unless
// WithSuppressedAssertions(true) was set, in which case evaluation
// continues past them.
func (in *Interpreter) Run() (*diag.Log, error) {
	if err := in.declarePass(); err != nil {
		return in.log, err
	}
	top := newFrame(in.tree.Header.Types, nil)
	if err := in.execGates(in.tree.Body, top, "<top>"); err != nil {
		return in.log, err
	}
	if !in.streams.AllExhausted() {
		return in.log, diag.Err(diag.StreamError, diag.GateRef{}, "one or more input streams have unread values at end of program")
	}
	if err := in.checkBackends(); err != nil {
		return in.log, err
	}
	return in.log, nil
}

// checkBackends calls every declared type's Check() once execution has
// finished (spec.md section 2's data-flow diagram: "TypeBackend ->
// check()", the pipeline's final step), failing with BackendError if any
// reports end-of-evaluation invalidity.
func (in *Interpreter) checkBackends() error {
	for t, b := range in.backends {
		if !b.Check() {
			return diag.Err(diag.BackendError, diag.GateRef{}, "backend for type %d failed end-of-evaluation validity check", t)
		}
	}
	return nil
}

// declarePass is Pass 1: register every named function, then walk each
// function's body (and the top-level body) for Call/ForLoop references,
// checking the no-recursion invariant (spec.md section 4.4).
func (in *Interpreter) declarePass() error {
	for _, nf := range in.tree.Functions {
		if err := in.functions.Declare(nf.Name, nf.Fn); err != nil {
			return err
		}
	}
	for pos, nf := range in.tree.Functions {
		if nf.Fn.IsPlugin() {
			continue
		}
		if err := in.checkCallGraph(nf.Fn.Body, pos); err != nil {
			return err
		}
	}
	return in.checkCallGraph(in.tree.Body, len(in.tree.Functions))
}

func (in *Interpreter) checkCallGraph(gates []ir.Gate, callerPos int) error {
	for _, g := range gates {
		switch {
		case g.Kind == ir.Call:
			if err := in.functions.CheckDeclaredBefore(g.CallName, callerPos); err != nil {
				return err
			}
			if err := in.functions.PrecheckCallArity(g.CallName, totalLen(g.CallOutputs), totalLen(g.CallInputs)); err != nil {
				return err
			}
		case g.Switch != nil:
			for _, c := range g.Switch.Cases {
				if err := in.checkCallGraph(c.Body, callerPos); err != nil {
					return err
				}
			}
		case g.ForLoop != nil:
			if g.ForLoop.Body.CallName != "" {
				if err := in.functions.CheckDeclaredBefore(g.ForLoop.Body.CallName, callerPos); err != nil {
					return err
				}
			} else if err := in.checkCallGraph(g.ForLoop.Body.Anonymous, callerPos); err != nil {
				return err
			}
		}
	}
	return nil
}

func totalLen(ranges []ir.Range) uint64 {
	var n uint64
	for _, r := range ranges {
		n += r.Len()
	}
	return n
}

func (in *Interpreter) backendFor(t ir.TypeIndex) (backend.TypeBackend, error) {
	b, ok := in.backends[t]
	if !ok {
		return nil, diag.Err(diag.StructuralError, diag.GateRef{}, "no backend registered for type %d", t)
	}
	return b, nil
}

// execGates runs one gate list in frame, labeled label for tracing.
func (in *Interpreter) execGates(gates []ir.Gate, f *frame, label string) error {
	in.trace.WithField("frame", label).Debugf("executing %d gates", len(gates))
	for idx, g := range gates {
		if err := in.execGate(g, idx, f); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) execGate(g ir.Gate, idx int, f *frame) error {
	ref := func() diag.GateRef { return f.trail.ref("", idx, g.Kind.String()) }

	// Switch/ForLoop directives carry no GateKind of their own (Kind is
	// left at its zero value, ir.Add, on those gates) — check for them
	// before dispatching on Kind, or a not-yet-lowered switch would be
	// misread as an arithmetic Add gate on wire 0.
	if g.Switch != nil {
		return in.execSwitch(g, f)
	}
	if g.ForLoop != nil {
		return in.execForLoop(g, f)
	}

	switch g.Kind {
	case ir.Add, ir.Mul:
		return in.execBinary(g, f, ref)
	case ir.AddC, ir.MulC:
		return in.execBinaryConst(g, f, ref)
	case ir.Copy:
		return in.execCopy(g, f, ref)
	case ir.CopyMulti:
		return in.execCopyMulti(g, f, ref)
	case ir.Assign:
		return in.execAssign(g, f, ref)
	case ir.AssertZero:
		return in.execAssertZero(g, f, ref)
	case ir.PublicIn, ir.PrivateIn:
		return in.execIn(g, f, ref, false)
	case ir.PublicInMulti, ir.PrivateInMulti:
		return in.execIn(g, f, ref, true)
	case ir.Convert:
		return in.execConvert(g, f, ref)
	case ir.New:
		f.scopeFor(g.Type).AllocateRange(g.OutRange)
		return nil
	case ir.Delete:
		return f.scopeFor(g.Type).RemoveRange(g.OutRange)
	case ir.Call:
		return in.execCall(g, f)
	default:
		return diag.Err(diag.StructuralError, ref(), "unhandled gate kind %s", g.Kind)
	}
}

func (in *Interpreter) execBinary(g ir.Gate, f *frame, ref func() diag.GateRef) error {
	b, err := in.backendFor(g.Type)
	if err != nil {
		return err
	}
	s := f.scopeFor(g.Type)
	left, err := s.Retrieve(g.Left)
	if err != nil {
		return diag.Err(diag.WireError, ref(), "%v", err)
	}
	right, err := s.Retrieve(g.Right)
	if err != nil {
		return diag.Err(diag.WireError, ref(), "%v", err)
	}
	var result backend.Value
	if g.Kind == ir.Add {
		result = b.Add(*left, *right)
	} else {
		result = b.Mul(*left, *right)
	}
	out, err := s.Insert(g.Out)
	if err != nil {
		return diag.Err(diag.WireError, ref(), "%v", err)
	}
	*out = result
	return nil
}

func (in *Interpreter) execBinaryConst(g ir.Gate, f *frame, ref func() diag.GateRef) error {
	b, err := in.backendFor(g.Type)
	if err != nil {
		return err
	}
	s := f.scopeFor(g.Type)
	left, err := s.Retrieve(g.Left)
	if err != nil {
		return diag.Err(diag.WireError, ref(), "%v", err)
	}
	var result backend.Value
	if g.Kind == ir.AddC {
		result = b.AddC(*left, g.Const)
	} else {
		result = b.MulC(*left, g.Const)
	}
	out, err := s.Insert(g.Out)
	if err != nil {
		return diag.Err(diag.WireError, ref(), "%v", err)
	}
	*out = result
	return nil
}

func (in *Interpreter) execCopy(g ir.Gate, f *frame, ref func() diag.GateRef) error {
	s := f.scopeFor(g.Type)
	v, err := s.Retrieve(g.Left)
	if err != nil {
		return diag.Err(diag.WireError, ref(), "%v", err)
	}
	out, err := s.Insert(g.Out)
	if err != nil {
		return diag.Err(diag.WireError, ref(), "%v", err)
	}
	*out = *v
	return nil
}

func (in *Interpreter) execCopyMulti(g ir.Gate, f *frame, ref func() diag.GateRef) error {
	s := f.scopeFor(g.Type)
	if len(g.InRanges) != 1 || g.InRanges[0].Len() != g.OutRange.Len() {
		return diag.Err(diag.StructuralError, ref(), "copyMulti source/destination length mismatch")
	}
	src := g.InRanges[0]
	w, cw := src.First, g.OutRange.First
	for {
		v, err := s.Retrieve(w)
		if err != nil {
			return diag.Err(diag.WireError, ref(), "%v", err)
		}
		out, err := s.Insert(cw)
		if err != nil {
			return diag.Err(diag.WireError, ref(), "%v", err)
		}
		*out = *v
		if w == src.Last {
			break
		}
		w++
		cw++
	}
	return nil
}

func (in *Interpreter) execAssign(g ir.Gate, f *frame, ref func() diag.GateRef) error {
	b, err := in.backendFor(g.Type)
	if err != nil {
		return err
	}
	out, err := f.scopeFor(g.Type).Insert(g.Out)
	if err != nil {
		return diag.Err(diag.WireError, ref(), "%v", err)
	}
	*out = b.Reduce(g.Const)
	return nil
}

func (in *Interpreter) execAssertZero(g ir.Gate, f *frame, ref func() diag.GateRef) error {
	b, err := in.backendFor(g.Type)
	if err != nil {
		return err
	}
	v, err := f.scopeFor(g.Type).Retrieve(g.Left)
	if err != nil {
		return diag.Err(diag.WireError, ref(), "%v", err)
	}
	if !b.IsZero(*v) {
		if in.suppressAssertions {
			in.log.Add(diag.Warning, diag.AssertionFailed, ref(), "assertZero on wire %d holding %s, expected 0 (suppressed)", g.Left, v.N)
			return nil
		}
		in.log.Add(diag.Fatal, diag.AssertionFailed, ref(), "assertZero on wire %d holding %s, expected 0", g.Left, v.N)
		return diag.Err(diag.AssertionFailed, ref(), "assertZero failed on wire %d", g.Left)
	}
	return nil
}

func (in *Interpreter) execIn(g ir.Gate, f *frame, ref func() diag.GateRef, multi bool) error {
	b, err := in.backendFor(g.Type)
	if err != nil {
		return err
	}
	var st stream.Stream
	var ok bool
	if g.Kind == ir.PublicIn || g.Kind == ir.PublicInMulti {
		st, ok = in.streams.PublicFor(g.Type)
	} else {
		st, ok = in.streams.PrivateFor(g.Type)
	}
	if !ok {
		return diag.Err(diag.StructuralError, ref(), "no input stream declared for type %d", g.Type)
	}

	r := ir.Range{First: g.Out, Last: g.Out}
	if multi {
		r = g.OutRange
	}
	s := f.scopeFor(g.Type)
	w := r.First
	for {
		val, ok, err := st.Next()
		if err != nil {
			return diag.Err(diag.StreamError, ref(), "%v", err)
		}
		if !ok {
			return diag.Err(diag.StreamError, ref(), "input stream for type %d exhausted", g.Type)
		}
		out, err := s.Insert(w)
		if err != nil {
			return diag.Err(diag.WireError, ref(), "%v", err)
		}
		*out = b.Reduce(val)
		if w == r.Last {
			break
		}
		w++
	}
	return nil
}

func (in *Interpreter) execConvert(g ir.Gate, f *frame, ref func() diag.GateRef) error {
	if len(g.InRanges) != 1 {
		return diag.Err(diag.StructuralError, ref(), "convert gate expects exactly one source range")
	}
	conv, ok := in.converters.Lookup(g.FromType, g.Type, g.InLength, g.OutLength)
	if !ok {
		return diag.Err(diag.ValueError, ref(), "no registered converter from type %d (len %d) to type %d (len %d); type %d has converters to types %v",
			g.FromType, g.InLength, g.Type, g.OutLength, g.FromType, in.converters.ReachableTargets(g.FromType))
	}
	srcScope := f.scopeFor(g.FromType)
	var vals []backend.Value
	src := g.InRanges[0]
	for w := src.First; ; w++ {
		v, err := srcScope.Retrieve(w)
		if err != nil {
			return diag.Err(diag.WireError, ref(), "%v", err)
		}
		vals = append(vals, *v)
		if w == src.Last {
			break
		}
	}
	out, err := conv.Convert(vals, g.Modulus)
	if err != nil {
		return diag.Err(diag.ValueError, ref(), "%v", err)
	}
	dstScope := f.scopeFor(g.Type)
	w := g.OutRange.First
	for _, v := range out {
		p, err := dstScope.Insert(w)
		if err != nil {
			return diag.Err(diag.WireError, ref(), "%v", err)
		}
		*p = v
		if w == g.OutRange.Last {
			break
		}
		w++
	}
	return nil
}

func (in *Interpreter) execCall(g ir.Gate, f *frame) error {
	fn, ok := in.functions.Lookup(g.CallName)
	if !ok {
		return diag.Err(diag.StructuralError, f.trail.ref("", 0, "Call"), "call to undeclared function %q", g.CallName)
	}
	child := newFrame(in.tree.Header.Types, f.trail.Push(g.CallName))
	if err := bindCallBoundary(fn.Signature, g.CallOutputs, g.CallInputs, f, child); err != nil {
		return err
	}
	if fn.IsPlugin() {
		return diag.Err(diag.BackendError, child.trail.ref("", 0, ""), "plugin operation %q is not executable by this interpreter", fn.Plugin.Operation)
	}
	if err := in.execGates(fn.Body, child, g.CallName); err != nil {
		return err
	}
	if err := checkOutputIntegrity(fn.Signature, child); err != nil {
		return err
	}
	return commitCallOutputs(fn.Signature, g.CallOutputs, f)
}

// bindCallBoundary remaps each output/input type-count group of sig in
// declaration order onto the caller-supplied ranges, aliasing child
// wires to parent wires via wire.Scope.RemapOutputs/RemapInputs.
func bindCallBoundary(sig ir.Signature, outRanges, inRanges []ir.Range, parent, child *frame) error {
	if len(outRanges) != len(sig.Outputs) {
		return diag.Err(diag.StructuralError, diag.GateRef{}, "call supplies %d output ranges, signature declares %d groups", len(outRanges), len(sig.Outputs))
	}
	if len(inRanges) != len(sig.Inputs) {
		return diag.Err(diag.StructuralError, diag.GateRef{}, "call supplies %d input ranges, signature declares %d groups", len(inRanges), len(sig.Inputs))
	}
	for i, tc := range sig.Outputs {
		if outRanges[i].Len() != tc.Count {
			return diag.Err(diag.StructuralError, diag.GateRef{}, "output group %d expects %d wires, got %d", i, tc.Count, outRanges[i].Len())
		}
		if err := child.scopeFor(tc.Type).RemapOutputs(parent.scopeFor(tc.Type), outRanges[i]); err != nil {
			return err
		}
	}
	for i, tc := range sig.Inputs {
		if inRanges[i].Len() != tc.Count {
			return diag.Err(diag.StructuralError, diag.GateRef{}, "input group %d expects %d wires, got %d", i, tc.Count, inRanges[i].Len())
		}
		if err := child.scopeFor(tc.Type).RemapInputs(parent.scopeFor(tc.Type), inRanges[i]); err != nil {
			return err
		}
	}
	return nil
}

// commitCallOutputs marks each output range active+assigned in the
// caller's scope, now that the callee has finished writing them. The
// caller's wire already aliases the same *backend.Value the callee
// wrote (via RemapOutputs), so this just promotes the caller's
// bookkeeping (assigned/active) to match — InsertRange reuses the
// existing aliased value rather than allocating a fresh one, per
// Scope.insertUnchecked.
func commitCallOutputs(sig ir.Signature, outRanges []ir.Range, parent *frame) error {
	for i, tc := range sig.Outputs {
		if err := parent.scopeFor(tc.Type).InsertRange(outRanges[i]); err != nil {
			return err
		}
	}
	return nil
}

func checkOutputIntegrity(sig ir.Signature, child *frame) error {
	seen := make(map[ir.TypeIndex]bool)
	for _, tc := range sig.Outputs {
		if seen[tc.Type] {
			continue
		}
		seen[tc.Type] = true
		if err := child.scopeFor(tc.Type).IntegrityCheck(); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) execForLoop(g ir.Gate, f *frame) error {
	loop := g.ForLoop
	for i := loop.First; i <= loop.Last; i++ {
		childTrail := f.trail.Push(loopLabel(loop.Iterator, i))
		child := newFrame(in.tree.Header.Types, childTrail)

		outRanges, err := evalRangeExprs(loop.OutputExprs, loop.Iterator, i)
		if err != nil {
			return err
		}
		inRanges, err := evalRangeExprs(loop.InputExprs, loop.Iterator, i)
		if err != nil {
			return err
		}

		if loop.Body.CallName != "" {
			fn, ok := in.functions.Lookup(loop.Body.CallName)
			if !ok {
				return diag.Err(diag.StructuralError, childTrail.ref("", 0, "ForLoop"), "call to undeclared function %q", loop.Body.CallName)
			}
			if err := bindCallBoundary(fn.Signature, outRanges, inRanges, f, child); err != nil {
				return err
			}
			if fn.IsPlugin() {
				return diag.Err(diag.BackendError, childTrail.ref("", 0, ""), "plugin operation %q is not executable by this interpreter", fn.Plugin.Operation)
			}
			if err := in.execGates(fn.Body, child, loop.Body.CallName); err != nil {
				return err
			}
			if err := checkOutputIntegrity(fn.Signature, child); err != nil {
				return err
			}
			if err := commitCallOutputs(fn.Signature, outRanges, f); err != nil {
				return err
			}
		} else {
			sig := loop.Body.AnonSignature
			if err := bindCallBoundary(sig, outRanges, inRanges, f, child); err != nil {
				return err
			}
			if err := in.execGates(loop.Body.Anonymous, child, "<anon-iter>"); err != nil {
				return err
			}
			if err := checkOutputIntegrity(sig, child); err != nil {
				return err
			}
			if err := commitCallOutputs(sig, outRanges, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func evalRangeExprs(exprs []ir.RangeExpr, iterator string, i int64) ([]ir.Range, error) {
	out := make([]ir.Range, len(exprs))
	for idx, e := range exprs {
		first, err := iterexpr.Eval(e.First, iterator, i)
		if err != nil {
			return nil, err
		}
		last, err := iterexpr.Eval(e.Last, iterator, i)
		if err != nil {
			return nil, err
		}
		out[idx] = ir.Range{First: ir.Wire(first), Last: ir.Wire(last)}
	}
	return out, nil
}
