// Package transform implements LowerSwitches, the pass that rewrites
// switch-case directives into the oblivious gate sequence a backend that
// cannot branch on a witness-dependent value can execute directly
// (spec.md section 4.4): every case body runs unconditionally into a
// private block of ephemeral wires, is masked by a per-case selector
// bit, and the masked results are summed into the switch's declared
// output range. Ephemeral wires are allocated starting at 2^63 — far
// above any wire index a real circuit declares — so they can never
// collide with a caller's own numbering (original_source/.../
// Multiplex.t.h names this the "ephemeral wire space").
package transform

import (
	"github.com/sieveir/sievekit/backend"
	"github.com/sieveir/sievekit/diag"
	"github.com/sieveir/sievekit/ir"
)

// ephemeralBase is the first wire index the transformer ever allocates.
// tr.nextEphemeral only ever increases, so distinct allocations (across
// cases, across nested switches) can never collide — no bookkeeping
// beyond the counter itself is needed to keep blocks disjoint.
const ephemeralBase = ir.Wire(1) << 63

// Transformer lowers switch-case directives in a Tree into flat gate
// sequences with no Switch left, using backends to build the per-type
// selector construction (Fermat-little-theorem check_case, which
// collapses to a plain XOR-based construction for the boolean field).
// Besides arithmetic, copy and assertZero gates, a lowering emits
// publicInMulti/privateInMulti ingest gates, copyMulti reads from that
// shared buffer, and a convert gate per cross-type selector.
type Transformer struct {
	backends      map[ir.TypeIndex]backend.TypeBackend
	nextEphemeral ir.Wire

	// StrictSwitchStreamCounts resolves spec.md section 9's switch
	// stream over-consumption open question (config.Options field of
	// the same name, SPEC_FULL.md section 13). Default false: cases are
	// free to consume differing numbers of stream values per type, the
	// reference's implicit-skip behavior. When true, lowerSwitch rejects
	// a switch whose cases don't all consume the same per-type count of
	// PublicIn/PrivateIn values, since every case runs unconditionally
	// once lowered and a stream cursor that advances differently per
	// case breaks the "one shared buffer position" invariant spec.md
	// section 4.4 describes for switch bodies.
	StrictSwitchStreamCounts bool
}

// NewTransformer builds a Transformer over the given per-type backends,
// used to decide each switch's selector construction.
func NewTransformer(backends map[ir.TypeIndex]backend.TypeBackend) *Transformer {
	return &Transformer{backends: backends, nextEphemeral: ephemeralBase}
}

// LowerTree returns a new Tree with every switch-case directive in every
// function body and the top-level body replaced by its oblivious
// lowering. For-loop bodies are lowered recursively (a for-loop's
// anonymous body may itself contain a switch); a named for-loop call
// target is a function, lowered once via Functions.
func (tr *Transformer) LowerTree(tree *ir.Tree) (*ir.Tree, error) {
	newFuncs := make([]ir.NamedFunction, len(tree.Functions))
	for i, nf := range tree.Functions {
		if nf.Fn.IsPlugin() {
			newFuncs[i] = nf
			continue
		}
		body, err := tr.lowerGates(nf.Fn.Body)
		if err != nil {
			return nil, err
		}
		lowered := *nf.Fn
		lowered.Body = body
		newFuncs[i] = ir.NamedFunction{Name: nf.Name, Fn: &lowered}
	}
	body, err := tr.lowerGates(tree.Body)
	if err != nil {
		return nil, err
	}
	return ir.New(tree.Header, newFuncs, body), nil
}

// lowerGates rewrites a flat gate list, replacing each Switch gate with
// its oblivious lowering and recursing into for-loop bodies. Gates with
// neither Switch nor ForLoop set pass through unchanged.
func (tr *Transformer) lowerGates(gates []ir.Gate) ([]ir.Gate, error) {
	var out []ir.Gate
	for _, g := range gates {
		switch {
		case g.Switch != nil:
			lowered, err := tr.lowerSwitch(g.Switch)
			if err != nil {
				return nil, err
			}
			out = append(out, lowered...)
		case g.ForLoop != nil:
			lg := g
			if g.ForLoop.Body.CallName == "" {
				body, err := tr.lowerGates(g.ForLoop.Body.Anonymous)
				if err != nil {
					return nil, err
				}
				newLoop := *g.ForLoop
				newLoop.Body.Anonymous = body
				lg.ForLoop = &newLoop
			}
			out = append(out, lg)
		default:
			out = append(out, g)
		}
	}
	return out, nil
}

// allocEphemeral reserves n fresh, globally-unique ephemeral wires.
func (tr *Transformer) allocEphemeral(n uint64) ir.Range {
	r := ir.Range{First: tr.nextEphemeral, Last: tr.nextEphemeral + ir.Wire(n) - 1}
	tr.nextEphemeral += ir.Wire(n)
	return r
}

func (tr *Transformer) backendFor(t ir.TypeIndex) (backend.TypeBackend, error) {
	b, ok := tr.backends[t]
	if !ok {
		return nil, diag.Err(diag.StructuralError, diag.GateRef{}, "no backend registered for type %d", t)
	}
	return b, nil
}
