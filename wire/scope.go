package wire

import (
	"golang.org/x/tools/container/intsets"

	"github.com/sieveir/sievekit/diag"
	"github.com/sieveir/sievekit/ir"
)

// defaultGrowthThreshold is how close an inserted wire must be to an
// existing allocation's boundary before the allocation is extended to
// include it (rather than creating a new one-wire allocation), per
// spec.md section 4.3: "insert may adjust internal allocations to
// accommodate new indices; neighbors within a growth threshold are
// extended to coalesce."
const defaultGrowthThreshold = ir.Wire(4)

// Scope manages, for a single (function frame, type) pair, the mapping
// from scope-local wire index to a live backend value, plus the three
// tracking sets spec.md section 4.3 requires:
//
//   - assigned: every wire ever written, monotonic for the scope's
//     lifetime; enforces single assignment.
//   - active:   wires currently readable (assigned, and not yet deleted).
//   - allocations: the coarser dense regions active wires are grouped
//     into, used by integrityCheck to enforce the output/input/locals
//     layout contiguity invariant.
//
// Scope is generic over the backend's value representation V so that
// the parent/child aliasing spec.md describes for remapOutputs/
// remapInputs ("the subscope's range aliases the parent's range,
// providing call-by-reference semantics without copying") is just two
// Scopes sharing a *V — no separate weak-handle indirection is needed.
// Go's GC keeps a *V valid for as long as any Scope's values map still
// holds it, unlike the C++ reference's index-parameterized handles,
// which exist only to survive the parent's backing array being
// reallocated; a Go map never relocates the V a *V points at.
type Scope[V any] struct {
	assigned    *intsets.Sparse
	active      *SkipList
	allocations *SkipList
	values      map[ir.Wire]*V

	growthThreshold ir.Wire

	// nextDense is the next free scope-local index, advanced by
	// RemapOutputs/RemapInputs/ReserveLocals as each region is laid down.
	// It gives a Scope the dense outputs|inputs|locals layout
	// integrityCheck verifies.
	nextDense ir.Wire

	outputs    Range
	hasOutputs bool
	inputs     Range
	hasInputs  bool
}

// Range names one of a Scope's three boundary regions.
type Range = ir.Range

// NewScope returns an empty Scope with the default growth threshold.
func NewScope[V any]() *Scope[V] {
	return &Scope[V]{
		assigned:        &intsets.Sparse{},
		active:          NewSkipList(),
		allocations:     NewSkipList(),
		values:          make(map[ir.Wire]*V),
		growthThreshold: defaultGrowthThreshold,
	}
}

// toInt bit-reinterprets a Wire as the signed int intsets.Sparse expects.
// This is a plain reinterpretation, not a range-clamping conversion: the
// ephemeral wire block the transformer allocates starting at 2^63 lands
// on the negative side of this mapping, which intsets.Sparse handles
// like any other int — it never relies on ordering between the ordinary
// and ephemeral halves, only on membership.
func toInt(w ir.Wire) int { return int(int64(w)) }

// IsAssigned reports whether w has ever been written in this scope.
func (s *Scope[V]) IsAssigned(w ir.Wire) bool { return s.assigned.Has(toInt(w)) }

// IsActive reports whether w currently holds a retrievable value.
func (s *Scope[V]) IsActive(w ir.Wire) bool { return s.active.Has(w) }

// Retrieve returns the live value at w, or a WireError if w is not
// active (used-before-assignment or already deleted).
func (s *Scope[V]) Retrieve(w ir.Wire) (*V, error) {
	if !s.active.Has(w) {
		return nil, diag.Err(diag.WireError, diag.GateRef{}, "wire %d is not active", w)
	}
	v, ok := s.values[w]
	if !ok {
		return nil, diag.Err(diag.WireError, diag.GateRef{}, "wire %d has no backing value", w)
	}
	return v, nil
}

// Insert marks w assigned and active, allocates a zero V for it, and
// returns a pointer the caller fills in via the backend. It is a
// WireError to insert a wire that was already assigned (single
// assignment, spec.md invariant 2).
func (s *Scope[V]) Insert(w ir.Wire) (*V, error) {
	if s.IsAssigned(w) {
		return nil, diag.Err(diag.WireError, diag.GateRef{}, "wire %d already assigned", w)
	}
	return s.insertUnchecked(w)
}

// InsertRange is Insert over a contiguous span, used by CopyMulti/
// PublicInMulti/PrivateInMulti/New/Convert outputs.
func (s *Scope[V]) InsertRange(r Range) error {
	for w := r.First; ; w++ {
		if s.IsAssigned(w) {
			return diag.Err(diag.WireError, diag.GateRef{}, "wire %d already assigned", w)
		}
		if w == r.Last {
			break
		}
	}
	for w := r.First; ; w++ {
		if _, err := s.insertUnchecked(w); err != nil {
			return err
		}
		if w == r.Last {
			break
		}
	}
	return nil
}

// insertUnchecked marks w assigned/active and returns its backing value,
// reusing one already present in values (placed there by RemapOutputs
// aliasing a not-yet-written output wire to the parent) rather than
// allocating a fresh one, so writing an aliased output wire is visible
// through the alias.
func (s *Scope[V]) insertUnchecked(w ir.Wire) (*V, error) {
	s.assigned.Insert(toInt(w))
	s.active.Insert(w)
	s.growAllocations(w)
	v, ok := s.values[w]
	if !ok {
		v = new(V)
		s.values[w] = v
	}
	return v, nil
}

// growAllocations adds w to the allocations set, coalescing it into a
// neighboring allocation if within growthThreshold wires of one.
func (s *Scope[V]) growAllocations(w ir.Wire) {
	first, last := w, w
	if w >= s.growthThreshold {
		if lo := w - s.growthThreshold; s.touchesAllocation(lo, w) {
			first = lo
		}
	}
	if s.touchesAllocation(w, w+s.growthThreshold) {
		last = w + s.growthThreshold
	}
	s.allocations.InsertRange(first, last)
}

func (s *Scope[V]) touchesAllocation(lo, hi ir.Wire) bool {
	found := false
	s.allocations.ForEach(func(r ir.Range) bool {
		if r.Overlaps(ir.Range{First: lo, Last: hi}) {
			found = true
			return false
		}
		return true
	})
	return found
}

// AllocateRange reserves r as a future allocation without marking its
// wires assigned or active, for a New directive that declares a region
// will be written later (e.g. as a call's aliased output) without
// itself producing values.
func (s *Scope[V]) AllocateRange(r Range) {
	s.allocations.InsertRange(r.First, r.Last)
}

// Remove deletes w's live value, making it inactive (but leaving it
// permanently assigned). It is a WireError to remove a wire that is not
// currently active.
func (s *Scope[V]) Remove(w ir.Wire) error {
	if !s.active.Has(w) {
		return diag.Err(diag.WireError, diag.GateRef{}, "wire %d is not active", w)
	}
	s.active.Remove(w)
	delete(s.values, w)
	return nil
}

// RemoveRange deletes a contiguous span. Per spec.md section 4.1's Delete
// gate, the range must align with whole allocations: deleting a range
// that only partially covers one is a WireError ("delete splitting an
// allocation").
func (s *Scope[V]) RemoveRange(r Range) error {
	if !s.active.HasAllRange(r) {
		return diag.Err(diag.WireError, diag.GateRef{}, "range [%d,%d] is not fully active", r.First, r.Last)
	}
	alloc, ok := s.allocations.RunContaining(r.First)
	if !ok {
		return diag.Err(diag.StructuralError, diag.GateRef{}, "range [%d,%d] has no backing allocation", r.First, r.Last)
	}
	if alloc.First != r.First || alloc.Last != r.Last {
		return diag.Err(diag.WireError, diag.GateRef{}, "delete [%d,%d] splits allocation [%d,%d]", r.First, r.Last, alloc.First, alloc.Last)
	}
	s.active.RemoveRange(r.First, r.Last)
	for w := r.First; ; w++ {
		delete(s.values, w)
		if w == r.Last {
			break
		}
	}
	return nil
}

// reserveDense advances nextDense by span wires and returns (start, ok).
// ok is false for a zero span, in which case the region contributes
// nothing to the dense layout and start should not be indexed.
func (s *Scope[V]) reserveDense(span uint64) (start ir.Wire, ok bool) {
	if span == 0 {
		return 0, false
	}
	start = s.nextDense
	s.nextDense += ir.Wire(span)
	return start, true
}

// RemapOutputs lays down the callee's dense output region aliased to
// parentRange in the parent scope, per spec.md section 4.3: "An output
// range may address wires that are not yet allocated locally;
// remapOutputs lazily allocates them in the parent and aliases them into
// the child." The aliased wires are allocated (added to allocations) in
// both scopes but are not marked assigned/active here: the callee's write
// activates the child wire, and the caller activates its own wire on
// return by inserting it (Insert/InsertRange reuse the aliased value)
// after checking full coverage.
func (s *Scope[V]) RemapOutputs(parent *Scope[V], parentRange Range) error {
	span := parentRange.Len()
	start, ok := s.reserveDense(span)
	if !ok {
		return nil
	}
	child := Range{First: start, Last: start + ir.Wire(span) - 1}
	s.outputs, s.hasOutputs = child, true
	parent.allocations.InsertRange(parentRange.First, parentRange.Last)
	s.allocations.InsertRange(child.First, child.Last)

	w := parentRange.First
	cw := child.First
	for {
		v, ok := parent.values[w]
		if !ok {
			v = new(V)
			parent.values[w] = v
		}
		s.values[cw] = v
		if w == parentRange.Last {
			break
		}
		w++
		cw++
	}
	return nil
}

// RemapInputs lays down the callee's dense input region aliased to
// parentRange, which must already be fully active in the parent (spec.md
// section 4.3: "An input range must be entirely active locally"). The
// child's input region is marked assigned+active immediately, since the
// values are already live in the parent.
func (s *Scope[V]) RemapInputs(parent *Scope[V], parentRange Range) error {
	if !parent.active.HasAllRange(parentRange) {
		return diag.Err(diag.WireError, diag.GateRef{}, "input range [%d,%d] is not fully active in caller", parentRange.First, parentRange.Last)
	}
	span := parentRange.Len()
	start, ok := s.reserveDense(span)
	if !ok {
		return nil
	}
	child := Range{First: start, Last: start + ir.Wire(span) - 1}
	s.inputs, s.hasInputs = child, true
	s.allocations.InsertRange(child.First, child.Last)

	w := parentRange.First
	cw := child.First
	for {
		s.assigned.Insert(toInt(cw))
		s.active.Insert(cw)
		s.values[cw] = parent.values[w]
		if w == parentRange.Last {
			break
		}
		w++
		cw++
	}
	return nil
}

// Outputs/Inputs report the dense regions laid down by the most recent
// RemapOutputs/RemapInputs calls, used by IntegrityCheck.
func (s *Scope[V]) Outputs() (Range, bool) { return s.outputs, s.hasOutputs }
func (s *Scope[V]) Inputs() (Range, bool)  { return s.inputs, s.hasInputs }

// IntegrityCheck enforces spec.md section 4.3's child-scope layout
// invariant: outputs occupy [0, numOutputs), inputs occupy the next
// numInputs wires, and every active wire lies within some allocation. It
// also requires every output wire be fully assigned by the time a callee
// returns, catching the "function/for-loop failed to produce all
// declared outputs" edge case.
func (s *Scope[V]) IntegrityCheck() error {
	wantInputStart := ir.Wire(0)
	if s.hasOutputs {
		if s.outputs.First != 0 {
			return diag.Err(diag.StructuralError, diag.GateRef{}, "output region must start at dense index 0, got %d", s.outputs.First)
		}
		for w := s.outputs.First; ; w++ {
			if !s.IsAssigned(w) {
				return diag.Err(diag.WireError, diag.GateRef{}, "output wire %d was never assigned", w)
			}
			if w == s.outputs.Last {
				break
			}
		}
		wantInputStart = s.outputs.Last + 1
	}
	if s.hasInputs && s.inputs.First != wantInputStart {
		return diag.Err(diag.StructuralError, diag.GateRef{}, "input region must immediately follow the output region")
	}
	var checkErr error
	s.active.ForEach(func(r ir.Range) bool {
		if !s.allocations.HasAllRange(r) {
			checkErr = diag.Err(diag.StructuralError, diag.GateRef{}, "active range [%d,%d] is not covered by an allocation", r.First, r.Last)
			return false
		}
		return true
	})
	return checkErr
}
