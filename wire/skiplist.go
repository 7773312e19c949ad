// Package wire implements the ordered disjoint-range set (SkipList,
// spec.md section 4.2) and the per-scope wire container (WireScope,
// spec.md section 4.3) used by the interpreter to track which wires are
// assigned, active, and how they're grouped into allocations.
package wire

import (
	"sort"

	"github.com/sieveir/sievekit/ir"
)

// SkipList is an ordered set of non-overlapping (first,last) runs of
// wire indices, kept sorted by First. It backs WireScope's allocations
// and active sets, where queries need both point membership and
// contiguous-range coverage.
//
// The name and public contract (insert/remove/has/hasAll/forEach/
// equivalent) are specified by spec.md section 4.2; spec.md explicitly
// leaves the backing structure unspecified ("tests do not observe
// internal layout"). This implementation keeps a sorted slice of runs
// and coalesces adjacent/overlapping runs on insert, which keeps forEach
// output minimal and has/hasAll a binary search away.
type SkipList struct {
	runs []ir.Range
}

// NewSkipList returns an empty SkipList.
func NewSkipList() *SkipList {
	return &SkipList{}
}

// search returns the index of the first run whose Last >= w.
func (s *SkipList) search(w ir.Wire) int {
	return sort.Search(len(s.runs), func(i int) bool {
		return s.runs[i].Last >= w
	})
}

// Has reports whether w is a member of the set.
func (s *SkipList) Has(w ir.Wire) bool {
	i := s.search(w)
	return i < len(s.runs) && s.runs[i].First <= w
}

// HasAll reports whether every wire in [first,last] is a member of the
// set.
func (s *SkipList) HasAll(first, last ir.Wire) bool {
	if first > last {
		return true
	}
	i := s.search(first)
	if i >= len(s.runs) {
		return false
	}
	return s.runs[i].First <= first && s.runs[i].Last >= last
}

// HasAllRange is a convenience wrapper over HasAll for an ir.Range.
func (s *SkipList) HasAllRange(r ir.Range) bool { return s.HasAll(r.First, r.Last) }

// Insert adds w to the set, returning false if it was already present.
func (s *SkipList) Insert(w ir.Wire) bool { return s.InsertRange(w, w) }

// InsertRange adds [first,last] to the set, returning false if any wire
// in the range was already present (the whole range is still inserted;
// spec.md only requires the return value flag the conflict).
func (s *SkipList) InsertRange(first, last ir.Wire) bool {
	ok := !s.HasAll(first, last) && !s.overlapsAny(first, last)
	merged := ir.Range{First: first, Last: last}

	lo := sort.Search(len(s.runs), func(i int) bool {
		return s.runs[i].Last+1 >= merged.First
	})
	hi := lo
	for hi < len(s.runs) && runTouchesOrOverlaps(s.runs[hi], merged) {
		if s.runs[hi].First < merged.First {
			merged.First = s.runs[hi].First
		}
		if s.runs[hi].Last > merged.Last {
			merged.Last = s.runs[hi].Last
		}
		hi++
	}

	newRuns := make([]ir.Range, 0, len(s.runs)-(hi-lo)+1)
	newRuns = append(newRuns, s.runs[:lo]...)
	newRuns = append(newRuns, merged)
	newRuns = append(newRuns, s.runs[hi:]...)
	s.runs = newRuns
	return ok
}

func runTouchesOrOverlaps(a, b ir.Range) bool {
	if a.Overlaps(b) {
		return true
	}
	return a.Adjacent(b)
}

// overlapsAny reports whether [first,last] shares any wire with an
// existing run (used by InsertRange to detect "already present").
func (s *SkipList) overlapsAny(first, last ir.Wire) bool {
	target := ir.Range{First: first, Last: last}
	for _, r := range s.runs {
		if r.Overlaps(target) {
			return true
		}
	}
	return false
}

// Remove deletes w from the set, returning false if it was absent.
func (s *SkipList) Remove(w ir.Wire) bool { return s.RemoveRange(w, w) }

// RemoveRange deletes [first,last] from the set, returning false if any
// wire in the range was absent. The range need not align with a single
// run: it is allowed to split or partially consume multiple runs.
func (s *SkipList) RemoveRange(first, last ir.Wire) bool {
	if !s.HasAll(first, last) {
		return false
	}
	target := ir.Range{First: first, Last: last}
	newRuns := make([]ir.Range, 0, len(s.runs)+1)
	for _, r := range s.runs {
		if !r.Overlaps(target) {
			newRuns = append(newRuns, r)
			continue
		}
		if r.First < target.First {
			newRuns = append(newRuns, ir.Range{First: r.First, Last: target.First - 1})
		}
		if r.Last > target.Last {
			newRuns = append(newRuns, ir.Range{First: target.Last + 1, Last: r.Last})
		}
	}
	s.runs = newRuns
	return true
}

// RunContaining returns the single run that wholly contains w, if any.
// Used by callers (e.g. Scope.RemoveRange) that must verify a range lies
// within exactly one existing allocation before removing it.
func (s *SkipList) RunContaining(w ir.Wire) (ir.Range, bool) {
	i := s.search(w)
	if i < len(s.runs) && s.runs[i].First <= w {
		return s.runs[i], true
	}
	return ir.Range{}, false
}

// ForEach calls cb for every run in ascending order. Iteration stops
// early if cb returns false.
func (s *SkipList) ForEach(cb func(ir.Range) bool) {
	for _, r := range s.runs {
		if !cb(r) {
			return
		}
	}
}

// Runs returns a copy of the current disjoint run list, in ascending
// order.
func (s *SkipList) Runs() []ir.Range {
	out := make([]ir.Range, len(s.runs))
	copy(out, s.runs)
	return out
}

// Equivalent reports whether a and b contain exactly the same set of
// wires.
func Equivalent(a, b *SkipList) bool {
	if len(a.runs) != len(b.runs) {
		return false
	}
	for i := range a.runs {
		if a.runs[i] != b.runs[i] {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the set has no members.
func (s *SkipList) IsEmpty() bool { return len(s.runs) == 0 }
