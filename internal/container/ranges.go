package container

import "sort"

type span struct {
	start int64
	end   int64
}

// RangeSet maintains a sorted, non-overlapping, coalesced list of byte ranges.
// It is used to check that a set of chunk results covers a payload exactly.
type RangeSet struct {
	items []span
}

// NewRangeSet creates an empty RangeSet.
func NewRangeSet() *RangeSet {
	return &RangeSet{}
}

// Insert adds r and coalesces overlapping/adjacent ranges. It reports whether
// r overlapped bytes that were already present.
func (s *RangeSet) Insert(r Range) bool {
	start, end := r.Offset, r.End()
	if start >= end {
		return false
	}

	merged := span{start: start, end: end}

	i := sort.Search(len(s.items), func(j int) bool {
		return s.items[j].end >= start
	})

	overlapped := false
	j := i
	for j < len(s.items) && s.items[j].start <= end {
		if s.items[j].start < end && s.items[j].end > start {
			overlapped = true
		}
		merged.start = min(merged.start, s.items[j].start)
		merged.end = max(merged.end, s.items[j].end)
		j++
	}

	out := make([]span, 0, len(s.items)-(j-i)+1)
	out = append(out, s.items[:i]...)
	out = append(out, merged)
	out = append(out, s.items[j:]...)
	s.items = out

	return overlapped
}

// Present checks if the entire range r is covered.
func (s *RangeSet) Present(r Range) bool {
	start, end := r.Offset, r.End()
	if start >= end {
		return true
	}

	i := sort.Search(len(s.items), func(j int) bool {
		return s.items[j].end > start
	})
	if i >= len(s.items) {
		return false
	}

	return s.items[i].start <= start && s.items[i].end >= end
}

// Size returns the total number of bytes covered.
func (s *RangeSet) Size() int64 {
	var total int64
	for _, it := range s.items {
		total += it.end - it.start
	}
	return total
}

// Count returns the number of disjoint ranges.
func (s *RangeSet) Count() int {
	return len(s.items)
}
