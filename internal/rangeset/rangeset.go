// Package rangeset provides an ordered set of non-overlapping half-open
// integer intervals. The timeline engine uses it to record which item
// indices are already drawn and do not need re-rendering.
package rangeset

import (
	"fmt"
	"sort"
	"strings"
)

// Range is a half-open interval [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of integers covered by the range.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Set is an ordered collection of pairwise disjoint, non-adjacent ranges.
// The zero value is an empty set ready for use.
type Set struct {
	ranges []Range
}

// Contains reports whether i is covered by the set.
func (s *Set) Contains(i int) bool {
	idx := sort.Search(len(s.ranges), func(k int) bool { return s.ranges[k].End > i })
	return idx < len(s.ranges) && s.ranges[idx].Start <= i
}

// Insert adds the single index i.
func (s *Set) Insert(i int) {
	s.InsertRange(i, i+1)
}

// InsertRange adds [start, end), merging with overlapping or adjacent ranges.
func (s *Set) InsertRange(start, end int) {
	if end <= start {
		return
	}
	out := make([]Range, 0, len(s.ranges)+1)
	inserted := false
	for _, r := range s.ranges {
		switch {
		case r.End < start:
			out = append(out, r)
		case end < r.Start:
			if !inserted {
				out = append(out, Range{start, end})
				inserted = true
			}
			out = append(out, r)
		default:
			// Overlapping or adjacent: absorb into the pending range.
			if r.Start < start {
				start = r.Start
			}
			if r.End > end {
				end = r.End
			}
		}
	}
	if !inserted {
		out = append(out, Range{start, end})
	}
	s.ranges = out
}

// Remove deletes the single index i.
func (s *Set) Remove(i int) {
	s.RemoveRange(i, i+1)
}

// RemoveRange deletes every index in [start, end), splitting ranges as needed.
func (s *Set) RemoveRange(start, end int) {
	if end <= start || len(s.ranges) == 0 {
		return
	}
	out := make([]Range, 0, len(s.ranges)+1)
	for _, r := range s.ranges {
		if r.End <= start || r.Start >= end {
			out = append(out, r)
			continue
		}
		if r.Start < start {
			out = append(out, Range{r.Start, start})
		}
		if r.End > end {
			out = append(out, Range{end, r.End})
		}
	}
	s.ranges = out
}

// TruncateFrom removes every index >= n. Used to narrow drawn-caches to a
// shrunken snapshot so no cached index can dangle past its end.
func (s *Set) TruncateFrom(n int) {
	if n <= 0 {
		s.Clear()
		return
	}
	out := s.ranges[:0]
	for _, r := range s.ranges {
		if r.Start >= n {
			break
		}
		if r.End > n {
			r.End = n
		}
		out = append(out, r)
	}
	s.ranges = out
}

// Clear empties the set.
func (s *Set) Clear() {
	s.ranges = nil
}

// IsEmpty reports whether the set covers no indices.
func (s *Set) IsEmpty() bool {
	return len(s.ranges) == 0
}

// Count returns the total number of covered indices.
func (s *Set) Count() int {
	n := 0
	for _, r := range s.ranges {
		n += r.Len()
	}
	return n
}

// Max returns the largest covered index, or -1 for an empty set.
func (s *Set) Max() int {
	if len(s.ranges) == 0 {
		return -1
	}
	return s.ranges[len(s.ranges)-1].End - 1
}

// Ranges returns a copy of the underlying ranges in ascending order.
func (s *Set) Ranges() []Range {
	out := make([]Range, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// String renders the set as "[0,4) [7,9)" for logging.
func (s *Set) String() string {
	if len(s.ranges) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(s.ranges))
	for _, r := range s.ranges {
		parts = append(parts, fmt.Sprintf("[%d,%d)", r.Start, r.End))
	}
	return strings.Join(parts, " ")
}
