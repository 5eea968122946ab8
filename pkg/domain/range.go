// Package domain holds the inferred NaN-safe input ranges for a model and
// their persisted artifact format.
package domain

import (
	"fmt"
)

// Range is an inclusive sampling interval, applied uniformly to every input
// tensor of a model during one evaluation.
type Range struct {
	Low  float64
	High float64
}

func (r Range) Validate() error {
	if !(r.Low <= r.High) {
		return fmt.Errorf("invalid range [%v, %v]", r.Low, r.High)
	}
	return nil
}

func (r Range) Contains(p float64) bool {
	return r.Low <= p && p <= r.High
}

func (r Range) String() string {
	return fmt.Sprintf("[%g, %g]", r.Low, r.High)
}

// DefaultRange is the fallback interval used when no safe range is known.
var DefaultRange = Range{Low: 0, High: 1}

// RangeSet is an ordered sequence of pairwise-disjoint ranges, sorted
// ascending by Low. A nil RangeSet is the "no safe range found" sentinel and
// is distinct from a set that happens to contain the default range.
type RangeSet []Range

// Validate checks the ordering and disjointness invariants.
func (s RangeSet) Validate() error {
	for i, r := range s {
		if err := r.Validate(); err != nil {
			return err
		}
		if i > 0 && !(s[i-1].High < r.Low) {
			return fmt.Errorf("ranges %s and %s overlap or are out of order", s[i-1], r)
		}
	}
	return nil
}

// Contains reports whether p lies inside any range of the set.
func (s RangeSet) Contains(p float64) bool {
	for _, r := range s {
		if r.Contains(p) {
			return true
		}
	}
	return false
}
