package models

import "strconv"

// BedroomFilter is the bedroom selection of the filter panel: "" for any,
// an exact count such as "2", or BedroomsFivePlus.
type BedroomFilter string

const (
	BedroomsAny      BedroomFilter = ""
	BedroomsFivePlus BedroomFilter = "5+"
)

// Exact returns the selected count when the filter names a specific number.
func (b BedroomFilter) Exact() (int, bool) {
	if b == BedroomsAny || b == BedroomsFivePlus {
		return 0, false
	}
	n, err := strconv.Atoi(string(b))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Active reports whether the filter constrains results at all.
func (b BedroomFilter) Active() bool {
	if b == BedroomsFivePlus {
		return true
	}
	_, ok := b.Exact()
	return ok
}

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// IsZero reports whether the range was never set.
func (r Range) IsZero() bool {
	return r.Min == 0 && r.Max == 0
}

// Or fills the unset parts of r from limits. A zero range becomes limits,
// and a half-set range such as {Min: 5000} keeps its set bound and takes
// the other from limits.
func (r Range) Or(limits Range) Range {
	if r.IsZero() {
		return limits
	}
	if r.Max == 0 {
		r.Max = limits.Max
	}
	if r.Min == 0 {
		r.Min = limits.Min
	}
	return r
}

// FilterCriteria is what the filter panel submits for one search.
// Types holds UI labels ("Flats", "Paying Guest"), not slugs.
type FilterCriteria struct {
	Query    string        `json:"query" yaml:"query"`
	Types    []string      `json:"types" yaml:"types"`
	Bedrooms BedroomFilter `json:"bedrooms" yaml:"bedrooms"`
	Price    Range         `json:"price" yaml:"price"`
	Area     Range         `json:"area" yaml:"area"`
}
