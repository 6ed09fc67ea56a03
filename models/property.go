package models

import "math"

// RawRecord is a property object exactly as the backend returned it.
type RawRecord map[string]any

// PropertyRecord is the normalized view of a RawRecord. Numeric fields are
// NaN when no source field yields a value.
type PropertyRecord struct {
	ID       string    `json:"id"`
	TypeSlug string    `json:"property_type_slug"`
	Bedrooms float64   `json:"-"`
	Price    float64   `json:"-"`
	Area     float64   `json:"-"`
	Raw      RawRecord `json:"raw"`
}

// HasBedrooms reports whether a bedroom count could be derived.
func (p PropertyRecord) HasBedrooms() bool {
	return !math.IsNaN(p.Bedrooms)
}

// Records extracts the raw objects, preserving order.
func Records(props []PropertyRecord) []RawRecord {
	out := make([]RawRecord, 0, len(props))
	for _, p := range props {
		out = append(out, p.Raw)
	}
	return out
}
