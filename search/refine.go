package search

import (
	"math"

	"rentscout/extract"
	"rentscout/fetcher"
	"rentscout/models"
)

// refiner narrows a merged result set locally, compensating for filters
// the backend applied loosely or not at all.
type refiner struct {
	labels extract.Labels
	bounds fetcher.Bounds
}

// Refine keeps the records matching c. Type membership uses slugs and
// bedrooms must match exactly (or be at least 5 for the 5+ selection).
// Price, area and query apply only where the record exposes a value.
func (r refiner) Refine(records []models.PropertyRecord, c models.FilterCriteria) []models.PropertyRecord {
	slugs := r.labels.Slugs(c.Types)
	out := make([]models.PropertyRecord, 0, len(records))
	for _, rec := range records {
		if !r.labels.MatchesSelectedTypes(rec.Raw, slugs) {
			continue
		}
		if !matchesBedrooms(rec, c.Bedrooms) {
			continue
		}
		if !inRange(rec.Price, c.Price, r.bounds.Price) || !inRange(rec.Area, c.Area, r.bounds.Area) {
			continue
		}
		if !extract.MatchesText(rec.Raw, c.Query) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func matchesBedrooms(rec models.PropertyRecord, f models.BedroomFilter) bool {
	if !f.Active() {
		return true
	}
	if !rec.HasBedrooms() {
		return false
	}
	if f == models.BedroomsFivePlus {
		return rec.Bedrooms >= 5
	}
	n, _ := f.Exact()
	return rec.Bedrooms == float64(n)
}

// inRange treats a bound equal to its absolute limit as open, and an
// unknown value as matching.
func inRange(v float64, r, limits models.Range) bool {
	if math.IsNaN(v) {
		return true
	}
	r = r.Or(limits)
	if r.Min == limits.Min {
		r.Min = math.Inf(-1)
	}
	if r.Max == limits.Max {
		r.Max = math.Inf(1)
	}
	return r.Contains(v)
}
