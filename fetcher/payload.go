package fetcher

import (
	"strings"

	"rentscout/extract"
	"rentscout/models"
)

// Payload is the JSON body of a filter request.
type Payload map[string]any

// Bounds are the absolute slider limits of the filter panel. A criteria
// bound equal to its absolute limit is not a constraint.
type Bounds struct {
	Price models.Range `yaml:"price_range"`
	Area  models.Range `yaml:"area_range"`
}

var DefaultBounds = Bounds{
	Price: models.Range{Min: 0, Max: 100000},
	Area:  models.Range{Min: 0, Max: 10000},
}

// BuildPayload converts criteria into the filter endpoint's body. Types
// are sent as a comma-joined slug list; bedrooms are left empty because
// the caller decides which encoding to try.
func BuildPayload(c models.FilterCriteria, bounds Bounds, labels extract.Labels) Payload {
	if labels == nil {
		labels = extract.DefaultLabels
	}
	p := Payload{
		"property_type": strings.Join(labels.Slugs(c.Types), ","),
		"search_query":  strings.TrimSpace(c.Query),
		"location":      "",
		"bedrooms":      "",
	}
	putRange(p, "price_start", "price_end", c.Price, bounds.Price)
	putRange(p, "min_area", "max_area", c.Area, bounds.Area)
	return p
}

func putRange(p Payload, minKey, maxKey string, r, limits models.Range) {
	r = r.Or(limits)
	if r.Min != limits.Min {
		p[minKey] = r.Min
	}
	if r.Max != limits.Max {
		p[maxKey] = r.Max
	}
}

// With returns a copy of p with key set to value.
func (p Payload) With(key string, value any) Payload {
	out := make(Payload, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out[key] = value
	return out
}

// WithPagination returns a copy of p carrying page and limit under every
// pagination name the backend has been seen to accept.
func WithPagination(p Payload, page, limit int) Payload {
	out := p.With("page", page)
	for _, key := range []string{"limit", "page_size", "pageSize", "per_page"} {
		out[key] = limit
	}
	return out
}
