package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rentscout/models"
)

func TestBuildPayload_DefaultRangesOmitted(t *testing.T) {
	c := models.FilterCriteria{
		Query: "  koramangala ",
		Types: []string{"Flats", "Paying Guest"},
		Price: DefaultBounds.Price,
		Area:  DefaultBounds.Area,
	}
	p := BuildPayload(c, DefaultBounds, nil)

	assert.Equal(t, Payload{
		"property_type": "flat,pg",
		"search_query":  "koramangala",
		"location":      "",
		"bedrooms":      "",
	}, p)
}

func TestBuildPayload_PartialRanges(t *testing.T) {
	c := models.FilterCriteria{
		Price: models.Range{Min: 5000, Max: DefaultBounds.Price.Max},
		Area:  models.Range{Min: 0, Max: 1200},
	}
	p := BuildPayload(c, DefaultBounds, nil)

	assert.Equal(t, 5000.0, p["price_start"])
	assert.NotContains(t, p, "price_end")
	assert.NotContains(t, p, "min_area")
	assert.Equal(t, 1200.0, p["max_area"])
	assert.Equal(t, "", p["property_type"])
}

func TestBuildPayload_HalfSetRangeUsesLimit(t *testing.T) {
	c := models.FilterCriteria{
		Price: models.Range{Min: 5000},
		Area:  models.Range{Max: 900},
	}
	p := BuildPayload(c, DefaultBounds, nil)

	assert.Equal(t, 5000.0, p["price_start"])
	assert.NotContains(t, p, "price_end")
	assert.NotContains(t, p, "min_area")
	assert.Equal(t, 900.0, p["max_area"])
}

func TestWithPagination_DoesNotMutateBase(t *testing.T) {
	base := Payload{"property_type": "flat"}
	p := WithPagination(base, 3, 50)

	assert.Len(t, base, 1)
	assert.Equal(t, 3, p["page"])
	for _, key := range []string{"limit", "page_size", "pageSize", "per_page"} {
		assert.Equal(t, 50, p[key])
	}
}
