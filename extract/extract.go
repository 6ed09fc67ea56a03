// Package extract derives canonical fields from heterogeneous backend
// property objects. Structured fields always outrank free-text inference.
package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"rentscout/models"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	digitsRegex     = regexp.MustCompile(`\d+`)
	decimalRegex    = regexp.MustCompile(`\d+(?:\.\d+)?`)

	typeFields    = []string{"property_type", "propertyType", "type", "category"}
	bedroomFields = []string{"numRooms", "num_rooms", "bedrooms", "bhk", "roomCount", "bedroomCount", "rooms"}
	priceFields   = []string{"price", "rent", "monthlyRent", "monthly_rent"}
	areaFields    = []string{"area", "sqft", "builtUpArea", "carpetArea"}
	textFields    = []string{"title", "description", "location", "address", "city"}
)

// TypeSlug returns the normalized category token of raw using DefaultLabels.
func TypeSlug(raw models.RawRecord) string {
	return DefaultLabels.TypeSlug(raw)
}

// TypeSlug returns the normalized category token of raw, or "" when no
// type-like field is present.
func (l Labels) TypeSlug(raw models.RawRecord) string {
	for _, field := range typeFields {
		s := stringValue(raw[field])
		if s == "" {
			continue
		}
		return l.Slug(s)
	}
	return ""
}

// MatchesSelectedTypes is true when no slug is selected or raw's slug is
// one of them.
func MatchesSelectedTypes(raw models.RawRecord, slugs []string) bool {
	return DefaultLabels.MatchesSelectedTypes(raw, slugs)
}

func (l Labels) MatchesSelectedTypes(raw models.RawRecord, slugs []string) bool {
	if len(slugs) == 0 {
		return true
	}
	slug := l.TypeSlug(raw)
	for _, s := range slugs {
		if s == slug {
			return true
		}
	}
	return false
}

// BedroomCount tries the structured room fields, then details.bedrooms,
// then the first integer in the title and finally in the description.
// It returns NaN when nothing yields a number.
func BedroomCount(raw models.RawRecord) float64 {
	for _, field := range bedroomFields {
		if n, ok := countValue(raw[field]); ok {
			return n
		}
	}
	if details, ok := raw["details"].(map[string]any); ok {
		if n, ok := countValue(details["bedrooms"]); ok {
			return n
		}
	}
	for _, field := range []string{"title", "description"} {
		if n, ok := firstInt(PlainText(stringValue(raw[field]))); ok {
			return n
		}
	}
	return math.NaN()
}

// Price returns the listed rent or NaN.
func Price(raw models.RawRecord) float64 {
	return firstAmount(raw, priceFields)
}

// Area returns the listed floor area or NaN.
func Area(raw models.RawRecord) float64 {
	return firstAmount(raw, areaFields)
}

// MatchesText reports whether every word of query occurs somewhere in the
// record's text, case-insensitively. Descriptive fields are checked first;
// any other string value, including one level of nesting, also counts
// since backends disagree on where the address lives. An empty query
// matches.
func MatchesText(raw models.RawRecord, query string) bool {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return true
	}
	var b strings.Builder
	for _, field := range textFields {
		b.WriteString(strings.ToLower(PlainText(stringValue(raw[field]))))
		b.WriteByte(' ')
	}
	for _, v := range raw {
		collectStrings(&b, v, 1)
	}
	haystack := b.String()
	for _, w := range words {
		if !strings.Contains(haystack, w) {
			return false
		}
	}
	return true
}

func collectStrings(b *strings.Builder, v any, depth int) {
	switch t := v.(type) {
	case string:
		b.WriteString(strings.ToLower(t))
		b.WriteByte(' ')
	case map[string]any:
		if depth == 0 {
			return
		}
		for _, nested := range t {
			collectStrings(b, nested, depth-1)
		}
	case []any:
		if depth == 0 {
			return
		}
		for _, nested := range t {
			collectStrings(b, nested, depth-1)
		}
	}
}

// Normalize builds the canonical record. id must already be resolved by
// the caller, since identity rules live in the identity package.
func Normalize(id string, raw models.RawRecord, labels Labels) models.PropertyRecord {
	if labels == nil {
		labels = DefaultLabels
	}
	return models.PropertyRecord{
		ID:       id,
		TypeSlug: labels.TypeSlug(raw),
		Bedrooms: BedroomCount(raw),
		Price:    Price(raw),
		Area:     Area(raw),
		Raw:      raw,
	}
}

func countValue(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case string:
		return firstInt(n)
	default:
		f, ok := number(n)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
}

func firstInt(s string) (float64, bool) {
	m := digitsRegex.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func firstAmount(raw models.RawRecord, fields []string) float64 {
	for _, field := range fields {
		switch v := raw[field].(type) {
		case nil:
			continue
		case string:
			m := decimalRegex.FindString(strings.ReplaceAll(v, ",", ""))
			if m == "" {
				continue
			}
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return f
			}
		default:
			if f, ok := number(v); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return f
			}
		}
	}
	return math.NaN()
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case bool, map[string]any, []any:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}
