package extract

import "strings"

// Labels maps filter-panel labels to the backend's type slugs.
type Labels map[string]string

// DefaultLabels is the vocabulary used by the listing UI.
var DefaultLabels = Labels{
	"Flatmates":    "flatmate",
	"Flats":        "flat",
	"Full House":   "house",
	"Paying Guest": "pg",
	"Villa":        "villa",
}

// Slug resolves a label. Unknown labels fall back to Slugify.
func (l Labels) Slug(label string) string {
	if slug, ok := l.lookup(label); ok {
		return slug
	}
	return Slugify(label)
}

// Slugs resolves every label, dropping empty results.
func (l Labels) Slugs(labels []string) []string {
	slugs := make([]string, 0, len(labels))
	for _, label := range labels {
		if s := l.Slug(label); s != "" {
			slugs = append(slugs, s)
		}
	}
	return slugs
}

func (l Labels) lookup(label string) (string, bool) {
	label = strings.TrimSpace(label)
	if slug, ok := l[label]; ok {
		return slug, true
	}
	for k, slug := range l {
		if strings.EqualFold(k, label) {
			return slug, true
		}
	}
	return "", false
}

// Slugify lowercases s and collapses whitespace runs to one underscore.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRegex.ReplaceAllString(s, "_")
}
