package identity

import "rentscout/models"

// Dedupe merges lists into one slice holding each Key once, in the order
// first encountered across the lists in the order given.
func Dedupe(lists ...[]models.RawRecord) []models.RawRecord {
	total := 0
	for _, l := range lists {
		total += len(l)
	}

	seen := make(map[string]bool, total)
	out := make([]models.RawRecord, 0, total)
	for _, l := range lists {
		for _, raw := range l {
			key := Key(raw)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, raw)
		}
	}
	return out
}
