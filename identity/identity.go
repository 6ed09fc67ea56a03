package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"rentscout/models"
)

var idFields = []string{"id", "propertyId", "_id"}

// RecordID returns the first usable identity among id, propertyId and _id.
func RecordID(raw models.RawRecord) (string, bool) {
	for _, field := range idFields {
		if id, ok := idString(raw[field]); ok {
			return id, true
		}
	}
	return "", false
}

// Key is the de-duplication key of raw: its RecordID, or a hash of the
// serialized content when the record carries no identity. Two records
// that serialize identically share a key.
func Key(raw models.RawRecord) string {
	if id, ok := RecordID(raw); ok {
		return id
	}
	return ContentKey(raw)
}

// ContentKey hashes the JSON form of raw. encoding/json writes map keys
// in sorted order, so the key is stable across calls.
func ContentKey(raw models.RawRecord) string {
	data, err := json.Marshal(raw)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", map[string]any(raw)))
	}
	hash := sha256.Sum256(data)
	return "content:" + hex.EncodeToString(hash[:16])
}

// Backfill copies propertyId or _id into id when id is absent, so that
// consumers can rely on id alone.
func Backfill(raw models.RawRecord) models.RawRecord {
	if _, ok := idString(raw["id"]); ok {
		return raw
	}
	for _, field := range idFields[1:] {
		if v, ok := raw[field]; ok {
			if _, usable := idString(v); usable {
				raw["id"] = v
				break
			}
		}
	}
	return raw
}

func idString(v any) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) {
			return "", false
		}
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case json.Number:
		return id.String(), id.String() != ""
	case bool, map[string]any, []any:
		return "", false
	default:
		return fmt.Sprint(id), true
	}
}
