package search

import (
	"errors"
	"fmt"

	"rentscout/fetcher"
)

const genericFailure = "Failed to fetch filtered properties"

// ErrorMessage renders a search failure for display.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var fe *fetcher.FetchError
	if errors.As(err, &fe) && fe.StatusCode != 0 {
		return fmt.Sprintf("request failed with HTTP status %d", fe.StatusCode)
	}
	return genericFailure
}
