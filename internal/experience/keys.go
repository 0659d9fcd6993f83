package experience

import (
	"strings"

	"golang.org/x/text/cases"
)

// NaturalKey normalises a natural key for comparison: surrounding
// whitespace is dropped and the rest is case folded.
func NaturalKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	// A Caser keeps state and is not safe for concurrent use.
	return cases.Fold().String(trimmed)
}

func present(value string) bool {
	return strings.TrimSpace(value) != ""
}

func anyPresent(values ...string) bool {
	for _, value := range values {
		if present(value) {
			return true
		}
	}
	return false
}
