package usecase

import (
	"regexp"
	"strings"

	"github.com/feedcanon/backend/internal/domain"
)

// Compiled regex patterns for attribute cleanup
var (
	// Matches composition noise such as "80%" or "10 "
	digitPercentPattern = regexp.MustCompile(`[0-9%]`)

	// Runs of two or more whitespace characters
	repeatedSpacePattern = regexp.MustCompile(`\s{2,}`)
)

// NormalizeAttributes brings an extracted attribute map into canonical shape.
// Every value is joined with "," and stripped of digits and percent signs,
// with whitespace runs collapsed. The input map is left untouched; nil is
// returned for an empty map.
func NormalizeAttributes(raw domain.Attributes) domain.Attributes {
	if len(raw) == 0 {
		return nil
	}

	normalized := make(domain.Attributes, len(raw))
	for key, values := range raw {
		normalized.Set(key, cleanAttributeValue(strings.Join(values, ",")))
	}
	return normalized
}

func cleanAttributeValue(value string) string {
	cleaned := digitPercentPattern.ReplaceAllString(value, "")
	cleaned = repeatedSpacePattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
