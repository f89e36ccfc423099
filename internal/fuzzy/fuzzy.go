// Package fuzzy scores string similarity on a 0..100 scale from the Levenshtein distance.
package fuzzy

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the minimum ratio counted as a match.
const DefaultThreshold = 80

// Ratio returns 100 * (1 - distance / longest length). Two empty strings are identical.
func Ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(distance)/float64(longest))
}

// Best returns the highest ratio of term against candidates and the candidate that produced it.
func Best(term string, candidates []string) (float64, string) {
	best, match := 0.0, ""
	for _, c := range candidates {
		if c == term {
			return 100, c
		}
		if r := Ratio(term, c); r > best {
			best, match = r, c
		}
	}
	return best, match
}

// Any reports whether term reaches threshold against at least one candidate.
func Any(term string, candidates []string, threshold float64) bool {
	score, _ := Best(term, candidates)
	return score >= threshold
}

// ContainsOrSimilar reports whether needle occurs in haystack ignoring case, falling back to the
// edit-distance ratio of the whole strings.
func ContainsOrSimilar(haystack, needle string, threshold float64) bool {
	h := strings.ToLower(strings.TrimSpace(haystack))
	n := strings.ToLower(strings.TrimSpace(needle))
	if n == "" {
		return true
	}
	if strings.Contains(h, n) {
		return true
	}
	return Ratio(h, n) >= threshold
}
