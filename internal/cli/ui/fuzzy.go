package ui

import (
	"sort"
	"strings"
)

const (
	// DefaultMaxDistance is the default maximum edit distance to consider for fuzzy matching
	DefaultMaxDistance = 3
	// DefaultMaxSuggestions is the default maximum number of suggestions to return
	DefaultMaxSuggestions = 3
)

// FuzzyMatchOptions configures fuzzy matching behavior
type FuzzyMatchOptions struct {
	MaxDistance    int  // Maximum Levenshtein distance to consider (default: 3)
	MaxSuggestions int  // Maximum number of suggestions to return (default: 3)
	CaseSensitive  bool // Whether matching is case-sensitive (default: false)
}

// FindSimilar returns the candidates closest to target, nearest first. Ties
// keep candidate order.
//
// Example:
//
//	FindSimilar("ndjsn", []string{"json-array", "ndjson", "xml"}, nil)
//	// Returns: ["ndjson"]
func FindSimilar(target string, candidates []string, opts *FuzzyMatchOptions) []string {
	maxDistance, maxSuggestions, caseSensitive := DefaultMaxDistance, DefaultMaxSuggestions, false
	if opts != nil {
		if opts.MaxDistance > 0 {
			maxDistance = opts.MaxDistance
		}
		if opts.MaxSuggestions > 0 {
			maxSuggestions = opts.MaxSuggestions
		}
		caseSensitive = opts.CaseSensitive
	}

	type match struct {
		value    string
		distance int
	}
	var matches []match
	for _, candidate := range candidates {
		a, b := target, candidate
		if !caseSensitive {
			a, b = strings.ToLower(a), strings.ToLower(b)
		}
		if d := LevenshteinDistance(a, b); d <= maxDistance {
			matches = append(matches, match{value: candidate, distance: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	result := make([]string, 0, maxSuggestions)
	for i := 0; i < len(matches) && i < maxSuggestions; i++ {
		result = append(result, matches[i].value)
	}
	return result
}

// LevenshteinDistance is the minimum number of single-byte insertions,
// deletions or substitutions turning s1 into s2
func LevenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}
