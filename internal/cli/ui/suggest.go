package ui

import (
	"sort"
	"strings"
)

const (
	maxDistance    = 3
	maxSuggestions = 3
)

// SimilarNames returns up to three candidates close to target, closest
// first. Qualified names such as "Sales.Customer" also match on their last
// segment, so "Custmer" suggests "Sales.Customer".
func SimilarNames(target string, candidates []string) []string {
	type match struct {
		name     string
		distance int
	}

	target = strings.ToLower(target)
	var matches []match
	for _, candidate := range candidates {
		lower := strings.ToLower(candidate)
		distance := LevenshteinDistance(target, lower)
		if short := lower[strings.LastIndex(lower, ".")+1:]; short != lower {
			if d := LevenshteinDistance(target, short); d < distance {
				distance = d
			}
		}
		if distance <= maxDistance {
			matches = append(matches, match{name: candidate, distance: distance})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	result := make([]string, 0, maxSuggestions)
	for i := 0; i < len(matches) && i < maxSuggestions; i++ {
		result = append(result, matches[i].name)
	}
	return result
}

// LevenshteinDistance is the minimum number of single-byte insertions,
// deletions and substitutions turning s1 into s2
func LevenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	previous := make([]int, len(s2)+1)
	current := make([]int, len(s2)+1)
	for j := range previous {
		previous[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		current[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			current[j] = min(previous[j]+1, current[j-1]+1, previous[j-1]+cost)
		}
		previous, current = current, previous
	}
	return previous[len(s2)]
}
