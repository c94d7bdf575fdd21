package merchant

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// unitCost counts substitutions as a single edit so the ratio stays in [0,1]
var unitCost = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// Similarity compares two merchant strings after cleanup and returns a value
// in [0,1]. It is the larger of the word-token Jaccard index and the
// normalized edit-distance ratio.
func Similarity(a, b string) float64 {
	return similarityCleaned(Clean(a), Clean(b))
}

func similarityCleaned(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return max(jaccard(a, b), editRatio(a, b))
}

func jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func editRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 0
	}
	distance := levenshtein.DistanceForStrings(ra, rb, unitCost)
	ratio := 1 - float64(distance)/float64(longest)
	if ratio < 0 {
		return 0
	}
	return ratio
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}
