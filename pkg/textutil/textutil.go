package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, "　", "")
	return name
}

// MatchName reports whether the normalized name contains any of the matchers,
// matchers are expected to already be normalized.
func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if m != "" && strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// MostSimilar returns the index of the candidate with the highest Jaro-Winkler
// similarity to any of the targets along with that similarity. It returns -1 if
// there are no candidates.
func MostSimilar(candidates []string, targets []string) (int, float64) {
	best := -1
	var bestSimilarity float64
	for i, c := range candidates {
		c = NormalizeName(c)
		if c == "" {
			continue
		}
		for _, t := range targets {
			similarity := matchr.JaroWinkler(c, t, false)
			if similarity > bestSimilarity {
				bestSimilarity = similarity
				best = i
			}
		}
	}
	return best, bestSimilarity
}
