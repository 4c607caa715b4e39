// Package textmatch provides the string-similarity primitives used by the
// supplier/product matching cascades. All comparisons are case-sensitive;
// callers lowercase and trim before calling.
package textmatch

import "strings"

// Levenshtein computes the edit distance between a and b with unit costs for
// substitution, insertion and deletion.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}

	ra := []rune(a)
	rb := []rune(b)

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for j := 0; j <= len(ra); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(rb); i++ {
		curr[0] = i
		for j := 1; j <= len(ra); j++ {
			if rb[i-1] == ra[j-1] {
				curr[j] = prev[j-1]
			} else {
				curr[j] = min(prev[j-1]+1, min(curr[j-1]+1, prev[j]+1))
			}
		}
		prev, curr = curr, prev
	}

	return prev[len(ra)]
}

// Similarity returns (maxLen - Levenshtein(a,b)) / maxLen in [0,1].
// Two empty strings are identical (1.0). The value is only ever used as a
// threshold comparator; the thresholds at the call sites (0.8, 0.85, 0.9)
// are empirical, not semantically meaningful.
func Similarity(a, b string) float64 {
	// maxLen must count runes, same unit as the edit distance, or accented
	// strings inflate the score.
	maxLen := len([]rune(a))
	if lb := len([]rune(b)); lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := Levenshtein(a, b)
	return float64(maxLen-dist) / float64(maxLen)
}

// stopWords excluded from keyword extraction, Spanish plus English.
var stopWords = map[string]bool{
	"el": true, "la": true, "los": true, "las": true, "de": true,
	"del": true, "y": true, "o": true, "con": true, "sin": true,
	"para": true, "por": true, "en": true, "a": true, "un": true,
	"una": true, "es": true, "son": true,
	"the": true, "and": true, "or": true, "of": true, "in": true,
	"to": true, "for": true, "with": true,
}

// Keywords extracts up to 5 meaningful lowercase words from text, dropping
// stop words and anything shorter than 3 characters.
func Keywords(text string) []string {
	var keywords []string
	for _, word := range strings.Fields(text) {
		word = strings.ToLower(strings.TrimSpace(word))
		if len(word) <= 2 || stopWords[word] {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == 5 {
			break
		}
	}
	return keywords
}
