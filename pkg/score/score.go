// Package score computes a relevance score for a candidate title against a
// free-text query. The function is pure and deterministic so results are
// reproducible across sources and cacheable.
package score

import (
	"strings"

	"golang.org/x/text/cases"
)

// Score values for the tie-break ladder. The first matching rule wins;
// only the word-match branch is cumulative.
const (
	ExactMatch     = 100
	PrefixMatch    = 80
	SubstringMatch = 60
	WordMatch      = 20
)

// fold case-folds s with a fresh Caser. Casers may carry internal state
// and must not be shared between goroutines, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Score returns the relevance of title for query. Comparison is
// case-insensitive (both sides are case-folded). The ladder is:
//
//  1. title equals query           -> 100
//  2. title starts with query      -> 80
//  3. query is substring of title  -> 60
//  4. otherwise 20 per query word that appears in the title (0 if none)
func Score(title, query string) int {
	t := fold(title)
	q := fold(query)

	switch {
	case t == q:
		return ExactMatch
	case strings.HasPrefix(t, q):
		return PrefixMatch
	case strings.Contains(t, q):
		return SubstringMatch
	}

	s := 0
	for _, word := range strings.Fields(q) {
		if strings.Contains(t, word) {
			s += WordMatch
		}
	}
	return s
}

// Normalize returns the canonical form of a query used for cache keys and
// case-insensitive matching: trimmed and case-folded.
func Normalize(query string) string {
	return fold(strings.TrimSpace(query))
}
