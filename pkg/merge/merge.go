// Package merge deduplicates and orders ranked hits gathered from multiple
// search sources.
package merge

import (
	"sort"

	"github.com/fedsearch/fedsearch/pkg/core"
)

// Merge deduplicates hits by exact URL string equality (first occurrence
// wins; input order is source registration order, so the first-registered
// source's copy of a duplicate URL survives), then stable-sorts by score
// descending with modified time descending as the tie break. Hits that tie
// on both keys keep their post-dedupe input order.
//
// URLs are NOT normalized: scheme or trailing-slash variants of the same
// page are treated as distinct.
func Merge(hits []core.RankedHit) []core.RankedHit {
	seen := make(map[string]struct{}, len(hits))
	merged := make([]core.RankedHit, 0, len(hits))
	for _, h := range hits {
		if _, dup := seen[h.URL]; dup {
			continue
		}
		seen[h.URL] = struct{}{}
		merged = append(merged, h)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ModifiedAt.After(merged[j].ModifiedAt)
	})

	return merged
}
