// Package aggregator fans a search query out to all configured providers
// concurrently, scores and merges what comes back, and fronts the whole
// pipeline with a TTL cache. It also produces typeahead suggestions, which
// follow a deliberately simpler path (smaller caps, no relevance sort).
//
// A provider failure is never fatal: it is logged and contributes zero items,
// so a dead remote degrades results instead of breaking search.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/fedsearch/fedsearch/pkg/cache"
	"github.com/fedsearch/fedsearch/pkg/core"
	"github.com/fedsearch/fedsearch/pkg/log"
	"github.com/fedsearch/fedsearch/pkg/merge"
	"github.com/fedsearch/fedsearch/pkg/score"
)

var logger = log.ForService("aggregator")

// Source is one configured provider instance plus the per-source knobs the
// aggregator applies around it.
type Source struct {
	Provider core.Provider

	// PostTypes restricts which content kinds this source is asked for.
	// Empty means the provider's own default.
	PostTypes []string

	// Limit is the per-source item cap for full searches.
	Limit int

	// SuggestLimit is the smaller per-source cap used for typeahead.
	SuggestLimit int

	// ScoreBonus is added to every hit from this source after title
	// scoring. Remote sources usually carry a positive bonus so that
	// federated content is not drowned out by local matches.
	ScoreBonus int

	// Remote marks sources that are skipped when the caller opts out of
	// federated search.
	Remote bool

	// Timeout and SuggestTimeout bound a single provider call. Suggestions
	// get the tighter budget since they sit on the typeahead hot path.
	Timeout        time.Duration
	SuggestTimeout time.Duration
}

type Config struct {
	SearchTTL    time.Duration
	SuggestTTL   time.Duration
	NegativeTTL  time.Duration
	SuggestLimit int
}

// Result is the aggregate answer for one search query.
type Result struct {
	Query      string           `json:"query"`
	EmptyQuery bool             `json:"empty_query"`
	Hits       []core.RankedHit `json:"hits"`
	Total      int              `json:"total"`

	// Cached reports whether this result was served from the cache. It is
	// recomputed on every call and never stored.
	Cached bool `json:"-"`
}

type Aggregator struct {
	mu      sync.RWMutex
	sources []Source
	cache   *cache.Cache
	config  Config
}

// New creates an aggregator over the given sources. Source order matters:
// deduplication keeps the first occurrence of a URL, so earlier sources win
// ties. The cache may not be nil.
func New(sources []Source, c *cache.Cache, config Config) *Aggregator {
	return &Aggregator{
		sources: sources,
		cache:   c,
		config:  config,
	}
}

// Sources returns the configured source list in registration order.
func (a *Aggregator) Sources() []Source {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Source, len(a.sources))
	copy(out, a.sources)
	return out
}

// Reconfigure atomically replaces the source set and tunables, returning the
// previous sources so the caller can close their providers. In-flight
// searches finish against the old set.
func (a *Aggregator) Reconfigure(sources []Source, config Config) []Source {
	a.mu.Lock()
	defer a.mu.Unlock()
	old := a.sources
	a.sources = sources
	a.config = config
	return old
}

func (a *Aggregator) snapshot() ([]Source, Config) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sources, a.config
}

// Search runs the full pipeline for query. An empty or whitespace-only query
// returns the designated empty result without touching providers or cache.
// includeRemote toggles the remote sources on or off; the flag is part of
// the cache key since it changes the answer.
func (a *Aggregator) Search(ctx context.Context, query string, includeRemote bool) (Result, error) {
	normalized := score.Normalize(query)
	if normalized == "" {
		return Result{Query: query, EmptyQuery: true, Hits: []core.RankedHit{}}, nil
	}

	key := cache.Key(cache.PrefixSearch, normalized+"|remote="+strconv.FormatBool(includeRemote))
	if data, err := a.cache.Get(key); err == nil {
		var cached Result
		if err := json.Unmarshal(data, &cached); err == nil {
			cached.Cached = true
			return cached, nil
		}
		logger.Warnf("discarding undecodable cached search result: %v", err)
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Warnf("reading search cache: %v", err)
	}

	sources, config := a.snapshot()

	// One goroutine per source. Results land in an indexed slice so the
	// concatenation below preserves registration order regardless of which
	// source finishes first.
	perSource := make([][]core.RankedHit, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		if src.Remote && !includeRemote {
			continue
		}
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			perSource[i] = a.searchSource(ctx, src, normalized)
		}(i, src)
	}
	wg.Wait()

	var hits []core.RankedHit
	for _, sh := range perSource {
		hits = append(hits, sh...)
	}
	merged := merge.Merge(hits)

	result := Result{
		Query: normalized,
		Hits:  merged,
		Total: len(merged),
	}

	ttl := config.SearchTTL
	if result.Total == 0 {
		// Empty result sets expire quickly so new content shows up fast.
		ttl = config.NegativeTTL
	}
	if data, err := json.Marshal(result); err == nil {
		if err := a.cache.Set(key, data, ttl); err != nil {
			logger.Warnf("caching search result: %v", err)
		}
	}

	return result, nil
}

func (a *Aggregator) searchSource(ctx context.Context, src Source, query string) []core.RankedHit {
	srcCtx, cancel := context.WithTimeout(ctx, src.Timeout)
	defer cancel()

	items, err := src.Provider.Search(srcCtx, query, src.PostTypes, src.Limit)
	if err != nil {
		logger.Warnf("source %s failed, contributing zero items: %v", src.Provider.Name(), err)
		return nil
	}

	hits := make([]core.RankedHit, 0, len(items))
	for _, item := range items {
		hits = append(hits, core.RankedHit{
			RawItem: item,
			Score:   score.Score(item.Title, query) + src.ScoreBonus,
		})
	}
	return hits
}

// minSuggestQueryLen is the shortest query worth fanning out for. Anything
// shorter answers with an empty list immediately.
const minSuggestQueryLen = 2

// Suggest returns compact typeahead entries for query. Unlike Search, the
// output is NOT relevance-sorted: entries appear in source registration
// order, deduplicated by URL and truncated to the configured limit.
func (a *Aggregator) Suggest(ctx context.Context, query string) ([]core.Suggestion, error) {
	normalized := score.Normalize(query)
	if len([]rune(normalized)) < minSuggestQueryLen {
		return []core.Suggestion{}, nil
	}

	key := cache.Key(cache.PrefixSuggest, normalized)
	if data, err := a.cache.Get(key); err == nil {
		var cached []core.Suggestion
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		logger.Warnf("discarding undecodable cached suggestions: %v", err)
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Warnf("reading suggest cache: %v", err)
	}

	sources, config := a.snapshot()

	perSource := make([][]core.RawItem, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			srcCtx, cancel := context.WithTimeout(ctx, src.SuggestTimeout)
			defer cancel()

			items, err := src.Provider.Search(srcCtx, normalized, src.PostTypes, src.SuggestLimit)
			if err != nil {
				logger.Warnf("source %s failed during suggest: %v", src.Provider.Name(), err)
				return
			}
			if len(items) > src.SuggestLimit {
				items = items[:src.SuggestLimit]
			}
			perSource[i] = items
		}(i, src)
	}
	wg.Wait()

	limit := config.SuggestLimit
	suggestions := make([]core.Suggestion, 0, limit)
	seen := make(map[string]bool)
	for _, items := range perSource {
		for _, item := range items {
			if seen[item.URL] {
				continue
			}
			seen[item.URL] = true
			suggestions = append(suggestions, core.SuggestionFromItem(item))
		}
	}
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}

	if data, err := json.Marshal(suggestions); err == nil {
		if err := a.cache.Set(key, data, config.SuggestTTL); err != nil {
			logger.Warnf("caching suggestions: %v", err)
		}
	}

	return suggestions, nil
}

// InvalidateAll drops every cached search result, suggestion list, and
// remote sub-result. Called after any content mutation.
func (a *Aggregator) InvalidateAll() error {
	return a.cache.InvalidateAll()
}

// Close shuts down every provider. Errors are collected but shutdown
// continues so one misbehaving provider cannot block the rest.
func (a *Aggregator) Close() error {
	sources, _ := a.snapshot()
	var errs []error
	for _, src := range sources {
		if err := src.Provider.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
