package core

import "time"

// RawItem is one candidate search result produced by a provider, before any
// scoring or ranking has been applied. Items are immutable once created.
type RawItem struct {
	// Title is the human-readable title of the content item.
	Title string `json:"title"`

	// URL is the absolute permalink of the item. Deduplication during merge
	// uses exact string equality on this field; no scheme or trailing-slash
	// normalization is performed (documented limitation).
	URL string `json:"url"`

	// SourceName is the configured name of the provider instance that
	// produced this item (e.g. "docs", "main_site").
	SourceName string `json:"source_name"`

	// SourceURL is the base location of the originating source, when known.
	// Empty for local sources.
	SourceURL string `json:"source_url,omitempty"`

	// ModifiedAt is the item's last-modified timestamp, used as the
	// secondary ordering key after the relevance score.
	ModifiedAt time.Time `json:"modified_at"`
}

// RankedHit is a RawItem plus its computed relevance score.
// The ordering key across hits is (Score desc, ModifiedAt desc).
type RankedHit struct {
	RawItem
	Score int `json:"score"`
}

// Suggestion is the compact projection of a hit used for typeahead. It
// intentionally omits score and modified time to keep payloads small for
// latency-sensitive clients.
type Suggestion struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	SourceName string `json:"source_name"`
}

// SuggestionFromItem projects a raw item into its typeahead shape.
func SuggestionFromItem(item RawItem) Suggestion {
	return Suggestion{
		Title:      item.Title,
		URL:        item.URL,
		SourceName: item.SourceName,
	}
}
