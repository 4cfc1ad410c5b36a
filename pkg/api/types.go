package api

import (
	"time"

	"github.com/fedsearch/fedsearch/pkg/core"
)

type SearchResponse struct {
	Query      string           `json:"query"`
	EmptyQuery bool             `json:"empty_query"`
	Hits       []core.RankedHit `json:"hits"`
	Total      int              `json:"total"`
	Cached     bool             `json:"cached"`
}

type SuggestResponse struct {
	Query       string            `json:"query"`
	Suggestions []core.Suggestion `json:"suggestions"`
	Count       int               `json:"count"`
}

type SourceInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Remote     bool   `json:"remote"`
	ScoreBonus int    `json:"score_bonus"`
}

type ListSourcesResponse struct {
	Sources []SourceInfo `json:"sources"`
	Count   int          `json:"count"`
}

type StatsResponse struct {
	Sites      map[string]int `json:"sites"`
	TotalItems int            `json:"total_items"`
	Listeners  int            `json:"listeners"`
}

type InvalidateResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
