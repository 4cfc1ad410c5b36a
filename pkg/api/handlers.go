package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fedsearch/fedsearch/pkg/core"
	"github.com/fedsearch/fedsearch/pkg/version"
)

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	// remote defaults to true; only an explicit falsy value disables
	// federated sources.
	includeRemote := true
	if raw := r.URL.Query().Get("remote"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid parameter", "Parameter 'remote' must be a boolean")
			return
		}
		includeRemote = parsed
	}

	result, err := s.aggregator.Search(r.Context(), query, includeRemote)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Search failed", err.Error())
		return
	}

	hits := result.Hits
	if hits == nil {
		hits = []core.RankedHit{}
	}

	response := SearchResponse{
		Query:      result.Query,
		EmptyQuery: result.EmptyQuery,
		Hits:       hits,
		Total:      result.Total,
		Cached:     result.Cached,
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	suggestions, err := s.aggregator.Suggest(r.Context(), query)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Suggest failed", err.Error())
		return
	}

	response := SuggestResponse{
		Query:       query,
		Suggestions: suggestions,
		Count:       len(suggestions),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleListSources(w http.ResponseWriter, r *http.Request) {
	sources := s.aggregator.Sources()

	infos := make([]SourceInfo, len(sources))
	for i, src := range sources {
		infos[i] = SourceInfo{
			Name:       src.Provider.Name(),
			Type:       src.Provider.Type(),
			Remote:     src.Remote,
			ScoreBonus: src.ScoreBonus,
		}
	}

	response := ListSourcesResponse{
		Sources: infos,
		Count:   len(infos),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	if err := s.aggregator.InvalidateAll(); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Invalidation failed", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, InvalidateResponse{Status: "invalidated"})
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to get stats", err.Error())
		return
	}

	total := 0
	for _, count := range stats {
		total += count
	}

	response := StatsResponse{
		Sites:      stats,
		TotalItems: total,
		Listeners:  s.hub.Size(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}
