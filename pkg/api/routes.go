package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// API routes with method-specific routing
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/suggest", s.HandleSuggest)
	mux.HandleFunc("GET /api/sources", s.HandleListSources)
	mux.HandleFunc("POST /api/invalidate", s.HandleInvalidate)
	mux.HandleFunc("GET /api/stats", s.HandleStats)
	mux.HandleFunc("GET /api/events/ws", s.HandleEventsWS)
	mux.HandleFunc("GET /health", s.HandleHealth)
}
