// Package api exposes the search aggregator over HTTP: JSON endpoints for
// search, typeahead suggestions, source listing, cache invalidation and
// stats, plus a WebSocket stream of content-change events.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/fedsearch/fedsearch/pkg/aggregator"
	"github.com/fedsearch/fedsearch/pkg/contentstore"
	"github.com/fedsearch/fedsearch/pkg/log"
	"github.com/fedsearch/fedsearch/pkg/realtime"
)

var logger = log.ForService("api")

type Server struct {
	aggregator *aggregator.Aggregator
	store      *contentstore.Manager
	hub        *realtime.Hub
}

func NewServer(agg *aggregator.Aggregator, store *contentstore.Manager, hub *realtime.Hub) *Server {
	return &Server{
		aggregator: agg,
		store:      store,
		hub:        hub,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}
