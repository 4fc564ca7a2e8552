// Package api exposes the screener's command surface over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"feed_screener/internal/engine"
	"feed_screener/internal/model"
)

// Server wires engine operations to routes.
type Server struct {
	engine *engine.Engine
	log    *slog.Logger
}

// NewServer creates the HTTP handler surface over an engine.
func NewServer(eng *engine.Engine, log *slog.Logger) *Server {
	return &Server{engine: eng, log: log}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.listSources)
			r.Post("/", s.addSource)
			r.Put("/{id}", s.updateSource)
			r.Delete("/{id}", s.removeSource)
			r.Post("/{id}/toggle", s.toggleSource)
		})
		r.Route("/interests", func(r chi.Router) {
			r.Get("/", s.listInterests)
			r.Post("/", s.addInterest)
			r.Put("/{id}", s.updateInterest)
			r.Delete("/{id}", s.removeInterest)
			r.Post("/{id}/toggle", s.toggleInterest)
			r.Post("/{id}/recheck", s.recheckInterest)
		})
		r.Route("/pending", func(r chi.Router) {
			r.Get("/", s.listPending)
			r.Get("/count", s.pendingCount)
			r.Post("/{id}/approve", s.approveMatch)
			r.Post("/{id}/reject", s.rejectMatch)
			r.Post("/{id}/metadata", s.matchMetadata)
		})
		r.Route("/bad-items", func(r chi.Router) {
			r.Get("/", s.listBadItems)
			r.Post("/", s.markBad)
			r.Delete("/{infoHash}", s.unmarkBad)
		})
		r.Post("/check-now", s.checkNow)
		r.Post("/test/feed", s.testFeed)
		r.Post("/test/scrape", s.testScrape)
	})
	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrFetch), errors.Is(err, model.ErrParse):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// persist saves state after a mutating request. Failures are logged,
// not surfaced: the in-memory state is already correct.
func (s *Server) persist(r *http.Request) {
	if err := s.engine.SaveState(r.Context()); err != nil {
		s.log.Error("state save failed", "error", err)
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.ErrInvalidInput
	}
	return nil
}
