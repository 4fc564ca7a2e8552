package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"feed_screener/internal/model"
)

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Sources())
}

func (s *Server) addSource(w http.ResponseWriter, r *http.Request) {
	var src model.Source
	if err := decode(r, &src); err != nil {
		s.writeError(w, err)
		return
	}
	added, err := s.engine.AddSource(src)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r)
	s.writeJSON(w, http.StatusCreated, added)
}

func (s *Server) updateSource(w http.ResponseWriter, r *http.Request) {
	var src model.Source
	if err := decode(r, &src); err != nil {
		s.writeError(w, err)
		return
	}
	src.ID = chi.URLParam(r, "id")
	if err := s.engine.UpdateSource(src); err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r)
	s.writeJSON(w, http.StatusOK, src)
}

func (s *Server) removeSource(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveSource(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleSource(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.engine.ToggleSource(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r)
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (s *Server) listInterests(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Interests())
}

func (s *Server) addInterest(w http.ResponseWriter, r *http.Request) {
	var in model.Interest
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	added, err := s.engine.AddInterest(in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r)
	s.writeJSON(w, http.StatusCreated, added)
}

func (s *Server) updateInterest(w http.ResponseWriter, r *http.Request) {
	var in model.Interest
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	in.ID = chi.URLParam(r, "id")
	if err := s.engine.UpdateInterest(in); err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r)
	s.writeJSON(w, http.StatusOK, in)
}

func (s *Server) removeInterest(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveInterest(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleInterest(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.engine.ToggleInterest(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r)
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (s *Server) recheckInterest(w http.ResponseWriter, r *http.Request) {
	matched, err := s.engine.RecheckInterest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r)
	s.writeJSON(w, http.StatusOK, map[string]int{"matched": matched})
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Pending())
}

func (s *Server) pendingCount(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int{"count": s.engine.PendingCount()})
}

func (s *Server) approveMatch(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r)
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) rejectMatch(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reject(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) matchMetadata(w http.ResponseWriter, r *http.Request) {
	md, err := s.engine.FetchMatchMetadata(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, md)
}

func (s *Server) listBadItems(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.BadItems())
}

type markBadRequest struct {
	model.BadItem
	Rescan bool `json:"rescan"`
}

func (s *Server) markBad(w http.ResponseWriter, r *http.Request) {
	var req markBadRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	matched, err := s.engine.MarkBad(r.Context(), req.BadItem, req.Rescan)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r)
	s.writeJSON(w, http.StatusOK, map[string]int{"matched": matched})
}

func (s *Server) unmarkBad(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.UnmarkBad(chi.URLParam(r, "infoHash")); err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) checkNow(w http.ResponseWriter, r *http.Request) {
	matched, err := s.engine.CheckNow(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.persist(r)
	s.writeJSON(w, http.StatusOK, map[string]int{"matched": matched})
}

type testFeedRequest struct {
	URL         string             `json:"url"`
	Filters     []model.FeedFilter `json:"filters"`
	FilterLogic model.FilterLogic  `json:"filter_logic"`
}

func (s *Server) testFeed(w http.ResponseWriter, r *http.Request) {
	var req testFeedRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.engine.TestFeed(r.Context(), req.URL, req.Filters, req.FilterLogic)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) testScrape(w http.ResponseWriter, r *http.Request) {
	var src model.Source
	if err := decode(r, &src); err != nil {
		s.writeError(w, err)
		return
	}
	items, err := s.engine.TestScrape(r.Context(), src)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}
