package web

import (
	"net/http"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
)

// PostingsResponse wraps a page of postings.
type PostingsResponse struct {
	Postings []core.Posting `json:"postings"`
	Count    int            `json:"count"`
	Page     int            `json:"page,omitempty"`
	Limit    int            `json:"limit,omitempty"`
}

func (s *Server) handleListPostings(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	postings, err := s.service.ListPostings(r.Context(), page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, postingsResponse(postings, page))
}

func (s *Server) handleFilterPostings(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	postings, err := s.service.FilterPostings(r.Context(), parseCriteria(r), page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, postingsResponse(postings, page))
}

func postingsResponse(postings []core.Posting, page core.Page) PostingsResponse {
	return PostingsResponse{
		Postings: postings,
		Count:    len(postings),
		Page:     page.Number,
		Limit:    page.Limit,
	}
}

func (s *Server) handleLegacyListAll(w http.ResponseWriter, r *http.Request) {
	postings, err := s.service.ListPostings(r.Context(), core.Page{})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, postings)
}

// handleLegacyListPaginated requires both page and limit.
func (s *Server) handleLegacyListPaginated(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err == nil && page.IsZero() {
		err = core.NewError(core.ErrInvalidCriteria, "page and limit are required", nil)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	postings, err := s.service.ListPostings(r.Context(), page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, postings)
}

func (s *Server) handleLegacyFilter(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	postings, err := s.service.FilterPostings(r.Context(), parseCriteria(r), page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, postings)
}
