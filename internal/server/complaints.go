package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/civicflow/civicflow/internal/services/complaints"
)

type submitResponse struct {
	ID           string `json:"id"`
	TrackingCode string `json:"tracking_code"`
	Status       string `json:"status"`
	Message      string `json:"message"`
}

func (s *Server) submitComplaint(w http.ResponseWriter, r *http.Request) {
	var in complaints.SubmitInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.deps.Complaints.Submit(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{
		ID:           c.ID,
		TrackingCode: c.TrackingCode,
		Status:       string(c.Status),
		Message:      "Complaint submitted. Use your tracking code to follow its progress.",
	})
}

func (s *Server) listMyComplaints(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Complaints.ListByEmail(r.Context(), r.URL.Query().Get("email"), pagination(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) trackComplaint(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Complaints.Track(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type rateRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

func (s *Server) rateComplaint(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.deps.Complaints.Rate(r.Context(), chi.URLParam(r, "code"), req.Rating, req.Comment)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type verifyRequest struct {
	Fixed bool `json:"fixed"`
}

func (s *Server) verifyComplaint(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.deps.Complaints.Verify(r.Context(), chi.URLParam(r, "code"), req.Fixed)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) publicDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Admin.PublicDashboard(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
