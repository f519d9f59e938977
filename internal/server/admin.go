package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/civicflow/civicflow/internal/models"
	"github.com/civicflow/civicflow/internal/services/admin"
)

func (s *Server) adminListComplaints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ComplaintFilter{Search: q.Get("search")}
	if v := q.Get("status"); v != "" {
		status := models.ComplaintStatus(v)
		filter.Status = &status
	}
	if v := q.Get("category"); v != "" {
		category := models.Category(v)
		filter.Category = &category
	}
	if v := q.Get("risk_level"); v != "" {
		risk := models.RiskLevel(v)
		filter.RiskLevel = &risk
	}
	if v := q.Get("tenant_id"); v != "" {
		filter.TenantID = &v
	}
	filter.OpenOnly = q.Get("open") == "true"

	list, err := s.deps.Admin.ListComplaints(r.Context(), filter, pagination(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) adminGetComplaint(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Admin.GetComplaint(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) adminPatchComplaint(w http.ResponseWriter, r *http.Request) {
	var patch admin.ComplaintPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.deps.Admin.PatchComplaint(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) adminListWorkOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter models.WorkOrderFilter
	if v := q.Get("status"); v != "" {
		status := models.WorkOrderStatus(v)
		filter.Status = &status
	}
	if v := q.Get("contractor_id"); v != "" {
		filter.ContractorID = &v
	}
	if v := q.Get("origin"); v != "" {
		origin := models.WorkOrderOrigin(v)
		filter.Origin = &origin
	}
	filter.ActiveOnly = q.Get("active") == "true"

	list, err := s.deps.Admin.ListWorkOrders(r.Context(), filter, pagination(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) adminPatchWorkOrder(w http.ResponseWriter, r *http.Request) {
	var patch admin.WorkOrderPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	wo, err := s.deps.Admin.PatchWorkOrder(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wo)
}

func (s *Server) adminAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Admin.Analytics(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) adminPerformance(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Admin.Performance(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) adminContractors(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Admin.ListContractors(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contractors": list})
}

func (s *Server) adminLatestBriefing(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Admin.LatestBriefing(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) adminGenerateBriefing(w http.ResponseWriter, r *http.Request) {
	if s.deps.Briefings == nil {
		s.unavailable(w, "briefing generator")
		return
	}
	b, err := s.deps.Briefings.Generate(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) adminScanSLA(w http.ResponseWriter, r *http.Request) {
	if s.deps.SLA == nil {
		s.unavailable(w, "sla monitor")
		return
	}
	result, err := s.deps.SLA.Scan(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) adminDetectClusters(w http.ResponseWriter, r *http.Request) {
	if s.deps.Clusters == nil {
		s.unavailable(w, "cluster detector")
		return
	}
	n, err := s.deps.Clusters.Detect(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"clusters_created": n})
}

func (s *Server) adminBackfill(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Complaints.Backfill(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) unavailable(w http.ResponseWriter, what string) {
	writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("%s is not configured", what))
}
