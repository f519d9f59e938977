// Package server exposes the citizen, public and admin HTTP API and the
// live tracking websocket.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/civicflow/civicflow/internal/eventbus"
	"github.com/civicflow/civicflow/internal/services/admin"
	"github.com/civicflow/civicflow/internal/services/briefing"
	"github.com/civicflow/civicflow/internal/services/cluster"
	"github.com/civicflow/civicflow/internal/services/complaints"
	"github.com/civicflow/civicflow/internal/services/sla"
)

// Config holds server settings.
type Config struct {
	Addr           string
	AdminToken     string
	RequestTimeout time.Duration
}

// Deps are the services behind the routes.
type Deps struct {
	Complaints *complaints.Service
	Admin      *admin.Service
	Briefings  *briefing.Generator
	SLA        *sla.Monitor
	Clusters   *cluster.Detector
	Bus        *eventbus.Bus
	Logger     *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	router chi.Router
}

// New assembles the router.
func New(cfg Config, deps Deps) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, deps: deps, logger: logger}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// Websockets outlive the request timeout.
	r.Get("/complaints/ws/{code}", s.watchComplaint)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))

		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/complaints", func(r chi.Router) {
			r.Post("/", s.submitComplaint)
			r.Get("/", s.listMyComplaints)
			r.Get("/track/{code}", s.trackComplaint)
			r.Post("/{code}/rate", s.rateComplaint)
			r.Post("/{code}/verify", s.verifyComplaint)
		})

		r.Get("/public/dashboard", s.publicDashboard)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireBearer(s.cfg.AdminToken))

			r.Get("/complaints", s.adminListComplaints)
			r.Get("/complaints/{id}", s.adminGetComplaint)
			r.Patch("/complaints/{id}", s.adminPatchComplaint)
			r.Get("/work-orders", s.adminListWorkOrders)
			r.Patch("/work-orders/{id}", s.adminPatchWorkOrder)
			r.Get("/analytics", s.adminAnalytics)
			r.Get("/analytics/performance", s.adminPerformance)
			r.Get("/contractors", s.adminContractors)
			r.Get("/briefing", s.adminLatestBriefing)
			r.Post("/briefing", s.adminGenerateBriefing)
			r.Post("/sla/scan", s.adminScanSLA)
			r.Post("/clusters/detect", s.adminDetectClusters)
			r.Post("/backfill", s.adminBackfill)
		})
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}
