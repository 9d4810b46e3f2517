package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kestrel-irp/api/handlers"
	"kestrel-irp/config"
	"kestrel-irp/core/rbac"
	"kestrel-irp/core/store"
	"kestrel-irp/core/timeline"
	"kestrel-irp/core/utils"
)

type ServerDeps struct {
	Events   store.EventsStore
	Analysis store.AnalysisStore
	Timeline *timeline.Service
	Policy   *rbac.Policy
}

type Server struct {
	cfg      *config.AppConfig
	logger   *utils.Logger
	events   store.EventsStore
	analysis store.AnalysisStore
	timeline *timeline.Service
	policy   *rbac.Policy
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		events:   deps.Events,
		analysis: deps.Analysis,
		timeline: deps.Timeline,
		policy:   deps.Policy,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.logMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	th := handlers.NewTimelineHandler(s.cfg, s.events, s.timeline, s.logger)
	r.Route("/api/cases/{case_id}", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/events", th.AppendEvent)
		r.Get("/timeline", th.Reconstruct)
		r.Get("/timeline/visualization", th.Visualization)
		r.Get("/timeline/export", th.Export)
		r.Get("/patterns", th.ListPatterns)
		r.Post("/patterns", th.CreatePattern)
		r.Post("/correlate", th.Correlate)
	})
	return r
}
