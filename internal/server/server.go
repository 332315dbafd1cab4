// Package server exposes the ingestion pipeline and its read surface over
// HTTP: sync webhooks, batch file uploads, opportunity and contact listings,
// and the department mapping admin API.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/sells-group/tendersync/internal/config"
	"github.com/sells-group/tendersync/internal/ingest"
	"github.com/sells-group/tendersync/internal/model"
	"github.com/sells-group/tendersync/internal/monitoring"
	"github.com/sells-group/tendersync/internal/store"
)

// SyncRunner drives one batch ingestion. Implemented by ingest.Pipeline.
type SyncRunner interface {
	Run(ctx context.Context, req ingest.Request) (*ingest.Report, error)
}

// BuyerResolver resolves raw buyer entities to departments. Implemented by
// resolve.Resolver.
type BuyerResolver interface {
	ResolveAll(ctx context.Context, tenantID string, raws []string) (map[string]*model.Resolution, error)
	Unmapped(ctx context.Context, tenantID string) ([]string, error)
}

// MetricsCollector supplies the /status snapshot.
type MetricsCollector interface {
	Collect(ctx context.Context, lookbackHours int) (*monitoring.MetricsSnapshot, error)
}

// Server holds the HTTP handler dependencies.
type Server struct {
	store     store.Store
	pipeline  SyncRunner
	resolver  BuyerResolver
	collector MetricsCollector
	cfg       config.ServerConfig
	upload    config.UploadConfig
	maxBatch  int
}

// New creates a Server. collector may be nil; /status then reports only
// liveness.
func New(st store.Store, pipeline SyncRunner, resolver BuyerResolver, collector MetricsCollector, cfg *config.Config) *Server {
	return &Server{
		store:     st,
		pipeline:  pipeline,
		resolver:  resolver,
		collector: collector,
		cfg:       cfg.Server,
		upload:    cfg.Upload,
		maxBatch:  cfg.Ingest.MaxBatch,
	}
}

// Routes builds the chi router with logging, CORS, and per-tenant rate
// limiting applied to the API surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Tenant-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RatePerSecond > 0 {
			r.Use(newTenantLimiter(s.cfg.RatePerSecond, s.cfg.RateBurst).middleware)
		}

		r.Post("/sync", s.handleSync)
		r.Post("/sync/upload", s.handleSyncUpload)

		r.Get("/opportunities", s.handleListOpportunities)
		r.Get("/contacts", s.handleListContacts)
		r.Get("/jobs", s.handleListJobs)

		r.Route("/mappings", func(r chi.Router) {
			r.Get("/", s.handleListMappings)
			r.Post("/", s.handleCreateMapping)
			r.Get("/unmapped", s.handleUnmapped)
			r.Put("/{id}", s.handleUpdateMapping)
			r.Delete("/{id}", s.handleDeleteMapping)
		})
	})

	return r
}
