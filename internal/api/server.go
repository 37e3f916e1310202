// Package api exposes price researches, evaluations, suppliers, reports and
// the CATMAT catalog as a JSON API.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/price-research/internal/advisory"
	"github.com/sells-group/price-research/internal/model"
	"github.com/sells-group/price-research/internal/store"
)

// Options configures a Server.
type Options struct {
	Thresholds    model.Thresholds
	DefaultMethod model.EstimationMethod
	CORSOrigins   []string

	// Now is the clock used for staleness and future-date checks.
	Now func() time.Time
}

// Server holds the API dependencies.
type Server struct {
	store   store.Store
	advisor *advisory.Advisor
	opts    Options
	router  chi.Router
}

// NewServer builds the router. A nil advisor disables the advisory route.
func NewServer(st store.Store, advisor *advisory.Advisor, opts Options) *Server {
	if opts.DefaultMethod == "" {
		opts.DefaultMethod = model.MethodMedian
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"http://localhost:3000"}
	}

	s := &Server{store: st, advisor: advisor, opts: opts}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type", roleHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireRole)

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/catalog", s.handleSearchCatalog)

		r.Route("/researches", func(r chi.Router) {
			r.Get("/", s.handleListResearches)
			r.With(allow(RoleAdmin, RoleResearcher)).Post("/", s.handleCreateResearch)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetResearch)
				r.With(allow(RoleAdmin, RoleResearcher)).Patch("/", s.handleUpdateResearch)
				r.With(allow(RoleAdmin, RoleResearcher)).Delete("/", s.handleDeleteResearch)

				r.Get("/observations", s.handleListObservations)
				r.With(allow(RoleAdmin, RoleResearcher)).Post("/observations", s.handleAddObservation)
				r.With(allow(RoleAdmin, RoleResearcher)).Put("/observations/{obsID}", s.handleUpdateObservation)
				r.With(allow(RoleAdmin, RoleResearcher)).Delete("/observations/{obsID}", s.handleDeleteObservation)

				r.Post("/evaluate", s.handleEvaluate)
				r.Get("/evaluation", s.handleGetEvaluation)
				r.Post("/advisory", s.handleAdvisory)

				r.Get("/reports", s.handleListReports)
				r.With(allow(RoleAdmin, RoleResearcher)).Post("/reports", s.handleCreateReport)
			})
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", s.handleListSuppliers)
			r.With(allow(RoleAdmin, RoleResearcher)).Post("/", s.handleCreateSupplier)
			r.Get("/{id}", s.handleGetSupplier)
			r.With(allow(RoleAdmin, RoleResearcher)).Put("/{id}", s.handleUpdateSupplier)
			r.With(allow(RoleAdmin)).Delete("/{id}", s.handleDeleteSupplier)
		})

		r.Get("/reports", s.handleListReports)
		r.Get("/reports/{reportID}", s.handleGetReport)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Warn("api: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
