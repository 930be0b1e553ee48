// Package api exposes the rating service over HTTP for one company-scoped
// caller per request.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"safety-rating/internal/common/logger"
	"safety-rating/internal/common/metrics"
	"safety-rating/internal/rating/aggregator"
	"safety-rating/internal/rating/history"
	"safety-rating/internal/rating/recommend"
)

// RatingService is the subset of the orchestrator the HTTP layer reads from.
type RatingService interface {
	CompanySafetyRating(ctx context.Context, companyID string) (*aggregator.CompanySafetyRating, error)
	History(ctx context.Context, companyID string, limit int) ([]history.Entry, error)
	WorkforceSafetyScore(ctx context.Context, companyID string) (*aggregator.WorkforceSafetyScore, error)
	WorkforceDetails(ctx context.Context, companyID string) ([]aggregator.EmployeePSR, error)
	Tips(ctx context.Context, companyID string) ([]recommend.Tip, error)
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	ratings   RatingService
	readiness map[string]Pinger
	logger    logger.Logger
	now       func() time.Time
}

func New(ratings RatingService, readiness map[string]Pinger, log logger.Logger) *Server {
	return &Server{
		ratings:   ratings,
		readiness: readiness,
		logger:    log.WithFields(map[string]interface{}{"component": "http-api"}),
		now:       time.Now,
	}
}

// Routes returns a chi.Router with the probes, metrics and company-scoped API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(companyScope)

		r.Get("/company-safety-rating", s.getCompanySafetyRating)
		r.Get("/company-safety-rating/history", s.getHistory)
		r.Get("/company-safety-rating/tips", s.getTips)
		r.Get("/workforce-safety-score", s.getWorkforceSafetyScore)
		r.Get("/workforce-safety-score/details", s.getWorkforceDetails)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.now().Format(time.RFC3339),
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.readiness))
	status := http.StatusOK
	for name, p := range s.readiness {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
		"time":   s.now().Format(time.RFC3339),
	})
}

// instrument counts requests by route pattern so ids never become labels.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
