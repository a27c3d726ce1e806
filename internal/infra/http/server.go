package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"automation-subscription-platform/internal/config"
	"automation-subscription-platform/internal/infra/logging"
	"automation-subscription-platform/internal/infra/metrics"
	"automation-subscription-platform/internal/usecase"
)

type Server struct {
	cfg    *config.Config
	settle usecase.SettlementUseCase
	subs   usecase.SubscriptionManager
	log    *zerolog.Logger
	server *http.Server
}

func NewServer(cfg *config.Config, settle usecase.SettlementUseCase, subs usecase.SubscriptionManager, logger *zerolog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		settle: settle,
		subs:   subs,
		log:    logger,
	}
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Provider callbacks authenticate through adapter token checks, not JWT.
		r.Post("/payments/callback/{gateway}", s.handleCallback)
		r.Get("/payments/callback/{gateway}", s.handleCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/payments", s.handleInitiatePayment)
			r.Post("/payments/{id}/verify", s.handleVerifyCrypto)
			r.Get("/subscriptions", s.handleListSubscriptions)
			r.Post("/subscriptions/trial", s.handleStartTrial)
			r.Post("/subscriptions/{id}/cancel", s.handleCancelSubscription)
			r.Post("/subscriptions/{id}/resume", s.handleResumeSubscription)
		})
	})

	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler: s.router(),
	}
	s.log.Info().Int("port", s.cfg.Server.Port).Msg("HTTP server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// requestLogger emits one structured line per request and feeds the request
// counter. Route pattern, not raw path, keeps the label cardinality bounded.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		route := chi.RouteContext(ctx).RoutePattern()
		metrics.IncHTTPRequest(route, r.Method, ww.Status())
		logging.With(ctx, s.log).Info().
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
