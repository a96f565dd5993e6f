package api

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/org/creditledger/internal/audit"
	"github.com/org/creditledger/internal/core"
	"github.com/org/creditledger/internal/ledger"
	"github.com/org/creditledger/internal/policy"
	"github.com/rs/zerolog"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Config holds server configuration.
type Config struct {
	ListenAddr  string
	TLSCertFile string
	TLSKeyFile  string
	AdminToken  string
	RateLimit   int // requests per second per client; 0 disables
	RateBurst   int
}

// Server is the ledger HTTP API.
type Server struct {
	ledger  *ledger.Service
	avail   *core.Availability
	policy  *policy.Engine
	journal *audit.Journal
	logger  zerolog.Logger
	cfg     Config
	httpSrv *http.Server
}

// NewServer creates a Server over an already wired ledger.
func NewServer(svc *ledger.Service, avail *core.Availability, pol *policy.Engine, journal *audit.Journal,
	logger zerolog.Logger, cfg Config) *Server {
	return &Server{
		ledger:  svc,
		avail:   avail,
		policy:  pol,
		journal: journal,
		logger:  logger.With().Str("component", "api").Logger(),
		cfg:     cfg,
	}
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware(s.logger))
	r.Use(metricsMiddleware)
	if s.cfg.RateLimit > 0 {
		r.Use(newRateLimiter(s.cfg.RateLimit, s.cfg.RateBurst, s.logger).middleware)
	}

	// Prometheus metrics
	r.Handle("/metrics", MetricsHandler())

	r.Get("/v1/sys/health", s.HealthHandler)

	r.Route("/v1/ledger", func(r chi.Router) {
		r.Get("/available", s.AvailableHandler)
		r.Get("/data/{key}", s.GetDataHandler)
		r.Post("/tx", s.SubmitTxHandler)
		r.Get("/tx/{hash}", s.ReceiptHandler)
		r.Get("/journal", s.JournalHandler)
		r.Get("/capabilities", s.CapabilitiesHandler)
	})

	// Operator routes
	r.Group(func(r chi.Router) {
		r.Use(adminMiddleware(s.cfg.AdminToken))
		r.Put("/v1/sys/pause", s.PauseHandler)
		r.Put("/v1/sys/resume", s.ResumeHandler)
	})

	return r
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	handler := s.BuildRouter()

	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		s.httpSrv.TLSConfig = &tls.Config{
			MinVersion:       tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{tls.CurveP256, tls.X25519},
		}
		s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTPS server")
		return s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}

	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTP server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
