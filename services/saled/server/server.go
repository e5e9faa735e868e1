package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lavasale/native/sale"
	"lavasale/services/saled/storage"
)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
}

// Server hosts the public contribution API and operator admin endpoints.
type Server struct {
	cfg     Config
	engine  *sale.Engine
	oracle  sale.PriceOracle
	archive *storage.Archive
	logger  *slog.Logger
	auth    *Authenticator
	limiter *RateLimiter
	nowFn   func() time.Time
}

// New constructs a new HTTP server around the sale engine.
func New(cfg Config, engine *sale.Engine, oracle sale.PriceOracle, archive *storage.Archive, auth *Authenticator, limiter *RateLimiter, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("sale engine required")
	}
	if auth == nil {
		return nil, fmt.Errorf("admin authenticator required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7085"
	}
	return &Server{
		cfg:     cfg,
		engine:  engine,
		oracle:  oracle,
		archive: archive,
		logger:  logger,
		auth:    auth,
		limiter: limiter,
		nowFn:   time.Now,
	}, nil
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Get("/sale", s.handleSaleStatus)
		r.Get("/sale/contributions/{address}", s.handleContributionTotals)
		r.Get("/sale/receipts/{id}", s.handleReceipt)
		r.Post("/sale/contributions/native", s.handleContributeNative)
		r.Post("/sale/contributions/stable", s.handleContributeStable)
		r.Get("/oracle/price", s.handleOraclePrice)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Post("/rounds", s.handleAdvanceRound)
		r.Post("/finalize", s.handleFinalize)
	})

	return otelhttp.NewHandler(r, "saled.http")
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server not configured")
	}
	srv := &http.Server{Addr: s.cfg.ListenAddress, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", "addr", s.cfg.ListenAddress)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}
