// Package api exposes wallet custody and sweeping over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/health"
)

// WalletService creates and lists custodial wallets.
type WalletService interface {
	CreateCustodialWallet(ctx context.Context) (domain.WalletView, error)
	ListWallets(ctx context.Context) ([]domain.WalletView, error)
	FindWallet(ctx context.Context, address string) (domain.WalletView, error)
}

// SweepService runs sweeps and returns their reports.
type SweepService interface {
	TriggerSweep(ctx context.Context) (domain.SweepReport, error)
	// LastReport returns nil when no sweep has completed yet.
	LastReport(ctx context.Context) (*domain.SweepReport, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) health.Report
}

type Config struct {
	Port      int
	JWTSecret string
	Issuer    string
	// Health backs /health and /health/detailed when set.
	Health HealthChecker
}

// Server provides the HTTP API.
type Server struct {
	wallets WalletService
	sweeps  SweepService
	cfg     Config
	log     *slog.Logger
	engine  *gin.Engine
	server  *http.Server
}

// NewServer creates a new API server. Routes other than the health check and
// metrics require a bearer token when cfg.JWTSecret is set.
func NewServer(wallets WalletService, sweeps SweepService, cfg Config) *Server {
	s := &Server{
		wallets: wallets,
		sweeps:  sweeps,
		cfg:     cfg,
		log:     slog.Default().With("component", "api"),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", s.handleRoot)
	r.GET("/health", s.handleHealth)
	r.GET("/health/detailed", s.handleHealthDetailed)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := r.Group("/")
	if cfg.JWTSecret != "" {
		authed.Use(RequireAuth(cfg.JWTSecret, cfg.Issuer))
	}
	authed.POST("/wallets", s.handleCreateWallet)
	authed.GET("/wallets", s.handleListWallets)
	authed.GET("/wallets/:address", s.handleGetWallet)
	authed.GET("/wallets/:address/qr", s.handleWalletQR)
	authed.POST("/sweep", s.handleSweep)
	authed.GET("/sweep/last", s.handleLastSweep)

	s.engine = r
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("api listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
