// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/solution25com/fraudshield/internal/config"
	"github.com/solution25com/fraudshield/internal/events"
	"github.com/solution25com/fraudshield/internal/fraud"
	"github.com/solution25com/fraudshield/internal/health"
	"github.com/solution25com/fraudshield/internal/idgen"
	"github.com/solution25com/fraudshield/internal/logging"
	"github.com/solution25com/fraudshield/internal/metrics"
	"github.com/solution25com/fraudshield/internal/minfraud"
	"github.com/solution25com/fraudshield/internal/order"
	"github.com/solution25com/fraudshield/internal/ratelimit"
	"github.com/solution25com/fraudshield/internal/realtime"
	"github.com/solution25com/fraudshield/internal/riskavg"
	"github.com/solution25com/fraudshield/internal/security"
	"github.com/solution25com/fraudshield/internal/statemachine"
	"github.com/solution25com/fraudshield/internal/sysconfig"
	"github.com/solution25com/fraudshield/internal/traces"
	"github.com/solution25com/fraudshield/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg             *config.Config
	orders          order.Store
	states          statemachine.Store
	configSvc       *sysconfig.Service
	riskCache       *riskavg.Cache
	fraudService    *fraud.Service
	installer       *statemachine.Installer
	consumer        *events.Consumer
	realtimeHub     *realtime.Hub
	healthReg       *health.Registry
	rateLimiter     *ratelimit.Limiter
	db              *sql.DB // nil if using in-memory
	providerFactory fraud.ProviderFactory
	router          *gin.Engine
	httpSrv         *http.Server
	logger          *slog.Logger
	tracesCleanup   func(context.Context) error
	cancelRunCtx    context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithProviderFactory overrides the minFraud client factory (for testing)
func WithProviderFactory(factory fraud.ProviderFactory) Option {
	return func(s *Server) {
		s.providerFactory = factory
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat),
	}

	// Apply options first (may set logger/provider factory)
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		orderStore := order.NewPostgresStore(db)
		if err := orderStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate order store", "error", err)
		}
		s.orders = orderStore

		stateStore := statemachine.NewPostgresStore(db)
		if err := stateStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate state machine store", "error", err)
		}
		if err := stateStore.EnsureOrderStateMachine(ctx); err != nil {
			s.logger.Warn("failed to seed order state machine", "error", err)
		}
		s.states = stateStore

		configStore := sysconfig.NewPostgresStore(db)
		if err := configStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate system config store", "error", err)
		}
		s.configSvc = sysconfig.NewService(configStore)
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")

		s.orders = order.NewMemoryStore()

		stateStore := statemachine.NewMemoryStore()
		stateStore.SeedOrderStateMachine()
		s.states = stateStore

		s.configSvc = sysconfig.NewService(sysconfig.NewMemoryStore())
	}

	// Seed provider settings from env so a fresh deployment works without a
	// config round-trip. Channel-scoped settings still win at read time.
	if err := s.seedProviderConfig(ctx); err != nil {
		return nil, err
	}

	// State machine installer (runs at startup in Run)
	s.installer = statemachine.NewInstaller(s.states, statemachine.DefaultCatalog(), s.logger)

	// Realtime hub for the live evaluation feed
	s.realtimeHub = realtime.NewHub(s.logger)
	s.logger.Info("realtime evaluation feed enabled")

	// Average risk cache over scored orders
	s.riskCache = riskavg.NewCache(s.configSvc, s.orders, s.logger)

	// minFraud provider factory (per-channel credentials)
	if s.providerFactory == nil {
		endpoint := cfg.MaxMindEndpoint
		if endpoint != "" && endpoint != minfraud.DefaultEndpoint {
			if err := security.ValidateEndpointURL(endpoint); err != nil {
				return nil, fmt.Errorf("invalid provider endpoint: %w", err)
			}
		}
		timeout := cfg.ProviderTimeout
		s.providerFactory = func(accountID, licenseKey string) fraud.Provider {
			return minfraud.NewClient(accountID, licenseKey, endpoint, timeout)
		}
	}

	s.fraudService = fraud.NewService(
		s.orders,
		s.configSvc,
		s.states,
		s.riskCache,
		s.providerFactory,
		s.realtimeHub,
		cfg.RiskThreshold,
		s.logger,
	)

	// Kafka intake (optional, enabled when brokers are configured)
	if len(cfg.KafkaBrokers) > 0 {
		subscriber := events.NewSubscriber(s.fraudService, s.logger)
		s.consumer = events.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, subscriber, s.logger)
		s.logger.Info("kafka order intake enabled", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)
	}

	// Tracing (no-op without an OTLP endpoint)
	cleanup, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.tracesCleanup = cleanup
	}

	s.setupHealthChecks()

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

func (s *Server) seedProviderConfig(ctx context.Context) error {
	seed := func(key, value string) error {
		if value == "" {
			return nil
		}
		if _, ok, err := s.configSvc.GetString(ctx, key, sysconfig.GlobalScope); err != nil {
			return err
		} else if ok {
			return nil // stored setting wins over env
		}
		return s.configSvc.SetString(ctx, key, sysconfig.GlobalScope, value)
	}

	if err := seed(sysconfig.KeyAccountID, s.cfg.MaxMindAccountID); err != nil {
		return fmt.Errorf("seed account id: %w", err)
	}
	if err := seed(sysconfig.KeyLicenseKey, s.cfg.MaxMindLicenseKey); err != nil {
		return fmt.Errorf("seed license key: %w", err)
	}
	return nil
}

func (s *Server) setupHealthChecks() {
	s.healthReg = health.NewRegistry()

	if s.db != nil {
		s.healthReg.Register("database", func(ctx context.Context) health.Status {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := s.db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	}

	s.healthReg.Register("provider_config", func(ctx context.Context) health.Status {
		_, okA, errA := s.configSvc.GetString(ctx, sysconfig.KeyAccountID, sysconfig.GlobalScope)
		_, okL, errL := s.configSvc.GetString(ctx, sysconfig.KeyLicenseKey, sysconfig.GlobalScope)
		if errA != nil || errL != nil {
			return health.Status{Name: "provider_config", Healthy: false, Detail: "config store unreachable"}
		}
		if !okA || !okL {
			// Degraded, not fatal: evaluations are skipped until credentials arrive
			return health.Status{Name: "provider_config", Healthy: true, Detail: "credentials not configured"}
		}
		return health.Status{Name: "provider_config", Healthy: true}
	})
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (storefront and review dashboard origins; * for demo)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	s.rateLimiter = ratelimit.New(ratelimit.DefaultConfig())
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.Hex(16)
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/healthz", s.livenessHandler)
	s.router.GET("/readyz", s.readinessHandler)
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/metrics", metrics.Handler())

	// Service info
	s.router.GET("/", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")
	// Validate :id URL params on all v1 routes (no-op when param absent)
	v1.Use(validation.IDParamMiddleware())

	// Order intake and lookup
	orderHandler := order.NewHandler(s.orders, s.states)
	orderHandler.RegisterRoutes(v1)

	// Fraud pipeline: evaluation, metadata lookup, overall risk, credential check
	fraudHandler := fraud.NewHandler(s.fraudService)
	fraudHandler.RegisterRoutes(v1)

	// WebSocket feed of evaluation outcomes
	v1.GET("/live", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})
	v1.GET("/live/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.realtimeHub.Stats())
	})
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"version":   "0.1.0",
		"checks":    statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "FraudShield",
		"description": "Order fraud risk evaluation service",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Install the fraud state catalog before accepting traffic. Idempotent,
	// so restarts are safe.
	if err := s.installer.Install(runCtx); err != nil {
		cancel()
		return fmt.Errorf("state machine install: %w", err)
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start kafka intake
	if s.consumer != nil {
		s.consumer.Start(runCtx)
	}

	// Collect DB pool stats
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, kafka intake)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop kafka intake
	if s.consumer != nil {
		s.consumer.Stop()
		s.logger.Info("kafka consumer stopped")
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush traces
	if s.tracesCleanup != nil {
		if err := s.tracesCleanup(ctx); err != nil {
			s.logger.Error("traces shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

