package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sailsonlabs/pulse/internal/api"
	"github.com/sailsonlabs/pulse/internal/classify"
	"github.com/sailsonlabs/pulse/internal/config"
	"github.com/sailsonlabs/pulse/internal/pgdb"
	"github.com/sailsonlabs/pulse/internal/providers"
	"github.com/sailsonlabs/pulse/internal/results"
	"github.com/sailsonlabs/pulse/internal/scrape"
	"github.com/sailsonlabs/pulse/internal/server/endpoints"
	"github.com/sailsonlabs/pulse/internal/svcctx"
	"github.com/sailsonlabs/pulse/internal/tasks"
	"github.com/sailsonlabs/pulse/internal/usage"
)

// Server is the main Pulse HTTP server.
// It manages the Postgres container lifecycle - starting it on server
// start and stopping it on server shutdown - unless an external DSN or
// memory-only mode is configured.
type Server struct {
	httpServer *http.Server
	pgManager  *pgdb.DockerManager
	pool       *pgxpool.Pool
	registry   *providers.Registry
	configMgr  *config.Manager
	runner     *tasks.Runner
	sweeper    *tasks.Sweeper
	logger     *slog.Logger
	memoryOnly bool

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// DataPath is the host path for Postgres data persistence
	DataPath string
	// MemoryOnly skips Postgres entirely; all state stays in process
	MemoryOnly bool
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}

	appCfg := cfg.ConfigManager.Get()

	var pgManager *pgdb.DockerManager
	if !cfg.MemoryOnly && appCfg.Database.DSN == "" {
		var err error
		pgManager, err = pgdb.NewDockerManager(pgdb.DockerConfig{
			ContainerName: appCfg.Database.ContainerName,
			Image:         appCfg.Database.Image,
			DataPath:      cfg.DataPath,
			HostPort:      appCfg.Database.Port,
			Password:      appCfg.Database.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres manager: %w", err)
		}
	}

	// Create provider registry and keep it in sync with config changes.
	registry := providers.NewRegistry(cfg.Logger)
	registry.ApplyConfig(appCfg)
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		registry.ApplyConfig(c)
		cfg.Logger.Info("provider registry reloaded from config")
	})

	s := &Server{
		pgManager:  pgManager,
		registry:   registry,
		configMgr:  cfg.ConfigManager,
		logger:     cfg.Logger,
		memoryOnly: cfg.MemoryOnly,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{PGManager: pgManager}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server and its Postgres backend.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	appCfg := s.configMgr.Get()

	if err := s.startDatabase(ctx, appCfg); err != nil {
		s.setNotRunning()
		return err
	}

	// Task store: owned tasks go durable, anonymous tasks stay in memory.
	var (
		taskStore   *tasks.LayeredStore
		resultStore results.Store
		usageStore  usage.Store
	)
	if s.pool != nil {
		taskStore = tasks.NewLayeredStore(tasks.NewPGStore(s.pool))
		resultStore = results.NewPGStore(s.pool)
		usageStore = usage.NewPGStore(s.pool)
	} else {
		taskStore = tasks.NewLayeredStore(nil)
		resultStore = results.NewMemoryStore()
		usageStore = usage.NewMemoryStore()
	}

	// Classification runs against the configured provider, resolved
	// through the registry on every call so config reloads take effect
	// without a restart.
	providerName := appCfg.Pipeline.LLMProvider
	providerCfg, _ := appCfg.GetLLMProvider(providerName)
	llm := &registryLLM{registry: s.registry, name: providerName}
	classifier := classify.NewClassifier(llm, classify.DefaultTemplate, s.logger)
	summarizer := classify.NewSummarizer(llm)

	scraper := scrape.NewClient(appCfg.Scraper, s.logger)

	s.runner = tasks.NewRunner(appCfg.Pipeline.MaxWorkers, appCfg.Pipeline.QueueSize, s.logger)
	s.runner.Start(ctx)

	pipeline := tasks.NewPipeline(tasks.PipelineConfig{
		Store:       taskStore,
		Runner:      s.runner,
		Fetcher:     scraper,
		Classifier:  classifier,
		Summarizer:  summarizer,
		Results:     resultStore,
		Usage:       usageStore,
		Logger:      s.logger,
		BatchSize:   appCfg.Pipeline.BatchSize,
		MaxComments: appCfg.Pipeline.MaxComments,
		Provider:    providerName,
		Model:       providerCfg.Model,
	})

	s.sweeper = tasks.NewSweeper(
		taskStore,
		time.Duration(appCfg.Pipeline.StaleAfterMinutes)*time.Minute,
		appCfg.Pipeline.SweepSchedule,
		s.logger,
	)
	if err := s.sweeper.Start(ctx); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to start staleness sweep: %w", err)
	}

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Config:    s.configMgr,
		Logger:    s.logger,
		Pool:      s.pool,
		TaskStore: taskStore,
		Runner:    s.runner,
		Pipeline:  pipeline,
		Registry:  s.registry,
		Results:   resultStore,
		Usage:     usageStore,
	}

	// Pick up config file edits while running.
	s.configMgr.Watch(s.logger)

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// startDatabase brings up Postgres and applies the schema. In
// memory-only mode it does nothing.
func (s *Server) startDatabase(ctx context.Context, appCfg *config.Config) error {
	if s.memoryOnly {
		s.logger.Warn("running memory-only: tasks and results do not survive restarts")
		return nil
	}

	dsn := appCfg.Database.DSN
	if dsn == "" {
		s.logger.Info("starting Postgres container")
		if err := s.pgManager.Start(ctx); err != nil {
			return fmt.Errorf("failed to start postgres: %w", err)
		}
		dsn = s.pgManager.DSN()
	}

	pool, err := pgdb.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s.pool = pool

	s.logger.Info("applying database schema")
	if err := pgdb.Migrate(ctx, pool); err != nil {
		pool.Close()
		s.pool = nil
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// shutdown performs graceful shutdown of the HTTP server, the worker
// pool, and the Postgres container.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.runner != nil {
		s.runner.Stop()
	}

	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgManager != nil {
		s.logger.Info("stopping Postgres container")
		if err := s.pgManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("Postgres stop error", "error", err)
		}
		if err := s.pgManager.Close(); err != nil {
			s.logger.Error("Postgres manager close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the pipeline is wired up.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}

// registryLLM resolves the named provider from the registry at call
// time so hot-reloaded credentials and models are picked up.
type registryLLM struct {
	registry *providers.Registry
	name     string
}

func (c *registryLLM) Name() string { return c.name }

func (c *registryLLM) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
	client, err := c.registry.GetLLM(c.name)
	if err != nil {
		return nil, err
	}
	return client.Chat(ctx, req)
}
