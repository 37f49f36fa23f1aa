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

	"github.com/meaningapp/meaning/internal/api"
	"github.com/meaningapp/meaning/internal/auth"
	"github.com/meaningapp/meaning/internal/config"
	"github.com/meaningapp/meaning/internal/extract"
	"github.com/meaningapp/meaning/internal/home"
	"github.com/meaningapp/meaning/internal/notes"
	"github.com/meaningapp/meaning/internal/server/endpoints"
	"github.com/meaningapp/meaning/internal/svcctx"
)

// Server is the extraction service. It owns the extraction worker pool
// and the note store, starting both on Start and releasing them on
// shutdown.
type Server struct {
	httpServer *http.Server
	pool       *extract.Pool
	tokens     *auth.Tokens
	configMgr  *config.Manager
	home       *home.Dir
	logger     *slog.Logger

	// noteStore is opened in Start unless one was injected.
	noteStore notes.Store
	ownsStore bool
	dbPath    string

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
	// Port is the port to listen on (default: 5050)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Home is the meaning home directory; the note database lives here
	// unless notes.db_path is set.
	Home *home.Dir
	// Logger is the structured logger to use
	Logger *slog.Logger
	// LogLevel, when set, follows log.level across config reloads.
	LogLevel *slog.LevelVar
	// Extractor replaces the PDF extractor, mainly for tests.
	Extractor extract.TextExtractor
	// NoteStore replaces the SQLite note store. The server does not
	// close an injected store.
	NoteStore notes.Store
	// DocumentRoot overrides extract.root.
	DocumentRoot string
	// Secret overrides auth.secret.
	Secret []byte
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	values := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		values = cfg.ConfigManager.Get()
	}
	if cfg.Host == "" {
		cfg.Host = values.Server.Host
	}
	if cfg.Port == "" {
		cfg.Port = values.Server.Port
	}

	secret := cfg.Secret
	if len(secret) == 0 {
		secret = values.AuthSecret()
	}

	s := &Server{
		pool: extract.NewPool(extract.PoolConfig{
			Logger:      cfg.Logger,
			Extractor:   cfg.Extractor,
			WorkerCount: values.Extract.Workers,
			QueueSize:   values.Extract.QueueSize,
			RateLimit:   values.Extract.RateLimit,
		}),
		tokens:    auth.NewTokens(secret, values.Auth.TokenTTL),
		configMgr: cfg.ConfigManager,
		home:      cfg.Home,
		logger:    cfg.Logger,
		noteStore: cfg.NoteStore,
		dbPath:    values.Notes.DBPath,
	}
	if s.dbPath == "" && cfg.Home != nil {
		s.dbPath = cfg.Home.NotesDBPath()
	}

	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			if cfg.LogLevel != nil {
				cfg.LogLevel.Set(c.Log.SlogLevel())
			}
			cfg.Logger.Info("config reloaded", "log_level", c.Log.SlogLevel().String())
		})
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{DocumentRoot: cfg.DocumentRoot}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireAuth)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      cors(s.withServices(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the extraction pool, opens the note store and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.openNotes(ctx); err != nil {
		s.setNotRunning()
		return err
	}

	if !s.tokens.Configured() {
		s.logger.Warn("auth.secret not set, note endpoints will refuse requests")
	}

	// Create services struct for context enrichment
	s.mu.Lock()
	s.services = &svcctx.Services{
		Extractor: s.pool,
		NoteStore: s.noteStore,
		Tokens:    s.tokens,
		Config:    s.configMgr,
		Logger:    s.logger,
		Home:      s.home,
	}
	s.mu.Unlock()

	poolCtx, stopPool := context.WithCancel(context.Background())
	go s.pool.Start(poolCtx)

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
			_ = s.shutdown(stopPool)
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown(stopPool)
}

// openNotes opens the SQLite note store, or an in-memory store when
// neither a home directory nor notes.db_path is configured.
func (s *Server) openNotes(ctx context.Context) error {
	if s.noteStore != nil {
		return nil
	}
	if s.dbPath == "" {
		s.logger.Warn("no note database configured, notes are kept in memory")
		s.noteStore = notes.NewMemoryStore()
		return nil
	}

	store, err := notes.OpenSQLite(ctx, s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open note store: %w", err)
	}
	s.logger.Info("note store ready", "path", store.Path())
	s.noteStore = store
	s.ownsStore = true
	return nil
}

// shutdown drains HTTP, stops the pool and closes the note store.
func (s *Server) shutdown(stopPool context.CancelFunc) error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	stopPool()

	if s.ownsStore {
		if c, ok := s.noteStore.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				s.logger.Error("note store close error", "error", err)
			}
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

// Tokens returns the token issuer used to authenticate note requests.
func (s *Server) Tokens() *auth.Tokens {
	return s.tokens
}

// Extractor returns the extraction pool.
func (s *Server) Extractor() *extract.Pool {
	return s.pool
}

// Registry returns the endpoint registry.
func (s *Server) Registry() *api.Registry {
	return s.endpointRegistry
}
