// Package server provides the HTTP API for newsqa.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/newsqa/internal/config"
	"github.com/hyperjump/newsqa/internal/models"
	"go.uber.org/zap"
)

// Service is the retrieval pipeline served over HTTP.
type Service interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
	Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error)
	IndexPair(ctx context.Context, req models.IndexRequest) (*models.IndexResponse, error)
	IndexBulk(ctx context.Context, req models.BulkIndexRequest) (*models.IndexResponse, error)
	Stats(ctx context.Context) (*models.StatsResponse, error)
	DeleteAll(ctx context.Context) (*models.DeleteResponse, error)
	DeleteIndex(ctx context.Context) (*models.DeleteResponse, error)
	Healthy(ctx context.Context) bool
}

// CacheAdmin exposes the semantic cache for inspection and clearing.
type CacheAdmin interface {
	Stats() models.CacheStats
	Queries() []string
	Clear(ctx context.Context) error
}

// SeedWatchService manages watched seed directories (implemented by watcher.Watcher).
type SeedWatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the newsqa API.
type Server struct {
	service Service
	cache   CacheAdmin
	seeds   SeedWatchService
	version string
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server

	// configPath and appConfig persist seed directory changes; both optional.
	configPath  string
	appConfig   *config.Config
	appConfigMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithCache enables the /api/v1/cache endpoints.
func WithCache(c CacheAdmin) Option {
	return func(s *Server) { s.cache = c }
}

// WithSeedWatcher enables the /api/v1/seed/directories endpoints. When configPath and
// cfg are set, directory changes are written back to the config file.
func WithSeedWatcher(w SeedWatchService, configPath string, cfg *config.Config) Option {
	return func(s *Server) {
		s.seeds = w
		s.configPath = configPath
		s.appConfig = cfg
	}
}

// WithVersion sets the version reported by / and /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a server with the given dependencies.
func NewServer(service Service, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: service,
		config:  cfg,
		logger:  logger,
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/generate", s.handleGenerate)
		r.Post("/index", s.handleIndex)
		r.Post("/index/bulk", s.handleIndexBulk)
		r.Delete("/index", s.handleDeleteAll)
		r.Delete("/index/full", s.handleDeleteIndex)
		r.Get("/stats", s.handleStats)

		r.Get("/cache", s.handleCacheGet)
		r.Delete("/cache", s.handleCacheClear)

		r.Get("/seed/directories", s.handleSeedDirectoriesList)
		r.Post("/seed/directories", s.handleSeedDirectoriesAdd)
		r.Delete("/seed/directories", s.handleSeedDirectoriesRemove)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("version", s.version))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
