package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/newsqa/internal/cli"
	"github.com/hyperjump/newsqa/internal/config"
	"github.com/hyperjump/newsqa/internal/embedding"
	"github.com/hyperjump/newsqa/internal/llm"
	"github.com/hyperjump/newsqa/internal/models"
	"github.com/hyperjump/newsqa/internal/news"
	"github.com/hyperjump/newsqa/internal/qaindex"
	"github.com/hyperjump/newsqa/internal/retrieval"
	"github.com/hyperjump/newsqa/internal/semcache"
	"github.com/hyperjump/newsqa/internal/seed"
	"github.com/hyperjump/newsqa/pkg/utils"
	"go.uber.org/zap"
)

// pipeline is implemented by both the local orchestrator and the HTTP client.
type pipeline interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
	Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error)
	IndexPair(ctx context.Context, req models.IndexRequest) (*models.IndexResponse, error)
	IndexBulk(ctx context.Context, req models.BulkIndexRequest) (*models.IndexResponse, error)
	Stats(ctx context.Context) (*models.StatsResponse, error)
	DeleteAll(ctx context.Context) (*models.DeleteResponse, error)
	DeleteIndex(ctx context.Context) (*models.DeleteResponse, error)
}

// cacheBackend is the cache administration both backends offer.
type cacheBackend interface {
	Cache(ctx context.Context) (*models.CacheResponse, error)
	ClearCache(ctx context.Context) error
}

// localCache adapts a semantic cache to cacheBackend.
type localCache struct {
	cache *semcache.Cache
}

func (l localCache) Cache(context.Context) (*models.CacheResponse, error) {
	return &models.CacheResponse{Stats: l.cache.Stats(), Queries: l.cache.Queries()}, nil
}

func (l localCache) ClearCache(ctx context.Context) error {
	return l.cache.Clear(ctx)
}

// Components holds initialized services.
type Components struct {
	Config    *config.Config
	Index     *qaindex.BleveIndex
	Embedder  embedding.Embedder
	Cache     *semcache.Cache
	News      news.Fetcher
	GDELT     *news.GDELTClient
	Generator llm.Generator
	Pipeline  *retrieval.Orchestrator
	Importer  *seed.Importer
}

// Close releases the index, the cache store and the embedder.
func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	idx, err := qaindex.NewBleveIndex(cfg.Storage.IndexPath, qaindex.Options{
		Name:          cfg.Index.Name,
		QuestionBoost: cfg.Index.QuestionBoost,
		Fuzziness:     cfg.Index.Fuzziness,
		PrefixLength:  cfg.Index.PrefixLength,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Q&A index: %w", err)
	}
	c := &Components{Config: cfg, Index: idx}

	c.GDELT = news.NewGDELTClient(cfg.News, cfg.Timeouts.News, logger)
	source, err := news.NewFetcher(cfg.News, cfg.Timeouts.News, c.GDELT, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.News = source
	if cfg.Cache.EnabledOrDefault() {
		embedder, err := embedding.New(cfg.Embedding, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		c.Embedder = embedder
		store, err := semcache.OpenStore(cfg.Cache, cfg.Storage.CachePath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open semantic cache: %w", err)
		}
		c.Cache = semcache.New(ctx, embedder, store,
			semcache.WithThreshold(cfg.Cache.Threshold),
			semcache.WithMaxEntries(cfg.Cache.MaxEntries),
			semcache.WithLogger(logger),
		)
		c.News = news.NewCachingFetcher(source, c.Cache, logger)
		logger.Info("semantic cache initialized",
			zap.String("backend", cfg.Cache.Backend),
			zap.Int("dimensions", embedder.Dimensions()),
			zap.Float64("threshold", cfg.Cache.Threshold))
	}

	gen, err := llm.NewOpenAIGenerator(cfg.LLM, logger)
	if err != nil {
		logger.Warn("language model unavailable, generation fallback disabled", zap.Error(err))
	} else {
		c.Generator = gen
	}

	opts := []retrieval.Option{retrieval.WithLogger(logger)}
	if c.Cache != nil {
		opts = append(opts, retrieval.WithCacheStats(c.Cache))
	}
	c.Pipeline = retrieval.New(idx, c.News, c.Generator, retrieval.SettingsFromConfig(cfg), opts...)
	c.Importer = seed.NewImporter(idx, logger)
	return c, nil
}

// session is an opened backend plus its cleanup.
type session struct {
	pipeline pipeline
	cache    cacheBackend
	// components is nil when talking to a server.
	components *Components
	logger     *zap.Logger
	close      func()
}

// open connects to --server when set, otherwise opens the local components.
// cache is nil when the local semantic cache is disabled.
func (o *rootOptions) open(ctx context.Context) (*session, error) {
	if o.serverURL != "" {
		client := cli.NewClient(o.serverURL, 0)
		return &session{pipeline: client, cache: client, logger: zap.NewNop(), close: func() {}}, nil
	}
	cfg, _, err := loadConfig(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := o.logger(cfg, false)
	if err != nil {
		return nil, err
	}
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s := &session{
		pipeline:   components.Pipeline,
		components: components,
		logger:     logger,
		close: func() {
			components.Close()
			_ = logger.Sync()
		},
	}
	if components.Cache != nil {
		s.cache = localCache{cache: components.Cache}
	}
	return s, nil
}

// logger builds the command logger. One-shot commands stay quiet unless debugging.
func (o *rootOptions) logger(cfg *config.Config, always bool) (*zap.Logger, error) {
	debug := cfg.Debug || o.debug
	if !debug && !always {
		return zap.NewNop(), nil
	}
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// requestTimeout bounds one CLI request against the local pipeline.
func requestTimeout(cfg *config.Config) time.Duration {
	if cfg == nil || cfg.Server.RequestTimeout <= 0 {
		return 90 * time.Second
	}
	return cfg.Server.RequestTimeout
}
