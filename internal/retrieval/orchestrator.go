// Package retrieval answers news questions from the Q&A index and falls back to
// generating new pairs from live headlines when the index has nothing relevant.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/newsqa/internal/config"
	"github.com/hyperjump/newsqa/internal/llm"
	"github.com/hyperjump/newsqa/internal/models"
	"github.com/hyperjump/newsqa/internal/news"
	"github.com/hyperjump/newsqa/internal/qaindex"
	"go.uber.org/zap"
)

// ErrIndexUnavailable wraps every failure of the Q&A index.
var ErrIndexUnavailable = errors.New("index unavailable")

// Settings are the request defaults and per-call timeouts.
type Settings struct {
	DefaultTopK      int
	DefaultMinScore  float64
	FallbackDays     int
	FallbackPairs    int
	MaxNews          int
	IndexConcurrency int

	IndexTimeout      time.Duration
	NewsTimeout       time.Duration
	GenerationTimeout time.Duration
}

// SettingsFromConfig reads Settings from a loaded config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		DefaultTopK:       cfg.Search.DefaultTopK,
		DefaultMinScore:   cfg.Search.MinScoreOrDefault(),
		FallbackDays:      cfg.Search.FallbackDays,
		FallbackPairs:     cfg.Search.FallbackPairs,
		MaxNews:           cfg.News.MaxResults,
		IndexConcurrency:  cfg.Search.IndexConcurrency,
		IndexTimeout:      cfg.Timeouts.Index,
		NewsTimeout:       cfg.Timeouts.News,
		GenerationTimeout: cfg.Timeouts.Generation,
	}
}

func (s Settings) withDefaults() Settings {
	if s.DefaultTopK <= 0 {
		s.DefaultTopK = 10
	}
	if s.FallbackDays <= 0 {
		s.FallbackDays = 7
	}
	if s.FallbackPairs <= 0 {
		s.FallbackPairs = 5
	}
	if s.MaxNews <= 0 {
		s.MaxNews = 10
	}
	if s.IndexConcurrency <= 0 {
		s.IndexConcurrency = 4
	}
	return s
}

// CacheStatter reports semantic cache statistics for Stats.
type CacheStatter interface {
	Stats() models.CacheStats
}

// Orchestrator runs the search-and-fallback pipeline.
type Orchestrator struct {
	index     qaindex.Index
	news      news.Fetcher
	generator llm.Generator
	settings  Settings
	cache     CacheStatter
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithCacheStats includes cache statistics in Stats.
func WithCacheStats(c CacheStatter) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// New creates an Orchestrator. generator may be nil, in which case every generation
// attempt reports a failed outcome.
func New(index qaindex.Index, fetcher news.Fetcher, generator llm.Generator, settings Settings, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		index:     index,
		news:      fetcher,
		generator: generator,
		settings:  settings.withDefaults(),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// Search returns stored pairs matching the query. When none match and fallback is
// enabled, pairs are generated from recent news about the query instead.
// Validation failures return *models.ValidationError; index failures wrap ErrIndexUnavailable.
func (o *Orchestrator) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	req.ApplyDefaults(o.settings.DefaultTopK, o.settings.DefaultMinScore)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	query := strings.TrimSpace(req.Query)

	searchCtx, cancel := withTimeout(ctx, o.settings.IndexTimeout)
	results, err := o.index.Search(searchCtx, query, req.TopK, req.MinScoreValue())
	cancel()
	if err != nil {
		o.logger.Error("index search failed", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}

	resp := &models.SearchResponse{Query: query, Source: models.ResultSourceIndex}
	switch {
	case len(results) > 0:
		resp.Results = results
		resp.Outcome = models.NewOutcome(models.StatusOK, "")
	case !req.FallbackEnabled():
		resp.Results = []models.QAPair{}
		resp.Outcome = models.NewOutcome(models.StatusNoContent, "no matching Q&A pairs")
	default:
		o.logger.Info("no index match, generating from news", zap.String("query", query))
		gen := o.generate(ctx, query, o.settings.FallbackDays, o.settings.FallbackPairs)
		resp.Source = models.ResultSourceLLM
		resp.Results = gen.pairs
		resp.NewsCount = gen.newsCount
		resp.IndexedCount = gen.indexed
		resp.IndexErrors = gen.indexErrors
		resp.Outcome = gen.outcome
	}
	resp.TotalHits = len(resp.Results)
	resp.QueryTimeMS = time.Since(start).Milliseconds()
	o.logger.Debug("search done",
		zap.String("query", query),
		zap.String("source", resp.Source),
		zap.String("status", string(resp.Status)),
		zap.Int("results", resp.TotalHits),
		zap.Int64("ms", resp.QueryTimeMS))
	return resp, nil
}

// Generate runs the generation pipeline for topic unconditionally.
func (o *Orchestrator) Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error) {
	start := time.Now()
	req.ApplyDefaults(o.settings.FallbackDays, o.settings.FallbackPairs)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	topic := strings.TrimSpace(req.Topic)
	gen := o.generate(ctx, topic, req.Days, req.NumPairs)
	return &models.GenerateResponse{
		Topic:            topic,
		Results:          gen.pairs,
		NewsCount:        gen.newsCount,
		IndexedCount:     gen.indexed,
		IndexErrors:      gen.indexErrors,
		GenerationTimeMS: time.Since(start).Milliseconds(),
		Outcome:          gen.outcome,
	}, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
