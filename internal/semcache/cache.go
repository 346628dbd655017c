// Package semcache provides a similarity cache: results stored under a query are
// returned for later queries whose embeddings are close enough to it.
package semcache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hyperjump/newsqa/internal/embedding"
	"github.com/hyperjump/newsqa/internal/models"
	"github.com/hyperjump/newsqa/pkg/utils"
	"go.uber.org/zap"
)

// DefaultThreshold is the minimum cosine similarity for a semantic hit.
const DefaultThreshold = 0.85

// Hit is a successful lookup.
type Hit struct {
	// Query is the cached query that matched, verbatim.
	Query      string
	Result     string
	Similarity float64
}

// Cache is safe for concurrent use. One mutex covers the entries, the hit and miss
// counters, and every flush to the store, so persisted state is always a snapshot.
type Cache struct {
	embedder   embedding.Embedder
	store      Store
	threshold  float64
	maxEntries int
	logger     *zap.Logger

	mu      sync.Mutex
	entries []Entry
	byQuery map[string]int // normalized query -> index in entries
	hits    int
	misses  int
}

// Option configures a Cache.
type Option func(*Cache)

// WithThreshold sets the minimum similarity for a hit.
func WithThreshold(t float64) Option {
	return func(c *Cache) { c.threshold = t }
}

// WithMaxEntries bounds the cache; the oldest entry is evicted first. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// WithLogger sets a logger for hit, miss and persistence events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache and loads any persisted state from store. A store that cannot
// be read is logged and the cache starts empty.
func New(ctx context.Context, embedder embedding.Embedder, store Store, opts ...Option) *Cache {
	c := &Cache{
		embedder:  embedder,
		store:     store,
		threshold: DefaultThreshold,
		logger:    zap.NewNop(),
		byQuery:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)

	state, err := store.Load(ctx)
	if err != nil {
		c.logger.Warn("failed to load semantic cache, starting empty", zap.Error(err))
		state = &State{}
	}
	c.entries = state.Entries
	c.hits = state.Hits
	c.misses = state.Misses
	c.reindexLocked()
	c.logger.Debug("semantic cache loaded", zap.Int("entries", len(c.entries)))
	return c
}

func normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Lookup returns the cached result for query. An exact match after trimming and
// lowercasing wins without computing an embedding; otherwise the entry with the highest
// cosine similarity is a hit when it reaches the threshold. Every lookup counts as one
// hit or one miss.
func (c *Cache) Lookup(ctx context.Context, query string) (Hit, bool, error) {
	key := normalize(query)

	c.mu.Lock()
	if i, ok := c.byQuery[key]; ok {
		hit := Hit{Query: c.entries[i].Query, Result: c.entries[i].Result, Similarity: 1.0}
		c.recordLocked(ctx, true)
		c.mu.Unlock()
		c.logger.Debug("semantic cache exact hit", zap.String("query", query))
		return hit, true, nil
	}
	if len(c.entries) == 0 {
		c.recordLocked(ctx, false)
		c.mu.Unlock()
		return Hit{}, false, nil
	}
	c.mu.Unlock()

	// Embedding may be a remote call; it runs outside the lock.
	vec, err := c.embedder.Embed(ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.recordLocked(ctx, false)
		return Hit{}, false, fmt.Errorf("failed to embed query: %w", err)
	}

	best, bestIdx := CosineSimilarity(vec, c.entries[0].Embedding), 0
	for i := 1; i < len(c.entries); i++ {
		if sim := CosineSimilarity(vec, c.entries[i].Embedding); sim > best {
			best, bestIdx = sim, i
		}
	}
	if best >= c.threshold {
		c.recordLocked(ctx, true)
		c.logger.Debug("semantic cache hit",
			zap.String("query", query),
			zap.String("matched", c.entries[bestIdx].Query),
			zap.Float64("similarity", best))
		return Hit{Query: c.entries[bestIdx].Query, Result: c.entries[bestIdx].Result, Similarity: best}, true, nil
	}
	c.recordLocked(ctx, false)
	c.logger.Debug("semantic cache miss", zap.String("query", query), zap.Float64("best_similarity", best))
	return Hit{}, false, nil
}

// Store caches result under query. Storing a query whose normalized form is already
// cached is a no-op; the first result wins.
func (c *Cache) Store(ctx context.Context, query, result string) error {
	key := normalize(query)

	c.mu.Lock()
	_, exists := c.byQuery[key]
	c.mu.Unlock()
	if exists {
		return nil
	}

	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byQuery[key]; ok {
		return nil
	}
	c.entries = append(c.entries, Entry{Query: query, Result: result, Embedding: vec})
	c.byQuery[key] = len(c.entries) - 1
	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.entries = append([]Entry(nil), c.entries[len(c.entries)-c.maxEntries:]...)
		c.reindexLocked()
	}
	c.logger.Debug("semantic cache stored", zap.String("query", query), zap.Int("entries", len(c.entries)))
	return c.flushLocked(ctx)
}

// Stats returns entry and counter totals. HitRate is a percentage with one decimal.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	rate := 0.0
	if total := c.hits + c.misses; total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}
	return models.CacheStats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: fmt.Sprintf("%.1f%%", rate),
	}
}

// Queries returns the cached queries in insertion order.
func (c *Cache) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Query
	}
	return out
}

// Clear removes every entry and resets the counters.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.byQuery = make(map[string]int)
	c.hits, c.misses = 0, 0
	return c.flushLocked(ctx)
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// recordLocked counts a lookup and flushes. Flush errors are logged, not returned,
// so a lookup never fails because persistence did.
func (c *Cache) recordLocked(ctx context.Context, hit bool) {
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	_ = c.flushLocked(ctx)
}

func (c *Cache) flushLocked(ctx context.Context) error {
	state := &State{Entries: c.entries, Hits: c.hits, Misses: c.misses}
	if state.Entries == nil {
		state.Entries = []Entry{}
	}
	if err := c.store.Save(ctx, state); err != nil {
		c.logger.Warn("failed to persist semantic cache", zap.Error(err))
		return err
	}
	return nil
}

func (c *Cache) reindexLocked() {
	c.byQuery = make(map[string]int, len(c.entries))
	for i, e := range c.entries {
		key := normalize(e.Query)
		if _, ok := c.byQuery[key]; !ok {
			c.byQuery[key] = i
		}
	}
}
