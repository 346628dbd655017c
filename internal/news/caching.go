package news

import (
	"context"
	"encoding/json"

	"github.com/hyperjump/newsqa/internal/semcache"
	"go.uber.org/zap"
)

// CachingFetcher serves fetches from a semantic cache keyed by SearchQuery and fills
// it from the wrapped Fetcher. Only non-empty results are stored. Cache failures are
// logged and never fail a fetch.
type CachingFetcher struct {
	inner  Fetcher
	cache  *semcache.Cache
	logger *zap.Logger
}

// NewCachingFetcher wraps inner with cache.
func NewCachingFetcher(inner Fetcher, cache *semcache.Cache, logger *zap.Logger) *CachingFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingFetcher{inner: inner, cache: cache, logger: logger}
}

// FetchHeadlines implements Fetcher.
func (f *CachingFetcher) FetchHeadlines(ctx context.Context, topic string, lookbackDays, maxResults int) (*Result, error) {
	key := SearchQuery(topic, lookbackDays)

	hit, ok, err := f.cache.Lookup(ctx, key)
	if err != nil {
		f.logger.Warn("news cache lookup failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		var cached Result
		if err := json.Unmarshal([]byte(hit.Result), &cached); err != nil {
			f.logger.Warn("discarding unreadable cached news", zap.String("key", key), zap.Error(err))
		} else {
			f.logger.Debug("news served from cache",
				zap.String("key", key),
				zap.String("matched", hit.Query),
				zap.Float64("similarity", hit.Similarity))
			if maxResults > 0 && len(cached.Articles) > maxResults {
				cached.Articles = cached.Articles[:maxResults]
			}
			return &cached, nil
		}
	}

	result, err := f.inner.FetchHeadlines(ctx, topic, lookbackDays, maxResults)
	if err != nil {
		return nil, err
	}
	if len(result.Articles) == 0 {
		return result, nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		f.logger.Warn("failed to encode news for cache", zap.Error(err))
		return result, nil
	}
	if err := f.cache.Store(ctx, key, string(payload)); err != nil {
		f.logger.Warn("news cache store failed", zap.String("key", key), zap.Error(err))
	}
	return result, nil
}
