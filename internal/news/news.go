// Package news fetches recent headlines for a topic and formats them for a
// generation prompt.
package news

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/newsqa/internal/config"
	"go.uber.org/zap"
)

// Article is one headline.
type Article struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	Link        string `json:"link,omitempty"`
}

// Result is the outcome of a fetch. TotalCount is the number of items in the feed
// before truncation to the requested maximum.
type Result struct {
	Query      string    `json:"query"`
	TotalCount int       `json:"total_count"`
	Articles   []Article `json:"articles"`
}

// Fetcher returns recent headlines about topic published within the last
// lookbackDays days. An empty article list is not an error.
type Fetcher interface {
	FetchHeadlines(ctx context.Context, topic string, lookbackDays, maxResults int) (*Result, error)
}

// NewFetcher builds the Fetcher named by cfg.Provider. gdelt is the client to reuse
// when the provider is "gdelt"; a new one is created when it is nil.
func NewFetcher(cfg config.NewsConfig, timeout time.Duration, gdelt *GDELTClient, logger *zap.Logger) (Fetcher, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "google":
		return NewGoogleNewsClient(cfg, timeout, logger), nil
	case "gdelt":
		if gdelt == nil {
			gdelt = NewGDELTClient(cfg, timeout, logger)
		}
		return gdelt, nil
	default:
		return nil, fmt.Errorf("unknown news provider %q", cfg.Provider)
	}
}

// SearchQuery is the upstream query literal for topic and window. It is also the
// cache key for fetched results.
func SearchQuery(topic string, days int) string {
	return fmt.Sprintf("%s when:%dd", strings.TrimSpace(topic), days)
}

// FormatForPrompt renders the numbered article list embedded in the generation prompt.
func FormatForPrompt(r *Result) string {
	if r == nil || len(r.Articles) == 0 {
		query := ""
		if r != nil {
			query = r.Query
		}
		return fmt.Sprintf("No news found for '%s'.", query)
	}
	parts := make([]string, 0, len(r.Articles)+1)
	parts = append(parts, fmt.Sprintf("Found %d articles for '%s' (showing top %d):\n",
		r.TotalCount, r.Query, len(r.Articles)))
	for i, a := range r.Articles {
		parts = append(parts, fmt.Sprintf("%d. %s\n   Source: %s\n   Published: %s",
			i+1, a.Title, a.Source, a.PublishedAt))
	}
	return strings.Join(parts, "\n\n")
}
