package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/newsqa/internal/config"
	"github.com/mmcdole/gofeed/rss"
	"go.uber.org/zap"
)

const unknownSource = "Unknown"

// GoogleNewsClient fetches headlines from the Google News RSS search feed.
type GoogleNewsClient struct {
	baseURL   string
	language  string
	country   string
	edition   string
	userAgent string
	client    *http.Client
	logger    *zap.Logger
}

// NewGoogleNewsClient creates a client from cfg. timeout bounds each HTTP request;
// zero means no client-side timeout beyond the caller's context.
func NewGoogleNewsClient(cfg config.NewsConfig, timeout time.Duration, logger *zap.Logger) *GoogleNewsClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultNewsBaseURL
	}
	return &GoogleNewsClient{
		baseURL:   baseURL,
		language:  cfg.Language,
		country:   cfg.Country,
		edition:   cfg.Edition,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// feedURL builds <base>?q=<topic>+when:<days>d&hl=..&gl=..&ceid=..
// The "+when:" suffix is part of the q parameter, so the query is assembled by hand.
func (c *GoogleNewsClient) feedURL(topic string, days int) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString("?q=")
	b.WriteString(url.QueryEscape(topic))
	fmt.Fprintf(&b, "+when:%dd", days)
	if c.language != "" {
		b.WriteString("&hl=" + url.QueryEscape(c.language))
	}
	if c.country != "" {
		b.WriteString("&gl=" + url.QueryEscape(c.country))
	}
	if c.edition != "" {
		b.WriteString("&ceid=" + url.QueryEscape(c.edition))
	}
	return b.String()
}

// FetchHeadlines implements Fetcher.
func (c *GoogleNewsClient) FetchHeadlines(ctx context.Context, topic string, lookbackDays, maxResults int) (*Result, error) {
	u := c.feedURL(topic, lookbackDays)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build news request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching news for '%s': %w", topic, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error fetching news for '%s': status %d", topic, resp.StatusCode)
	}

	feed, err := (&rss.Parser{}).Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse news feed: %w", err)
	}

	result := &Result{Query: topic, TotalCount: len(feed.Items), Articles: []Article{}}
	for _, item := range feed.Items {
		if maxResults > 0 && len(result.Articles) >= maxResults {
			break
		}
		source := unknownSource
		if item.Source != nil && strings.TrimSpace(item.Source.Title) != "" {
			source = item.Source.Title
		}
		result.Articles = append(result.Articles, Article{
			Title:       item.Title,
			Source:      source,
			PublishedAt: item.PubDate,
			Link:        item.Link,
		})
	}
	c.logger.Debug("news fetched",
		zap.String("topic", topic),
		zap.Int("days", lookbackDays),
		zap.Int("total", result.TotalCount),
		zap.Int("returned", len(result.Articles)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}
