package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/newsqa/internal/models"
)

// Client calls a running newsqa server. Its methods mirror the local pipeline so
// commands can use either.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// do sends body as JSON and decodes the reply into out. Statuses listed in accept
// are decoded as well; any other non-2xx status becomes an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any, accept ...int) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	for _, code := range accept {
		if resp.StatusCode == code {
			ok = true
		}
	}
	if !ok {
		b, _ := io.ReadAll(resp.Body)
		var e struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(b))
		if json.Unmarshal(b, &e) == nil && e.Message != "" {
			msg = e.Message
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Search calls POST /api/v1/search. A failed outcome is returned as a response.
func (c *Client) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	var out models.SearchResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/search", req, &out, http.StatusBadGateway); err != nil {
		return nil, err
	}
	return &out, nil
}

// Generate calls POST /api/v1/generate.
func (c *Client) Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error) {
	var out models.GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/generate", req, &out, http.StatusBadGateway); err != nil {
		return nil, err
	}
	return &out, nil
}

// IndexPair calls POST /api/v1/index.
func (c *Client) IndexPair(ctx context.Context, req models.IndexRequest) (*models.IndexResponse, error) {
	var out models.IndexResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/index", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IndexBulk calls POST /api/v1/index/bulk.
func (c *Client) IndexBulk(ctx context.Context, req models.BulkIndexRequest) (*models.IndexResponse, error) {
	var out models.IndexResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/index/bulk", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats calls GET /api/v1/stats.
func (c *Client) Stats(ctx context.Context) (*models.StatsResponse, error) {
	var out models.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAll calls DELETE /api/v1/index.
func (c *Client) DeleteAll(ctx context.Context) (*models.DeleteResponse, error) {
	var out models.DeleteResponse
	if err := c.do(ctx, http.MethodDelete, "/api/v1/index", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteIndex calls DELETE /api/v1/index/full.
func (c *Client) DeleteIndex(ctx context.Context) (*models.DeleteResponse, error) {
	var out models.DeleteResponse
	if err := c.do(ctx, http.MethodDelete, "/api/v1/index/full", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cache calls GET /api/v1/cache.
func (c *Client) Cache(ctx context.Context) (*models.CacheResponse, error) {
	var out models.CacheResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/cache", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearCache calls DELETE /api/v1/cache.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/cache", nil, nil)
}
