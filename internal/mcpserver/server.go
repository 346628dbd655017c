// Package mcpserver exposes the Q&A pipeline, the news search and the GDELT news
// analysis tools over MCP stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperjump/newsqa/internal/models"
	"github.com/hyperjump/newsqa/internal/news"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Pipeline is the part of the retrieval orchestrator the tools call.
type Pipeline interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
	Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error)
}

// CacheStatter reports semantic cache counters.
type CacheStatter interface {
	Stats() models.CacheStats
}

// Defaults fill in tool arguments the caller leaves out.
// Zero values are left for the pipeline's own defaults, except MaxNews and Days
// which fetch_news needs directly.
type Defaults struct {
	TopK     int
	Days     int
	NumPairs int
	MaxNews  int
}

// MCPServer registers the newsqa tools on an mcp-go server.
type MCPServer struct {
	pipeline Pipeline
	fetcher  news.Fetcher
	cache    CacheStatter
	defaults Defaults
	analysis NewsAnalysis
	logger   *zap.Logger
	server   *server.MCPServer
}

// Option configures an MCPServer.
type Option func(*MCPServer)

// WithNewsAnalysis registers the GDELT article, timeline and tone tools backed by a.
func WithNewsAnalysis(a NewsAnalysis) Option {
	return func(s *MCPServer) { s.analysis = a }
}

// New builds the server. fetcher and cache may be nil; the tools that need them
// then report an error result.
func New(pipeline Pipeline, fetcher news.Fetcher, cache CacheStatter, defaults Defaults, version string, logger *zap.Logger, opts ...Option) *MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MCPServer{
		pipeline: pipeline,
		fetcher:  fetcher,
		cache:    cache,
		defaults: defaults,
		logger:   logger,
		server:   server.NewMCPServer("newsqa", version, server.WithToolCapabilities(false)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	if s.analysis != nil {
		s.registerAnalysisTools()
	}
	return s
}

func (s *MCPServer) registerTools() {
	s.server.AddTool(mcp.NewTool("search_qa",
		mcp.WithDescription("Search the Q&A index. When nothing matches, Q&A pairs are generated from recent news and indexed."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question or keywords to search for")),
		mcp.WithNumber("top_k", mcp.Description(fmt.Sprintf("Maximum results, 1-%d", models.MaxTopK))),
		mcp.WithNumber("min_score", mcp.Description("Minimum relevance score")),
		mcp.WithBoolean("fallback", mcp.Description("Generate from news when the index has no match (default true)")),
	), s.handleSearch)

	s.server.AddTool(mcp.NewTool("generate_qa",
		mcp.WithDescription("Generate Q&A pairs about a topic from recent news headlines and index them."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("News topic")),
		mcp.WithNumber("days", mcp.Description(fmt.Sprintf("Lookback window in days, 1-%d", models.MaxLookbackDays))),
		mcp.WithNumber("num_pairs", mcp.Description(fmt.Sprintf("Number of pairs to generate, 1-%d", models.MaxPairs))),
	), s.handleGenerate)

	s.server.AddTool(mcp.NewTool("fetch_news",
		mcp.WithDescription("Fetch recent news headlines for a query from the configured news provider."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
		mcp.WithNumber("days", mcp.Description("Lookback window in days")),
		mcp.WithNumber("max_results", mcp.Description("Maximum headlines to return")),
	), s.handleFetchNews)

	s.server.AddTool(mcp.NewTool("cache_stats",
		mcp.WithDescription("Report semantic cache entries, hits, misses and hit rate."),
	), s.handleCacheStats)
}

// Serve runs the server on stdin/stdout until the client disconnects.
func (s *MCPServer) Serve() error {
	s.logger.Info("mcp server listening on stdio")
	return server.ServeStdio(s.server)
}

func arguments(request mcp.CallToolRequest) (map[string]any, bool) {
	if request.Params.Arguments == nil {
		return map[string]any{}, true
	}
	args, ok := request.Params.Arguments.(map[string]any)
	return args, ok
}

// intArg reads an optional JSON number argument.
func intArg(args map[string]any, name string, def int) (int, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%s must be a whole number", name)
	}
	return int(f), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return mcp.NewToolResultError("invalid request: " + verr.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *MCPServer) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments type"), nil
	}
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	topK, err := intArg(args, "top_k", s.defaults.TopK)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := models.SearchRequest{Query: query, TopK: topK}
	if v, ok := args["min_score"].(float64); ok {
		req.MinScore = &v
	}
	if v, ok := args["fallback"].(bool); ok {
		req.FallbackToLLM = &v
	}
	resp, err := s.pipeline.Search(ctx, req)
	if err != nil {
		s.logger.Warn("search_qa failed", zap.String("query", query), zap.Error(err))
		return errorResult(err), nil
	}
	if !resp.Success {
		return mcp.NewToolResultError(resp.Message), nil
	}
	return jsonResult(resp)
}

func (s *MCPServer) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments type"), nil
	}
	topic, ok := args["topic"].(string)
	if !ok || topic == "" {
		return mcp.NewToolResultError("topic parameter is required"), nil
	}
	days, err := intArg(args, "days", s.defaults.Days)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	numPairs, err := intArg(args, "num_pairs", s.defaults.NumPairs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.pipeline.Generate(ctx, models.GenerateRequest{Topic: topic, Days: days, NumPairs: numPairs})
	if err != nil {
		s.logger.Warn("generate_qa failed", zap.String("topic", topic), zap.Error(err))
		return errorResult(err), nil
	}
	if !resp.Success {
		return mcp.NewToolResultError(resp.Message), nil
	}
	return jsonResult(resp)
}

func (s *MCPServer) handleFetchNews(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.fetcher == nil {
		return mcp.NewToolResultError("news search is not configured"), nil
	}
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments type"), nil
	}
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	days, err := intArg(args, "days", s.defaults.Days)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	maxResults, err := intArg(args, "max_results", s.defaults.MaxNews)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if days < 1 || days > models.MaxLookbackDays {
		return mcp.NewToolResultError(fmt.Sprintf("days must be between 1 and %d", models.MaxLookbackDays)), nil
	}
	if maxResults < 1 {
		return mcp.NewToolResultError("max_results must be positive"), nil
	}
	result, err := s.fetcher.FetchHeadlines(ctx, query, days, maxResults)
	if err != nil {
		s.logger.Warn("fetch_news failed", zap.String("query", query), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("news fetch failed: %v", err)), nil
	}
	return mcp.NewToolResultText(news.FormatForPrompt(result)), nil
}

func (s *MCPServer) handleCacheStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.cache == nil {
		return mcp.NewToolResultError("semantic cache is disabled"), nil
	}
	return jsonResult(s.cache.Stats())
}
