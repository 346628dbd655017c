package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/newsqa/internal/news"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NewsAnalysis is the GDELT DOC API surface the analysis tools call.
type NewsAnalysis interface {
	Articles(ctx context.Context, q news.ArticleQuery) ([]news.GDELTArticle, error)
	Timeline(ctx context.Context, q news.TimelineQuery) ([]news.TimelineSeries, error)
	ToneChart(ctx context.Context, query, timespan string) ([]news.ToneBin, error)
}

const (
	defaultArticleTimespan  = "1week"
	defaultTimelineTimespan = "1month"
	defaultProximity        = 10
)

type articleList struct {
	Query    string              `json:"query"`
	Count    int                 `json:"count"`
	Articles []news.GDELTArticle `json:"articles"`
}

type timelineResult struct {
	Query  string                `json:"query"`
	Metric string                `json:"metric"`
	Series []news.TimelineSeries `json:"timeline"`
}

type toneResult struct {
	Query     string         `json:"query"`
	ToneChart []news.ToneBin `json:"tonechart"`
}

type comparison struct {
	Topic1 timelineResult `json:"topic1"`
	Topic2 timelineResult `json:"topic2"`
}

func timespanOption() mcp.ToolOption {
	return mcp.WithString("timespan", mcp.Description(`Time range: a number and a unit (min, h, d, w, m), e.g. "24h", "3days", "1week", "2months"`))
}

func maxResultsOption() mcp.ToolOption {
	return mcp.WithNumber("max_results", mcp.Description(fmt.Sprintf("Number of articles, 1-%d (default %d)", news.MaxGDELTRecords, news.DefaultGDELTRecords)))
}

func (s *MCPServer) registerAnalysisTools() {
	s.server.AddTool(mcp.NewTool("search_articles",
		mcp.WithDescription(`Search GDELT for news articles. Supports phrases ("donald trump"), OR groups ((a OR b)) and exclusion (-keyword).`),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
		timespanOption(),
		maxResultsOption(),
		mcp.WithString("sort", mcp.Enum("relevance", "date_desc", "date_asc", "tone_desc", "tone_asc"), mcp.Description("Sort order (default relevance)")),
	), s.handleSearchArticles)

	s.server.AddTool(mcp.NewTool("search_with_filters",
		mcp.WithDescription("Search GDELT articles filtered by source country, language, domain, theme or tone."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Base search terms")),
		mcp.WithString("source_country", mcp.Description(`Source country, e.g. "france", "india", "us"`)),
		mcp.WithString("source_language", mcp.Description(`Source language, e.g. "english", "spanish"`)),
		mcp.WithString("domain", mcp.Description(`News domain, e.g. "bbc.co.uk"`)),
		mcp.WithString("theme", mcp.Description(`GDELT theme code, e.g. "ENV_CLIMATECHANGE"`)),
		mcp.WithNumber("tone_min", mcp.Description("Only articles with tone above this value")),
		mcp.WithNumber("tone_max", mcp.Description("Only articles with tone below this value")),
		timespanOption(),
		maxResultsOption(),
	), s.handleSearchWithFilters)

	s.server.AddTool(mcp.NewTool("get_coverage_timeline",
		mcp.WithDescription("Timeline of how coverage of a query changes over time."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
		timespanOption(),
		mcp.WithString("metric", mcp.Enum("volume", "tone", "language", "country"), mcp.Description("volume: share of all coverage; tone: average sentiment; language or country: breakdown by source (default volume)")),
		mcp.WithNumber("smoothing", mcp.Description(fmt.Sprintf("Moving average window in steps, 1-%d", news.MaxTimelineSmoothing))),
	), s.handleCoverageTimeline)

	s.server.AddTool(mcp.NewTool("analyze_sentiment",
		mcp.WithDescription("Histogram of article tone for a query, from very negative to very positive."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
		timespanOption(),
	), s.handleAnalyzeSentiment)

	s.server.AddTool(mcp.NewTool("search_by_proximity",
		mcp.WithDescription("Search GDELT for articles where the given words appear near each other."),
		mcp.WithString("terms", mcp.Required(), mcp.Description(`Space-separated words, e.g. "trump putin"`)),
		mcp.WithNumber("max_distance", mcp.Description(fmt.Sprintf("Maximum words apart (default %d)", defaultProximity))),
		timespanOption(),
		maxResultsOption(),
	), s.handleSearchByProximity)

	s.server.AddTool(mcp.NewTool("search_multiple_sources",
		mcp.WithDescription("Search GDELT articles from any of several source countries or languages."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
		mcp.WithArray("countries", mcp.Items(map[string]any{"type": "string"}), mcp.Description(`Source countries, e.g. ["france", "germany"]`)),
		mcp.WithArray("languages", mcp.Items(map[string]any{"type": "string"}), mcp.Description(`Source languages, e.g. ["english", "spanish"]`)),
		timespanOption(),
		maxResultsOption(),
	), s.handleSearchMultipleSources)

	s.server.AddTool(mcp.NewTool("compare_topics",
		mcp.WithDescription("Compare the coverage volume timelines of two queries."),
		mcp.WithString("topic1", mcp.Required(), mcp.Description("First query")),
		mcp.WithString("topic2", mcp.Required(), mcp.Description("Second query")),
		timespanOption(),
	), s.handleCompareTopics)

	s.server.AddTool(mcp.NewTool("search_by_domain_list",
		mcp.WithDescription("Search GDELT articles published by any of the given news domains."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
		mcp.WithArray("domains", mcp.Required(), mcp.Items(map[string]any{"type": "string"}), mcp.Description(`Domains, e.g. ["cnn.com", "reuters.com"]`)),
		timespanOption(),
		maxResultsOption(),
	), s.handleSearchByDomainList)
}

// requiredString reads a non-blank string argument.
func requiredString(args map[string]any, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s parameter is required", name)
	}
	return strings.TrimSpace(v), nil
}

// stringArg reads an optional string argument.
func stringArg(args map[string]any, name, def string) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return def, nil
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", name)
	}
	if str = strings.TrimSpace(str); str == "" {
		return def, nil
	}
	return str, nil
}

func floatArg(args map[string]any, name string) (*float64, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &f, nil
}

func stringsArg(args map[string]any, name string) ([]string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a list of strings", name)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a list of strings", name)
		}
		if str = strings.TrimSpace(str); str != "" {
			out = append(out, str)
		}
	}
	return out, nil
}

func timespanArg(args map[string]any, def string) (string, error) {
	ts, err := stringArg(args, "timespan", def)
	if err != nil {
		return "", err
	}
	if !news.ValidTimespan(ts) {
		return "", fmt.Errorf(`timespan %q must be a number and a unit, e.g. "24h", "3days", "1week"`, ts)
	}
	return ts, nil
}

func maxResultsArg(args map[string]any) (int, error) {
	n, err := intArg(args, "max_results", news.DefaultGDELTRecords)
	if err != nil {
		return 0, err
	}
	if n < 1 || n > news.MaxGDELTRecords {
		return 0, fmt.Errorf("max_results must be between 1 and %d", news.MaxGDELTRecords)
	}
	return n, nil
}

// articleArgs reads the timespan and max_results shared by the article tools.
func articleArgs(args map[string]any) (string, int, error) {
	ts, err := timespanArg(args, defaultArticleTimespan)
	if err != nil {
		return "", 0, err
	}
	n, err := maxResultsArg(args)
	if err != nil {
		return "", 0, err
	}
	return ts, n, nil
}

func (s *MCPServer) articles(ctx context.Context, tool string, q news.ArticleQuery) (*mcp.CallToolResult, error) {
	found, err := s.analysis.Articles(ctx, q)
	if err != nil {
		s.logger.Warn(tool+" failed", zap.String("query", q.Query), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("gdelt search failed: %v", err)), nil
	}
	return jsonResult(articleList{Query: q.Query, Count: len(found), Articles: found})
}

func (s *MCPServer) handleSearchArticles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments type"), nil
	}
	query, err := requiredString(args, "query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ts, n, err := articleArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sortName, err := stringArg(args, "sort", "relevance")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sort, ok := news.SortMode(sortName)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown sort %q", sortName)), nil
	}
	return s.articles(ctx, "search_articles", news.ArticleQuery{Query: query, Timespan: ts, MaxRecords: n, Sort: sort})
}

func (s *MCPServer) handleSearchWithFilters(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments type"), nil
	}
	query, err := requiredString(args, "query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ts, n, err := articleArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var f news.Filters
	for name, dst := range map[string]*string{
		"source_country":  &f.SourceCountry,
		"source_language": &f.SourceLanguage,
		"domain":          &f.Domain,
		"theme":           &f.Theme,
	} {
		if *dst, err = stringArg(args, name, ""); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if f.ToneMin, err = floatArg(args, "tone_min"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if f.ToneMax, err = floatArg(args, "tone_max"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.articles(ctx, "search_with_filters", news.ArticleQuery{Query: f.Apply(query), Timespan: ts, MaxRecords: n})
}

func (s *MCPServer) handleSearchByProximity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments type"), nil
	}
	terms, err := requiredString(args, "terms")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	distance, err := intArg(args, "max_distance", defaultProximity)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if distance < 1 {
		return mcp.NewToolResultError("max_distance must be positive"), nil
	}
	ts, n, err := articleArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.articles(ctx, "search_by_proximity", news.ArticleQuery{Query: news.Near(terms, distance), Timespan: ts, MaxRecords: n})
}

func (s *MCPServer) handleSearchMultipleSources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments type"), nil
	}
	query, err := requiredString(args, "query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	countries, err := stringsArg(args, "countries")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	languages, err := stringsArg(args, "languages")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ts, n, err := articleArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parts := []string{query}
	for _, group := range []string{news.AnyOf("sourcecountry", countries), news.AnyOf("sourcelang", languages)} {
		if group != "" {
			parts = append(parts, group)
		}
	}
	return s.articles(ctx, "search_multiple_sources", news.ArticleQuery{Query: strings.Join(parts, " "), Timespan: ts, MaxRecords: n})
}

func (s *MCPServer) handleSearchByDomainList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments type"), nil
	}
	query, err := requiredString(args, "query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	domains, err := stringsArg(args, "domains")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	group := news.AnyOf("domain", domains)
	if group == "" {
		return mcp.NewToolResultError("domains parameter is required"), nil
	}
	ts, n, err := articleArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.articles(ctx, "search_by_domain_list", news.ArticleQuery{Query: query + " " + group, Timespan: ts, MaxRecords: n})
}

func (s *MCPServer) handleCoverageTimeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments type"), nil
	}
	query, err := requiredString(args, "query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ts, err := timespanArg(args, defaultTimelineTimespan)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	metric, err := stringArg(args, "metric", "volume")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, ok := news.TimelineMode(metric)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown metric %q", metric)), nil
	}
	smoothing, err := intArg(args, "smoothing", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if smoothing < 0 || smoothing > news.MaxTimelineSmoothing {
		return mcp.NewToolResultError(fmt.Sprintf("smoothing must be between 1 and %d", news.MaxTimelineSmoothing)), nil
	}
	series, err := s.analysis.Timeline(ctx, news.TimelineQuery{Query: query, Mode: mode, Timespan: ts, Smoothing: smoothing})
	if err != nil {
		s.logger.Warn("get_coverage_timeline failed", zap.String("query", query), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("gdelt timeline failed: %v", err)), nil
	}
	return jsonResult(timelineResult{Query: query, Metric: metric, Series: series})
}

func (s *MCPServer) handleAnalyzeSentiment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments type"), nil
	}
	query, err := requiredString(args, "query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ts, err := timespanArg(args, defaultArticleTimespan)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bins, err := s.analysis.ToneChart(ctx, query, ts)
	if err != nil {
		s.logger.Warn("analyze_sentiment failed", zap.String("query", query), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("gdelt tone chart failed: %v", err)), nil
	}
	return jsonResult(toneResult{Query: query, ToneChart: bins})
}

func (s *MCPServer) handleCompareTopics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("invalid arguments type"), nil
	}
	topic1, err := requiredString(args, "topic1")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topic2, err := requiredString(args, "topic2")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ts, err := timespanArg(args, defaultTimelineTimespan)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, _ := news.TimelineMode("volume")

	out := comparison{
		Topic1: timelineResult{Query: topic1, Metric: "volume"},
		Topic2: timelineResult{Query: topic2, Metric: "volume"},
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range []*timelineResult{&out.Topic1, &out.Topic2} {
		g.Go(func() error {
			series, err := s.analysis.Timeline(gctx, news.TimelineQuery{Query: r.Query, Mode: mode, Timespan: ts})
			if err != nil {
				return fmt.Errorf("%s: %w", r.Query, err)
			}
			r.Series = series
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("compare_topics failed", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("gdelt timeline failed: %v", err)), nil
	}
	return jsonResult(out)
}
