package news

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/newsqa/internal/config"
	"go.uber.org/zap"
)

const (
	// DefaultGDELTRecords is the article count used when none is requested.
	DefaultGDELTRecords = 75
	// MaxGDELTRecords is the upstream cap on maxrecords.
	MaxGDELTRecords = 250
	// MaxTimelineSmoothing is the upstream cap on timelinesmooth.
	MaxTimelineSmoothing = 30

	gdeltDateLayout = "20060102T150405Z"
	maxGDELTBody    = 16 << 20
)

var timespanRe = regexp.MustCompile(`^[0-9]+(min|mins|minutes?|h|hours?|d|days?|w|weeks?|m|months?)$`)

// ValidTimespan reports whether s is a DOC API timespan such as "24h", "3days" or "1week".
func ValidTimespan(s string) bool {
	return timespanRe.MatchString(s)
}

// DaysTimespan is the timespan covering the last days days.
func DaysTimespan(days int) string {
	return fmt.Sprintf("%ddays", days)
}

var sortModes = map[string]string{
	"relevance": "hybridrel",
	"date_desc": "datedesc",
	"date_asc":  "dateasc",
	"tone_desc": "tonedesc",
	"tone_asc":  "toneasc",
}

// SortMode maps a sort name (relevance, date_desc, date_asc, tone_desc, tone_asc)
// to the DOC API value.
func SortMode(name string) (string, bool) {
	if name == "" {
		return sortModes["relevance"], true
	}
	mode, ok := sortModes[name]
	return mode, ok
}

var timelineModes = map[string]string{
	"volume":   "timelinevol",
	"tone":     "timelinetone",
	"language": "timelinelang",
	"country":  "timelinesourcecountry",
}

// TimelineMode maps a metric (volume, tone, language, country) to the DOC API mode.
func TimelineMode(metric string) (string, bool) {
	if metric == "" {
		return timelineModes["volume"], true
	}
	mode, ok := timelineModes[metric]
	return mode, ok
}

// Filters narrow an article query with DOC API operators.
type Filters struct {
	SourceCountry  string
	SourceLanguage string
	Domain         string
	Theme          string
	ToneMin        *float64
	ToneMax        *float64
}

// Apply appends the filter operators to query.
func (f Filters) Apply(query string) string {
	parts := []string{query}
	if f.SourceCountry != "" {
		parts = append(parts, "sourcecountry:"+compact(f.SourceCountry))
	}
	if f.SourceLanguage != "" {
		parts = append(parts, "sourcelang:"+strings.ToLower(f.SourceLanguage))
	}
	if f.Domain != "" {
		parts = append(parts, "domain:"+strings.ToLower(f.Domain))
	}
	if f.Theme != "" {
		parts = append(parts, "theme:"+strings.ToUpper(f.Theme))
	}
	if f.ToneMin != nil {
		parts = append(parts, "tone>"+strconv.FormatFloat(*f.ToneMin, 'f', -1, 64))
	}
	if f.ToneMax != nil {
		parts = append(parts, "tone<"+strconv.FormatFloat(*f.ToneMax, 'f', -1, 64))
	}
	return strings.Join(parts, " ")
}

// Near builds a proximity query: every word of terms within distance words.
func Near(terms string, distance int) string {
	return fmt.Sprintf("near%d:%q", distance, strings.TrimSpace(terms))
}

// AnyOf ORs operator:value for each value, e.g. (domain:cnn.com OR domain:bbc.co.uk).
// Values are lowercased with spaces removed. Empty input yields "".
func AnyOf(operator string, values []string) string {
	var terms []string
	for _, v := range values {
		if v = compact(v); v != "" {
			terms = append(terms, operator+":"+v)
		}
	}
	if len(terms) == 0 {
		return ""
	}
	return "(" + strings.Join(terms, " OR ") + ")"
}

func compact(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

// GDELTArticle is one entry of an artlist response.
type GDELTArticle struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	SeenDate      string `json:"seendate"`
	Domain        string `json:"domain"`
	Language      string `json:"language"`
	SourceCountry string `json:"sourcecountry"`
	SocialImage   string `json:"socialimage,omitempty"`
}

// TimelinePoint is one bucket of a timeline series.
type TimelinePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// TimelineSeries is one named series; volume and tone timelines have one,
// language and country timelines have one per language or country.
type TimelineSeries struct {
	Series string          `json:"series"`
	Data   []TimelinePoint `json:"data"`
}

// ToneArticle is a sample article inside a tone bin.
type ToneArticle struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ToneBin counts the articles whose tone rounds to Bin.
type ToneBin struct {
	Bin         int           `json:"bin"`
	Count       int           `json:"count"`
	TopArticles []ToneArticle `json:"toparts,omitempty"`
}

// ArticleQuery is an artlist request.
type ArticleQuery struct {
	Query      string
	Timespan   string
	MaxRecords int
	// Sort is a DOC API sort value; see SortMode.
	Sort string
}

// TimelineQuery is a timeline request.
type TimelineQuery struct {
	Query string
	// Mode is a DOC API timeline mode; see TimelineMode.
	Mode      string
	Timespan  string
	Smoothing int
}

// GDELTClient queries the GDELT DOC 2.0 API. It implements Fetcher with artlist mode
// and exposes the timeline and tone chart modes for news analysis.
type GDELTClient struct {
	baseURL    string
	sourceLang string
	userAgent  string
	client     *http.Client
	logger     *zap.Logger
}

// NewGDELTClient creates a client from cfg. timeout bounds each HTTP request.
func NewGDELTClient(cfg config.NewsConfig, timeout time.Duration, logger *zap.Logger) *GDELTClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.GDELTBaseURL
	if baseURL == "" {
		baseURL = config.DefaultGDELTBaseURL
	}
	return &GDELTClient{
		baseURL:    baseURL,
		sourceLang: cfg.SourceLang,
		userAgent:  cfg.UserAgent,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchHeadlines implements Fetcher. The DOC API reports no total, so TotalCount is
// the number of articles returned.
func (c *GDELTClient) FetchHeadlines(ctx context.Context, topic string, lookbackDays, maxResults int) (*Result, error) {
	articles, err := c.Articles(ctx, ArticleQuery{
		Query:      topic,
		Timespan:   DaysTimespan(lookbackDays),
		MaxRecords: maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching news for '%s': %w", topic, err)
	}
	result := &Result{Query: topic, TotalCount: len(articles), Articles: make([]Article, 0, len(articles))}
	for _, a := range articles {
		source := a.Domain
		if strings.TrimSpace(source) == "" {
			source = unknownSource
		}
		result.Articles = append(result.Articles, Article{
			Title:       a.Title,
			Source:      source,
			PublishedAt: seenDate(a.SeenDate),
			Link:        a.URL,
		})
	}
	return result, nil
}

// seenDate renders 20250106T100000Z in the RSS date style; other input is kept as is.
func seenDate(s string) string {
	t, err := time.Parse(gdeltDateLayout, s)
	if err != nil {
		return s
	}
	return t.UTC().Format(time.RFC1123)
}

// Articles runs an artlist query. MaxRecords defaults to DefaultGDELTRecords and is
// capped at MaxGDELTRecords. The configured source language is added to the query
// unless it already names one.
func (c *GDELTClient) Articles(ctx context.Context, q ArticleQuery) ([]GDELTArticle, error) {
	records := q.MaxRecords
	if records <= 0 {
		records = DefaultGDELTRecords
	}
	if records > MaxGDELTRecords {
		records = MaxGDELTRecords
	}
	sort := q.Sort
	if sort == "" {
		sort, _ = SortMode("")
	}
	query := strings.TrimSpace(q.Query)
	if c.sourceLang != "" && !strings.Contains(strings.ToLower(query), "sourcelang:") {
		query += " sourcelang:" + strings.ToLower(c.sourceLang)
	}
	params := url.Values{
		"query":      {query},
		"mode":       {"artlist"},
		"format":     {"json"},
		"timespan":   {q.Timespan},
		"maxrecords": {strconv.Itoa(records)},
		"sort":       {sort},
	}
	var body struct {
		Articles []GDELTArticle `json:"articles"`
	}
	if err := c.get(ctx, params, &body); err != nil {
		return nil, err
	}
	if body.Articles == nil {
		body.Articles = []GDELTArticle{}
	}
	return body.Articles, nil
}

// Timeline runs a timeline query. Smoothing is capped at MaxTimelineSmoothing; zero
// leaves the series unsmoothed.
func (c *GDELTClient) Timeline(ctx context.Context, q TimelineQuery) ([]TimelineSeries, error) {
	mode := q.Mode
	if mode == "" {
		mode, _ = TimelineMode("")
	}
	params := url.Values{
		"query":    {strings.TrimSpace(q.Query)},
		"mode":     {mode},
		"format":   {"json"},
		"timespan": {q.Timespan},
	}
	if q.Smoothing > 0 {
		params.Set("timelinesmooth", strconv.Itoa(min(q.Smoothing, MaxTimelineSmoothing)))
	}
	var body struct {
		Timeline []TimelineSeries `json:"timeline"`
	}
	if err := c.get(ctx, params, &body); err != nil {
		return nil, err
	}
	if body.Timeline == nil {
		body.Timeline = []TimelineSeries{}
	}
	return body.Timeline, nil
}

// ToneChart returns the tone histogram of coverage matching query.
func (c *GDELTClient) ToneChart(ctx context.Context, query, timespan string) ([]ToneBin, error) {
	params := url.Values{
		"query":    {strings.TrimSpace(query)},
		"mode":     {"tonechart"},
		"format":   {"json"},
		"timespan": {timespan},
	}
	var body struct {
		ToneChart []ToneBin `json:"tonechart"`
	}
	if err := c.get(ctx, params, &body); err != nil {
		return nil, err
	}
	if body.ToneChart == nil {
		body.ToneChart = []ToneBin{}
	}
	return body.ToneChart, nil
}

// get issues one DOC API request and decodes the JSON body into out. An empty body
// means no matches and leaves out untouched. A plain-text body is the API rejecting
// the query and is returned as an error.
func (c *GDELTClient) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build gdelt request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gdelt request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gdelt request failed: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxGDELTBody))
	if err != nil {
		return fmt.Errorf("failed to read gdelt response: %w", err)
	}
	c.logger.Debug("gdelt request",
		zap.String("mode", params.Get("mode")),
		zap.String("query", params.Get("query")),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if data[0] != '{' {
		msg, _, _ := strings.Cut(string(data), "\n")
		return fmt.Errorf("gdelt rejected query: %s", strings.TrimSpace(msg))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse gdelt response: %w", err)
	}
	return nil
}
