package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/newsqa/internal/config"
)

const sampleArtList = `{"articles": [
  {"url": "https://example.com/a", "title": "Chip exports tighten", "seendate": "20250106T100000Z", "domain": "example.com", "language": "English", "sourcecountry": "United States"},
  {"url": "https://wire.example/b", "title": "Markets react", "seendate": "not-a-date", "domain": "", "language": "English", "sourcecountry": ""}
]}`

// gdeltServer answers every request with body and records the query parameters.
func gdeltServer(t *testing.T, body string, got *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			*got = r.URL.Query()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func gdeltConfig(baseURL string) config.NewsConfig {
	return config.NewsConfig{GDELTBaseURL: baseURL, SourceLang: "english"}
}

func TestGDELTClient_FetchHeadlines(t *testing.T) {
	var params url.Values
	srv := gdeltServer(t, sampleArtList, &params)
	client := NewGDELTClient(gdeltConfig(srv.URL), 5*time.Second, nil)

	res, err := client.FetchHeadlines(context.Background(), "chip exports", 7, 10)
	if err != nil {
		t.Fatalf("FetchHeadlines: %v", err)
	}
	for key, want := range map[string]string{
		"query":      "chip exports sourcelang:english",
		"mode":       "artlist",
		"format":     "json",
		"timespan":   "7days",
		"maxrecords": "10",
		"sort":       "hybridrel",
	} {
		if got := params.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}

	if res.Query != "chip exports" || res.TotalCount != 2 || len(res.Articles) != 2 {
		t.Fatalf("result = %+v", res)
	}
	first := res.Articles[0]
	if first.Source != "example.com" || first.Link != "https://example.com/a" || first.PublishedAt != "Mon, 06 Jan 2025 10:00:00 UTC" {
		t.Errorf("first = %+v", first)
	}
	second := res.Articles[1]
	if second.Source != "Unknown" || second.PublishedAt != "not-a-date" {
		t.Errorf("second = %+v", second)
	}
}

func TestGDELTClient_Articles(t *testing.T) {
	tests := []struct {
		name        string
		q           ArticleQuery
		wantQuery   string
		wantRecords string
	}{
		{"defaults", ArticleQuery{Query: "ai", Timespan: "1week"}, "ai sourcelang:english", "75"},
		{"capped", ArticleQuery{Query: "ai", Timespan: "1week", MaxRecords: 1000}, "ai sourcelang:english", "250"},
		{"explicit language kept", ArticleQuery{Query: "ai sourcelang:french", Timespan: "1week", MaxRecords: 5}, "ai sourcelang:french", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var params url.Values
			srv := gdeltServer(t, sampleArtList, &params)
			client := NewGDELTClient(gdeltConfig(srv.URL), time.Second, nil)
			if _, err := client.Articles(context.Background(), tt.q); err != nil {
				t.Fatal(err)
			}
			if got := params.Get("query"); got != tt.wantQuery {
				t.Errorf("query = %q, want %q", got, tt.wantQuery)
			}
			if got := params.Get("maxrecords"); got != tt.wantRecords {
				t.Errorf("maxrecords = %q, want %q", got, tt.wantRecords)
			}
		})
	}
}

func TestGDELTClient_EmptyAndRejected(t *testing.T) {
	srv := gdeltServer(t, "  \n", nil)
	client := NewGDELTClient(gdeltConfig(srv.URL), time.Second, nil)
	articles, err := client.Articles(context.Background(), ArticleQuery{Query: "nothing", Timespan: "1d"})
	if err != nil {
		t.Fatalf("empty body should not fail: %v", err)
	}
	if articles == nil || len(articles) != 0 {
		t.Errorf("articles = %v, want empty slice", articles)
	}

	rejected := gdeltServer(t, "The specified phrase is too short.\nPlease try again.", nil)
	client = NewGDELTClient(gdeltConfig(rejected.URL), time.Second, nil)
	_, err = client.FetchHeadlines(context.Background(), "a", 7, 5)
	if err == nil || !strings.Contains(err.Error(), "phrase is too short") {
		t.Errorf("err = %v, want rejection message", err)
	}
}

func TestGDELTClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	client := NewGDELTClient(gdeltConfig(srv.URL), time.Second, nil)
	if _, err := client.ToneChart(context.Background(), "x", "1week"); err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v", err)
	}
}

func TestGDELTClient_Timeline(t *testing.T) {
	var params url.Values
	srv := gdeltServer(t, `{"query_details": {"title": "x"}, "timeline": [
	  {"series": "France", "data": [{"date": "20250101T000000Z", "value": 1.5}, {"date": "20250102T000000Z", "value": 2}]},
	  {"series": "Germany", "data": []}
	]}`, &params)
	client := NewGDELTClient(gdeltConfig(srv.URL), time.Second, nil)

	series, err := client.Timeline(context.Background(), TimelineQuery{Query: "floods", Mode: "timelinesourcecountry", Timespan: "1month", Smoothing: 90})
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 2 || series[0].Series != "France" || series[0].Data[1].Value != 2 {
		t.Errorf("series = %+v", series)
	}
	if params.Get("mode") != "timelinesourcecountry" || params.Get("timelinesmooth") != "30" {
		t.Errorf("params = %v", params)
	}
	// Timelines are not restricted to the configured language.
	if params.Get("query") != "floods" {
		t.Errorf("query = %q", params.Get("query"))
	}
}

func TestGDELTClient_TimelineWithoutSmoothing(t *testing.T) {
	var params url.Values
	srv := gdeltServer(t, `{}`, &params)
	client := NewGDELTClient(gdeltConfig(srv.URL), time.Second, nil)
	series, err := client.Timeline(context.Background(), TimelineQuery{Query: "x", Timespan: "1week"})
	if err != nil {
		t.Fatal(err)
	}
	if series == nil || len(series) != 0 {
		t.Errorf("series = %v, want empty slice", series)
	}
	if params.Get("mode") != "timelinevol" || params.Has("timelinesmooth") {
		t.Errorf("params = %v", params)
	}
}

func TestGDELTClient_ToneChart(t *testing.T) {
	var params url.Values
	srv := gdeltServer(t, `{"tonechart": [
	  {"bin": -4, "count": 12, "toparts": [{"url": "https://example.com/n", "title": "Bad news"}]},
	  {"bin": 3, "count": 2}
	]}`, &params)
	client := NewGDELTClient(gdeltConfig(srv.URL), time.Second, nil)

	bins, err := client.ToneChart(context.Background(), "strike", "2weeks")
	if err != nil {
		t.Fatal(err)
	}
	if len(bins) != 2 || bins[0].Bin != -4 || bins[0].Count != 12 || bins[0].TopArticles[0].Title != "Bad news" {
		t.Errorf("bins = %+v", bins)
	}
	if params.Get("mode") != "tonechart" || params.Get("timespan") != "2weeks" {
		t.Errorf("params = %v", params)
	}
}

func TestValidTimespan(t *testing.T) {
	tests := map[string]bool{
		"24h": true, "3days": true, "1week": true, "2months": true, "15min": true, "7d": true,
		"": false, "week": false, "1 week": false, "forever": false, "-1d": false,
	}
	for in, want := range tests {
		if got := ValidTimespan(in); got != want {
			t.Errorf("ValidTimespan(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestQueryOperators(t *testing.T) {
	low, high := 5.0, -1.5
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"all filters", Filters{SourceCountry: "South Korea", SourceLanguage: "Korean", Domain: "Yna.co.kr", Theme: "econ_trade", ToneMin: &low, ToneMax: &high}.Apply("exports"),
			"exports sourcecountry:southkorea sourcelang:korean domain:yna.co.kr theme:ECON_TRADE tone>5 tone<-1.5"},
		{"no filters", Filters{}.Apply("exports"), "exports"},
		{"near", Near(" trump putin ", 10), `near10:"trump putin"`},
		{"any of", AnyOf("domain", []string{"CNN.com", " ", "bbc.co.uk"}), "(domain:cnn.com OR domain:bbc.co.uk)"},
		{"any of empty", AnyOf("domain", nil), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestModes(t *testing.T) {
	if m, ok := SortMode("tone_asc"); !ok || m != "toneasc" {
		t.Errorf("SortMode(tone_asc) = %q, %v", m, ok)
	}
	if m, ok := SortMode(""); !ok || m != "hybridrel" {
		t.Errorf("SortMode(\"\") = %q, %v", m, ok)
	}
	if _, ok := SortMode("newest"); ok {
		t.Error("unknown sort accepted")
	}
	if m, ok := TimelineMode("language"); !ok || m != "timelinelang" {
		t.Errorf("TimelineMode(language) = %q, %v", m, ok)
	}
	if _, ok := TimelineMode("mood"); ok {
		t.Error("unknown metric accepted")
	}
}

func TestNewFetcher(t *testing.T) {
	gdelt := NewGDELTClient(config.NewsConfig{}, time.Second, nil)
	tests := []struct {
		provider string
		check    func(Fetcher) bool
	}{
		{"", func(f Fetcher) bool { _, ok := f.(*GoogleNewsClient); return ok }},
		{"google", func(f Fetcher) bool { _, ok := f.(*GoogleNewsClient); return ok }},
		{"GDELT", func(f Fetcher) bool { return f == Fetcher(gdelt) }},
	}
	for _, tt := range tests {
		f, err := NewFetcher(config.NewsConfig{Provider: tt.provider}, time.Second, gdelt, nil)
		if err != nil {
			t.Fatalf("NewFetcher(%q): %v", tt.provider, err)
		}
		if !tt.check(f) {
			t.Errorf("NewFetcher(%q) = %T", tt.provider, f)
		}
	}
	if _, err := NewFetcher(config.NewsConfig{Provider: "bing"}, time.Second, nil, nil); err == nil {
		t.Error("unknown provider should fail")
	}
}
