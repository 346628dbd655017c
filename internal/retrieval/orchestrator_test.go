package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/newsqa/internal/models"
	"github.com/hyperjump/newsqa/internal/news"
	"github.com/hyperjump/newsqa/internal/qaindex"
)

type stubIndex struct {
	mu        sync.Mutex
	results   []models.QAPair
	searchErr error
	// failUpsert reports whether the upsert of the pair with this question fails.
	failUpsert func(question string) bool
	upsertWait time.Duration
	upserted   []qaindex.Document
	searches   int
	deleted    bool

	active    atomic.Int32
	maxActive atomic.Int32
}

func (s *stubIndex) Search(ctx context.Context, query string, topK int, minScore float64) ([]models.QAPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches++
	return s.results, s.searchErr
}

func (s *stubIndex) Upsert(ctx context.Context, doc qaindex.Document) (string, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		m := s.maxActive.Load()
		if n <= m || s.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if s.upsertWait > 0 {
		time.Sleep(s.upsertWait)
	}
	if s.failUpsert != nil && s.failUpsert(doc.Question) {
		return "", errors.New("write failed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = append(s.upserted, doc)
	return fmt.Sprintf("id-%d", len(s.upserted)), nil
}

func (s *stubIndex) BulkUpsert(ctx context.Context, docs []qaindex.Document) (qaindex.BulkResult, error) {
	var res qaindex.BulkResult
	for _, d := range docs {
		id, err := s.Upsert(ctx, d)
		if err != nil {
			res.Errors++
			continue
		}
		res.Indexed++
		res.IDs = append(res.IDs, id)
	}
	return res, nil
}

func (s *stubIndex) Stats(ctx context.Context) (qaindex.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return qaindex.Stats{Name: "qa_pairs", DocumentCount: uint64(len(s.upserted)), SizeBytes: 2048, Health: qaindex.HealthGreen}, nil
}

func (s *stubIndex) DeleteAll(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := uint64(len(s.upserted))
	s.upserted = nil
	return n, nil
}

func (s *stubIndex) DeleteByOrigin(ctx context.Context, origin string) (uint64, error) {
	return 0, nil
}

func (s *stubIndex) DeleteIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = nil
	s.deleted = true
	return nil
}

func (s *stubIndex) Healthy(ctx context.Context) bool { return true }
func (s *stubIndex) Close() error                     { return nil }

type stubFetcher struct {
	result *news.Result
	err    error
	calls  int
}

func (f *stubFetcher) FetchHeadlines(ctx context.Context, topic string, days, max int) (*news.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type stubGenerator struct {
	output string
	err    error
	block  bool
	prompt string
	calls  int
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.prompt = prompt
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.output, g.err
}

func headlines(n int) *news.Result {
	r := &news.Result{Query: "topic", TotalCount: n}
	for i := 0; i < n; i++ {
		r.Articles = append(r.Articles, news.Article{Title: fmt.Sprintf("Headline %d", i+1), Source: "Wire", PublishedAt: "today"})
	}
	return r
}

const twoPairs = "Q1: What happened?\nA1: Something happened.\n\nQ2: Why?\nA2: Because."

func score(v float64) *float64 { return &v }

func newTestOrchestrator(idx *stubIndex, f *stubFetcher, g *stubGenerator) *Orchestrator {
	var gen interface {
		Generate(context.Context, string) (string, error)
	}
	if g != nil {
		gen = g
	}
	return New(idx, f, gen, Settings{
		IndexTimeout:      time.Second,
		NewsTimeout:       time.Second,
		GenerationTimeout: time.Second,
	})
}

func TestSearch_ReturnsIndexResults(t *testing.T) {
	idx := &stubIndex{results: []models.QAPair{{ID: "1", Question: "q", Answer: "a", Score: score(12), Relevance: models.RelevanceHigh}}}
	f := &stubFetcher{}
	g := &stubGenerator{}
	o := newTestOrchestrator(idx, f, g)

	resp, err := o.Search(context.Background(), models.SearchRequest{Query: "  q  "})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Query != "q" {
		t.Errorf("Query = %q, want trimmed", resp.Query)
	}
	if resp.Source != models.ResultSourceIndex || resp.Status != models.StatusOK || !resp.Success {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.TotalHits != 1 || len(resp.Results) != 1 {
		t.Errorf("TotalHits = %d", resp.TotalHits)
	}
	if f.calls != 0 || g.calls != 0 {
		t.Errorf("fallback ran: news=%d gen=%d", f.calls, g.calls)
	}
}

func TestSearch_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   models.SearchRequest
		field string
	}{
		{"empty", models.SearchRequest{Query: "   "}, "query"},
		{"too long", models.SearchRequest{Query: strings.Repeat("x", 501)}, "query"},
		{"top_k", models.SearchRequest{Query: "q", TopK: 51}, "top_k"},
		{"min_score", models.SearchRequest{Query: "q", MinScore: score(-1)}, "min_score"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &stubIndex{}
			o := newTestOrchestrator(idx, &stubFetcher{}, &stubGenerator{})
			_, err := o.Search(context.Background(), tt.req)
			var verr *models.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("error = %v, want validation error on %q", err, tt.field)
			}
			if idx.searches != 0 {
				t.Error("index searched despite invalid request")
			}
		})
	}
}

func TestSearch_IndexUnavailable(t *testing.T) {
	o := newTestOrchestrator(&stubIndex{searchErr: errors.New("connection refused")}, &stubFetcher{}, &stubGenerator{})
	_, err := o.Search(context.Background(), models.SearchRequest{Query: "q"})
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Errorf("error = %v, want ErrIndexUnavailable", err)
	}
}

func TestSearch_IndexTimeoutKeepsCause(t *testing.T) {
	o := newTestOrchestrator(&stubIndex{searchErr: context.DeadlineExceeded}, &stubFetcher{}, &stubGenerator{})
	_, err := o.Search(context.Background(), models.SearchRequest{Query: "q"})
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Errorf("error = %v, want ErrIndexUnavailable", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want it to wrap context.DeadlineExceeded", err)
	}
}

func TestSearch_NoMatchFallbackDisabled(t *testing.T) {
	f := &stubFetcher{}
	o := newTestOrchestrator(&stubIndex{}, f, &stubGenerator{})
	off := false
	resp, err := o.Search(context.Background(), models.SearchRequest{Query: "q", FallbackToLLM: &off})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != models.StatusNoContent || !resp.Success {
		t.Errorf("outcome = %+v", resp.Outcome)
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("Results = %v, want empty non-nil", resp.Results)
	}
	if f.calls != 0 {
		t.Error("news fetched with fallback disabled")
	}
}

func TestSearch_FallbackGeneratesAndStores(t *testing.T) {
	idx := &stubIndex{}
	g := &stubGenerator{output: twoPairs}
	o := newTestOrchestrator(idx, &stubFetcher{result: headlines(3)}, g)

	resp, err := o.Search(context.Background(), models.SearchRequest{Query: "climate"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Source != models.ResultSourceLLM || resp.Status != models.StatusOK {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.NewsCount != 3 || resp.IndexedCount != 2 || resp.IndexErrors != 0 || resp.TotalHits != 2 {
		t.Errorf("counts: news=%d indexed=%d errors=%d hits=%d", resp.NewsCount, resp.IndexedCount, resp.IndexErrors, resp.TotalHits)
	}
	for _, p := range resp.Results {
		if p.Source != models.SourceLLMGenerated || p.Relevance != models.RelevanceHigh || p.Score != nil {
			t.Errorf("unexpected generated pair: %+v", p)
		}
		if p.ID == "" {
			t.Error("stored pair should carry its id")
		}
		if p.Topic != "climate" {
			t.Errorf("Topic = %q", p.Topic)
		}
	}
	if len(idx.upserted) != 2 {
		t.Fatalf("upserted %d pairs, want 2", len(idx.upserted))
	}
	for _, d := range idx.upserted {
		if d.Source != models.SourceLLMGenerated {
			t.Errorf("stored source = %q", d.Source)
		}
	}
	if !strings.Contains(g.prompt, `about "climate"`) || !strings.Contains(g.prompt, "Generate exactly 5 question-answer pairs") {
		t.Errorf("prompt missing topic or count:\n%s", g.prompt)
	}
	if !strings.Contains(g.prompt, "1. Headline 1\n   Source: Wire") {
		t.Errorf("prompt missing formatted headlines:\n%s", g.prompt)
	}
}

func TestGenerate_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		fetcher     *stubFetcher
		generator   *stubGenerator
		failUpsert  func(string) bool
		wantStatus  models.Status
		wantMessage string
		wantPairs   int
		wantErrors  int
	}{
		{
			name:        "no news",
			fetcher:     &stubFetcher{result: headlines(0)},
			generator:   &stubGenerator{output: twoPairs},
			wantStatus:  models.StatusNoContent,
			wantMessage: "No news found for 'ai' in the last 3 days.",
		},
		{
			name:        "news error",
			fetcher:     &stubFetcher{err: errors.New("dns failure")},
			generator:   &stubGenerator{output: twoPairs},
			wantStatus:  models.StatusFailed,
			wantMessage: "news fetch failed: dns failure",
		},
		{
			name:        "generation error",
			fetcher:     &stubFetcher{result: headlines(2)},
			generator:   &stubGenerator{err: errors.New("rate limited")},
			wantStatus:  models.StatusFailed,
			wantMessage: "generation error: rate limited",
		},
		{
			name:        "unparseable output",
			fetcher:     &stubFetcher{result: headlines(2)},
			generator:   &stubGenerator{output: "I cannot help with that."},
			wantStatus:  models.StatusNoContent,
			wantMessage: "failed to parse Q&A pairs from model output",
		},
		{
			name:        "partial store",
			fetcher:     &stubFetcher{result: headlines(2)},
			generator:   &stubGenerator{output: twoPairs},
			failUpsert:  func(q string) bool { return q == "Why?" },
			wantStatus:  models.StatusPartial,
			wantMessage: "1 of 2 generated Q&A pairs could not be stored",
			wantPairs:   2,
			wantErrors:  1,
		},
		{
			name:        "all stores fail",
			fetcher:     &stubFetcher{result: headlines(2)},
			generator:   &stubGenerator{output: twoPairs},
			failUpsert:  func(string) bool { return true },
			wantStatus:  models.StatusFailed,
			wantMessage: "failed to store generated Q&A pairs",
			wantPairs:   2,
			wantErrors:  2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &stubIndex{failUpsert: tt.failUpsert}
			o := newTestOrchestrator(idx, tt.fetcher, tt.generator)
			resp, err := o.Generate(context.Background(), models.GenerateRequest{Topic: "ai", Days: 3, NumPairs: 2})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Success != (tt.wantStatus != models.StatusFailed) {
				t.Errorf("Success = %v for %q", resp.Success, resp.Status)
			}
			if resp.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", resp.Message, tt.wantMessage)
			}
			if len(resp.Results) != tt.wantPairs {
				t.Errorf("len(Results) = %d, want %d", len(resp.Results), tt.wantPairs)
			}
			if resp.IndexErrors != tt.wantErrors {
				t.Errorf("IndexErrors = %d, want %d", resp.IndexErrors, tt.wantErrors)
			}
			if resp.Results == nil {
				t.Error("Results should be non-nil")
			}
		})
	}
}

func TestGenerate_Validation(t *testing.T) {
	o := newTestOrchestrator(&stubIndex{}, &stubFetcher{}, &stubGenerator{})
	_, err := o.Generate(context.Background(), models.GenerateRequest{Topic: "ai", Days: 31})
	var verr *models.ValidationError
	if !errors.As(err, &verr) || verr.Field != "days" {
		t.Errorf("error = %v, want days validation error", err)
	}
}

func TestGenerate_NoGenerator(t *testing.T) {
	o := newTestOrchestrator(&stubIndex{}, &stubFetcher{result: headlines(1)}, nil)
	resp, err := o.Generate(context.Background(), models.GenerateRequest{Topic: "ai"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != models.StatusFailed || !strings.HasPrefix(resp.Message, "generation error:") {
		t.Errorf("outcome = %+v", resp.Outcome)
	}
	if resp.NewsCount != 1 {
		t.Errorf("NewsCount = %d", resp.NewsCount)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	idx := &stubIndex{}
	o := New(idx, &stubFetcher{result: headlines(1)}, &stubGenerator{block: true}, Settings{GenerationTimeout: 20 * time.Millisecond})
	resp, err := o.Generate(context.Background(), models.GenerateRequest{Topic: "ai"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != models.StatusFailed || !strings.Contains(resp.Message, "timed out") {
		t.Errorf("outcome = %+v", resp.Outcome)
	}
}

func TestGenerate_BoundedConcurrency(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 8; i++ {
		fmt.Fprintf(&b, "Q%d: Question %d?\nA%d: Answer %d.\n", i, i, i, i)
	}
	idx := &stubIndex{upsertWait: 10 * time.Millisecond}
	o := New(idx, &stubFetcher{result: headlines(1)}, &stubGenerator{output: b.String()}, Settings{IndexConcurrency: 2})
	resp, err := o.Generate(context.Background(), models.GenerateRequest{Topic: "ai", NumPairs: 8})
	if err != nil {
		t.Fatal(err)
	}
	if resp.IndexedCount != 8 {
		t.Errorf("IndexedCount = %d, want 8", resp.IndexedCount)
	}
	if got := idx.maxActive.Load(); got > 2 {
		t.Errorf("max concurrent upserts = %d, want <= 2", got)
	}
}

type cacheStats models.CacheStats

func (c cacheStats) Stats() models.CacheStats { return models.CacheStats(c) }

func TestIndexAndManage(t *testing.T) {
	idx := &stubIndex{}
	o := New(idx, &stubFetcher{}, nil, Settings{}, WithCacheStats(cacheStats{Entries: 3, HitRate: "50.0%"}))
	ctx := context.Background()

	resp, err := o.IndexPair(ctx, models.IndexRequest{Question: "Who?", Answer: "Them."})
	if err != nil {
		t.Fatalf("IndexPair: %v", err)
	}
	if !resp.Success || resp.Indexed != 1 || len(resp.IDs) != 1 {
		t.Errorf("IndexPair = %+v", resp)
	}
	if idx.upserted[0].Source != models.SourceManual {
		t.Errorf("manual source = %q", idx.upserted[0].Source)
	}

	if _, err := o.IndexPair(ctx, models.IndexRequest{Question: "Who?"}); err == nil {
		t.Error("expected validation error for missing answer")
	}

	bulk, err := o.IndexBulk(ctx, models.BulkIndexRequest{Items: []models.IndexRequest{
		{Question: "A?", Answer: "a"},
		{Question: "B?", Answer: "b", Source: "wire"},
	}})
	if err != nil {
		t.Fatalf("IndexBulk: %v", err)
	}
	if !bulk.Success || bulk.Indexed != 2 {
		t.Errorf("IndexBulk = %+v", bulk)
	}

	stats, err := o.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.DocumentCount != 3 || stats.IndexSizeHuman != "2.0 KB" || stats.Health != qaindex.HealthGreen {
		t.Errorf("Stats = %+v", stats)
	}
	if stats.Cache == nil || stats.Cache.Entries != 3 {
		t.Errorf("Cache stats = %+v", stats.Cache)
	}

	del, err := o.DeleteIndex(ctx)
	if err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}
	if del.Deleted != 3 || !idx.deleted {
		t.Errorf("DeleteIndex = %+v", del)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("markets", headlines(1), 4)
	for _, want := range []string{
		`headlines about "markets"`,
		"Found 1 articles for 'topic' (showing top 1):",
		"Generate exactly 4 question-answer pairs",
		"Q1: [Question text here]",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
