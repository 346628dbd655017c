package qaindex

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	"github.com/hyperjump/newsqa/internal/models"
)

const deletePageSize = 500

// Options tunes ranking. Zero values take the defaults noted on each field.
type Options struct {
	// Name is reported in Stats (default "qa_pairs").
	Name string
	// QuestionBoost weights question matches over answer matches (default 3).
	QuestionBoost float64
	// Fuzziness is "auto" (default) or a fixed edit distance "0", "1" or "2".
	// Auto allows 0 edits for terms up to 2 characters, 1 up to 5, and 2 beyond.
	Fuzziness string
	// PrefixLength is the number of leading characters that must match exactly
	// in a fuzzy term (default 2).
	PrefixLength int
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "qa_pairs"
	}
	if o.QuestionBoost <= 0 {
		o.QuestionBoost = 3
	}
	if o.Fuzziness == "" {
		o.Fuzziness = "auto"
	}
	if o.PrefixLength <= 0 {
		o.PrefixLength = 2
	}
	return o
}

// BleveIndex implements Index using Bleve. The handle is swapped by DeleteIndex,
// so every operation holds mu.
type BleveIndex struct {
	path string
	opts Options

	mu    sync.RWMutex
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If you change the index mapping in code, drop the index (DeleteIndex or remove the
// directory) so that it is recreated with the new mapping.
func NewBleveIndex(path string, opts Options) (*BleveIndex, error) {
	index, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}
	return &BleveIndex{path: path, opts: opts.withDefaults(), index: index}, nil
}

func openOrCreate(path string) (bleve.Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return index, nil
	}
	index, err := bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return index, nil
}

// buildMapping analyzes question and answer with the English analyzer (stemming and
// stop words); labels are exact keywords.
func buildMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = en.AnalyzerName

	doc := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.Store = true
	text.IncludeTermVectors = true
	doc.AddFieldMappingsAt("question", text)
	doc.AddFieldMappingsAt("answer", text)

	keyword := bleve.NewKeywordFieldMapping()
	doc.AddFieldMappingsAt("topic", keyword)
	doc.AddFieldMappingsAt("source", keyword)
	doc.AddFieldMappingsAt("origin", keyword)

	doc.AddFieldMappingsAt("created_at", bleve.NewDateTimeFieldMapping())

	im.AddDocumentMapping("qa_pair", doc)
	im.DefaultType = "qa_pair"
	im.DefaultMapping = doc
	return im
}

func toFields(d Document) map[string]interface{} {
	created := d.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return map[string]interface{}{
		"question":   d.Question,
		"answer":     d.Answer,
		"topic":      d.Topic,
		"source":     d.Source,
		"origin":     d.Origin,
		"created_at": created.UTC().Format(time.RFC3339Nano),
	}
}

// Search runs one match query per query term on question (boosted) and answer, with
// fuzzy matching, and ORs them together.
func (b *BleveIndex) Search(ctx context.Context, query string, topK int, minScore float64) ([]models.QAPair, error) {
	q := b.buildQuery(query)
	if q == nil || topK <= 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequest(q)
	req.Size = topK
	req.Fields = []string{"*"}
	req.SortBy([]string{"-_score", "-created_at"})
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("question")
	req.Highlight.AddField("answer")

	b.mu.RLock()
	defer b.mu.RUnlock()
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	// Hits are sorted by score, so filtering after the size cut keeps the same top-k.
	out := make([]models.QAPair, 0, len(results.Hits))
	for _, hit := range results.Hits {
		if hit.Score < minScore {
			continue
		}
		pair := pairFromFields(hit.ID, hit.Fields)
		score := hit.Score
		pair.Score = &score
		pair.Relevance = models.BandRelevance(score)
		if len(hit.Fragments) > 0 {
			pair.Highlights = hit.Fragments
		}
		out = append(out, pair)
	}
	return out, nil
}

func (b *BleveIndex) buildQuery(query string) blevequery.Query {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}
	queries := make([]blevequery.Query, 0, 2*len(terms))
	for _, term := range terms {
		fuzziness := b.fuzzinessFor(term)

		qq := bleve.NewMatchQuery(term)
		qq.SetField("question")
		qq.SetBoost(b.opts.QuestionBoost)
		qq.SetFuzziness(fuzziness)
		qq.SetPrefix(b.opts.PrefixLength)

		aq := bleve.NewMatchQuery(term)
		aq.SetField("answer")
		aq.SetFuzziness(fuzziness)
		aq.SetPrefix(b.opts.PrefixLength)

		queries = append(queries, qq, aq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

func (b *BleveIndex) fuzzinessFor(term string) int {
	switch b.opts.Fuzziness {
	case "0", "1", "2":
		n, _ := strconv.Atoi(b.opts.Fuzziness)
		return n
	}
	switch n := len([]rune(term)); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

// queryTerms lowercases query and splits it on anything that is not a letter or digit.
func queryTerms(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func pairFromFields(id string, fields map[string]interface{}) models.QAPair {
	str := func(name string) string {
		s, _ := fields[name].(string)
		return s
	}
	pair := models.QAPair{
		ID:       id,
		Question: str("question"),
		Answer:   str("answer"),
		Topic:    str("topic"),
		Source:   str("source"),
	}
	if t, err := time.Parse(time.RFC3339Nano, str("created_at")); err == nil {
		pair.CreatedAt = t
	}
	return pair
}

// Upsert stores doc, assigning a random ID when doc.ID is empty.
func (b *BleveIndex) Upsert(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.index.Index(id, toFields(doc)); err != nil {
		return "", fmt.Errorf("failed to index pair: %w", err)
	}
	return id, nil
}

// BulkUpsert stores docs in one batch. When the batch fails every document counts as an error.
func (b *BleveIndex) BulkUpsert(ctx context.Context, docs []Document) (BulkResult, error) {
	var res BulkResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	batch := b.index.NewBatch()
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		if err := batch.Index(id, toFields(doc)); err != nil {
			res.Errors++
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return res, nil
	}
	if err := b.index.Batch(batch); err != nil {
		res.Errors += len(ids)
		return res, fmt.Errorf("Bleve batch failed: %w", err)
	}
	res.Indexed = len(ids)
	res.IDs = ids
	return res, nil
}

// Stats returns the document count and on-disk size.
func (b *BleveIndex) Stats(ctx context.Context) (Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := Stats{Name: b.opts.Name, Health: HealthUnavailable}
	count, err := b.index.DocCount()
	if err != nil {
		return st, fmt.Errorf("failed to count documents: %w", err)
	}
	st.DocumentCount = count
	st.Health = HealthGreen
	if size, err := DiskUsageBytes(b.path); err == nil {
		st.SizeBytes = size
	}
	return st, nil
}

// DeleteAll removes every document.
func (b *BleveIndex) DeleteAll(ctx context.Context) (uint64, error) {
	return b.deleteMatching(ctx, bleve.NewMatchAllQuery())
}

// DeleteByOrigin removes every document whose origin equals origin.
func (b *BleveIndex) DeleteByOrigin(ctx context.Context, origin string) (uint64, error) {
	q := bleve.NewTermQuery(origin)
	q.SetField("origin")
	return b.deleteMatching(ctx, q)
}

func (b *BleveIndex) deleteMatching(ctx context.Context, q blevequery.Query) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var deleted uint64
	for {
		req := bleve.NewSearchRequest(q)
		req.Size = deletePageSize
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return deleted, fmt.Errorf("Bleve search failed: %w", err)
		}
		if len(results.Hits) == 0 {
			return deleted, nil
		}
		batch := b.index.NewBatch()
		for _, hit := range results.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return deleted, fmt.Errorf("Bleve delete batch failed: %w", err)
		}
		deleted += uint64(len(results.Hits))
	}
}

// DeleteIndex closes the index, removes its directory and creates it again empty.
func (b *BleveIndex) DeleteIndex(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.index.Close(); err != nil {
		return fmt.Errorf("failed to close Bleve index: %w", err)
	}
	if err := os.RemoveAll(b.path); err != nil {
		return fmt.Errorf("failed to remove Bleve index: %w", err)
	}
	index, err := bleve.New(b.path, buildMapping())
	if err != nil {
		return fmt.Errorf("failed to recreate Bleve index: %w", err)
	}
	b.index = index
	return nil
}

// Healthy reports whether the index answers a document count.
func (b *BleveIndex) Healthy(ctx context.Context) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, err := b.index.DocCount()
	return err == nil
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}
