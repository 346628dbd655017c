package models

// Status tags the outcome of a search or generate call.
type Status string

const (
	// StatusOK means results were returned and every generated pair was stored.
	StatusOK Status = "ok"
	// StatusNoContent means nothing was found; it is not an error.
	StatusNoContent Status = "no_content"
	// StatusPartial means some generated pairs could not be stored.
	StatusPartial Status = "partial"
	// StatusFailed means the request could not be completed; Message gives the reason.
	StatusFailed Status = "failed"
)

// Batch provenance reported on a SearchResponse.
const (
	ResultSourceIndex = "index"
	ResultSourceLLM   = SourceLLMGenerated
)

// Outcome is embedded in search and generate responses.
type Outcome struct {
	Status  Status `json:"status"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// NewOutcome builds an Outcome; Success is false only for StatusFailed.
func NewOutcome(status Status, message string) Outcome {
	return Outcome{Status: status, Success: status != StatusFailed, Message: message}
}

// SearchResponse is returned by a search call.
type SearchResponse struct {
	Query        string   `json:"query"`
	Results      []QAPair `json:"results"`
	TotalHits    int      `json:"total_hits"`
	Source       string   `json:"source"`
	QueryTimeMS  int64    `json:"query_time_ms"`
	NewsCount    int      `json:"news_count,omitempty"`
	IndexedCount int      `json:"indexed_count,omitempty"`
	IndexErrors  int      `json:"index_errors,omitempty"`
	Outcome
}

// GenerateResponse is returned by a generate call.
type GenerateResponse struct {
	Topic            string   `json:"topic"`
	Results          []QAPair `json:"results"`
	NewsCount        int      `json:"news_count"`
	IndexedCount     int      `json:"indexed_count"`
	IndexErrors      int      `json:"index_errors,omitempty"`
	GenerationTimeMS int64    `json:"generation_time_ms"`
	Outcome
}

// IndexResponse is returned by single and bulk index calls.
type IndexResponse struct {
	Success bool     `json:"success"`
	Indexed int      `json:"indexed"`
	Errors  int      `json:"errors"`
	IDs     []string `json:"ids,omitempty"`
	Message string   `json:"message,omitempty"`
}

// CacheStats summarizes the semantic cache.
type CacheStats struct {
	Entries int    `json:"entries"`
	Hits    int    `json:"hits"`
	Misses  int    `json:"misses"`
	HitRate string `json:"hit_rate"`
}

// CacheResponse lists the cached queries with the cache counters.
type CacheResponse struct {
	Stats   CacheStats `json:"stats"`
	Queries []string   `json:"queries"`
}

// StatsResponse describes the Q&A index and, when enabled, the semantic cache.
type StatsResponse struct {
	IndexName      string      `json:"index_name"`
	DocumentCount  uint64      `json:"document_count"`
	IndexSizeBytes int64       `json:"index_size_bytes"`
	IndexSizeHuman string      `json:"index_size_human"`
	Health         string      `json:"health"`
	Cache          *CacheStats `json:"cache,omitempty"`
}

// DeleteResponse is returned by the delete endpoints.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Deleted uint64 `json:"deleted"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Index   bool   `json:"index"`
	Version string `json:"version"`
}
