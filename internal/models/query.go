package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Request limits.
const (
	MaxQueryLength    = 500
	MaxTopK           = 50
	MaxTopicLength    = 200
	MaxLookbackDays   = 30
	MaxPairs          = 10
	MaxQuestionLength = 1000
	MaxAnswerLength   = 5000
	MaxLabelLength    = 100
	MaxBulkItems      = 100
)

// SearchRequest asks for stored Q&A pairs matching Query.
// A zero TopK, nil MinScore and nil FallbackToLLM take the configured defaults.
type SearchRequest struct {
	Query         string   `json:"query"`
	TopK          int      `json:"top_k,omitempty"`
	MinScore      *float64 `json:"min_score,omitempty"`
	FallbackToLLM *bool    `json:"fallback_to_llm,omitempty"`
}

// ApplyDefaults fills unset fields.
func (r *SearchRequest) ApplyDefaults(topK int, minScore float64) {
	if r.TopK == 0 {
		r.TopK = topK
	}
	if r.MinScore == nil {
		r.MinScore = &minScore
	}
}

// FallbackEnabled reports whether generation may run when the index has no match. Defaults to true.
func (r *SearchRequest) FallbackEnabled() bool {
	return r.FallbackToLLM == nil || *r.FallbackToLLM
}

// MinScoreValue returns MinScore, or 0 when unset.
func (r *SearchRequest) MinScoreValue() float64 {
	if r.MinScore == nil {
		return 0
	}
	return *r.MinScore
}

// Validate checks the request bounds. Call after ApplyDefaults.
func (r *SearchRequest) Validate() error {
	q := strings.TrimSpace(r.Query)
	if q == "" {
		return invalid("query", "must not be empty")
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return invalid("query", "must be at most %d characters", MaxQueryLength)
	}
	if r.TopK < 1 || r.TopK > MaxTopK {
		return invalid("top_k", "must be between 1 and %d", MaxTopK)
	}
	if r.MinScore != nil && *r.MinScore < 0 {
		return invalid("min_score", "must not be negative")
	}
	return nil
}

// GenerateRequest asks for fresh Q&A pairs generated from recent news about Topic.
type GenerateRequest struct {
	Topic    string `json:"topic"`
	Days     int    `json:"days,omitempty"`
	NumPairs int    `json:"num_pairs,omitempty"`
}

// ApplyDefaults fills unset fields.
func (r *GenerateRequest) ApplyDefaults(days, numPairs int) {
	if r.Days == 0 {
		r.Days = days
	}
	if r.NumPairs == 0 {
		r.NumPairs = numPairs
	}
}

// Validate checks the request bounds. Call after ApplyDefaults.
func (r *GenerateRequest) Validate() error {
	topic := strings.TrimSpace(r.Topic)
	if topic == "" {
		return invalid("topic", "must not be empty")
	}
	if utf8.RuneCountInString(topic) > MaxTopicLength {
		return invalid("topic", "must be at most %d characters", MaxTopicLength)
	}
	if r.Days < 1 || r.Days > MaxLookbackDays {
		return invalid("days", "must be between 1 and %d", MaxLookbackDays)
	}
	if r.NumPairs < 1 || r.NumPairs > MaxPairs {
		return invalid("num_pairs", "must be between 1 and %d", MaxPairs)
	}
	return nil
}

// IndexRequest stores one manually written Q&A pair.
type IndexRequest struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
	Topic    string `json:"topic,omitempty" yaml:"topic,omitempty"`
	Source   string `json:"source,omitempty" yaml:"source,omitempty"`
}

// validate checks field lengths. prefix is prepended to error field names (e.g. "items[3].").
func (r *IndexRequest) validate(prefix string) error {
	q := strings.TrimSpace(r.Question)
	if q == "" || utf8.RuneCountInString(q) > MaxQuestionLength {
		return invalid(prefix+"question", "must be between 1 and %d characters", MaxQuestionLength)
	}
	a := strings.TrimSpace(r.Answer)
	if a == "" || utf8.RuneCountInString(a) > MaxAnswerLength {
		return invalid(prefix+"answer", "must be between 1 and %d characters", MaxAnswerLength)
	}
	if utf8.RuneCountInString(r.Topic) > MaxLabelLength {
		return invalid(prefix+"topic", "must be at most %d characters", MaxLabelLength)
	}
	if utf8.RuneCountInString(r.Source) > MaxLabelLength {
		return invalid(prefix+"source", "must be at most %d characters", MaxLabelLength)
	}
	if strings.EqualFold(strings.TrimSpace(r.Source), SourceLLMGenerated) {
		return invalid(prefix+"source", "%q is reserved for generated pairs", SourceLLMGenerated)
	}
	return nil
}

// Validate checks field lengths.
func (r *IndexRequest) Validate() error {
	return r.validate("")
}

// Pair converts the request to a QAPair. Source defaults to manual.
func (r *IndexRequest) Pair(now time.Time) QAPair {
	source := strings.TrimSpace(r.Source)
	if source == "" {
		source = SourceManual
	}
	return QAPair{
		ID:        r.ID,
		Question:  strings.TrimSpace(r.Question),
		Answer:    strings.TrimSpace(r.Answer),
		Topic:     strings.TrimSpace(r.Topic),
		Source:    source,
		CreatedAt: now,
	}
}

// BulkIndexRequest stores up to MaxBulkItems pairs in one call.
type BulkIndexRequest struct {
	Items []IndexRequest `json:"items" yaml:"items"`
}

// Validate checks the item count and every item.
func (r *BulkIndexRequest) Validate() error {
	if len(r.Items) == 0 || len(r.Items) > MaxBulkItems {
		return invalid("items", "must contain between 1 and %d entries", MaxBulkItems)
	}
	for i := range r.Items {
		if err := r.Items[i].validate(fmt.Sprintf("items[%d].", i)); err != nil {
			return err
		}
	}
	return nil
}
