// Package models defines the Q&A pair, request and response types shared by every surface.
package models

import "time"

// Provenance labels stored on a QAPair.
const (
	SourceManual       = "manual"
	SourceLLMGenerated = "llm_generated"
)

// Relevance is a coarse band derived from a search score.
type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
	RelevanceLow    Relevance = "low"
)

// BandRelevance maps a raw index score to a relevance band.
func BandRelevance(score float64) Relevance {
	switch {
	case score >= 10:
		return RelevanceHigh
	case score >= 5:
		return RelevanceMedium
	default:
		return RelevanceLow
	}
}

// QAPair is one question and answer about a topic. Score, Relevance and Highlights
// are query-time annotations and are never stored.
type QAPair struct {
	ID         string              `json:"id,omitempty"`
	Question   string              `json:"question"`
	Answer     string              `json:"answer"`
	Topic      string              `json:"topic"`
	Source     string              `json:"source"`
	CreatedAt  time.Time           `json:"created_at"`
	Score      *float64            `json:"score,omitempty"`
	Relevance  Relevance           `json:"relevance,omitempty"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}
