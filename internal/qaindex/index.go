// Package qaindex stores Q&A pairs in a full-text index and ranks them against free-text queries.
package qaindex

import (
	"context"

	"github.com/hyperjump/newsqa/internal/models"
)

// Document is a pair to store. Origin names where a manual pair came from (a seed
// file path) so every pair from one origin can be replaced or removed together.
type Document struct {
	models.QAPair
	Origin string
}

// BulkResult counts the outcome of a BulkUpsert.
type BulkResult struct {
	Indexed int
	Errors  int
	IDs     []string
}

// Stats describes the index.
type Stats struct {
	Name          string
	DocumentCount uint64
	SizeBytes     int64
	Health        string
}

// Health values reported in Stats.
const (
	HealthGreen       = "green"
	HealthUnavailable = "unavailable"
)

// Index is the document store searched before falling back to generation.
type Index interface {
	// Search returns at most topK pairs scoring at least minScore, ordered by score
	// descending then created_at descending. Each pair carries Score, Relevance and Highlights.
	Search(ctx context.Context, query string, topK int, minScore float64) ([]models.QAPair, error)
	// Upsert stores doc under doc.ID, assigning a new ID when it is empty.
	Upsert(ctx context.Context, doc Document) (string, error)
	BulkUpsert(ctx context.Context, docs []Document) (BulkResult, error)
	Stats(ctx context.Context) (Stats, error)
	// DeleteAll removes every document and keeps the index.
	DeleteAll(ctx context.Context) (uint64, error)
	// DeleteByOrigin removes every document with the given origin.
	DeleteByOrigin(ctx context.Context, origin string) (uint64, error)
	// DeleteIndex drops the index and recreates it empty.
	DeleteIndex(ctx context.Context) error
	Healthy(ctx context.Context) bool
	Close() error
}
