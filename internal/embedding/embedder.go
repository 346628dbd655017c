// Package embedding provides text embedders used to compare news queries by meaning.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/newsqa/internal/config"
	"github.com/hyperjump/newsqa/pkg/utils"
	"go.uber.org/zap"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New builds the embedder selected by cfg.Provider. The onnx and openai providers are
// memoized with an LRU of cfg.CacheSize entries. When the ONNX runtime or model cannot
// be loaded, New logs a warning and falls back to the mock embedder.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	logger = utils.OrNop(logger)
	switch cfg.Provider {
	case "mock":
		return NewMockEmbedder(cfg.Dimensions), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai embedder requires an api key (embedding.api_key or OPENAI_API_KEY)")
		}
		e := NewOpenAIEmbedder(cfg.APIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.Dimensions)
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	case "onnx", "":
		e, err := NewONNXEmbedder(ONNXOptions{
			ModelPath:  cfg.ModelPath,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
		})
		if err != nil {
			logger.Warn("ONNX embedder unavailable, using mock embeddings",
				zap.String("model_path", cfg.ModelPath), zap.Error(err))
			return NewMockEmbedder(cfg.Dimensions), nil
		}
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// embedEach calls embed for every text in order.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}
