package retrieval

import (
	"context"
	"fmt"

	"github.com/hyperjump/newsqa/internal/models"
	"github.com/hyperjump/newsqa/internal/qaindex"
	"github.com/hyperjump/newsqa/pkg/utils"
	"go.uber.org/zap"
)

// IndexPair stores one manually written pair.
func (o *Orchestrator) IndexPair(ctx context.Context, req models.IndexRequest) (*models.IndexResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, o.settings.IndexTimeout)
	defer cancel()
	id, err := o.index.Upsert(ctx, qaindex.Document{QAPair: req.Pair(o.now())})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	o.logger.Debug("indexed manual pair", zap.String("id", id))
	return &models.IndexResponse{Success: true, Indexed: 1, IDs: []string{id}, Message: "Q&A pair indexed"}, nil
}

// IndexBulk stores up to models.MaxBulkItems manually written pairs in one batch.
func (o *Orchestrator) IndexBulk(ctx context.Context, req models.BulkIndexRequest) (*models.IndexResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := o.now()
	docs := make([]qaindex.Document, len(req.Items))
	for i := range req.Items {
		docs[i] = qaindex.Document{QAPair: req.Items[i].Pair(now)}
	}
	ctx, cancel := withTimeout(ctx, o.settings.IndexTimeout)
	defer cancel()
	res, err := o.index.BulkUpsert(ctx, docs)
	if err != nil && res.Indexed == 0 {
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	resp := &models.IndexResponse{
		Success: res.Errors == 0,
		Indexed: res.Indexed,
		Errors:  res.Errors,
		IDs:     res.IDs,
		Message: fmt.Sprintf("indexed %d of %d Q&A pairs", res.Indexed, len(docs)),
	}
	return resp, nil
}

// Stats describes the index and, when configured, the semantic cache.
func (o *Orchestrator) Stats(ctx context.Context) (*models.StatsResponse, error) {
	ctx, cancel := withTimeout(ctx, o.settings.IndexTimeout)
	defer cancel()
	st, err := o.index.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	resp := &models.StatsResponse{
		IndexName:      st.Name,
		DocumentCount:  st.DocumentCount,
		IndexSizeBytes: st.SizeBytes,
		IndexSizeHuman: utils.HumanBytes(st.SizeBytes),
		Health:         st.Health,
	}
	if o.cache != nil {
		cs := o.cache.Stats()
		resp.Cache = &cs
	}
	return resp, nil
}

// DeleteAll removes every stored pair and keeps the index.
func (o *Orchestrator) DeleteAll(ctx context.Context) (*models.DeleteResponse, error) {
	n, err := o.index.DeleteAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	o.logger.Info("deleted all Q&A pairs", zap.Uint64("deleted", n))
	return &models.DeleteResponse{Success: true, Deleted: n, Message: fmt.Sprintf("deleted %d Q&A pairs", n)}, nil
}

// DeleteIndex drops the index and recreates it empty.
func (o *Orchestrator) DeleteIndex(ctx context.Context) (*models.DeleteResponse, error) {
	var count uint64
	if st, err := o.index.Stats(ctx); err == nil {
		count = st.DocumentCount
	}
	if err := o.index.DeleteIndex(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	o.logger.Info("index dropped and recreated", zap.Uint64("deleted", count))
	return &models.DeleteResponse{Success: true, Deleted: count, Message: "index deleted and recreated"}, nil
}

// Healthy reports whether the index is reachable.
func (o *Orchestrator) Healthy(ctx context.Context) bool {
	return o.index.Healthy(ctx)
}
