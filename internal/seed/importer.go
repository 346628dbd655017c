package seed

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/newsqa/internal/fileid"
	"github.com/hyperjump/newsqa/internal/qaindex"
	"go.uber.org/zap"
)

// Result counts what an import stored.
type Result struct {
	Files   int `json:"files"`
	Indexed int `json:"indexed"`
	Errors  int `json:"errors"`
}

func (r *Result) add(o Result) {
	r.Files += o.Files
	r.Indexed += o.Indexed
	r.Errors += o.Errors
}

// Importer loads seed files into the Q&A index. Every pair remembers its file as its
// origin, so importing a file again replaces its previous pairs.
type Importer struct {
	index  qaindex.Index
	logger *zap.Logger
	now    func() time.Time
}

// NewImporter creates an importer writing to index.
func NewImporter(index qaindex.Index, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{index: index, logger: logger, now: time.Now}
}

// ImportFile replaces the pairs from path with its current contents. Invalid rows
// are skipped and counted as errors.
func (im *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{}, fmt.Errorf("resolve path: %w", err)
	}
	items, err := Load(abs)
	if err != nil {
		return Result{}, err
	}

	res := Result{Files: 1}
	now := im.now()
	docs := make([]qaindex.Document, 0, len(items))
	for i := range items {
		item := items[i]
		if err := item.Validate(); err != nil {
			im.logger.Warn("skipping invalid seed row", zap.String("path", abs), zap.Int("row", i+1), zap.Error(err))
			res.Errors++
			continue
		}
		if item.ID == "" {
			item.ID = fileid.PairID(abs, i+1)
		}
		docs = append(docs, qaindex.Document{QAPair: item.Pair(now), Origin: abs})
	}

	if _, err := im.index.DeleteByOrigin(ctx, abs); err != nil {
		return res, fmt.Errorf("remove previous pairs: %w", err)
	}
	if len(docs) == 0 {
		return res, nil
	}
	bulk, err := im.index.BulkUpsert(ctx, docs)
	res.Indexed = bulk.Indexed
	res.Errors += bulk.Errors
	if err != nil {
		return res, fmt.Errorf("index seed pairs: %w", err)
	}
	im.logger.Info("seed file imported", zap.String("path", abs), zap.Int("indexed", res.Indexed), zap.Int("errors", res.Errors))
	return res, nil
}

// RemoveFile deletes every pair imported from path.
func (im *Importer) RemoveFile(ctx context.Context, path string) (uint64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolve path: %w", err)
	}
	n, err := im.index.DeleteByOrigin(ctx, abs)
	if err != nil {
		return 0, fmt.Errorf("remove seed pairs: %w", err)
	}
	im.logger.Info("seed file removed", zap.String("path", abs), zap.Uint64("deleted", n))
	return n, nil
}

// ImportPath imports a single file, or every matching file under a directory.
// Per-file failures are logged and counted; the walk continues.
func (im *Importer) ImportPath(ctx context.Context, path string, extensions []string, recursive bool) (Result, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{}, fmt.Errorf("resolve path: %w", err)
	}
	var total Result
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != abs && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasExtension(p, extensions) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := im.ImportFile(ctx, p)
		if err != nil {
			im.logger.Warn("seed import failed", zap.String("path", p), zap.Error(err))
			res.Errors++
		}
		total.add(res)
		return nil
	})
	return total, err
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
