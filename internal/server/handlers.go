package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hyperjump/newsqa/internal/config"
	"github.com/hyperjump/newsqa/internal/models"
	"github.com/hyperjump/newsqa/internal/retrieval"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "newsqa",
		"version": s.version,
		"endpoints": []string{
			"POST /api/v1/search",
			"POST /api/v1/generate",
			"POST /api/v1/index",
			"POST /api/v1/index/bulk",
			"GET /api/v1/stats",
			"DELETE /api/v1/index",
			"DELETE /api/v1/index/full",
			"GET /api/v1/cache",
			"DELETE /api/v1/cache",
			"GET /health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy := s.service.Healthy(r.Context())
	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	s.respondJSON(w, http.StatusOK, models.HealthResponse{Status: status, Index: healthy, Version: s.version})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	resp, err := s.service.Search(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, "search", err)
		return
	}
	s.respondOutcome(w, resp.Outcome, resp)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.logger.Debug("generate request", zap.String("topic", req.Topic), zap.Int("days", req.Days), zap.Int("num_pairs", req.NumPairs))
	resp, err := s.service.Generate(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, "generate", err)
		return
	}
	s.respondOutcome(w, resp.Outcome, resp)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req models.IndexRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.service.IndexPair(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, "index", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleIndexBulk(w http.ResponseWriter, r *http.Request) {
	var req models.BulkIndexRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.service.IndexBulk(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, "bulk index", err)
		return
	}
	status := http.StatusCreated
	if resp.Indexed == 0 {
		status = http.StatusBadGateway
	}
	s.respondJSON(w, status, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.service.Stats(r.Context())
	if err != nil {
		s.respondServiceError(w, "stats", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	resp, err := s.service.DeleteAll(r.Context())
	if err != nil {
		s.respondServiceError(w, "delete", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	resp, err := s.service.DeleteIndex(r.Context())
	if err != nil {
		s.respondServiceError(w, "delete index", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCacheGet(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.respondError(w, http.StatusNotImplemented, "semantic cache not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, models.CacheResponse{
		Stats:   s.cache.Stats(),
		Queries: s.cache.Queries(),
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.respondError(w, http.StatusNotImplemented, "semantic cache not enabled")
		return
	}
	if err := s.cache.Clear(r.Context()); err != nil {
		s.logger.Error("cache clear failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleSeedDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.seeds == nil {
		s.respondError(w, http.StatusNotImplemented, "seed watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.seeds.Directories()})
}

type seedAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleSeedDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.seeds == nil {
		s.respondError(w, http.StatusNotImplemented, "seed watch not enabled")
		return
	}
	var req seedAddRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := req.Sync == nil || *req.Sync
	s.logger.Debug("seed add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.seeds.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("seed add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistSeedDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleSeedDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.seeds == nil {
		s.respondError(w, http.StatusNotImplemented, "seed watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.seeds.RemoveDirectory(abs); err != nil {
		s.logger.Error("seed remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistSeedDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistSeedDirectories() {
	if s.configPath == "" || s.appConfig == nil {
		return
	}
	s.appConfigMu.Lock()
	defer s.appConfigMu.Unlock()
	s.appConfig.Seed.Directories = s.seeds.Directories()
	if err := config.Save(s.configPath, s.appConfig); err != nil {
		s.logger.Warn("failed to persist seed directories", zap.Error(err))
	}
}

// respondOutcome writes 502 for a failed outcome and 200 otherwise; the body is the
// full response either way.
func (s *Server) respondOutcome(w http.ResponseWriter, outcome models.Outcome, body interface{}) {
	status := http.StatusOK
	if outcome.Status == models.StatusFailed {
		status = http.StatusBadGateway
	}
	s.respondJSON(w, status, body)
}

func (s *Server) respondServiceError(w http.ResponseWriter, op string, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		s.respondError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, retrieval.ErrIndexUnavailable):
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": http.StatusText(status), "message": message})
}
