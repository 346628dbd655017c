package semcache

import (
	"context"
	"fmt"

	"github.com/hyperjump/newsqa/internal/config"
)

// Entry is one cached query and its opaque result. Entries are never updated in place.
type Entry struct {
	Query     string    `json:"query"`
	Result    string    `json:"result"`
	Embedding []float32 `json:"embedding"`
}

// State is the persisted form of the cache, rewritten wholesale on every flush.
type State struct {
	Entries []Entry `json:"entries"`
	Hits    int     `json:"hits"`
	Misses  int     `json:"misses"`
}

// Store persists cache state. Load returns an empty State when nothing was saved yet.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
	Close() error
}

// OpenStore opens the backend named by cfg.Backend. path is the file or database
// location used by the file and sqlite backends.
func OpenStore(cfg config.CacheConfig, path string) (Store, error) {
	switch cfg.Backend {
	case "file", "":
		return NewFileStore(path), nil
	case "sqlite":
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := NewRedisStore(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
