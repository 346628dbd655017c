package semcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/newsqa/internal/config"
)

func sampleState() *State {
	return &State{
		Entries: []Entry{{Query: "q1", Result: "r1", Embedding: []float32{0.5, 0.5}}},
		Hits:    3,
		Misses:  4,
	}
}

func checkRoundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	empty, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load before save: %v", err)
	}
	if len(empty.Entries) != 0 || empty.Hits != 0 {
		t.Errorf("expected empty state, got %+v", empty)
	}

	if err := s.Save(ctx, sampleState()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	next := sampleState()
	next.Hits = 5
	if err := s.Save(ctx, next); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Hits != 5 || got.Misses != 4 || len(got.Entries) != 1 || got.Entries[0].Query != "q1" {
		t.Errorf("loaded state = %+v", got)
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	s := NewFileStore(path)
	defer s.Close()
	checkRoundTrip(t, s)

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).Load(context.Background()); err == nil {
		t.Error("expected parse error")
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	checkRoundTrip(t, s)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	checkRoundTrip(t, s)
	if s.Saves() != 2 {
		t.Errorf("saves = %d, want 2", s.Saves())
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("NEWSQA_TEST_REDIS")
	if addr == "" {
		t.Skip("NEWSQA_TEST_REDIS not set")
	}
	s, err := NewRedisStore(config.RedisConfig{Addr: addr, Key: "newsqa:test:" + t.Name()})
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer s.Close()
	defer s.client.Del(context.Background(), s.key)
	checkRoundTrip(t, s)
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"file", false},
		{"", false},
		{"sqlite", false},
		{"memory", false},
		{"etcd", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			s, err := OpenStore(config.CacheConfig{Backend: tt.backend}, filepath.Join(dir, tt.backend+".store"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenStore(%q) error = %v, wantErr %v", tt.backend, err, tt.wantErr)
			}
			if s != nil {
				_ = s.Close()
			}
		})
	}
}
