// Package config provides configuration loading and structs for the newsqa service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	News      NewsConfig      `yaml:"news"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Seed      SeedConfig      `yaml:"seed"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds on-disk locations for the Q&A index and the semantic cache.
type StorageConfig struct {
	IndexPath string `yaml:"index_path"`
	CachePath string `yaml:"cache_path"`
}

// IndexConfig tunes the full-text Q&A index.
type IndexConfig struct {
	Name          string  `yaml:"name"`
	QuestionBoost float64 `yaml:"question_boost"`
	// Fuzziness is "auto", or a fixed edit distance "0", "1" or "2".
	Fuzziness    string `yaml:"fuzziness"`
	PrefixLength int    `yaml:"prefix_length"`
}

// SearchConfig holds search request defaults and the generation fallback settings.
type SearchConfig struct {
	DefaultTopK      int      `yaml:"default_top_k"`
	DefaultMinScore  *float64 `yaml:"default_min_score"`
	FallbackDays     int      `yaml:"fallback_days"`
	FallbackPairs    int      `yaml:"fallback_pairs"`
	IndexConcurrency int      `yaml:"index_concurrency"`
}

// MinScoreOrDefault returns the configured minimum score; defaults to 1.0 when unset.
// Zero is a valid configured value meaning no filtering.
func (s *SearchConfig) MinScoreOrDefault() float64 {
	if s.DefaultMinScore != nil {
		return *s.DefaultMinScore
	}
	return 1.0
}

// NewsConfig holds the news client settings. Provider picks the source used by the
// generation pipeline: "google" (RSS search) or "gdelt" (DOC 2.0 API). The GDELT
// client also backs the news analysis MCP tools whichever provider is selected.
type NewsConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	Language   string `yaml:"language"`
	Country    string `yaml:"country"`
	Edition    string `yaml:"edition"`
	MaxResults int    `yaml:"max_results"`
	UserAgent  string `yaml:"user_agent"`

	GDELTBaseURL string `yaml:"gdelt_base_url"`
	// SourceLang restricts GDELT article searches to one language, e.g. "english".
	SourceLang string `yaml:"source_lang"`
}

// LLMConfig holds the OpenAI-compatible chat completion settings.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	// Temperature is nil when unset; 0 is honored and asks for deterministic output.
	Temperature *float32 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

// DefaultTemperature is used when llm.temperature is unset.
const DefaultTemperature float32 = 0.3

// TemperatureOrDefault returns the configured temperature; defaults to 0.3 when unset.
func (l *LLMConfig) TemperatureOrDefault() float32 {
	if l.Temperature != nil {
		return *l.Temperature
	}
	return DefaultTemperature
}

// EmbeddingConfig selects and configures the embedder used by the semantic cache.
type EmbeddingConfig struct {
	// Provider is one of "onnx", "openai" or "mock".
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`

	OpenAIModel   string `yaml:"openai_model"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	APIKey        string `yaml:"api_key"`
}

// CacheConfig holds semantic cache settings.
type CacheConfig struct {
	Enabled   *bool   `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
	// Backend is one of "file", "sqlite", "redis" or "memory".
	Backend    string      `yaml:"backend"`
	MaxEntries int         `yaml:"max_entries"`
	Redis      RedisConfig `yaml:"redis"`
}

// EnabledOrDefault returns whether the semantic cache is enabled; defaults to true when unset.
func (c *CacheConfig) EnabledOrDefault() bool {
	if c.Enabled != nil {
		return *c.Enabled
	}
	return true
}

// RedisConfig holds connection settings for the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// TimeoutsConfig bounds each external call made by the retrieval pipeline.
type TimeoutsConfig struct {
	Index      time.Duration `yaml:"index"`
	News       time.Duration `yaml:"news"`
	Generation time.Duration `yaml:"generation"`
}

// SeedConfig lists directories of manual Q&A files imported and watched by the server.
type SeedConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (s *SeedConfig) RecursiveOrDefault() bool {
	if s.Recursive != nil {
		return *s.Recursive
	}
	return true
}

// Default returns a config with every default applied and environment overrides read.
// Used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	ApplyEnv(cfg)
	return cfg
}

// Load reads and parses the config file at path, expands environment variables and paths,
// and applies defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.CachePath = expandPath(cfg.Storage.CachePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Seed.Directories {
		cfg.Seed.Directories[i] = expandPath(cfg.Seed.Directories[i], configDir)
	}

	return &cfg, nil
}

// ApplyEnv overlays secrets and deployment settings from the environment.
// Keys set in the file win over the environment, except the model override.
func ApplyEnv(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if model := os.Getenv("OPENROUTER_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if addr := os.Getenv("NEWSQA_REDIS_ADDR"); addr != "" {
		cfg.Cache.Redis.Addr = addr
	}
}

// Save writes the config to path. Used by "newsqa init" to write a starter config.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
