package config

import "time"

// Default values shared with request validation and the CLI.
const (
	DefaultNewsBaseURL  = "https://news.google.com/rss/search"
	DefaultGDELTBaseURL = "https://api.gdeltproject.org/api/v2/doc/doc"
	DefaultLLMBaseURL   = "https://openrouter.ai/api/v1"
	DefaultLLMModel     = "nvidia/nemotron-3-nano-30b-a3b:free"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 90 * time.Second
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/newsqa/data/qa_pairs.bleve"
	}
	if cfg.Storage.CachePath == "" {
		cfg.Storage.CachePath = "/usr/local/var/newsqa/data/cache.json"
	}
	if cfg.Index.Name == "" {
		cfg.Index.Name = "qa_pairs"
	}
	if cfg.Index.QuestionBoost == 0 {
		cfg.Index.QuestionBoost = 3.0
	}
	if cfg.Index.Fuzziness == "" {
		cfg.Index.Fuzziness = "auto"
	}
	if cfg.Index.PrefixLength == 0 {
		cfg.Index.PrefixLength = 2
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 10
	}
	if cfg.Search.FallbackDays == 0 {
		cfg.Search.FallbackDays = 7
	}
	if cfg.Search.FallbackPairs == 0 {
		cfg.Search.FallbackPairs = 5
	}
	if cfg.Search.IndexConcurrency == 0 {
		cfg.Search.IndexConcurrency = 4
	}
	if cfg.News.Provider == "" {
		cfg.News.Provider = "google"
	}
	if cfg.News.GDELTBaseURL == "" {
		cfg.News.GDELTBaseURL = DefaultGDELTBaseURL
	}
	if cfg.News.SourceLang == "" {
		cfg.News.SourceLang = "english"
	}
	if cfg.News.BaseURL == "" {
		cfg.News.BaseURL = DefaultNewsBaseURL
	}
	if cfg.News.Language == "" {
		cfg.News.Language = "en-US"
	}
	if cfg.News.Country == "" {
		cfg.News.Country = "US"
	}
	if cfg.News.Edition == "" {
		cfg.News.Edition = "US:en"
	}
	if cfg.News.MaxResults == 0 {
		cfg.News.MaxResults = 10
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = DefaultLLMBaseURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultLLMModel
	}
	if cfg.LLM.Temperature == nil {
		t := DefaultTemperature
		cfg.LLM.Temperature = &t
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/newsqa/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.OpenAIModel == "" {
		cfg.Embedding.OpenAIModel = "text-embedding-3-small"
	}
	if cfg.Cache.Threshold == 0 {
		cfg.Cache.Threshold = 0.85
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "file"
	}
	if cfg.Cache.Redis.Addr == "" {
		cfg.Cache.Redis.Addr = "localhost:6379"
	}
	if cfg.Cache.Redis.Key == "" {
		cfg.Cache.Redis.Key = "newsqa:semantic_cache"
	}
	if cfg.Timeouts.Index == 0 {
		cfg.Timeouts.Index = 5 * time.Second
	}
	if cfg.Timeouts.News == 0 {
		cfg.Timeouts.News = 10 * time.Second
	}
	if cfg.Timeouts.Generation == 0 {
		cfg.Timeouts.Generation = 60 * time.Second
	}
	if cfg.Seed.Extensions == nil {
		cfg.Seed.Extensions = []string{".json", ".yaml", ".yml", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Seed.Directories) > 0 && cfg.Seed.Recursive == nil {
		t := true
		cfg.Seed.Recursive = &t
	}
}
