package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	JWTSecret     string           `json:"jwt_secret"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	Cache         CacheConfig      `json:"cache"`
	Search        SearchConfig     `json:"search"`
	AI            AIConfig         `json:"ai"`
	FileStore     FileStoreConfig  `json:"file_store"`
	Jobs          JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type CacheConfig struct {
	Dir        string `json:"dir"`
	MaxItems   int    `json:"max_items"`
	ByteBudget int    `json:"byte_budget"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type SearchConfig struct {
	DebounceMS     int     `json:"debounce_ms"`
	ShortQueryMax  int     `json:"short_query_max"`
	Threshold      float64 `json:"threshold"`
	MaxResults     int     `json:"max_results"`
	PageSize       int     `json:"page_size"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	MaxQueryChars  int     `json:"max_query_chars"`
}

type AIConfig struct {
	Provider        string      `json:"provider"`
	EmbedModel      string      `json:"embed_model"`
	Data            interface{} `json:"data"`
	CacheSize       int         `json:"cache_size"`
	CacheTTLSeconds int         `json:"cache_ttl_seconds"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type JobsConfig struct {
	EmbeddingSyncSpec  string `json:"embedding_sync_spec"`
	EmbeddingBatch     int    `json:"embedding_batch"`
	CacheSweepSpec     string `json:"cache_sweep_spec"`
	CacheRetentionDays int    `json:"cache_retention_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Cache.Dir == "" {
		return nil, fmt.Errorf("cache.dir is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	applyCacheDefaults(&cfg.Cache)
	applySearchDefaults(&cfg.Search)
	if cfg.AI.CacheSize == 0 {
		cfg.AI.CacheSize = 4096
	}
	if cfg.AI.CacheTTLSeconds == 0 {
		cfg.AI.CacheTTLSeconds = 7200
	}
	if cfg.Jobs.EmbeddingSyncSpec == "" {
		cfg.Jobs.EmbeddingSyncSpec = "*/5 * * * *"
	}
	if cfg.Jobs.EmbeddingBatch == 0 {
		cfg.Jobs.EmbeddingBatch = 50
	}
	if cfg.Jobs.CacheSweepSpec == "" {
		cfg.Jobs.CacheSweepSpec = "13 */6 * * *"
	}
	if cfg.Jobs.CacheRetentionDays == 0 {
		cfg.Jobs.CacheRetentionDays = 30
	}
	return &cfg, nil
}

func applyCacheDefaults(c *CacheConfig) {
	if c.MaxItems == 0 {
		c.MaxItems = 100
	}
	if c.ByteBudget == 0 {
		c.ByteBudget = 500 * 1024
	}
	if c.TTLSeconds == 0 {
		c.TTLSeconds = 300
	}
}

func applySearchDefaults(c *SearchConfig) {
	if c.DebounceMS == 0 {
		c.DebounceMS = 150
	}
	if c.ShortQueryMax == 0 {
		c.ShortQueryMax = 3
	}
	if c.Threshold == 0 {
		c.Threshold = 0.1
	}
	if c.MaxResults == 0 {
		c.MaxResults = 100
	}
	if c.PageSize == 0 {
		c.PageSize = 50
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 10
	}
	if c.MaxQueryChars == 0 {
		c.MaxQueryChars = 512
	}
}
