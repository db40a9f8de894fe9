package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Export   ExportConfig   `mapstructure:"export"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Listen    string `mapstructure:"listen"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Debug     bool   `mapstructure:"debug"`
}

// StorageConfig groups persistence backends.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains relational store settings.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a postgres connection string, preferring the explicit URL.
func (p PostgresConfig) DSN() (string, error) {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL, nil
	}
	if strings.TrimSpace(p.Host) == "" || strings.TrimSpace(p.DBName) == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig contains settings for the scheduler lock store.
// Redis is optional; when host is empty the scheduler runs without
// cross-replica locking.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

// LLMConfig contains provider credentials and per-purpose model routing.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Routing     LLMRouting    `mapstructure:"routing"`
}

// LLMRouting selects which model serves each pipeline purpose.
type LLMRouting struct {
	Summary  string `mapstructure:"summary"`  // per-source summaries
	Analysis string `mapstructure:"analysis"` // gap analysis + briefs
	Writing  string `mapstructure:"writing"`  // article drafts
}

// PipelineConfig bounds the run pipeline engine.
type PipelineConfig struct {
	MaxSources       int           `mapstructure:"max_sources"`
	MinUsableSources int           `mapstructure:"min_usable_sources"`
	MinExtractWords  int           `mapstructure:"min_extract_words"`
	MaxExtractChars  int           `mapstructure:"max_extract_chars"`
	WorkerLimit      int           `mapstructure:"worker_limit"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	StageTimeout     time.Duration `mapstructure:"stage_timeout"`
	Fetcher          string        `mapstructure:"fetcher"` // "http" or "chromedp"
	BlockedDomains   []string      `mapstructure:"blocked_domains"`
	BlockedPathHints []string      `mapstructure:"blocked_path_hints"`
}

// ExportConfig controls best-effort local markdown export.
type ExportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

func (p PipelineConfig) Validate() error {
	if p.MaxSources <= 0 {
		return fmt.Errorf("pipeline.max_sources must be > 0")
	}
	if p.WorkerLimit <= 0 {
		return fmt.Errorf("pipeline.worker_limit must be > 0")
	}
	if p.Fetcher != "http" && p.Fetcher != "chromedp" {
		return fmt.Errorf("pipeline.fetcher must be \"http\" or \"chromedp\"")
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.listen", ":10020")
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.routing.summary", "gpt-4.1-mini")
	viper.SetDefault("llm.routing.analysis", "gpt-4.1-mini")
	viper.SetDefault("llm.routing.writing", "gpt-4.1")
	viper.SetDefault("pipeline.max_sources", 8)
	viper.SetDefault("pipeline.min_usable_sources", 1)
	viper.SetDefault("pipeline.min_extract_words", 150)
	viper.SetDefault("pipeline.max_extract_chars", 120000)
	viper.SetDefault("pipeline.worker_limit", 4)
	viper.SetDefault("pipeline.fetch_timeout", 20*time.Second)
	viper.SetDefault("pipeline.stage_timeout", 5*time.Minute)
	viper.SetDefault("pipeline.fetcher", "http")
	viper.SetDefault("pipeline.blocked_domains", []string{
		"reddit.com",
		"quora.com",
		"youtube.com",
		"youtu.be",
		"pinterest.com",
		"wikipedia.org",
	})
	viper.SetDefault("pipeline.blocked_path_hints", []string{
		"/forum",
		"/forums",
		"/products",
		"/shop",
		"/category",
		"/tag",
	})
	viper.SetDefault("export.enabled", true)
	viper.SetDefault("export.dir", "exports")
}

// LoadConfig loads configuration from an optional file path plus
// SEOFORGE_* environment variables. A missing config file is not an
// error; env and defaults are enough to run.
func LoadConfig(path string) (*Config, error) {
	setDefaults()

	if path == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SEOFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
