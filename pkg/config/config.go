// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Highlight, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Highlight HighlightConfig `yaml:"highlight"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`

	// RateLimitPerMinute caps requests per client; 0 disables limiting.
	RateLimitPerMinute int `yaml:"rateLimitPerMinute"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	// Enabled false runs a single process: documents are indexed inline and
	// analytics are aggregated in memory.
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	TermVectors     string `yaml:"termVectors"`
	CacheInvalidate string `yaml:"cacheInvalidate"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// FieldMapping describes how one field is indexed. Source names another
// field whose values are copied in, which is how sub-fields such as
// "ingress.snippet" are declared.
type FieldMapping struct {
	TermVector bool   `yaml:"termVector"`
	Store      bool   `yaml:"store"`
	Analyzer   string `yaml:"analyzer"`
	Source     string `yaml:"source"`
}

// HighlightConfig holds the default highlighting parameters and the field
// mappings that decide between the term-vector and plain paths.
type HighlightConfig struct {
	PreTag                  string                  `yaml:"preTag"`
	PostTag                 string                  `yaml:"postTag"`
	ShiftSentenceBoundaries bool                    `yaml:"shiftSentenceBoundaries"`
	RequireFieldMatch       bool                    `yaml:"requireFieldMatch"`
	NumberOfFragments       int                     `yaml:"numberOfFragments"`
	FragmentSize            int                     `yaml:"fragmentSize"`
	FragListPolicy          string                  `yaml:"fragListPolicy"`
	Encoder                 string                  `yaml:"encoder"`
	Store                   string                  `yaml:"store"`
	IngressField            string                  `yaml:"ingressField"`
	HighlightableFields     []string                `yaml:"highlightableFields"`
	MaxConcurrentHits       int                     `yaml:"maxConcurrentHits"`
	HitTimeout              time.Duration           `yaml:"hitTimeout"`
	UseCollectionStats      bool                    `yaml:"useCollectionStats"`
	Mappings                map[string]FieldMapping `yaml:"mappings"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls request tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the highlighter cannot run with.
func (c *Config) Validate() error {
	h := c.Highlight
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("server.rateLimitPerMinute must be >= 0, got %d", c.Server.RateLimitPerMinute)
	}
	if h.NumberOfFragments < 0 {
		return fmt.Errorf("highlight.numberOfFragments must be >= 0, got %d", h.NumberOfFragments)
	}
	if h.FragmentSize < 0 {
		return fmt.Errorf("highlight.fragmentSize must be >= 0, got %d", h.FragmentSize)
	}
	switch h.Store {
	case "memory", "postgres":
	default:
		return fmt.Errorf("highlight.store must be memory or postgres, got %q", h.Store)
	}
	switch h.Encoder {
	case "default", "html":
	default:
		return fmt.Errorf("highlight.encoder must be default or html, got %q", h.Encoder)
	}
	for name, m := range h.Mappings {
		if m.Source != "" {
			if _, ok := h.Mappings[m.Source]; !ok {
				return fmt.Errorf("highlight.mappings.%s: unknown source field %q", name, m.Source)
			}
		}
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "highlighter",
			User:            "highlighter",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       true,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "highlighter-group",
			Topics: KafkaTopics{
				TermVectors:     "term-vectors",
				CacheInvalidate: "cache-invalidate",
				AnalyticsEvents: "highlight-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Highlight: HighlightConfig{
			PreTag:              "<B>",
			PostTag:             "</B>",
			RequireFieldMatch:   true,
			NumberOfFragments:   5,
			FragmentSize:        100,
			FragListPolicy:      "term",
			Encoder:             "default",
			Store:               "memory",
			IngressField:        "ingress.snippet",
			HighlightableFields: []string{"title", "ingress", "content"},
			MaxConcurrentHits:   8,
			HitTimeout:          2 * time.Second,
			Mappings: map[string]FieldMapping{
				"title":           {TermVector: true, Store: true},
				"content":         {TermVector: true, Store: true},
				"ingress":         {Store: true},
				"ingress.snippet": {TermVector: true, Analyzer: "snippet", Source: "ingress"},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_SERVER_RATE_LIMIT_PER_MINUTE"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitPerMinute = limit
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SP_KAFKA_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = enabled
		}
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = enabled
		}
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_HIGHLIGHT_STORE"); v != "" {
		cfg.Highlight.Store = v
	}
	if v := os.Getenv("SP_HIGHLIGHT_ENCODER"); v != "" {
		cfg.Highlight.Encoder = v
	}
	if v := os.Getenv("SP_HIGHLIGHT_SHIFT_SENTENCE_BOUNDARIES"); v != "" {
		if shift, err := strconv.ParseBool(v); err == nil {
			cfg.Highlight.ShiftSentenceBoundaries = shift
		}
	}
	if v := os.Getenv("SP_HIGHLIGHT_MAX_CONCURRENT_HITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Highlight.MaxConcurrentHits = n
		}
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
