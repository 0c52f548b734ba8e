// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, MinIO, Indexer, Snapshot, Search).
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
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// AllowOrigins are the browser origins allowed to call the API; "*"
	// allows any.
	AllowOrigins []string `yaml:"allowOrigins"`
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

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables every Kafka integration.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexBuilt      string `yaml:"indexBuilt"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// MinIOConfig holds the S3-compatible object store used for snapshots.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Secure    bool   `yaml:"secure"`
}

// FieldConfig declares one indexed field and its static boost.
type FieldConfig struct {
	Name  string  `yaml:"name"`
	Boost float64 `yaml:"boost"`
}

// PipelineConfig is the text-processing chain shared by the builder and
// the query engine. Both sides must use the same value.
type PipelineConfig struct {
	Stages     []string `yaml:"stages"`
	Stopwords  []string `yaml:"stopwords"`
	Separators string   `yaml:"separators"`
}

// SourceConfig selects where the builder reads documents from.
type SourceConfig struct {
	// Type is "jsonl" or "postgres".
	Type      string `yaml:"type"`
	Path      string `yaml:"path"`
	Table     string `yaml:"table"`
	// URLColumn names the column holding each document's link. Empty
	// means the table has none.
	URLColumn string `yaml:"urlColumn"`
}

// IndexerConfig controls index construction.
type IndexerConfig struct {
	Ref        string         `yaml:"ref"`
	Fields     []FieldConfig  `yaml:"fields"`
	Pipeline   PipelineConfig `yaml:"pipeline"`
	SaveDocs   bool           `yaml:"saveDocs"`
	Duplicates string         `yaml:"duplicates"`
	Source     SourceConfig   `yaml:"source"`
}

// SnapshotConfig controls where and how the serialized index is stored.
type SnapshotConfig struct {
	// Store is "local" or "minio".
	Store string `yaml:"store"`
	Dir   string `yaml:"dir"`
	// Name is the object name; its extension selects the format
	// (.json or .js) and compression (.zst, .lz4).
	Name        string        `yaml:"name"`
	LoadTimeout time.Duration `yaml:"loadTimeout"`
}

// SearchConfig controls query execution and result presentation.
type SearchConfig struct {
	Mode                string  `yaml:"mode"`
	Expand              bool    `yaml:"expand"`
	CaseSensitiveFields bool    `yaml:"caseSensitiveFields"`
	DefaultLimit        int     `yaml:"defaultLimit"`
	MaxResults          int     `yaml:"maxResults"`
	TeaserWordCount     int     `yaml:"teaserWordCount"`
	ExactMatchBonus     float64 `yaml:"exactMatchBonus"`
	RateLimit           float64 `yaml:"rateLimit"`
	RateBurst           int     `yaml:"rateBurst"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
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
	cfg := Default()
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
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the builder or searcher cannot run with.
func (c *Config) Validate() error {
	if len(c.Indexer.Fields) == 0 {
		return fmt.Errorf("indexer.fields must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Indexer.Fields))
	for _, f := range c.Indexer.Fields {
		if f.Name == "" {
			return fmt.Errorf("indexer.fields: empty field name")
		}
		if f.Name == c.Indexer.Ref {
			return fmt.Errorf("indexer.fields: %q is the ref field", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("indexer.fields: duplicate field %q", f.Name)
		}
		if f.Boost <= 0 {
			return fmt.Errorf("indexer.fields: field %q needs a positive boost", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	switch c.Indexer.Duplicates {
	case "accumulate", "replace":
	default:
		return fmt.Errorf("indexer.duplicates must be accumulate or replace, got %q", c.Indexer.Duplicates)
	}
	switch strings.ToUpper(c.Search.Mode) {
	case "AND", "OR":
	default:
		return fmt.Errorf("search.mode must be AND or OR, got %q", c.Search.Mode)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search limits invalid: default %d, max %d", c.Search.DefaultLimit, c.Search.MaxResults)
	}
	return nil
}

// Default returns a Config matching the layout of an mdBook search index:
// title, body and breadcrumbs fields with title boosted twice, the
// trimmer/stopWordFilter/stemmer pipeline and OR queries with prefix
// expansion.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowOrigins:    []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docsearch",
			User:            "docsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "docsearch-analytics",
			Topics: KafkaTopics{
				IndexBuilt:      "index.built",
				AnalyticsEvents: "analytics-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		MinIO: MinIOConfig{
			Endpoint: "localhost:9000",
			Bucket:   "docsearch",
		},
		Indexer: IndexerConfig{
			Ref: "id",
			Fields: []FieldConfig{
				{Name: "title", Boost: 2},
				{Name: "body", Boost: 1},
				{Name: "breadcrumbs", Boost: 1},
			},
			Pipeline: PipelineConfig{
				Stages:     []string{"trimmer", "stopWordFilter", "stemmer"},
				Stopwords:  DefaultStopwords(),
				Separators: "-",
			},
			SaveDocs:   true,
			Duplicates: "accumulate",
			Source: SourceConfig{
				Type:  "jsonl",
				Path:      "documents.jsonl",
				Table:     "documents",
				URLColumn: "url",
			},
		},
		Snapshot: SnapshotConfig{
			Store:       "local",
			Dir:         "data",
			Name:        "searchindex.json",
			LoadTimeout: 30 * time.Second,
		},
		Search: SearchConfig{
			Mode:            "OR",
			Expand:          true,
			DefaultLimit:    30,
			MaxResults:      100,
			TeaserWordCount: 30,
			ExactMatchBonus: 1.5,
			RateLimit:       50,
			RateBurst:       100,
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

// DefaultStopwords returns a fresh copy of the English stop-word list used by
// lunr-style indexes.
func DefaultStopwords() []string {
	return []string{
		"a", "able", "about", "across", "after", "all", "almost", "also", "am",
		"among", "an", "and", "any", "are", "as", "at", "be", "because", "been",
		"but", "by", "can", "cannot", "could", "dear", "did", "do", "does",
		"either", "else", "ever", "every", "for", "from", "get", "got", "had",
		"has", "have", "he", "her", "hers", "him", "his", "how", "however", "i",
		"if", "in", "into", "is", "it", "its", "just", "least", "let", "like",
		"likely", "may", "me", "might", "most", "must", "my", "neither", "no",
		"nor", "not", "of", "off", "often", "on", "only", "or", "other", "our",
		"own", "rather", "said", "say", "says", "she", "should", "since", "so",
		"some", "than", "that", "the", "their", "them", "then", "there", "these",
		"they", "this", "tis", "to", "too", "twas", "us", "wants", "was", "we",
		"were", "what", "when", "where", "which", "while", "who", "whom", "why",
		"will", "with", "would", "yet", "you", "your",
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
	if v := os.Getenv("SP_SERVER_ALLOW_ORIGINS"); v != "" {
		cfg.Server.AllowOrigins = splitList(v)
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
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("SP_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("SP_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("SP_SNAPSHOT_STORE"); v != "" {
		cfg.Snapshot.Store = v
	}
	if v := os.Getenv("SP_SNAPSHOT_DIR"); v != "" {
		cfg.Snapshot.Dir = v
	}
	if v := os.Getenv("SP_SNAPSHOT_NAME"); v != "" {
		cfg.Snapshot.Name = v
	}
	if v := os.Getenv("SP_SOURCE_PATH"); v != "" {
		cfg.Indexer.Source.Path = v
	}
	if v := os.Getenv("SP_SEARCH_MODE"); v != "" {
		cfg.Search.Mode = strings.ToUpper(v)
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
