// Package config collects the process configuration from the environment.
// Call util.LoadEnv before Load to pick up a .env file.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/OFFIS-RIT/graphrag/internal/util"

	"github.com/go-playground/validator"
)

// WordEncoder selects ai.WordTokenizer instead of a tiktoken encoding.
const WordEncoder = "words"

type AIConfig struct {
	Adapter         string `validate:"oneof=openai ollama"`
	EmbeddingModel  string
	SummaryModel    string
	ExtractionModel string
	EmbeddingDim    int `validate:"gte=0"`

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	ParallelRequests int `validate:"gte=1"`
	Timeout          time.Duration
}

type StoreConfig struct {
	Graph  string `validate:"oneof=memory postgres neo4j"`
	Vector string `validate:"oneof=memory pgvector"`
	Chunk  string `validate:"oneof=memory postgres redis"`

	DatabaseURL string

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	RedisURL    string
	RedisPrefix string
}

type GraphConfig struct {
	EntityTypes      []string
	ChunkMaxTokens   int `validate:"gte=1"`
	TokenEncoder     string
	SummaryMaxTokens int `validate:"gte=1"`
	MaxGleaning      int `validate:"gte=0"`
	MaxRetries       int `validate:"gte=1"`

	ConsolidateLock string `validate:"oneof=none local lease"`
	LockTTL         time.Duration
	SummaryTimeout  time.Duration
}

type ServerConfig struct {
	Port         string `validate:"required,numeric"`
	AuthURL      string
	MasterAPIKey string
}

type QueueConfig struct {
	// Enabled lets the server publish asynchronous ingest requests.
	Enabled  bool
	User     string
	Password string
	Host     string
	Port     string
}

// URL returns the AMQP connection string.
func (q QueueConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", q.User, q.Password, q.Host, q.Port)
}

type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// Config is the full process configuration.
type Config struct {
	Debug bool

	AI     AIConfig
	Store  StoreConfig
	Graph  GraphConfig
	Server ServerConfig
	Queue  QueueConfig
	S3     S3Config
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Debug: util.GetEnvBool("DEBUG", false),
		AI: AIConfig{
			Adapter:         strings.ToLower(util.GetEnvString("AI_ADAPTER", "openai")),
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			SummaryModel:    util.GetEnv("AI_CHAT_DESCRIBE_MODEL"),
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			EmbeddingDim:    util.GetEnvInt("AI_EMBED_DIM", 0),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			ParallelRequests: util.GetEnvInt("AI_PARALLEL_REQ", 15),
			Timeout:          util.GetEnvMinutes("AI_TIMEOUT_MIN", 10),
		},
		Store: StoreConfig{
			Graph:  util.GetEnvString("GRAPH_STORE", "memory"),
			Vector: util.GetEnvString("VECTOR_STORE", "memory"),
			Chunk:  util.GetEnvString("CHUNK_STORE", "memory"),

			DatabaseURL: util.GetEnv("DATABASE_URL"),

			Neo4jURI:      util.GetEnv("NEO4J_URI"),
			Neo4jUser:     util.GetEnvString("NEO4J_USER", "neo4j"),
			Neo4jPassword: util.GetEnv("NEO4J_PASSWORD"),
			Neo4jDatabase: util.GetEnv("NEO4J_DATABASE"),

			RedisURL:    util.GetEnv("REDIS_URL"),
			RedisPrefix: util.GetEnvString("REDIS_PREFIX", "graphrag"),
		},
		Graph: GraphConfig{
			EntityTypes:      util.GetEnvList("ENTITY_TYPES"),
			ChunkMaxTokens:   util.GetEnvInt("CHUNK_MAX_TOKENS", 1200),
			TokenEncoder:     util.GetEnvString("TOKEN_ENCODER", "o200k_base"),
			SummaryMaxTokens: util.GetEnvInt("SUMMARY_MAX_TOKENS", 500),
			MaxGleaning:      util.GetEnvInt("MAX_GLEANING", 1),
			MaxRetries:       util.GetEnvInt("AI_MAX_RETRIES", 3),

			ConsolidateLock: util.GetEnvString("CONSOLIDATE_LOCK", "local"),
			LockTTL:         util.GetEnvMinutes("LOCK_TTL_MIN", 5),
			SummaryTimeout:  util.GetEnvMinutes("SUMMARY_TIMEOUT_MIN", 0),
		},
		Server: ServerConfig{
			Port:         util.GetEnvString("PORT", "8080"),
			AuthURL:      util.GetEnv("AUTH_URL"),
			MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
		},
		Queue: QueueConfig{
			Enabled:  util.GetEnvBool("QUEUE_ENABLED", false),
			User:     util.GetEnvString("RABBITMQ_USER", "guest"),
			Password: util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
			Host:     util.GetEnvString("RABBITMQ_HOST", "localhost"),
			Port:     util.GetEnvString("RABBITMQ_PORT", "5672"),
		},
		S3: S3Config{
			Region:    util.GetEnv("AWS_REGION"),
			Endpoint:  util.GetEnv("AWS_ENDPOINT"),
			AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey: util.GetEnv("AWS_SECRET_KEY"),
			Bucket:    util.GetEnv("AWS_BUCKET"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the settings the selected backends
// depend on.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var errs []error
	if c.NeedsPostgres() && c.Store.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for postgres backends and lease locks"))
	}
	if c.Store.Graph == "neo4j" && c.Store.Neo4jURI == "" {
		errs = append(errs, errors.New("NEO4J_URI is required for the neo4j graph store"))
	}
	if c.Store.Chunk == "redis" && c.Store.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required for the redis chunk store"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// NeedsPostgres reports whether any selected component connects to Postgres.
func (c *Config) NeedsPostgres() bool {
	return slices.Contains([]string{c.Store.Graph, c.Store.Chunk}, "postgres") ||
		c.Store.Vector == "pgvector" ||
		c.Graph.ConsolidateLock == "lease"
}
