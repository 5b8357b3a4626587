package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"askdoc"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"askdoc"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`

	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	ChatModel      string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	// Every stored vector and every query vector must have this length.
	EmbeddingDimension int `envconfig:"EMBEDDING_DIMENSION" default:"1536"`
	EmbedBatchSize     int `envconfig:"EMBED_BATCH_SIZE" default:"10"`

	ChunkTargetSize int `envconfig:"CHUNK_TARGET_SIZE" default:"500"`
	ChunkOverlap    int `envconfig:"CHUNK_OVERLAP" default:"50"`

	SearchThreshold float64 `envconfig:"SEARCH_THRESHOLD" default:"0.1"`
	SearchTopK      int     `envconfig:"SEARCH_TOP_K" default:"5"`

	EnableAPI          bool   `envconfig:"ENABLE_API" default:"true"`
	EnableIngestWorker bool   `envconfig:"ENABLE_INGEST_WORKER" default:"true"`
	MigrationPath      string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	UploadDir       string `envconfig:"ASKDOC_UPLOAD_DIR" default:"./uploads"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingRequired)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: EMBEDDING_DIMENSION must be positive", ErrMissingRequired)
	}
	return nil
}
