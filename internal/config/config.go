package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingIndexName = errors.New("index name is required")
	ErrMissingAPIKey    = errors.New("api key is required")
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	UploadDir string          `yaml:"upload_dir"`
	Log       LogConfig       `yaml:"log"`
	Splitter  SplitterConfig  `yaml:"splitter"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Index     IndexConfig     `yaml:"index"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type SplitterConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// EmbeddingConfig selects the embedding model. Ingestion and queries must
// share it, otherwise similarity scores are meaningless.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Dimension int    `yaml:"dimension"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
}

type IndexConfig struct {
	Backend       string         `yaml:"backend"`
	Name          string         `yaml:"name"`
	APIKey        string         `yaml:"api_key"`
	ReadyInterval time.Duration  `yaml:"ready_interval"`
	ReadyTimeout  time.Duration  `yaml:"ready_timeout"`
	Chromem       ChromemConfig  `yaml:"chromem"`
	Postgres      PostgresConfig `yaml:"postgres"`
	Qdrant        QdrantConfig   `yaml:"qdrant"`
}

type ChromemConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type PostgresConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
	Debug  bool   `yaml:"debug"`
}

type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	UseTLS bool   `yaml:"use_tls"`
}

const (
	ProviderHuggingFace = "huggingface"
	ProviderOllama      = "ollama"
	ProviderOpenAI      = "openai"

	BackendChromem  = "chromem"
	BackendPostgres = "postgres"
	BackendQdrant   = "qdrant"

	DriverPgdriver = "pgdriver"
	DriverPq       = "postgres"
)

// LoadConfig reads the yaml file at path, applies environment overrides and
// fills defaults. A missing file is not an error; defaults and the
// environment are used instead.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the built-in configuration. Values that may legitimately be
// zero are only set here, so a file can still override them with 0.
func Default() *Config {
	cfg := &Config{}
	cfg.Splitter.ChunkOverlap = 50
	applyDefaults(cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Index.Name, "RAG_INDEX_NAME")
	setFromEnv(&cfg.Index.APIKey, "RAG_INDEX_API_KEY")
	setFromEnv(&cfg.Embedding.APIKey, "RAG_EMBEDDING_API_KEY")
	setFromEnv(&cfg.LLM.APIKey, "RAG_LLM_API_KEY")
	setFromEnv(&cfg.Index.Postgres.DSN, "RAG_POSTGRES_DSN")
	setFromEnv(&cfg.UploadDir, "RAG_UPLOAD_DIR")
	setFromEnv(&cfg.Server.Addr, "RAG_SERVER_ADDR")
}

func setFromEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "./uploaded_docs"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Splitter.ChunkSize == 0 {
		cfg.Splitter.ChunkSize = 500
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderHuggingFace
	}
	if cfg.Embedding.Model == "" && cfg.Embedding.Provider == ProviderHuggingFace {
		cfg.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 384
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOpenAI
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = BackendChromem
	}
	if cfg.Index.Name == "" {
		cfg.Index.Name = "medicalindex"
	}
	if cfg.Index.ReadyInterval == 0 {
		cfg.Index.ReadyInterval = time.Second
	}
	if cfg.Index.ReadyTimeout == 0 {
		cfg.Index.ReadyTimeout = 2 * time.Minute
	}
	if cfg.Index.Chromem.Path == "" {
		cfg.Index.Chromem.Path = "./chromemdb"
	}
	if cfg.Index.Postgres.Driver == "" {
		cfg.Index.Postgres.Driver = DriverPgdriver
	}
	if cfg.Index.Qdrant.Host == "" {
		cfg.Index.Qdrant.Host = "localhost"
	}
	if cfg.Index.Qdrant.Port == 0 {
		cfg.Index.Qdrant.Port = 6334
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Index.Name == "" {
		return ErrMissingIndexName
	}
	if c.Splitter.ChunkSize <= 0 {
		return fmt.Errorf("splitter.chunk_size must be positive, got %d", c.Splitter.ChunkSize)
	}
	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		return fmt.Errorf("splitter.chunk_overlap must be in [0, %d), got %d", c.Splitter.ChunkSize, c.Splitter.ChunkOverlap)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}

	switch c.Embedding.Provider {
	case ProviderHuggingFace, ProviderOllama:
	case ProviderOpenAI:
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("embedding provider %s: %w", c.Embedding.Provider, ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("unknown embedding provider: %s", c.Embedding.Provider)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required for provider %s", c.Embedding.Provider)
	}

	switch c.LLM.Provider {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm provider %s: %w", c.LLM.Provider, ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}

	switch c.Index.Backend {
	case BackendChromem:
	case BackendPostgres:
		if c.Index.Postgres.DSN == "" {
			return errors.New("index.postgres.dsn is required for the postgres backend")
		}
		if c.Index.Postgres.Driver != DriverPgdriver && c.Index.Postgres.Driver != DriverPq {
			return fmt.Errorf("unknown postgres driver: %s", c.Index.Postgres.Driver)
		}
	case BackendQdrant:
		if c.Index.Qdrant.UseTLS && c.Index.APIKey == "" {
			return fmt.Errorf("qdrant cloud: %w", ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("unknown index backend: %s", c.Index.Backend)
	}

	if c.Index.ReadyTimeout <= 0 {
		return errors.New("index.ready_timeout must be positive")
	}
	return nil
}
