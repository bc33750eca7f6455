package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider and backend names accepted in the configuration.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"

	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Addr           string `yaml:"addr"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	} `yaml:"server"`
	Database struct {
		ConnectionString string `yaml:"connection_string"`
	} `yaml:"database"`
	VectorStore struct {
		Backend   string `yaml:"backend"`
		IndexName string `yaml:"index_name"`
		Dimension int    `yaml:"dimension"`
	} `yaml:"vector_store"`
	Ollama struct {
		BaseURL      string `yaml:"base_url"`
		DefaultModel string `yaml:"default_model"`
		VisionModel  string `yaml:"vision_model"`
	} `yaml:"ollama"`
	OpenAI struct {
		APIKey         string `yaml:"api_key"`
		BaseURL        string `yaml:"base_url"`
		ChatModel      string `yaml:"chat_model"`
		VisionModel    string `yaml:"vision_model"`
		EmbeddingModel string `yaml:"embedding_model"`
	} `yaml:"openai"`
	Embeddings struct {
		Provider  string `yaml:"provider"`
		TextModel string `yaml:"text_model"`
	} `yaml:"embeddings"`
	Generation struct {
		Provider    string   `yaml:"provider"`
		Temperature *float64 `yaml:"temperature,omitempty"`
	} `yaml:"generation"`
	Processing struct {
		ChunkSize       int     `yaml:"chunk_size"`
		ChunkOverlap    int     `yaml:"chunk_overlap"`
		BatchSize       int     `yaml:"batch_size"`
		TopK            int     `yaml:"top_k"`
		ScoreThreshold  float64 `yaml:"score_threshold"`
		ContextCap      int     `yaml:"context_cap"`
		OverfetchFactor int     `yaml:"overfetch_factor"`
		MaxSources      int     `yaml:"max_sources"`
	} `yaml:"processing"`
	Uploads struct {
		Dir               string   `yaml:"dir"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
	} `yaml:"uploads"`
	Bill struct {
		Provider   string   `yaml:"provider"`
		Categories []string `yaml:"categories"`
	} `yaml:"bill"`
	Bootstrap struct {
		SeedDocument string `yaml:"seed_document"`
		MinVectors   int64  `yaml:"min_vectors"`
	} `yaml:"bootstrap"`
	Log struct {
		Verbose bool `yaml:"verbose"`
	} `yaml:"log"`
}

// Load reads .env, then the first config file found, then applies
// environment overrides. An explicit path must exist; otherwise
// ./config.yaml and ~/.fbuddy-rag/config.yaml are tried and defaults are used
// when neither exists.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	file, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", file, err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file %s: %w", path, err)
		}
		return path, nil
	}

	for _, candidate := range []string{"config.yaml", DefaultPath()} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

// DefaultPath is the per-user config file location.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".fbuddy-rag", "config.yaml")
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
		return nil
	}

	str("DATABASE_URL", &c.Database.ConnectionString)
	str("RAG_INDEX_NAME", &c.VectorStore.IndexName)
	str("RAG_VECTOR_STORE", &c.VectorStore.Backend)
	str("RAG_SERVER_ADDR", &c.Server.Addr)
	str("RAG_UPLOAD_DIR", &c.Uploads.Dir)
	str("OLLAMA_BASE_URL", &c.Ollama.BaseURL)
	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	str("RAG_EMBED_PROVIDER", &c.Embeddings.Provider)
	str("RAG_GENERATION_PROVIDER", &c.Generation.Provider)

	for key, dst := range map[string]*int{
		"RAG_TOP_K":         &c.Processing.TopK,
		"RAG_CHUNK_SIZE":    &c.Processing.ChunkSize,
		"RAG_CHUNK_OVERLAP": &c.Processing.ChunkOverlap,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the pipelines cannot run with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	p := c.Processing
	check(p.ChunkSize > 0, "processing.chunk_size must be positive")
	check(p.ChunkOverlap >= 0 && p.ChunkOverlap < p.ChunkSize, "processing.chunk_overlap must be in [0, chunk_size)")
	check(p.BatchSize > 0, "processing.batch_size must be positive")
	check(p.TopK > 0, "processing.top_k must be positive")
	check(p.ContextCap > 0, "processing.context_cap must be positive")
	check(p.OverfetchFactor > 0, "processing.overfetch_factor must be positive")
	check(p.MaxSources >= 0, "processing.max_sources must not be negative")
	check(p.ScoreThreshold >= -1 && p.ScoreThreshold <= 1, "processing.score_threshold must be in [-1, 1]")

	check(c.VectorStore.IndexName != "", "vector_store.index_name is required")
	check(c.VectorStore.Dimension > 0, "vector_store.dimension must be positive")
	check(oneOf(c.VectorStore.Backend, BackendPostgres, BackendMemory),
		"unknown vector_store.backend %q", c.VectorStore.Backend)
	check(oneOf(c.Embeddings.Provider, ProviderOllama, ProviderOpenAI),
		"unknown embeddings.provider %q", c.Embeddings.Provider)
	check(oneOf(c.Generation.Provider, ProviderOllama, ProviderOpenAI),
		"unknown generation.provider %q", c.Generation.Provider)
	check(oneOf(c.Bill.Provider, ProviderOllama, ProviderOpenAI, ProviderNone),
		"unknown bill.provider %q", c.Bill.Provider)
	check(c.Server.MaxUploadBytes > 0, "server.max_upload_bytes must be positive")
	check(len(c.Uploads.AllowedExtensions) > 0, "uploads.allowed_extensions must not be empty")

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if strings.EqualFold(v, o) {
			return true
		}
	}
	return false
}

// Save writes the configuration as YAML. An empty path means DefaultPath.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Server.Addr = ":5002"
	cfg.Server.MaxUploadBytes = 50 << 20
	cfg.Database.ConnectionString = "postgres://postgres@localhost/postgres?sslmode=disable"
	cfg.VectorStore.Backend = BackendPostgres
	cfg.VectorStore.IndexName = "rag1"
	cfg.VectorStore.Dimension = 768
	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.DefaultModel = ""
	cfg.OpenAI.ChatModel = "gpt-4o-mini"
	cfg.OpenAI.VisionModel = "gpt-4o-mini"
	cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	cfg.Embeddings.Provider = ProviderOllama
	cfg.Embeddings.TextModel = "nomic-embed-text"
	cfg.Generation.Provider = ProviderOllama
	cfg.Processing.ChunkSize = 500
	cfg.Processing.ChunkOverlap = 100
	cfg.Processing.BatchSize = 100
	cfg.Processing.TopK = 7
	cfg.Processing.ScoreThreshold = 0.25
	cfg.Processing.ContextCap = 7
	cfg.Processing.OverfetchFactor = 3
	cfg.Processing.MaxSources = 7
	cfg.Uploads.Dir = "uploads"
	cfg.Uploads.AllowedExtensions = []string{"docx", "doc", "pdf"}
	cfg.Bill.Provider = ProviderOpenAI
	cfg.Bill.Categories = []string{
		"restaurants", "food", "drinks", "transport", "fuel", "clothes", "education",
		"health", "hotel", "fun", "personal", "pets", "others",
	}
	cfg.Bootstrap.SeedDocument = filepath.Join("uploads", "context.pdf")
	cfg.Bootstrap.MinVectors = 50

	return cfg
}
