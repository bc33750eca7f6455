// Package app builds the long-lived provider handles shared by the HTTP
// service, the CLI commands and the terminal chat.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fbuddy/rag/config"
	"github.com/fbuddy/rag/internal/bill"
	"github.com/fbuddy/rag/internal/db"
	"github.com/fbuddy/rag/internal/documents"
	"github.com/fbuddy/rag/internal/embeddings"
	"github.com/fbuddy/rag/internal/llm"
	"github.com/fbuddy/rag/internal/logger"
	"github.com/fbuddy/rag/internal/ollama"
	"github.com/fbuddy/rag/internal/openai"
	"github.com/fbuddy/rag/internal/rag"
	"github.com/fbuddy/rag/internal/vectorindex"
)

// Services holds every component built from the configuration.
type Services struct {
	Config    *config.Config
	IndexName string
	Index     vectorindex.Index
	Embedder  embeddings.Embedder
	Generator llm.Generator
	Processor *documents.Processor
	Pipeline  *rag.Pipeline
	Bills     *bill.Extractor

	db      *db.DB
	pgIndex *db.VectorIndex
}

// Providers are the externally backed handles Assemble wires together.
// Vision may be nil, which leaves bill extraction in demo mode.
type Providers struct {
	Index     vectorindex.Index
	Embedder  embeddings.Embedder
	Generator llm.Generator
	Vision    llm.Generator
}

// New connects to the configured providers and assembles the pipelines.
func New(ctx context.Context, cfg *config.Config) (*Services, error) {
	var (
		p        Providers
		database *db.DB
		pgIndex  *db.VectorIndex
		err      error
	)

	switch cfg.VectorStore.Backend {
	case config.BackendMemory:
		p.Index, err = vectorindex.NewMemory(cfg.VectorStore.Dimension)
		if err != nil {
			return nil, err
		}
		logger.Warn("Using in-memory vector index; ingested documents are lost on exit")
	default:
		database, err = db.New(ctx, cfg.Database.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		pgIndex, err = db.NewVectorIndex(database, cfg.VectorStore.IndexName, cfg.VectorStore.Dimension)
		if err != nil {
			database.Close()
			return nil, err
		}
		p.Index = pgIndex
	}

	closeOnErr := func(err error) (*Services, error) {
		if database != nil {
			database.Close()
		}
		return nil, err
	}

	p.Embedder, err = newEmbedder(cfg)
	if err != nil {
		return closeOnErr(err)
	}
	p.Generator, err = newGenerator(ctx, cfg)
	if err != nil {
		return closeOnErr(err)
	}
	p.Vision = newVision(cfg)

	s, err := Assemble(cfg, p)
	if err != nil {
		return closeOnErr(err)
	}
	s.db = database
	s.pgIndex = pgIndex
	return s, nil
}

// Assemble builds the pipelines over already constructed providers.
func Assemble(cfg *config.Config, p Providers) (*Services, error) {
	proc := cfg.Processing

	processor, err := documents.NewProcessor(p.Index, p.Embedder, documents.Options{
		UploadDir:         cfg.Uploads.Dir,
		AllowedExtensions: cfg.Uploads.AllowedExtensions,
		BatchSize:         proc.BatchSize,
		ChunkSize:         proc.ChunkSize,
		ChunkOverlap:      proc.ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create document processor: %w", err)
	}

	retriever := rag.NewRetriever(p.Index, p.Embedder, rag.RetrieverOptions{
		TopK:            proc.TopK,
		ScoreThreshold:  proc.ScoreThreshold,
		ContextCap:      proc.ContextCap,
		OverfetchFactor: proc.OverfetchFactor,
		MaxSources:      proc.MaxSources,
	})

	return &Services{
		Config:    cfg,
		IndexName: cfg.VectorStore.IndexName,
		Index:     p.Index,
		Embedder:  p.Embedder,
		Generator: p.Generator,
		Processor: processor,
		Pipeline:  rag.NewPipeline(retriever, p.Generator, nil),
		Bills:     bill.NewExtractor(p.Vision, cfg.Bill.Categories),
	}, nil
}

func newEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	if cfg.Embeddings.Provider == config.ProviderOpenAI {
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai embeddings: %w", llm.ErrNotConfigured)
		}
		client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
		return embeddings.NewOpenAIEmbedder(client, cfg.OpenAI.EmbeddingModel, cfg.VectorStore.Dimension)
	}
	return embeddings.NewTextEmbedder(cfg.Ollama.BaseURL, cfg.Embeddings.TextModel), nil
}

func newGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	if cfg.Generation.Provider == config.ProviderOpenAI {
		var temperature float32
		if t := cfg.Generation.Temperature; t != nil {
			temperature = float32(*t)
		}
		gen, err := openai.NewGenerator(openai.Config{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.ChatModel,
			Temperature: temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("openai generation: %w", err)
		}
		return gen, nil
	}

	client := ollama.NewClient(cfg.Ollama.BaseURL)
	model := cfg.Ollama.DefaultModel
	if model == "" {
		selected, err := client.SelectModel(ctx, "")
		if err != nil {
			// Chat requests fail with llm.ErrNotConfigured until a model is set.
			logger.Warn("No Ollama model selected: %v", err)
		} else {
			logger.Info("Selected Ollama model %s", selected)
			model = selected
		}
	}
	return ollama.NewGenerator(client, model, cfg.Generation.Temperature), nil
}

func newVision(cfg *config.Config) llm.Generator {
	switch cfg.Bill.Provider {
	case config.ProviderOpenAI:
		gen, err := openai.NewGenerator(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.VisionModel,
		})
		if err == nil {
			return gen
		}
	case config.ProviderOllama:
		if cfg.Ollama.VisionModel != "" {
			return ollama.NewGenerator(ollama.NewClient(cfg.Ollama.BaseURL), cfg.Ollama.VisionModel, nil)
		}
	}
	logger.Warn("Bill scanning has no vision model configured; running in demo mode")
	return nil
}

// Migrate creates the Postgres schema. It is a no-op for the in-memory index.
func (s *Services) Migrate(ctx context.Context) error {
	if s.pgIndex == nil {
		logger.Info("Vector store %s needs no migration", s.Config.VectorStore.Backend)
		return nil
	}
	return s.pgIndex.Migrate(ctx)
}

// Seed ingests the bootstrap document as global content when the index holds
// fewer than bootstrap.min_vectors vectors. It returns the number of chunks
// stored, zero when seeding was skipped.
func (s *Services) Seed(ctx context.Context) (int, error) {
	path := s.Config.Bootstrap.SeedDocument
	if path == "" {
		return 0, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("Seed document %s not found, skipping", path)
			return 0, nil
		}
		return 0, fmt.Errorf("failed to stat seed document: %w", err)
	}

	stats, err := s.Index.Stats(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read index stats: %w", err)
	}
	if stats.TotalVectorCount >= s.Config.Bootstrap.MinVectors {
		logger.Debug("Index holds %d vectors, skipping seed", stats.TotalVectorCount)
		return 0, nil
	}

	logger.Info("Index holds %d vectors, ingesting %s", stats.TotalVectorCount, path)
	n, err := s.Processor.IngestFile(ctx, path, "")
	if err != nil {
		return n, fmt.Errorf("failed to ingest seed document: %w", err)
	}
	return n, nil
}

// Close releases the database pool, if any.
func (s *Services) Close() {
	if s.db != nil {
		s.db.Close()
	}
}
