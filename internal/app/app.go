// Package app wires configuration into the long-lived components shared by
// the HTTP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"document-qa/internal/chunker"
	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/ingest"
	"document-qa/internal/llmservice"
	"document-qa/internal/rag"
	"document-qa/internal/vectorindex"
)

type App struct {
	Config   *config.Config
	Index    vectorindex.Index
	Pipeline *ingest.Pipeline
	RAG      *rag.RAG
}

// New validates cfg, connects to the embedding model, the answer model and the
// vector index, and waits until the index is ready.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	embedder, err := embedding.NewEmbedder(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	llm, err := llmservice.New(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	index, err := vectorindex.Open(ctx, &cfg.Index, cfg.Embedding.Dimension)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("backend", cfg.Index.Backend).
		Str("index", cfg.Index.Name).
		Str("embedding_model", cfg.Embedding.Model).
		Str("llm_model", cfg.LLM.Model).
		Msg("Application ready")
	return NewFromParts(cfg, embedder, llm, index), nil
}

// NewFromParts assembles an App around already constructed components.
func NewFromParts(cfg *config.Config, embedder embeddings.Embedder, llm llms.Model, index vectorindex.Index) *App {
	svc := embedding.NewService(embedder, cfg.Embedding.Dimension)
	splitter := chunker.NewSplitter(cfg.Splitter.ChunkSize, cfg.Splitter.ChunkOverlap)

	return &App{
		Config:   cfg,
		Index:    index,
		Pipeline: ingest.NewPipeline(cfg.UploadDir, splitter, svc, index),
		RAG:      rag.NewRAG(svc, index, rag.NewChainAnswerer(llm)),
	}
}

// Reset deletes every indexed chunk by dropping and recreating the index.
func (a *App) Reset(ctx context.Context) error {
	log.Warn().Str("index", a.Config.Index.Name).Msg("Clearing index")
	if err := a.Index.Drop(ctx); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	if err := a.Index.Ensure(ctx); err != nil {
		return fmt.Errorf("recreate index: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	if a.Index == nil {
		return errors.New("app has no index")
	}
	return a.Index.Close()
}
