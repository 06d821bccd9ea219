package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/embeddings/huggingface"
	hfllm "github.com/tmc/langchaingo/llms/huggingface"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// NewEmbedder creates the embedder configured for both ingestion and queries
func NewEmbedder(cfg *config.EmbeddingConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]any{
		"provider":  cfg.Provider,
		"base_url":  cfg.BaseURL,
		"model":     cfg.Model,
		"dimension": cfg.Dimension,
	}).Msg("Creating embedder")

	switch cfg.Provider {
	case config.ProviderHuggingFace:
		return newHuggingFaceEmbedder(cfg)
	case config.ProviderOllama:
		return newOllamaEmbedder(cfg)
	case config.ProviderOpenAI:
		return newOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

func newHuggingFaceEmbedder(cfg *config.EmbeddingConfig) (embeddings.Embedder, error) {
	opts := []huggingface.Option{huggingface.WithModel(cfg.Model)}
	if cfg.APIKey != "" || cfg.BaseURL != "" {
		clientOpts := []hfllm.Option{hfllm.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, hfllm.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, hfllm.WithURL(cfg.BaseURL))
		}
		client, err := hfllm.New(clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("huggingface client: %w", err)
		}
		opts = append(opts, huggingface.WithClient(*client))
	}
	embedder, err := huggingface.NewHuggingface(opts...)
	if err != nil {
		return nil, fmt.Errorf("huggingface embedder: %w", err)
	}
	return embedder, nil
}

// new ollama embedder
func newOllamaEmbedder(cfg *config.EmbeddingConfig) (embeddings.Embedder, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	return embedder, nil
}

func newOpenAIEmbedder(cfg *config.EmbeddingConfig) (embeddings.Embedder, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	return embedder, nil
}

// Service embeds chunks and questions with one model and rejects vectors
// whose size differs from the index dimension.
type Service struct {
	embedder  embeddings.Embedder
	dimension int
}

func NewService(embedder embeddings.Embedder, dimension int) *Service {
	return &Service{embedder: embedder, dimension: dimension}
}

func (s *Service) Dimension() int {
	return s.dimension
}

// EmbedChunks returns one index record per chunk, in order.
func (s *Service) EmbedChunks(ctx context.Context, chunks []models.Chunk) ([]models.Record, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks to embed")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(chunks))
	}

	records := make([]models.Record, len(chunks))
	for i, chunk := range chunks {
		if err := s.check(vectors[i]); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", chunk.ID, err)
		}
		records[i] = models.Record{
			ID:       chunk.ID,
			Vector:   vectors[i],
			Metadata: chunk.Metadata,
		}
	}
	return records, nil
}

func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := s.check(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

func (s *Service) check(vector []float32) error {
	if s.dimension > 0 && len(vector) != s.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dimension)
	}
	return nil
}
