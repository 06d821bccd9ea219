package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

// QueryEmbedder turns a question into a vector of the index dimension.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher returns the nearest stored chunks for a vector.
type Searcher interface {
	Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error)
}

type RAG struct {
	embedder QueryEmbedder
	index    Searcher
	answerer Answerer
	topK     int
}

func NewRAG(embedder QueryEmbedder, index Searcher, answerer Answerer) *RAG {
	return &RAG{embedder: embedder, index: index, answerer: answerer, topK: models.TopK}
}

// Ask answers question from the closest indexed chunks. When the index has
// nothing to offer the fixed apology is returned and the model is not called.
func (r *RAG) Ask(ctx context.Context, question string) (*models.Answer, error) {
	if question == "" {
		return nil, errors.New("question is empty")
	}

	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	matches, err := r.index.Query(ctx, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	log.Debug().Str("question", question).Int("matches", len(matches)).Msg("Retrieved context")

	if len(matches) == 0 {
		return &models.Answer{Response: models.NoAnswerMessage, Sources: []string{}}, nil
	}

	retriever := StaticRetriever{Docs: matchesToDocuments(matches)}
	answer, err := r.answerer.Answer(ctx, retriever, question)
	if err != nil {
		return nil, fmt.Errorf("answer chain: %w", err)
	}
	if answer.Sources == nil {
		answer.Sources = []string{}
	}
	return answer, nil
}
