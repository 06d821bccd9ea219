package rag

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"document-qa/internal/models"
)

// Answerer produces an answer to question using the documents retriever
// returns.
type Answerer interface {
	Answer(ctx context.Context, retriever schema.Retriever, question string) (*models.Answer, error)
}

// ChainAnswerer stuffs the retrieved documents into a retrieval QA chain.
type ChainAnswerer struct {
	llm llms.Model
}

func NewChainAnswerer(llm llms.Model) *ChainAnswerer {
	return &ChainAnswerer{llm: llm}
}

func (a *ChainAnswerer) Answer(ctx context.Context, retriever schema.Retriever, question string) (*models.Answer, error) {
	qa := chains.NewRetrievalQAFromLLM(a.llm, retriever)
	qa.ReturnSourceDocuments = true

	out, err := chains.Call(ctx, qa, map[string]any{"query": question})
	if err != nil {
		return nil, err
	}

	text, ok := out["text"].(string)
	if !ok {
		return nil, fmt.Errorf("chain returned %T for text", out["text"])
	}
	docs, _ := out["source_documents"].([]schema.Document)
	return &models.Answer{Response: text, Sources: sourceNames(docs)}, nil
}

// sourceNames lists the distinct file names of docs in first-seen order.
func sourceNames(docs []schema.Document) []string {
	seen := make(map[string]bool, len(docs))
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		name, _ := d.Metadata[models.MetaSource].(string)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
