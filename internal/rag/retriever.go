package rag

import (
	"context"

	"github.com/tmc/langchaingo/schema"

	"document-qa/internal/models"
)

// StaticRetriever hands back the same documents for any query. It carries the
// matches of one request into a retrieval chain.
type StaticRetriever struct {
	Docs []schema.Document
}

var _ schema.Retriever = StaticRetriever{}

func (r StaticRetriever) GetRelevantDocuments(_ context.Context, _ string) ([]schema.Document, error) {
	return r.Docs, nil
}

// matchesToDocuments turns index matches into chain documents. The chunk text
// lives in the "text" metadata entry; a match without it becomes an empty
// document.
func matchesToDocuments(matches []models.Match) []schema.Document {
	docs := make([]schema.Document, 0, len(matches))
	for _, m := range matches {
		meta := make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			meta[k] = v
		}
		docs = append(docs, schema.Document{
			PageContent: m.Metadata[models.MetaText],
			Metadata:    meta,
			Score:       m.Score,
		})
	}
	return docs
}
