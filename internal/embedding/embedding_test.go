package embedding

import (
	"context"
	"errors"
	"testing"

	"document-qa/internal/config"
	"document-qa/internal/models"
	"document-qa/internal/testutil"
)

func TestService_EmbedChunks(t *testing.T) {
	svc := NewService(testutil.NewEmbedder(384), 384)
	chunks := []models.Chunk{
		{ID: "doc-0", Content: "insulin regulates glucose", Metadata: map[string]string{models.MetaText: "insulin regulates glucose"}},
		{ID: "doc-1", Content: "aspirin thins blood", Metadata: map[string]string{models.MetaText: "aspirin thins blood"}},
	}

	records, err := svc.EmbedChunks(context.Background(), chunks)
	if err != nil {
		t.Fatalf("EmbedChunks: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for i, r := range records {
		if r.ID != chunks[i].ID {
			t.Errorf("record %d: expected id %s, got %s", i, chunks[i].ID, r.ID)
		}
		if len(r.Vector) != 384 {
			t.Errorf("record %d: expected 384 dims, got %d", i, len(r.Vector))
		}
		if r.Metadata[models.MetaText] != chunks[i].Content {
			t.Errorf("record %d: metadata not carried over", i)
		}
	}
}

func TestService_EmbedChunksEmpty(t *testing.T) {
	fake := testutil.NewEmbedder(384)
	records, err := NewService(fake, 384).EmbedChunks(context.Background(), nil)
	if err != nil || records != nil {
		t.Fatalf("expected nil, nil; got %v, %v", records, err)
	}
	if fake.DocumentSets != 0 {
		t.Error("embedder must not be called without chunks")
	}
}

func TestService_DimensionMismatch(t *testing.T) {
	svc := NewService(testutil.NewEmbedder(768), 384)

	_, err := svc.EmbedQuery(context.Background(), "question")
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch from query, got %v", err)
	}

	_, err = svc.EmbedChunks(context.Background(), []models.Chunk{{ID: "doc-0", Content: "text"}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch from chunks, got %v", err)
	}
}

func TestService_PropagatesEmbedderError(t *testing.T) {
	fake := testutil.NewEmbedder(384)
	fake.Err = errors.New("model unavailable")
	_, err := NewService(fake, 384).EmbedQuery(context.Background(), "question")
	if !errors.Is(err, fake.Err) {
		t.Fatalf("expected wrapped embedder error, got %v", err)
	}
}

func TestNewEmbedder_Providers(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmbeddingConfig
		wantErr bool
	}{
		{"ollama", config.EmbeddingConfig{Provider: config.ProviderOllama, Model: "all-minilm", BaseURL: "http://localhost:11434"}, false},
		{"openai", config.EmbeddingConfig{Provider: config.ProviderOpenAI, Model: "text-embedding-3-small", APIKey: "Bearer sk-test"}, false},
		{"unknown", config.EmbeddingConfig{Provider: "word2vec"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := NewEmbedder(&tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEmbedder: %v", err)
			}
			if emb == nil {
				t.Fatal("expected an embedder")
			}
		})
	}
}
