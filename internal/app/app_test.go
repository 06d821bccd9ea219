package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"document-qa/internal/config"
	"document-qa/internal/models"
	"document-qa/internal/testutil"
	"document-qa/internal/vectorindex"
)

const dim = 4096

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.UploadDir = filepath.Join(t.TempDir(), "uploads")
	cfg.Embedding.Dimension = dim
	cfg.Index.Chromem.InMemory = true
	cfg.LLM.APIKey = "test"
	return cfg
}

func TestApp_IngestThenAsk(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	index, err := vectorindex.Open(ctx, &cfg.Index, dim)
	if err != nil {
		t.Fatal(err)
	}
	llm := &testutil.LLM{Reply: "Adults take 500mg."}
	a := NewFromParts(cfg, testutil.NewEmbedder(dim), llm, index)
	defer a.Close()

	// empty index: fixed apology, model untouched
	answer, err := a.RAG.Ask(ctx, "paracetamol dose for adults")
	if err != nil {
		t.Fatal(err)
	}
	if answer.Response != models.NoAnswerMessage || len(llm.Prompts) != 0 {
		t.Fatalf("expected apology without llm call, got %+v", answer)
	}

	_, err = a.Pipeline.Ingest(ctx, []models.Upload{
		{Filename: "leaflet.txt", Body: strings.NewReader("Paracetamol dose for adults is 500mg every six hours.")},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	answer, err = a.RAG.Ask(ctx, "paracetamol dose for adults")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Response != "Adults take 500mg." {
		t.Errorf("unexpected response %q", answer.Response)
	}
	if len(answer.Sources) != 1 || answer.Sources[0] != "leaflet.txt" {
		t.Errorf("unexpected sources %v", answer.Sources)
	}
	if !strings.Contains(llm.LastPrompt(), "500mg every six hours") {
		t.Errorf("chunk text missing from prompt: %s", llm.LastPrompt())
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Name = ""
	if _, err := New(context.Background(), cfg); !errors.Is(err, config.ErrMissingIndexName) {
		t.Fatalf("expected missing index name, got %v", err)
	}
}

func TestApp_ResetClearsIndex(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	index, err := vectorindex.Open(ctx, &cfg.Index, dim)
	if err != nil {
		t.Fatal(err)
	}
	llm := &testutil.LLM{Reply: "unused"}
	a := NewFromParts(cfg, testutil.NewEmbedder(dim), llm, index)
	defer a.Close()

	_, err = a.Pipeline.Ingest(ctx, []models.Upload{
		{Filename: "leaflet.txt", Body: strings.NewReader("Paracetamol dose for adults is 500mg.")},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := a.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	answer, err := a.RAG.Ask(ctx, "paracetamol dose")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Response != models.NoAnswerMessage || len(llm.Prompts) != 0 {
		t.Fatalf("expected empty index after reset, got %+v", answer)
	}
}
