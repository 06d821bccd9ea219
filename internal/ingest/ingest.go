package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"document-qa/internal/chunker"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/models"
	"document-qa/internal/parser"
)

// Upserter stores embedded chunks.
type Upserter interface {
	Upsert(ctx context.Context, records []models.Record) error
}

type Pipeline struct {
	uploadDir string
	splitter  *chunker.Splitter
	embedder  *embedding.Service
	index     Upserter
}

func NewPipeline(uploadDir string, splitter *chunker.Splitter, embedder *embedding.Service, index Upserter) *Pipeline {
	return &Pipeline{
		uploadDir: uploadDir,
		splitter:  splitter,
		embedder:  embedder,
		index:     index,
	}
}

// Ingest saves every upload first and then loads, splits, embeds and upserts
// one file at a time. The first failure stops the run; the returned report
// lists the files completed before it.
func (p *Pipeline) Ingest(ctx context.Context, uploads []models.Upload) (*models.IngestReport, error) {
	report := &models.IngestReport{Files: []models.FileReport{}}
	if len(uploads) == 0 {
		return report, nil
	}

	if err := helper.CreateFolder(p.uploadDir); err != nil {
		return report, fmt.Errorf("create upload dir: %w", err)
	}

	paths := make([]string, len(uploads))
	for i, u := range uploads {
		path, err := p.save(u)
		if err != nil {
			return report, err
		}
		paths[i] = path
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		file, err := p.IngestFile(ctx, path)
		if err != nil {
			return report, err
		}
		report.Files = append(report.Files, *file)
	}

	log.Info().Int("files", len(report.Files)).Int("chunks", report.TotalChunks()).Msg("Ingestion completed")
	return report, nil
}

// IngestFile indexes a document that is already on disk.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*models.FileReport, error) {
	name := filepath.Base(path)
	log.Info().Str("file", name).Msg("Loading document")

	pages, err := parser.LoadPages(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	chunks, err := p.splitter.Split(name, pages)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", name, err)
	}

	log.Info().
		Str("file", name).
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Int("dimension", p.embedder.Dimension()).
		Msg("Embedding chunks")
	records, err := p.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", name, err)
	}

	if len(records) > 0 {
		log.Debug().Str("file", name).Int("vectors", len(records)).Msg("Upserting vectors")
		if err := p.index.Upsert(ctx, records); err != nil {
			return nil, fmt.Errorf("upsert %s: %w", name, err)
		}
	}

	log.Info().Str("file", name).Int("chunks", len(records)).Msg("Document indexed")
	return &models.FileReport{Filename: name, Path: path, Chunks: len(records)}, nil
}

func (p *Pipeline) save(u models.Upload) (string, error) {
	name := filepath.Base(u.Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", errors.New("upload has no file name")
	}
	if u.Body == nil {
		return "", fmt.Errorf("upload %s has no content", name)
	}

	path := filepath.Join(p.uploadDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, u.Body); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	log.Debug().Str("file", name).Str("path", path).Msg("Saved upload")
	return path, nil
}
