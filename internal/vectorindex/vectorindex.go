package vectorindex

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/db"
	"document-qa/internal/models"
	"document-qa/internal/qdrant"
)

// Index is the vector store shared by ingestion and question answering.
type Index interface {
	// Ensure creates the index if it is missing and blocks until it is
	// ready, bounded by the configured timeout.
	Ensure(ctx context.Context) error
	// Upsert writes records in one batch; existing ids are overwritten.
	Upsert(ctx context.Context, records []models.Record) error
	// Query returns at most topK matches with metadata, best first.
	Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error)
	// Drop deletes the index with all of its records.
	Drop(ctx context.Context) error
	Close() error
}

var (
	_ Index = (*chromemdb.VectorDBManager)(nil)
	_ Index = (*db.Store)(nil)
	_ Index = (*qdrant.Repository)(nil)
)

// New builds the configured backend. It does not call Ensure.
func New(cfg *config.IndexConfig, dimension int) (Index, error) {
	log.Debug().Str("backend", cfg.Backend).Str("name", cfg.Name).Int("dimension", dimension).Msg("Opening vector index")

	switch cfg.Backend {
	case config.BackendChromem:
		manager, err := chromemdb.NewVectorDBManager(cfg.Chromem.Path, cfg.Name, dimension, cfg.Chromem.InMemory)
		if err != nil {
			return nil, err
		}
		return manager, nil
	case config.BackendPostgres:
		sqldb, err := db.ConnectDB(&cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store, err := db.NewStore(db.NewDB(sqldb, cfg.Postgres.Debug), *cfg, dimension)
		if err != nil {
			sqldb.Close()
			return nil, err
		}
		return store, nil
	case config.BackendQdrant:
		repo, err := qdrant.New(*cfg, dimension)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown index backend: %s", cfg.Backend)
	}
}

// Open builds the configured backend and ensures the index exists.
func Open(ctx context.Context, cfg *config.IndexConfig, dimension int) (Index, error) {
	index, err := New(cfg, dimension)
	if err != nil {
		return nil, err
	}
	if err := index.Ensure(ctx); err != nil {
		index.Close()
		return nil, fmt.Errorf("ensure index %s: %w", cfg.Name, err)
	}
	return index, nil
}
