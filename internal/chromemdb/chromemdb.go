package chromemdb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-qa/internal/helper"
	"document-qa/internal/models"
)

// metadata keys stored on the collection itself
const (
	collectionDimension = "dimension"
	collectionMetric    = "metric"
	metricCosine        = "cosine"
)

// VectorDBManager keeps index entries in an embedded chromem-go database,
// either in memory or persisted under dbPath.
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	dimension  int
	dbPath     string
}

// NewVectorDBManager opens the database; the collection is created by Ensure
func NewVectorDBManager(dbPath, collectionName string, dimension int, inMemory bool) (*VectorDBManager, error) {
	var db *chromem.DB
	if inMemory {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, err
		}
		var err error
		db, err = chromem.NewPersistentDB(dbPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:        db,
		name:      collectionName,
		dimension: dimension,
		dbPath:    dbPath,
	}, nil
}

// Ensure creates the collection when it does not exist yet. Chromem
// collections are usable as soon as they are created.
func (m *VectorDBManager) Ensure(ctx context.Context) error {
	if _, ok := m.db.ListCollections()[m.name]; !ok {
		log.Info().Str("collection", m.name).Int("dimension", m.dimension).Msg("Creating collection")
	}
	c, err := m.db.GetOrCreateCollection(m.name, map[string]string{
		collectionDimension: fmt.Sprint(m.dimension),
		collectionMetric:    metricCosine,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return nil
}

// Upsert adds or replaces records by id
func (m *VectorDBManager) Upsert(ctx context.Context, records []models.Record) error {
	if m.collection == nil {
		return fmt.Errorf("collection %s is not initialised", m.name)
	}
	if len(records) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Metadata[models.MetaText],
			Metadata:  r.Metadata,
			Embedding: r.Vector,
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Query returns up to topK records ordered by cosine similarity
func (m *VectorDBManager) Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error) {
	if m.collection == nil {
		return nil, fmt.Errorf("collection %s is not initialised", m.name)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}

	// chromem rejects nResults larger than the collection
	n := min(topK, m.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	matches := make([]models.Match, len(results))
	for i, r := range results {
		matches[i] = models.Match{
			ID:       r.ID,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}
	return matches, nil
}

func (m *VectorDBManager) Count() int {
	if m.collection == nil {
		return 0
	}
	return m.collection.Count()
}

// Drop deletes the collection and all of its records. Ensure recreates it.
func (m *VectorDBManager) Drop(ctx context.Context) error {
	if err := m.db.DeleteCollection(m.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	m.collection = nil
	return nil
}

// Close is a no-op, persistent databases write through on every change.
func (m *VectorDBManager) Close() error {
	return nil
}
