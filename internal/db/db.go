package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/models"
)

// Document is one row of the index table.
type Document struct {
	bun.BaseModel `bun:"alias:d"`
	ID            string            `bun:"id,pk"`
	Content       string            `bun:"content,notnull"`
	Embedding     pgvector.Vector   `bun:"embedding,notnull"`
	Metadata      map[string]string `bun:"metadata,type:jsonb"`
	Score         float32           `bun:"score,scanonly"`
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store keeps index entries in a Postgres table with a pgvector column, e.g. on Supabase.
type Store struct {
	db        *bun.DB
	table     string
	dimension int
	cfg       config.IndexConfig
}

// ConnectDB opens a connection pool using the configured driver
func ConnectDB(cfg *config.PostgresConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverPq:
		return sql.Open("postgres", cfg.DSN)
	case config.DriverPgdriver, "":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
	default:
		return nil, fmt.Errorf("unknown postgres driver: %s", cfg.Driver)
	}
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// NewStore wraps db; the index name doubles as the table name.
func NewStore(db *bun.DB, cfg config.IndexConfig, dimension int) (*Store, error) {
	if !tableNameRe.MatchString(cfg.Name) {
		return nil, fmt.Errorf("index name %q is not a valid table name", cfg.Name)
	}
	return &Store{db: db, table: cfg.Name, dimension: dimension, cfg: cfg}, nil
}

// Ensure waits for the database, then creates the vector extension, the
// table and a cosine HNSW index when they are missing.
func (s *Store) Ensure(ctx context.Context) error {
	err := helper.WaitUntil(ctx, "postgres", s.cfg.ReadyInterval, s.cfg.ReadyTimeout, func(ctx context.Context) (bool, error) {
		if err := s.db.PingContext(ctx); err != nil {
			log.Debug().Err(err).Msg("Postgres not reachable yet")
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	exists, err := s.tableExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	log.Info().Str("table", s.table).Int("dimension", s.dimension).Msg("Creating vector table")
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			id text PRIMARY KEY,
			content text NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata jsonb
		)`, s.table, s.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q USING hnsw (embedding vector_cosine_ops)`, s.table+"_embedding_idx", s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init table %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *Store) tableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.NewRaw("SELECT to_regclass(?) IS NOT NULL", fmt.Sprintf("%q", s.table)).Scan(ctx, &exists)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", s.table, err)
	}
	return exists, nil
}

// Upsert writes all records in a single statement, replacing rows with the same id
func (s *Store) Upsert(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]Document, len(records))
	for i, r := range records {
		docs[i] = Document{
			ID:        r.ID,
			Content:   r.Metadata[models.MetaText],
			Embedding: pgvector.NewVector(r.Vector),
			Metadata:  r.Metadata,
		}
	}
	_, err := s.db.NewInsert().
		Model(&docs).
		ModelTableExpr("?", bun.Ident(s.table)).
		On("CONFLICT (id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("embedding = EXCLUDED.embedding").
		Set("metadata = EXCLUDED.metadata").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", s.table, err)
	}
	return nil
}

// Query returns the topK nearest rows by cosine distance
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error) {
	q := pgvector.NewVector(vector)
	var docs []Document
	err := s.db.NewSelect().
		Model(&docs).
		ModelTableExpr("? AS d", bun.Ident(s.table)).
		Column("id", "content", "metadata").
		ColumnExpr("1 - (embedding <=> ?) AS score", q).
		OrderExpr("embedding <=> ?", q).
		Limit(topK).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.table, err)
	}

	matches := make([]models.Match, len(docs))
	for i, d := range docs {
		meta := d.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		matches[i] = models.Match{ID: d.ID, Score: d.Score, Metadata: meta}
	}
	return matches, nil
}

// Drop removes the index table. Ensure recreates it.
func (s *Store) Drop(ctx context.Context) error {
	_, err := s.db.NewDropTable().Table(s.table).IfExists().Exec(ctx)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
