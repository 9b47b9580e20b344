// Package pgvector implements vectorstore.Store on Postgres with the
// pgvector extension. Metadata is stored as jsonb and filtered with
// containment, which is exactly metadata equality for scalar values.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/harun/recall/pkg/vectorstore"
)

// Config holds Postgres store configuration
type Config struct {
	DSN       string
	Namespace string
	Dimension int
}

// Store is a pgvector backed vector store
type Store struct {
	pool      *pgxpool.Pool
	namespace string
	dimension int
}

var _ vectorstore.Store = (*Store)(nil)

// New connects to Postgres and ensures the schema exists
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}
	if cfg.Namespace == "" {
		return nil, errors.New("namespace is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("dimension must be positive")
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	s := &Store{pool: pool, namespace: cfg.Namespace, dimension: cfg.Dimension}
	if err := s.createSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS memory_vectors (
			namespace TEXT NOT NULL,
			id TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (namespace, id)
		);

		CREATE INDEX IF NOT EXISTS memory_vectors_metadata_idx ON memory_vectors USING gin (metadata);
	`, s.dimension)

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (s *Store) Dimension() int {
	return s.dimension
}

func (s *Store) Upsert(ctx context.Context, records []vectorstore.Record) error {
	for _, r := range records {
		if err := vectorstore.Validate(r, s.dimension); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		metadata := r.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", r.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO memory_vectors (namespace, id, content, metadata, embedding, updated_at)
			VALUES ($1, $2, $3, $4::jsonb, $5, NOW())
			ON CONFLICT (namespace, id) DO UPDATE
			SET content = EXCLUDED.content, metadata = EXCLUDED.metadata,
			    embedding = EXCLUDED.embedding, updated_at = NOW()
		`, s.namespace, r.ID, r.Content, string(raw), pgvector.NewVector(r.Vector))
		if err != nil {
			return fmt.Errorf("failed to upsert %s: %w", r.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM memory_vectors WHERE namespace = $1 AND id = ANY($2)`, s.namespace, ids)
	if err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

func (s *Store) Fetch(ctx context.Context, ids []string) ([]vectorstore.Record, error) {
	if len(ids) == 0 {
		return []vectorstore.Record{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, content, metadata::text, embedding::text
		FROM memory_vectors
		WHERE namespace = $1 AND id = ANY($2)
	`, s.namespace, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}
	defer rows.Close()

	records := []vectorstore.Record{}
	for rows.Next() {
		var r vectorstore.Record
		var metadata, embedding string
		if err := rows.Scan(&r.ID, &r.Content, &metadata, &embedding); err != nil {
			return nil, err
		}
		if err := decode(&r, metadata, embedding); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) Query(ctx context.Context, req vectorstore.QueryRequest) ([]vectorstore.Match, error) {
	if err := vectorstore.ValidateQuery(req, s.dimension); err != nil {
		return nil, err
	}

	filter, err := json.Marshal(orEmpty(req.Filter))
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, content, metadata::text, embedding::text, 1 - (embedding <=> $1) AS score
		FROM memory_vectors
		WHERE namespace = $2 AND metadata @> $3::jsonb
		ORDER BY embedding <=> $1
		LIMIT $4
	`, pgvector.NewVector(req.Vector), s.namespace, string(filter), req.TopK)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer rows.Close()

	matches := []vectorstore.Match{}
	for rows.Next() {
		var m vectorstore.Match
		var metadata, embedding string
		if err := rows.Scan(&m.ID, &m.Content, &metadata, &embedding, &m.Score); err != nil {
			return nil, err
		}
		if err := decode(&m.Record, metadata, embedding); err != nil {
			return nil, err
		}
		if !req.IncludeVector {
			m.Vector = nil
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Close releases the connection pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func decode(r *vectorstore.Record, metadata, embedding string) error {
	r.Metadata = map[string]any{}
	if err := json.Unmarshal([]byte(metadata), &r.Metadata); err != nil {
		return fmt.Errorf("failed to decode metadata for %s: %w", r.ID, err)
	}
	var vec pgvector.Vector
	if err := vec.Parse(embedding); err != nil {
		return fmt.Errorf("failed to decode vector for %s: %w", r.ID, err)
	}
	r.Vector = vec.Slice()
	return nil
}

func orEmpty(f vectorstore.Filter) map[string]any {
	if f == nil {
		return map[string]any{}
	}
	return f
}
