// Package sqlitevec implements vectorstore.Store on SQLite with the
// sqlite-vec extension. Records live in a plain table; vectors live in a
// vec0 virtual table and are ranked with vec_distance_cosine.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/harun/recall/pkg/vectorstore"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// Config holds sqlite store configuration
type Config struct {
	DBPath    string
	Namespace string
	Dimension int
	Logger    zerolog.Logger
}

// Store is a sqlite-vec backed vector store
type Store struct {
	db        *sql.DB
	namespace string
	dimension int
	logger    zerolog.Logger
}

var _ vectorstore.Store = (*Store)(nil)

// New opens the database and creates the schema
func New(cfg Config) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if cfg.Namespace == "" {
		return nil, errors.New("namespace is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("dimension must be positive")
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:        db,
		namespace: cfg.Namespace,
		dimension: cfg.Dimension,
		logger:    cfg.Logger,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Debug().Str("path", cfg.DBPath).Str("namespace", cfg.Namespace).Msg("sqlite-vec store opened")
	return s, nil
}

// initSchema creates database tables
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			namespace TEXT NOT NULL,
			id TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, id)
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	vectorSchema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(
			record_key TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, s.dimension)
	if _, err := s.db.Exec(vectorSchema); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}
	return nil
}

func (s *Store) Dimension() int {
	return s.dimension
}

func (s *Store) key(id string) string {
	return s.namespace + "/" + id
}

func (s *Store) Upsert(ctx context.Context, records []vectorstore.Record) error {
	for _, r := range records {
		if err := vectorstore.Validate(r, s.dimension); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for _, r := range records {
		metadata, err := json.Marshal(orEmpty(r.Metadata))
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", r.ID, err)
		}
		blob, err := sqlite_vec.SerializeFloat32(r.Vector)
		if err != nil {
			return fmt.Errorf("failed to serialize vector for %s: %w", r.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (namespace, id, content, metadata, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (namespace, id) DO UPDATE SET content = excluded.content, metadata = excluded.metadata, updated_at = excluded.updated_at`,
			s.namespace, r.ID, r.Content, string(metadata), now,
		); err != nil {
			return fmt.Errorf("failed to store record %s: %w", r.ID, err)
		}

		// vec0 has no upsert, so replace by delete and insert.
		if _, err := tx.ExecContext(ctx, "DELETE FROM vectors WHERE record_key = ?", s.key(r.ID)); err != nil {
			return fmt.Errorf("failed to replace vector for %s: %w", r.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO vectors (record_key, embedding) VALUES (?, ?)", s.key(r.ID), blob); err != nil {
			return fmt.Errorf("failed to store vector for %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE namespace = ? AND id = ?", s.namespace, id); err != nil {
			return fmt.Errorf("failed to delete record %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM vectors WHERE record_key = ?", s.key(id)); err != nil {
			return fmt.Errorf("failed to delete vector %s: %w", id, err)
		}
	}

	return tx.Commit()
}

func (s *Store) Fetch(ctx context.Context, ids []string) ([]vectorstore.Record, error) {
	if len(ids) == 0 {
		return []vectorstore.Record{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, s.namespace)
	for _, id := range ids {
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT r.id, r.content, r.metadata, vec_to_json(v.embedding)
		FROM records r
		JOIN vectors v ON v.record_key = r.namespace || '/' || r.id
		WHERE r.namespace = ? AND r.id IN (%s)
	`, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}
	defer rows.Close()

	records := []vectorstore.Record{}
	for rows.Next() {
		var r vectorstore.Record
		var metadata, vector string
		if err := rows.Scan(&r.ID, &r.Content, &metadata, &vector); err != nil {
			return nil, err
		}
		if err := decode(&r, metadata, vector); err != nil {
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

	blob, err := sqlite_vec.SerializeFloat32(req.Vector)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize query vector: %w", err)
	}

	where, filterArgs, err := filterClause(req.Filter)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			r.id, r.content, r.metadata, vec_to_json(v.embedding),
			vec_distance_cosine(v.embedding, ?) AS distance
		FROM records r
		JOIN vectors v ON v.record_key = r.namespace || '/' || r.id
		WHERE r.namespace = ?` + where + `
		ORDER BY distance ASC
		LIMIT ?
	`
	args := append([]any{blob, s.namespace}, filterArgs...)
	args = append(args, req.TopK)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer rows.Close()

	matches := []vectorstore.Match{}
	for rows.Next() {
		var m vectorstore.Match
		var metadata, vector string
		var distance float64
		if err := rows.Scan(&m.ID, &m.Content, &metadata, &vector, &distance); err != nil {
			return nil, err
		}
		if err := decode(&m.Record, metadata, vector); err != nil {
			return nil, err
		}
		if !req.IncludeVector {
			m.Vector = nil
		}
		// Cosine distance is 1 - similarity.
		m.Score = 1.0 - distance
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// filterClause renders equality predicates over the JSON metadata column.
// Keys are sorted so the SQL text is stable.
func filterClause(f vectorstore.Filter) (string, []any, error) {
	if len(f) == 0 {
		return "", nil, nil
	}
	normalized, err := vectorstore.Normalize(f)
	if err != nil {
		return "", nil, err
	}

	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		if strings.ContainsAny(k, `"\`) {
			return "", nil, fmt.Errorf("invalid filter key %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	args := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		path := `$."` + k + `"`
		switch v := normalized[k].(type) {
		case bool:
			// json_extract yields 1 and 0 for JSON booleans.
			b.WriteString(" AND json_extract(r.metadata, ?) = ?")
			if v {
				args = append(args, path, 1)
			} else {
				args = append(args, path, 0)
			}
		case string, float64:
			b.WriteString(" AND json_extract(r.metadata, ?) = ?")
			args = append(args, path, v)
		case nil:
			b.WriteString(" AND json_type(r.metadata, ?) = 'null'")
			args = append(args, path)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return "", nil, err
			}
			b.WriteString(" AND json_extract(r.metadata, ?) = json(?)")
			args = append(args, path, string(raw))
		}
	}
	return b.String(), args, nil
}

func decode(r *vectorstore.Record, metadata, vector string) error {
	r.Metadata = map[string]any{}
	if err := json.Unmarshal([]byte(metadata), &r.Metadata); err != nil {
		return fmt.Errorf("failed to decode metadata for %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(vector), &r.Vector); err != nil {
		return fmt.Errorf("failed to decode vector for %s: %w", r.ID, err)
	}
	return nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
