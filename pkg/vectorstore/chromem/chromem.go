// Package chromem implements vectorstore.Store on chromem-go, an embedded
// pure Go vector database. It needs no server and is the default backend.
package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"github.com/harun/recall/pkg/vectorstore"
)

// Config holds chromem store configuration
type Config struct {
	Namespace string
	Dimension int
	Path      string // persistence directory, empty keeps everything in memory
	Compress  bool
}

// Store wraps one chromem collection per namespace
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimension  int
}

var _ vectorstore.Store = (*Store)(nil)

// New opens or creates the namespace collection
func New(cfg Config) (*Store, error) {
	if cfg.Namespace == "" {
		return nil, errors.New("namespace is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("dimension must be positive")
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path != "" {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	// Embeddings are always supplied, so no embedding func is configured.
	col, err := db.GetOrCreateCollection(cfg.Namespace, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", cfg.Namespace, err)
	}

	return &Store{db: db, collection: col, dimension: cfg.Dimension}, nil
}

func (s *Store) Dimension() int {
	return s.dimension
}

// Count returns the number of records in the namespace
func (s *Store) Count() int {
	return s.collection.Count()
}

func (s *Store) Upsert(ctx context.Context, records []vectorstore.Record) error {
	for _, r := range records {
		if err := vectorstore.Validate(r, s.dimension); err != nil {
			return err
		}
		metadata, err := encodeMetadata(r.Metadata)
		if err != nil {
			return err
		}
		doc := chromem.Document{
			ID:        r.ID,
			Metadata:  metadata,
			Embedding: r.Vector,
			Content:   r.Content,
		}
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", r.ID, err)
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, ids []string) error {
	existing, err := s.Fetch(ctx, ids)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}

	present := make([]string, 0, len(existing))
	for _, r := range existing {
		present = append(present, r.ID)
	}
	if err := s.collection.Delete(ctx, nil, nil, present...); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

func (s *Store) Fetch(ctx context.Context, ids []string) ([]vectorstore.Record, error) {
	records := make([]vectorstore.Record, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		doc, err := s.collection.GetByID(ctx, id)
		if err != nil {
			if strings.Contains(err.Error(), "not found") {
				continue
			}
			return nil, fmt.Errorf("failed to fetch %s: %w", id, err)
		}
		metadata, err := decodeMetadata(doc.Metadata)
		if err != nil {
			return nil, err
		}
		records = append(records, vectorstore.Record{
			ID:       doc.ID,
			Vector:   doc.Embedding,
			Content:  doc.Content,
			Metadata: metadata,
		})
	}
	return records, nil
}

func (s *Store) Query(ctx context.Context, req vectorstore.QueryRequest) ([]vectorstore.Match, error) {
	if err := vectorstore.ValidateQuery(req, s.dimension); err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection.
	n := req.TopK
	if count := s.collection.Count(); count == 0 {
		return []vectorstore.Match{}, nil
	} else if n > count {
		n = count
	}

	where, err := encodeMetadata(req.Filter)
	if err != nil {
		return nil, err
	}
	if len(where) == 0 {
		where = nil
	}

	results, err := s.collection.QueryEmbedding(ctx, req.Vector, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]vectorstore.Match, 0, len(results))
	for _, res := range results {
		metadata, err := decodeMetadata(res.Metadata)
		if err != nil {
			return nil, err
		}
		m := vectorstore.Match{
			Record: vectorstore.Record{
				ID:       res.ID,
				Content:  res.Content,
				Metadata: metadata,
			},
			Score: float64(res.Similarity),
		}
		if req.IncludeVector {
			m.Vector = res.Embedding
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Close is a no-op; persistent databases write through on every change.
func (s *Store) Close() error {
	return nil
}

// encodeMetadata stores each value as its JSON text, the only way to keep
// types through chromem's string-only metadata and where clauses.
func encodeMetadata(m map[string]any) (map[string]string, error) {
	normalized, err := vectorstore.Normalize(m)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(normalized))
	for k, v := range normalized {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata %s: %w", k, err)
		}
		out[k] = string(raw)
	}
	return out, nil
}

func decodeMetadata(m map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, raw := range m {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("failed to decode metadata %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
