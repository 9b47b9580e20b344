// Package vectorstore defines the namespaced nearest-neighbor store the
// memory manager persists into, with chromem, sqlite-vec and pgvector
// backends in sub-packages.
//
// Invariants:
// - Upsert replaces a record with the same id atomically.
// - Query returns at most TopK matches ordered by cosine similarity,
//   restricted to records whose metadata equals every Filter entry.
// - Metadata values round-trip as JSON values (string, float64, bool,
//   []any, map[string]any).
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrDimensionMismatch is returned when a vector has the wrong width
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidTopK is returned for a non-positive TopK
	ErrInvalidTopK = errors.New("topK must be positive")
)

// Record is one stored vector with its payload
type Record struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]any
}

// Match is a query hit
type Match struct {
	Record
	Score float64 // cosine similarity
}

// Filter is a conjunction of metadata equality predicates
type Filter map[string]any

// QueryRequest describes a top-K similarity query
type QueryRequest struct {
	Vector        []float32
	TopK          int
	Filter        Filter
	IncludeVector bool
}

// Store is a namespaced vector store
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Delete(ctx context.Context, ids []string) error
	// Fetch returns the records that exist among ids, in no particular order
	Fetch(ctx context.Context, ids []string) ([]Record, error)
	Query(ctx context.Context, req QueryRequest) ([]Match, error)
	Dimension() int
	Close() error
}

// Validate checks a record against the store dimension.
func Validate(r Record, dim int) error {
	if r.ID == "" {
		return errors.New("record id is required")
	}
	if len(r.Vector) != dim {
		return fmt.Errorf("%w: record %s has %d, store has %d", ErrDimensionMismatch, r.ID, len(r.Vector), dim)
	}
	return nil
}

// ValidateQuery checks a query against the store dimension.
func ValidateQuery(req QueryRequest, dim int) error {
	if req.TopK <= 0 {
		return ErrInvalidTopK
	}
	if len(req.Vector) != dim {
		return fmt.Errorf("%w: query has %d, store has %d", ErrDimensionMismatch, len(req.Vector), dim)
	}
	return nil
}

// Normalize converts metadata into its JSON value form so every backend
// compares and returns the same types.
func Normalize(m map[string]any) (map[string]any, error) {
	if m == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return out, nil
}

// Matches reports whether metadata satisfies every predicate of f.
// Values are compared in JSON value form, so 1 and 1.0 are equal.
func (f Filter) Matches(metadata map[string]any) bool {
	if len(f) == 0 {
		return true
	}
	want, err := Normalize(f)
	if err != nil {
		return false
	}
	for k, v := range want {
		got, ok := metadata[k]
		if !ok || !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}
