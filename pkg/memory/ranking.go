package memory

import (
	"sort"

	"github.com/harun/recall/pkg/similarity"
)

// ScoredMemory pairs a memory with its similarity to a query
type ScoredMemory struct {
	Memory
	Similarity float64
}

// Outranks is the retrieval comparator. a goes before b when it is more than
// tieBand more similar; within the band the more recently accessed wins.
func Outranks(a, b ScoredMemory, tieBand float64) bool {
	diff := a.Similarity - b.Similarity
	if diff > tieBand {
		return true
	}
	if diff < -tieBand {
		return false
	}
	return a.Metadata.LastAccessed.After(b.Metadata.LastAccessed)
}

// InOrder reports whether a may directly precede b in a ranked list.
func InOrder(a, b ScoredMemory, tieBand float64) bool {
	return a.Similarity-b.Similarity > tieBand || !a.Metadata.LastAccessed.Before(b.Metadata.LastAccessed)
}

// Score computes each candidate's similarity to query.
func Score(query []float32, candidates []Memory) []ScoredMemory {
	scored := make([]ScoredMemory, len(candidates))
	for i, c := range candidates {
		scored[i] = ScoredMemory{Memory: c, Similarity: similarity.Cosine(query, c.Embedding)}
	}
	return scored
}

// Rank orders items in place so every adjacent pair satisfies InOrder.
// The banded comparator is not transitive, so a plain sort cannot promise
// that. Items are sorted by similarity first, then adjacent pairs that
// break the recency rule are swapped. Each swap moves a newer memory ahead
// of an older one, so the pass terminates.
func Rank(items []ScoredMemory, tieBand float64) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Similarity > items[j].Similarity
	})

	for swapped := true; swapped; {
		swapped = false
		for i := 0; i+1 < len(items); i++ {
			if !InOrder(items[i], items[i+1], tieBand) {
				items[i], items[i+1] = items[i+1], items[i]
				swapped = true
			}
		}
	}
}

// SortByLastAccessed orders memories newest first.
func SortByLastAccessed(memories []Memory) {
	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].Metadata.LastAccessed.After(memories[j].Metadata.LastAccessed)
	})
}
