package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/harun/recall/internal/observability"
)

// CachedProvider memoizes embeddings by content hash in front of another
// provider. It lives outside the memory manager, which keeps no state.
type CachedProvider struct {
	inner Provider
	cache *ristretto.Cache
}

// NewCachedProvider wraps inner with a cache holding up to size vectors.
func NewCachedProvider(inner Provider, size int64) (*CachedProvider, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner embedding provider is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive")
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        size * 10,
		MaxCost:            size,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &CachedProvider{inner: inner, cache: cache}, nil
}

func (p *CachedProvider) Dimension() int {
	return p.inner.Dimension()
}

func (p *CachedProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := contentHash(text)
	if v, ok := p.cache.Get(key); ok {
		observability.RecordEmbeddingCache(true)
		return clone(v.([]float32)), nil
	}
	observability.RecordEmbeddingCache(false)

	vec, err := p.inner.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, clone(vec), 1)
	return vec, nil
}

func (p *CachedProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing    []string
		missingIdx []int
	)
	for i, text := range texts {
		if v, ok := p.cache.Get(contentHash(text)); ok {
			observability.RecordEmbeddingCache(true)
			out[i] = clone(v.([]float32))
			continue
		}
		observability.RecordEmbeddingCache(false)
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := p.inner.GenerateEmbeddings(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		out[missingIdx[j]] = vec
		p.cache.Set(contentHash(missing[j]), clone(vec), 1)
	}
	return out, nil
}

// Wait blocks until pending cache writes are visible.
func (p *CachedProvider) Wait() {
	p.cache.Wait()
}

// Close releases the cache.
func (p *CachedProvider) Close() {
	p.cache.Close()
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
