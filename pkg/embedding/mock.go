package embedding

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/harun/recall/pkg/similarity"
)

// MockProvider generates deterministic unit vectors from a text hash. Fixed
// vectors can be pinned per text so tests control similarity exactly.
type MockProvider struct {
	dimension int

	mu     sync.Mutex
	pinned map[string][]float32
	calls  int
	err    error
}

// NewMockProvider creates a mock provider of the given width.
func NewMockProvider(dimension int) *MockProvider {
	return &MockProvider{
		dimension: dimension,
		pinned:    make(map[string][]float32),
	}
}

func (p *MockProvider) Dimension() int {
	return p.dimension
}

// Pin makes text embed to vec (normalized, padded or cut to the dimension).
func (p *MockProvider) Pin(text string, vec []float32) {
	v := make([]float32, p.dimension)
	copy(v, vec)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pinned[text] = similarity.Normalize(v)
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (p *MockProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Calls reports how many texts have been embedded.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *MockProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if v, ok := p.pinned[text]; ok {
		return clone(v), nil
	}
	return p.hashVector(text), nil
}

func (p *MockProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := p.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// hashVector seeds a linear congruential generator with the FNV hash of
// text, so unrelated texts land near-orthogonal in high dimensions.
func (p *MockProvider) hashVector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	v := make([]float32, p.dimension)
	for i := range v {
		state = state*6364136223846793005 + 1442695040888963407
		v[i] = float32(int64(state>>33)%2001-1000) / 1000
	}
	return similarity.Normalize(v)
}
