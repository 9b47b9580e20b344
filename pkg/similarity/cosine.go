// Package similarity holds the vector math shared by the memory manager and
// the vector store backends. Everything here is pure and allocation-light.
package similarity

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Vectors of different length, empty vectors and zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp float drift so callers can rely on the documented range.
	return math.Max(-1, math.Min(1, sim))
}

// Normalize returns a unit-length copy of v. A zero vector is returned as a
// zero-valued copy.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Uniform returns a unit vector of the given dimension with every component
// equal. It is used as a neutral query when a query has no text to embed.
func Uniform(dim int) []float32 {
	if dim <= 0 {
		return nil
	}
	v := make([]float32, dim)
	c := float32(1 / math.Sqrt(float64(dim)))
	for i := range v {
		v[i] = c
	}
	return v
}
