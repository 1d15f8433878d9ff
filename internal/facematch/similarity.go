// Package facematch holds the embedding and name primitives used for identity matching.
package facematch

import "math"

// CosineSimilarity computes the cosine similarity between two embedding vectors.
// Returns a value between -1 and 1, where 1 means identical direction.
// Mismatched or empty lengths and zero magnitudes yield 0; callers that must
// distinguish those cases check SameDimension first.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / math.Sqrt(normA*normB)
	// Rounding can push parallel vectors slightly past the bounds.
	return max(-1, min(1, sim))
}

// SameDimension reports whether both embeddings are non-empty and of equal length.
func SameDimension(a, b []float32) bool {
	return len(a) > 0 && len(a) == len(b)
}

// RunningAverage folds a new embedding into a running average as (avg + next) / 2.
// An empty average is replaced by a copy of next. The inputs are not modified.
func RunningAverage(avg, next []float32) []float32 {
	if len(avg) == 0 {
		out := make([]float32, len(next))
		copy(out, next)
		return out
	}
	out := make([]float32, len(avg))
	for i := range avg {
		out[i] = (avg[i] + next[i]) / 2
	}
	return out
}
