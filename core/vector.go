package core

import (
	"fmt"
	"math"
)

// CosineSimilarity computes the cosine similarity between two vectors,
// range [-1,1]. Vectors of different lengths or with zero magnitude yield
// 0 - callers validate dimensions before ranking, this is a last guard.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ValidateEmbedding checks an embedding against the configured dimension.
func ValidateEmbedding(embedding []float32, dimension int) error {
	if len(embedding) != dimension {
		return NewValidationError("embedding",
			fmt.Sprintf("dimension mismatch: got %d, want %d", len(embedding), dimension))
	}
	return nil
}
