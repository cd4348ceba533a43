// Package embedding defines the text-embedding capability the matching
// engine depends on, plus vector similarity helpers. The concrete backend
// is injected; the engine only needs "texts in, fixed-length vectors out".
package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrProviderUnavailable reports that the configured embedding backend
// could not serve a request.
var ErrProviderUnavailable = errors.New("embedding provider unavailable")

// Provider turns texts into fixed-dimension vectors. Embed is
// order-preserving: one vector per input text. batchSize is a hint for
// backends that batch transport calls; values <= 0 mean provider default.
type Provider interface {
	Embed(ctx context.Context, texts []string, batchSize int) ([][]float64, error)
	Dimension() int
}

// Cosine returns the cosine similarity of v1 and v2 in [-1, 1].
// Returns 0 when either vector has zero norm or the lengths differ.
func Cosine(v1, v2 []float64) float64 {
	if len(v1) != len(v2) || len(v1) == 0 {
		return 0
	}
	var dot, n1, n2 float64
	for i := range v1 {
		dot += v1[i] * v2[i]
		n1 += v1[i] * v1[i]
		n2 += v2[i] * v2[i]
	}
	if n1 == 0 || n2 == 0 {
		return 0
	}
	return dot / (math.Sqrt(n1) * math.Sqrt(n2))
}
