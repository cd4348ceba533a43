package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
)

// FallbackDimension matches the dimension of the default production model
// so fallback-built indexes stay loadable when a real backend is attached.
const FallbackDimension = 384

// Fallback derives deterministic pseudo-random unit vectors seeded by the
// input text, so the same text maps to the same vector across runs and
// processes. It carries no semantic signal and is unsuitable for
// production-quality matching; it exists to keep the pipeline total and
// testable when no real backend is configured.
type Fallback struct {
	dim int
}

// NewFallback creates a fallback provider at FallbackDimension.
func NewFallback() *Fallback { return &Fallback{dim: FallbackDimension} }

// NewFallbackDim creates a fallback provider at an explicit dimension.
func NewFallbackDim(dim int) *Fallback {
	if dim <= 0 {
		dim = FallbackDimension
	}
	return &Fallback{dim: dim}
}

// Dimension implements Provider.
func (f *Fallback) Dimension() int { return f.dim }

// Embed implements Provider. It never fails.
func (f *Fallback) Embed(_ context.Context, texts []string, _ int) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = f.vector(text)
	}
	return out, nil
}

// vector builds a normalized vector from a text-seeded RNG. FNV-1a gives a
// stable seed, unlike runtime map hashing.
func (f *Fallback) vector(text string) []float64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	v := make([]float64, f.dim)
	var sq float64
	for i := range v {
		v[i] = rng.NormFloat64()
		sq += v[i] * v[i]
	}
	norm := math.Sqrt(sq)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] /= norm
	}
	return v
}
