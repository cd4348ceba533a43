package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PathwaysAI/pathways-mvp/pkg/resilience"
)

// Guard is the provider handed to the engine. Its mode is declared at
// construction: with a primary backend, failures surface as
// ErrProviderUnavailable (fail the request, never silently degrade); with
// no primary, the deterministic fallback serves every call. A circuit
// breaker around the primary sheds load once the backend is known-bad.
type Guard struct {
	primary  Provider
	fallback *Fallback
	breaker  *resilience.Breaker
	logger   *slog.Logger
}

// NewGuard builds a Guard. primary may be nil, which declares
// fallback-only mode.
func NewGuard(primary Provider, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{primary: primary, logger: logger}
	if primary == nil {
		g.fallback = NewFallback()
		logger.Warn("embedding guard in fallback-only mode; vectors carry no semantic signal")
	} else {
		g.breaker = resilience.NewBreaker(resilience.DefaultBreakerOpts)
	}
	return g
}

// FallbackOnly reports whether the guard was declared without a real backend.
func (g *Guard) FallbackOnly() bool { return g.primary == nil }

// Dimension implements Provider.
func (g *Guard) Dimension() int {
	if g.primary != nil {
		return g.primary.Dimension()
	}
	return g.fallback.Dimension()
}

// Embed implements Provider.
func (g *Guard) Embed(ctx context.Context, texts []string, batchSize int) ([][]float64, error) {
	if g.primary == nil {
		return g.fallback.Embed(ctx, texts, batchSize)
	}

	var vectors [][]float64
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var embedErr error
		vectors, embedErr = g.primary.Embed(ctx, texts, batchSize)
		return embedErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return vectors, nil
}
