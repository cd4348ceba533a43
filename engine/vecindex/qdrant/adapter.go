package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PathwaysAI/pathways-mvp/engine/vecindex"
)

// DefaultCallTimeout bounds each remote call made through the Adapter.
const DefaultCallTimeout = 10 * time.Second

// remoteStore is the slice of Store the Adapter depends on.
type remoteStore interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, vector []float64, topK int, threshold *float64, filters map[string]string) ([]Hit, error)
	DropCollection(ctx context.Context) error
	EnsureCollection(ctx context.Context, dim int) error
}

// Adapter exposes a Store through the same synchronous surface as the
// in-memory index, so the recommender and the API handlers can switch
// backends without knowing which one is wired. Size counts the records
// written through this process, which is what the empty-corpus check needs.
type Adapter struct {
	store   remoteStore
	dim     int
	timeout time.Duration
	logger  *slog.Logger

	mu  sync.Mutex
	ids map[string]struct{}
}

// NewAdapter wraps a connected Store. The collection must already exist
// (EnsureCollection) with the given dimension.
func NewAdapter(store *Store, dim int, logger *slog.Logger) *Adapter {
	return newAdapter(store, dim, logger)
}

func newAdapter(store remoteStore, dim int, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		store:   store,
		dim:     dim,
		timeout: DefaultCallTimeout,
		logger:  logger,
		ids:     make(map[string]struct{}),
	}
}

// Dimension returns the vector dimension of the backing collection.
func (a *Adapter) Dimension() int { return a.dim }

// Size returns the number of distinct record ids written through this
// adapter since construction or the last Clear.
func (a *Adapter) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ids)
}

// Insert upserts one record. An empty id is assigned a random UUID.
func (a *Adapter) Insert(vector []float64, meta vecindex.Metadata, id string) (string, error) {
	ids, err := a.InsertBatch([][]float64{vector}, []vecindex.Metadata{meta}, []string{id})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// InsertBatch upserts records element-wise in a single remote call. ids may
// be nil; otherwise all three slices must have equal length or the call
// fails with ErrArityMismatch before anything is written.
func (a *Adapter) InsertBatch(vectors [][]float64, metas []vecindex.Metadata, ids []string) ([]string, error) {
	if len(metas) != len(vectors) {
		return nil, fmt.Errorf("qdrant: insert batch: %w: %d vectors, %d metadata", vecindex.ErrArityMismatch, len(vectors), len(metas))
	}
	if ids != nil && len(ids) != len(vectors) {
		return nil, fmt.Errorf("qdrant: insert batch: %w: %d vectors, %d ids", vecindex.ErrArityMismatch, len(vectors), len(ids))
	}

	records := make([]Record, len(vectors))
	out := make([]string, len(vectors))
	for i, v := range vectors {
		if len(v) != a.dim {
			return nil, fmt.Errorf("qdrant: insert batch [%d]: %w: got %d, want %d", i, vecindex.ErrDimensionMismatch, len(v), a.dim)
		}
		id := ""
		if ids != nil {
			id = ids[i]
		}
		if id == "" {
			id = uuid.NewString()
		}
		records[i] = Record{ID: id, Vector: v, Payload: metas[i]}
		out[i] = id
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.store.Upsert(ctx, records); err != nil {
		return nil, err
	}

	a.mu.Lock()
	for _, id := range out {
		a.ids[id] = struct{}{}
	}
	a.mu.Unlock()
	return out, nil
}

// Search runs k-NN search on the collection. Only string-valued filter
// entries translate to payload keyword matches; other values are rendered
// with fmt.Sprint, matching how they were stored.
func (a *Adapter) Search(query []float64, topK int, opts vecindex.SearchOpts) ([]vecindex.Hit, error) {
	if len(query) != a.dim {
		return nil, fmt.Errorf("qdrant: search: %w: got %d, want %d", vecindex.ErrDimensionMismatch, len(query), a.dim)
	}
	if topK <= 0 {
		return nil, nil
	}

	var filters map[string]string
	if len(opts.Filter) > 0 {
		filters = make(map[string]string, len(opts.Filter))
		for k, v := range opts.Filter {
			if s, ok := v.(string); ok {
				filters[k] = s
			} else {
				filters[k] = fmt.Sprint(v)
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	remote, err := a.store.Search(ctx, query, topK, opts.Threshold, filters)
	if err != nil {
		return nil, err
	}

	hits := make([]vecindex.Hit, len(remote))
	for i, h := range remote {
		hits[i] = vecindex.Hit{
			ID:         h.ID,
			Similarity: h.Score,
			Meta:       vecindex.Metadata(h.Payload),
		}
	}
	return hits, nil
}

// Clear drops and recreates the collection. Remote failures are logged;
// retraining proceeds against whatever state the collection is in.
func (a *Adapter) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.store.DropCollection(ctx); err != nil {
		a.logger.Error("drop collection failed", "err", err)
	}
	if err := a.store.EnsureCollection(ctx, a.dim); err != nil {
		a.logger.Error("recreate collection failed", "err", err)
	}

	a.mu.Lock()
	a.ids = make(map[string]struct{})
	a.mu.Unlock()
}
