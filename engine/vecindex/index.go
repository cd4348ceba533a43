// Package vecindex implements an exact, in-memory vector index with
// thresholded, filtered top-k cosine search and JSON persistence. The scan
// is brute force and suitable for corpora up to roughly a million vectors;
// the qdrant subpackage is the swap-in point beyond that.
package vecindex

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/PathwaysAI/pathways-mvp/engine/embedding"
)

// Sentinel errors surfaced by index operations.
var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrArityMismatch     = errors.New("batch arity mismatch")
	ErrCorruptStore      = errors.New("corrupt vector store")
)

// Metadata is the open key-value bag attached to each record. Any key may
// be absent; the typed accessors preserve that distinction.
type Metadata map[string]any

// Str returns the value for key as a string, reporting presence.
func (m Metadata) Str(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float returns the value for key as a float64, reporting presence.
// Integer values are widened; JSON round-trips decode numbers as float64.
func (m Metadata) Float(key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func (m Metadata) clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Hit is a single search result.
type Hit struct {
	ID         string   `json:"id"`
	Similarity float64  `json:"similarity"`
	Meta       Metadata `json:"metadata"`
}

// SearchOpts are the optional search constraints. Threshold discards
// records below the given similarity before ranking; Filter is an equality
// predicate over metadata keys applied after thresholding.
type SearchOpts struct {
	Threshold *float64
	Filter    map[string]any
}

// Index is the exact in-memory vector index. It is safe for concurrent
// readers; mutations take the write lock so readers never observe the
// vector and metadata slices out of sync.
type Index struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float64
	meta    []Metadata
	idToPos map[string]int
	nextID  int // monotonic counter for generated vec_<n> ids
}

// NewIndex creates an empty index for vectors of the given dimension.
func NewIndex(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vecindex: %w: dimension %d", ErrDimensionMismatch, dim)
	}
	return &Index{dim: dim, idToPos: make(map[string]int)}, nil
}

// Dimension returns the configured vector dimension.
func (x *Index) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// Size returns the number of stored records.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.meta)
}

// Insert stores a record. An empty id allocates a generated vec_<n> id; an
// existing id replaces that record's vector and metadata in place. The
// index owns copies of both, never the caller's slices.
func (x *Index) Insert(vector []float64, meta Metadata, id string) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.insertLocked(vector, meta, id)
}

func (x *Index) insertLocked(vector []float64, meta Metadata, id string) (string, error) {
	if len(vector) != x.dim {
		return "", fmt.Errorf("vecindex: insert %q: %w: got %d, want %d", id, ErrDimensionMismatch, len(vector), x.dim)
	}

	if id == "" {
		id = "vec_" + strconv.Itoa(x.nextID)
		x.nextID++
	}

	vcopy := make([]float64, len(vector))
	copy(vcopy, vector)
	mcopy := meta.clone()

	if pos, ok := x.idToPos[id]; ok {
		x.vectors[pos] = vcopy
		x.meta[pos] = mcopy
		return id, nil
	}

	x.vectors = append(x.vectors, vcopy)
	x.meta = append(x.meta, mcopy)
	x.idToPos[id] = len(x.meta) - 1
	return id, nil
}

// InsertBatch stores records element-wise. ids may be nil; otherwise all
// three slices must have equal length or the call fails with ErrArityMismatch
// before any record is written.
func (x *Index) InsertBatch(vectors [][]float64, metas []Metadata, ids []string) ([]string, error) {
	if len(metas) != len(vectors) {
		return nil, fmt.Errorf("vecindex: insert batch: %w: %d vectors, %d metadata", ErrArityMismatch, len(vectors), len(metas))
	}
	if ids != nil && len(ids) != len(vectors) {
		return nil, fmt.Errorf("vecindex: insert batch: %w: %d vectors, %d ids", ErrArityMismatch, len(vectors), len(ids))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	// Validate dimensions up front, under the same lock the writes take, so
	// a mid-batch failure can't leave a partial write behind and the check
	// can't race a concurrent Load rewriting the dimension.
	for i, v := range vectors {
		if len(v) != x.dim {
			return nil, fmt.Errorf("vecindex: insert batch [%d]: %w: got %d, want %d", i, ErrDimensionMismatch, len(v), x.dim)
		}
	}

	out := make([]string, len(vectors))
	for i, v := range vectors {
		id := ""
		if ids != nil {
			id = ids[i]
		}
		assigned, err := x.insertLocked(v, metas[i], id)
		if err != nil {
			return nil, err
		}
		out[i] = assigned
	}
	return out, nil
}

// Search scans every stored vector and returns at most topK hits ordered by
// cosine similarity descending, ties broken by insertion order. An empty
// index yields an empty result; topK <= 0 yields an empty result.
func (x *Index) Search(query []float64, topK int, opts SearchOpts) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(query) != x.dim {
		return nil, fmt.Errorf("vecindex: search: %w: query has %d, want %d", ErrDimensionMismatch, len(query), x.dim)
	}
	if topK <= 0 || len(x.meta) == 0 {
		return []Hit{}, nil
	}

	cands := make([]candidate, 0, len(x.meta))
	for pos, vec := range x.vectors {
		sim := embedding.Cosine(query, vec)
		if opts.Threshold != nil && sim < *opts.Threshold {
			continue
		}
		if !matchesFilter(x.meta[pos], opts.Filter) {
			continue
		}
		cands = append(cands, candidate{pos: pos, sim: sim})
	}

	top := selectTop(cands, topK)

	posToID := make(map[int]string, len(x.idToPos))
	for id, pos := range x.idToPos {
		posToID[pos] = id
	}

	hits := make([]Hit, len(top))
	for i, c := range top {
		hits[i] = Hit{
			ID:         posToID[c.pos],
			Similarity: c.sim,
			Meta:       x.meta[c.pos].clone(),
		}
	}
	return hits, nil
}

func matchesFilter(meta Metadata, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := meta[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Get returns copies of the vector and metadata for id, or ok=false.
func (x *Index) Get(id string) ([]float64, Metadata, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	pos, ok := x.idToPos[id]
	if !ok {
		return nil, nil, false
	}
	vec := make([]float64, x.dim)
	copy(vec, x.vectors[pos])
	return vec, x.meta[pos].clone(), true
}

// Delete removes a record, returning true if it existed. Positions of all
// later records shift down by one and the id mapping is rewritten to match,
// so repeated insert/delete cycles never leave stale or duplicate mappings.
func (x *Index) Delete(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	pos, ok := x.idToPos[id]
	if !ok {
		return false
	}

	x.vectors = append(x.vectors[:pos], x.vectors[pos+1:]...)
	x.meta = append(x.meta[:pos], x.meta[pos+1:]...)
	delete(x.idToPos, id)
	for vid, vpos := range x.idToPos {
		if vpos > pos {
			x.idToPos[vid] = vpos - 1
		}
	}
	return true
}

// Clear removes all records, retaining the configured dimension.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.vectors = nil
	x.meta = nil
	x.idToPos = make(map[string]int)
}

var genIDRe = regexp.MustCompile(`^vec_(\d+)$`)

// bumpNextID advances the generated-id counter past any loaded vec_<n>
// ids so new inserts can't collide. Caller must hold mu.
func (x *Index) bumpNextID() {
	for id := range x.idToPos {
		m := genIDRe.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n >= x.nextID {
			x.nextID = n + 1
		}
	}
}
