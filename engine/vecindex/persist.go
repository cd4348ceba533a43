package vecindex

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// storeFile is the persisted layout: dimension, dense vector list, parallel
// metadata list, and the id-to-position mapping. All three collections must
// have equal cardinality on load.
type storeFile struct {
	Dimension int            `json:"dimension"`
	Vectors   [][]float64    `json:"vectors"`
	Metadata  []Metadata     `json:"metadata"`
	IDToIndex map[string]int `json:"id_to_index"`
}

// Save writes the index contents to w. Holding the read lock for the whole
// encode keeps save consistent with concurrent mutation.
func (x *Index) Save(w io.Writer) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	sf := storeFile{
		Dimension: x.dim,
		Vectors:   x.vectors,
		Metadata:  x.meta,
		IDToIndex: x.idToPos,
	}
	if sf.Vectors == nil {
		sf.Vectors = [][]float64{}
	}
	if sf.Metadata == nil {
		sf.Metadata = []Metadata{}
	}
	if err := json.NewEncoder(w).Encode(sf); err != nil {
		return fmt.Errorf("vecindex: save: %w", err)
	}
	return nil
}

// Load replaces the index contents from r. The loaded dimension replaces
// the configured one. Inconsistent cardinalities, out-of-range positions,
// or mismatched vector lengths fail with ErrCorruptStore and leave the
// index unchanged.
func (x *Index) Load(r io.Reader) error {
	var sf storeFile
	if err := json.NewDecoder(r).Decode(&sf); err != nil {
		return fmt.Errorf("vecindex: load: %w: %v", ErrCorruptStore, err)
	}

	if sf.Dimension <= 0 {
		return fmt.Errorf("vecindex: load: %w: dimension %d", ErrCorruptStore, sf.Dimension)
	}
	if len(sf.Vectors) != len(sf.Metadata) || len(sf.Vectors) != len(sf.IDToIndex) {
		return fmt.Errorf("vecindex: load: %w: %d vectors, %d metadata, %d ids",
			ErrCorruptStore, len(sf.Vectors), len(sf.Metadata), len(sf.IDToIndex))
	}
	for i, v := range sf.Vectors {
		if len(v) != sf.Dimension {
			return fmt.Errorf("vecindex: load: %w: vector %d has %d components, want %d",
				ErrCorruptStore, i, len(v), sf.Dimension)
		}
	}
	seen := make(map[int]string, len(sf.IDToIndex))
	for id, pos := range sf.IDToIndex {
		if pos < 0 || pos >= len(sf.Vectors) {
			return fmt.Errorf("vecindex: load: %w: id %q maps to position %d of %d",
				ErrCorruptStore, id, pos, len(sf.Vectors))
		}
		if other, dup := seen[pos]; dup {
			return fmt.Errorf("vecindex: load: %w: ids %q and %q share position %d",
				ErrCorruptStore, other, id, pos)
		}
		seen[pos] = id
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.dim = sf.Dimension
	x.vectors = sf.Vectors
	x.meta = sf.Metadata
	x.idToPos = sf.IDToIndex
	x.bumpNextID()
	return nil
}

// SaveFile persists the index to path, creating parent directories.
func (x *Index) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("vecindex: save %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vecindex: save %s: %w", path, err)
	}
	if err := x.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile restores the index from path.
func (x *Index) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("vecindex: load %s: %w", path, err)
	}
	defer f.Close()
	return x.Load(f)
}
