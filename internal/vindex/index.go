// Package vindex provides the append-only flat L2 vector indices.
package vindex

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Errors returned by index operations.
var (
	ErrUnsupportedVersion = errors.New("unsupported index version")
	ErrDimensionMismatch  = errors.New("vector dimension mismatch")
	ErrModelMismatch      = errors.New("index was built with a different embedding model")
	ErrEmptyID            = errors.New("external id is empty")
)

// CurrentIndexVersion is the on-disk format version.
// Increment this when making breaking changes to the index format.
const CurrentIndexVersion = 1

// Hit is one search result.
type Hit struct {
	ID       string  `json:"id"`
	Distance float32 `json:"distance"` // squared Euclidean distance
}

// indexFile is the gob-encoded on-disk form.
type indexFile struct {
	Version    int
	Name       string
	ModelName  string
	Dimensions int
	CreatedAt  time.Time
	IDs        []string  // position -> external id
	Vectors    []float32 // row-major, len(IDs)*Dimensions
}

// Index is an exact nearest-neighbour index over squared L2 distance.
// Entries are append-only; there is no delete or update.
//
// An Index is a snapshot of its file. Other processes may append to the same
// file, so writers call Refresh while holding the index lock.
type Index struct {
	mu        sync.RWMutex
	path      string
	data      indexFile
	positions map[string]int
	stamp     fileStamp // of the file as last read or written
}

// fileStamp identifies one version of an index file. Every append grows the
// file, so size alone distinguishes versions written by appends.
type fileStamp struct {
	size    int64
	modTime int64 // unix nanoseconds
}

func statFile(path string) (fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{size: info.Size(), modTime: info.ModTime().UnixNano()}, nil
}

// Open loads the index at path, or creates an empty one when the file does
// not exist. An existing index must match modelName and dimensions.
func Open(path, name, modelName string, dimensions int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("invalid dimensions %d", dimensions)
	}

	idx := &Index{path: path, positions: make(map[string]int)}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		idx.data = indexFile{
			Version:    CurrentIndexVersion,
			Name:       name,
			ModelName:  modelName,
			Dimensions: dimensions,
			CreatedAt:  time.Now().UTC(),
		}
		if err := idx.save(); err != nil {
			return nil, err
		}
		return idx, nil
	}

	if err := idx.load(name, modelName, dimensions); err != nil {
		return nil, err
	}
	return idx, nil
}

// load replaces the in-memory state with the file contents. Callers hold
// idx.mu or own idx exclusively.
func (idx *Index) load(name, modelName string, dimensions int) error {
	stamp, err := statFile(idx.path)
	if err != nil {
		return fmt.Errorf("opening index file: %w", err)
	}
	f, err := os.Open(idx.path)
	if err != nil {
		return fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()

	var data indexFile
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return fmt.Errorf("decoding index %s: %w", name, err)
	}
	if data.Version != CurrentIndexVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, data.Version, CurrentIndexVersion)
	}
	if data.ModelName != modelName || data.Dimensions != dimensions {
		return fmt.Errorf("%w: index %s has %s/%d, configured %s/%d", ErrModelMismatch,
			name, data.ModelName, data.Dimensions, modelName, dimensions)
	}
	if len(data.Vectors) != len(data.IDs)*data.Dimensions {
		return fmt.Errorf("index %s is corrupt: %d ids, %d values", name, len(data.IDs), len(data.Vectors))
	}

	positions := make(map[string]int, len(data.IDs))
	for pos, id := range data.IDs {
		positions[id] = pos
	}
	idx.data, idx.positions, idx.stamp = data, positions, stamp
	return nil
}

// Refresh reloads the index if its file changed since this handle last read
// or wrote it. Writers call it after taking the index lock so appends land
// on top of entries flushed by other processes.
func (idx *Index) Refresh() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	stamp, err := statFile(idx.path)
	if err != nil {
		return fmt.Errorf("checking index %s: %w", idx.data.Name, err)
	}
	if stamp == idx.stamp {
		return nil
	}
	return idx.load(idx.data.Name, idx.data.ModelName, idx.data.Dimensions)
}

// Name returns the index name.
func (idx *Index) Name() string { return idx.data.Name }

// ModelName returns the embedding model the index was built with.
func (idx *Index) ModelName() string { return idx.data.ModelName }

// Dimensions returns the vector width.
func (idx *Index) Dimensions() int { return idx.data.Dimensions }

// Len returns the number of entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.data.IDs)
}

// Contains reports whether id has been appended.
func (idx *Index) Contains(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.positions[id]
	return ok
}

// Add appends vec under id and flushes the index to disk. Adding an id that
// is already present is a no-op and returns added=false. If the flush fails
// the in-memory append is rolled back.
func (idx *Index) Add(id string, vec []float32) (added bool, err error) {
	if id == "" {
		return false, ErrEmptyID
	}
	if len(vec) != idx.data.Dimensions {
		return false, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), idx.data.Dimensions)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.positions[id]; ok {
		return false, nil
	}

	n := len(idx.data.IDs)
	idx.data.IDs = append(idx.data.IDs, id)
	idx.data.Vectors = append(idx.data.Vectors, vec...)
	idx.positions[id] = n

	if err := idx.save(); err != nil {
		idx.data.IDs = idx.data.IDs[:n]
		idx.data.Vectors = idx.data.Vectors[:n*idx.data.Dimensions]
		delete(idx.positions, id)
		return false, fmt.Errorf("flushing index %s: %w", idx.data.Name, err)
	}
	return true, nil
}

// Search returns up to k entries nearest to query, in ascending distance.
// Ties keep insertion order.
func (idx *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != idx.data.Dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), idx.data.Dimensions)
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	dims := idx.data.Dimensions
	hits := make([]Hit, len(idx.data.IDs))
	for pos, id := range idx.data.IDs {
		row := idx.data.Vectors[pos*dims : (pos+1)*dims]
		hits[pos] = Hit{ID: id, Distance: squaredL2(query, row)}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// save persists the index using gob, writing a temp file then renaming.
// Callers hold idx.mu or own idx exclusively.
func (idx *Index) save() error {
	if err := os.MkdirAll(filepath.Dir(idx.path), 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tempPath := idx.path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(&idx.data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("encoding index: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("syncing index: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing file: %w", err)
	}

	if err := os.Rename(tempPath, idx.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	stamp, err := statFile(idx.path)
	if err != nil {
		return fmt.Errorf("checking index file: %w", err)
	}
	idx.stamp = stamp
	return nil
}
