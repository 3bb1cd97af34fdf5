package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// DenseIndex is an optional HNSW acceleration structure for dense search,
// keyed by chunk id and persisted beside the database file. When absent,
// the retrieval engine falls back to an exact scan over stored vectors.
type DenseIndex struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[int64]
	dimensions int

	// alive tracks current members; deletions are lazy (the node stays in
	// the graph but is filtered from results), which sidesteps graph
	// corruption when removing the last node.
	alive map[int64]struct{}
}

// denseMetadata is the gob sidecar payload next to the graph file.
type denseMetadata struct {
	Alive      map[int64]struct{}
	Dimensions int
}

// NewDenseIndex creates an empty HNSW index for vectors of the given width.
func NewDenseIndex(dimensions int) *DenseIndex {
	graph := hnsw.NewGraph[int64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 64
	return &DenseIndex{
		graph:      graph,
		dimensions: dimensions,
		alive:      make(map[int64]struct{}),
	}
}

// Dimensions returns the vector width the index was built for.
func (d *DenseIndex) Dimensions() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dimensions
}

// Add inserts or replaces vectors keyed by chunk id.
func (d *DenseIndex) Add(ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i, id := range ids {
		if len(vectors[i]) != d.dimensions {
			return fmt.Errorf("dimension mismatch: expected %d, got %d", d.dimensions, len(vectors[i]))
		}
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		d.graph.Add(hnsw.MakeNode(id, vec))
		d.alive[id] = struct{}{}
	}
	return nil
}

// Delete removes chunk ids from the index (lazily).
func (d *DenseIndex) Delete(ids []int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		delete(d.alive, id)
	}
}

// Count returns the number of live vectors.
func (d *DenseIndex) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.alive)
}

// Contains reports whether a chunk id is indexed.
func (d *DenseIndex) Contains(id int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.alive[id]
	return ok
}

// Search returns up to k nearest chunks by cosine similarity, ordered by
// descending score with ties broken by ascending chunk id.
func (d *DenseIndex) Search(query []float32, k int) ([]VectorResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(query) != d.dimensions {
		return nil, fmt.Errorf("dimension mismatch: expected %d, got %d", d.dimensions, len(query))
	}
	if len(d.alive) == 0 {
		return nil, nil
	}

	// Over-fetch to compensate for lazily deleted nodes.
	fetch := k + (d.graph.Len() - len(d.alive))
	nodes := d.graph.Search(query, fetch)

	results := make([]VectorResult, 0, k)
	for _, node := range nodes {
		if _, ok := d.alive[node.Key]; !ok {
			continue
		}
		distance := d.graph.Distance(query, node.Value)
		results = append(results, VectorResult{
			ChunkID: node.Key,
			Score:   1 - distance, // cosine distance -> similarity
		})
		if len(results) == k {
			break
		}
	}
	sortVectorResults(results)
	return results, nil
}

// sortVectorResults orders by descending score, ascending chunk id on ties.
func sortVectorResults(results []VectorResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}

// Save persists the graph and its metadata sidecar atomically
// (temp file + rename).
func (d *DenseIndex) Save(path string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := d.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	return d.saveMetadata(path + ".meta")
}

func (d *DenseIndex) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}
	meta := denseMetadata{Alive: d.alive, Dimensions: d.dimensions}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// LoadDenseIndex restores a saved index. Returns (nil, nil) when no sidecar
// exists at path.
func LoadDenseIndex(path string) (*DenseIndex, error) {
	metaFile, err := os.Open(path + ".meta")
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open metadata file: %w", err)
	}
	defer metaFile.Close()

	var meta denseMetadata
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	d := NewDenseIndex(meta.Dimensions)
	d.alive = meta.Alive
	if d.alive == nil {
		d.alive = make(map[int64]struct{})
	}
	// Import requires an io.ByteReader.
	if err := d.graph.Import(bufio.NewReader(file)); err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}
	return d, nil
}
