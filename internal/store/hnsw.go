package store

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSW index parameters for face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// so enough survive the stale-id filter.
	HNSWSearchMultiplier = 3
)

const hnswMetadataVersion = 1

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	RecordCount int64     `json:"record_count"`
	BuildTime   time.Time `json:"build_time"`
	Version     int       `json:"version"` // For future compatibility
}

// HNSWIndex wraps the HNSW graph for identity embedding search, keyed by
// identity id. The graph itself cannot delete nodes, so removed ids are
// filtered out through the idToRec map at search time.
type HNSWIndex struct {
	graph      *hnsw.Graph[string]
	savedGraph *hnsw.SavedGraph[string] // For persistence
	idToRec    map[string]*Record
	mu         sync.RWMutex
	path       string // Path to save/load index
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToRec: make(map[string]*Record),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// BuildFromRecords builds the index from a slice of records.
func (h *HNSWIndex) BuildFromRecords(records []Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(records) == 0 {
		h.graph = nil
		h.savedGraph = nil
		h.idToRec = make(map[string]*Record)
		return nil
	}

	g := newGraph()
	h.idToRec = make(map[string]*Record, len(records))

	for i := range records {
		rec := &records[i]
		if len(rec.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(rec.ID, rec.Embedding))
		h.idToRec[rec.ID] = rec
	}

	h.graph = g
	return nil
}

// Add adds a single record to the index.
func (h *HNSWIndex) Add(rec Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(rec.Embedding) == 0 {
		return nil
	}

	if h.graph == nil && h.savedGraph == nil {
		h.graph = newGraph()
	}
	if h.savedGraph != nil {
		h.savedGraph.Add(hnsw.MakeNode(rec.ID, rec.Embedding))
	} else {
		h.graph.Add(hnsw.MakeNode(rec.ID, rec.Embedding))
	}
	h.idToRec[rec.ID] = &rec
	return nil
}

// Search finds the k nearest neighbors to the query embedding, ordered by
// ascending exact cosine distance. Ids no longer present in the idToRec map
// are skipped.
func (h *HNSWIndex) Search(query []float32, k int) ([]Neighbor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return nil, errors.New("index not initialized")
	}

	// Request more candidates so enough survive the stale-id filter.
	searchK := k * HNSWSearchMultiplier

	var nodes []hnsw.Node[string]
	if h.savedGraph != nil {
		nodes = h.savedGraph.Search(query, searchK)
	} else {
		nodes = h.graph.Search(query, searchK)
	}

	neighbors := make([]Neighbor, 0, k)
	for _, n := range nodes {
		rec, ok := h.idToRec[n.Key]
		if !ok || len(rec.Embedding) == 0 {
			continue
		}
		// Compute the exact cosine distance against the stored embedding.
		neighbors = append(neighbors, Neighbor{ID: n.Key, Distance: CosineDistance(query, rec.Embedding)})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return h.idToRec[neighbors[i].ID].Meta.FirstSeen.Before(h.idToRec[neighbors[j].ID].Meta.FirstSeen)
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// Clear drops the graph and all records.
func (h *HNSWIndex) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = nil
	h.savedGraph = nil
	h.idToRec = make(map[string]*Record)
}

// Count returns the number of indexed records.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToRec)
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil && h.savedGraph == nil
}

// SetPath sets the path for saving/loading the index.
func (h *HNSWIndex) SetPath(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = path
}

func (h *HNSWIndex) exportGraph(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if h.savedGraph != nil {
		if err := h.savedGraph.Export(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to export HNSW graph from savedGraph: %w", err)
		}
	} else {
		if err := h.graph.Export(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to export HNSW graph: %w", err)
		}
	}
	return f.Close()
}

// SaveWithRecords persists the graph, metadata, and record sidecar to disk.
func (h *HNSWIndex) SaveWithRecords(path string, metadata HNSWIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		_ = os.Remove(path + ".records")
		return nil
	}

	if err := h.exportGraph(path); err != nil {
		return err
	}

	metadata.Version = hnswMetadataVersion
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	records := make([]Record, 0, len(h.idToRec))
	for _, rec := range h.idToRec {
		records = append(records, *rec)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	if err := os.WriteFile(path+".records", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write records file: %w", err)
	}

	return nil
}

// LoadWithRecords loads the graph and record sidecar from disk.
func (h *HNSWIndex) LoadWithRecords(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("HNSW index file not found: %s", path)
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	data, err := os.ReadFile(path + ".records") //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read records file: %w", err)
	}
	var records []Record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&records); err != nil {
		return fmt.Errorf("failed to decode records: %w", err)
	}

	h.savedGraph = saved
	h.idToRec = make(map[string]*Record, len(records))
	for i := range records {
		h.idToRec[records[i].ID] = &records[i]
	}

	return nil
}

// LoadHNSWMetadata loads metadata from the .meta sidecar for staleness checks.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}
