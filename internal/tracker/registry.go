package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/jromero/facetrack/internal/store"
)

// Registry is the in-memory authoritative map from identity id to identity
// state. Mutations come only from the Tracker's single-writer section; its
// own lock is held for short map and field operations only, so concurrent
// readers never wait behind store I/O. Read methods hand out deep copies,
// never live internal state.
type Registry struct {
	mu         sync.RWMutex
	identities map[string]*Identity
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		identities: make(map[string]*Identity),
	}
}

// Len returns the number of tracked identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities)
}

// insert adds a newly created identity.
func (r *Registry) insert(ident *Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[ident.ID] = ident
}

// clear removes every identity.
func (r *Registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities = make(map[string]*Identity)
}

// firstSeen returns the identity's creation time, used for deterministic
// tie-breaking between equidistant match candidates.
func (r *Registry) firstSeen(id string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ident, ok := r.identities[id]
	if !ok {
		return time.Time{}, false
	}
	return ident.FirstSeen, true
}

// embeddingOf returns a copy of the identity's representative embedding.
func (r *Registry) embeddingOf(id string) ([]float32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ident, ok := r.identities[id]
	if !ok {
		return nil, false
	}
	embedding := make([]float32, len(ident.Embedding))
	copy(embedding, ident.Embedding)
	return embedding, true
}

// distanceTo recomputes the cosine distance between the query and the
// identity's in-memory representative embedding.
func (r *Registry) distanceTo(id string, embedding []float32) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ident, ok := r.identities[id]
	if !ok {
		return 0, false
	}
	return store.CosineDistance(embedding, ident.Embedding), true
}

// scanNearest computes the distance to every representative embedding and
// returns the k closest, ascending. This is the correctness fallback when
// the vector store is unavailable; cost is linear in registry size.
func (r *Registry) scanNearest(embedding []float32, k int) []store.Neighbor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		store.Neighbor
		firstSeen time.Time
	}
	candidates := make([]scored, 0, len(r.identities))
	for id, ident := range r.identities {
		candidates = append(candidates, scored{
			Neighbor:  store.Neighbor{ID: id, Distance: store.CosineDistance(embedding, ident.Embedding)},
			firstSeen: ident.FirstSeen,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].firstSeen.Before(candidates[j].firstSeen)
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	neighbors := make([]store.Neighbor, 0, k)
	for _, c := range candidates[:k] {
		neighbors = append(neighbors, c.Neighbor)
	}
	return neighbors
}

// touch advances the identity's last-seen time. LastSeen is monotonically
// non-decreasing even if observations arrive with out-of-order timestamps.
func (r *Registry) touch(id string, ts time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.identities[id]
	if !ok {
		return
	}
	if ts.After(ident.LastSeen) {
		ident.LastSeen = ts
	}
}

// fold appends one observation's signals to the identity's histories and
// returns the refreshed summary metadata for the store's cache. When
// maxHistory > 0 the oldest samples of both histories are trimmed in
// lockstep so they stay parallel.
func (r *Registry) fold(id string, sample EmotionSample, concentration float64, maxHistory int) (store.Metadata, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, ok := r.identities[id]
	if !ok {
		return store.Metadata{}, false
	}

	ident.Emotions = append(ident.Emotions, sample)
	ident.Concentration = append(ident.Concentration, concentration)
	if maxHistory > 0 && len(ident.Emotions) > maxHistory {
		drop := len(ident.Emotions) - maxHistory
		ident.Emotions = ident.Emotions[drop:]
		ident.Concentration = ident.Concentration[drop:]
	}
	if sample.Timestamp.After(ident.LastSeen) {
		ident.LastSeen = sample.Timestamp
	}

	return store.Metadata{
		FirstSeen:        ident.FirstSeen,
		LastSeen:         ident.LastSeen,
		TotalDetections:  len(ident.Emotions),
		DominantEmotion:  dominantEmotion(ident.Emotions),
		AvgConcentration: meanConcentration(ident.Concentration),
	}, true
}

// snapshotLocked builds a deep copy with derived fields. Caller holds mu.
func snapshotLocked(ident *Identity) Snapshot {
	emotions := make([]EmotionSample, len(ident.Emotions))
	copy(emotions, ident.Emotions)
	concentration := make([]float64, len(ident.Concentration))
	copy(concentration, ident.Concentration)

	return Snapshot{
		ID:               ident.ID,
		FirstSeen:        ident.FirstSeen,
		LastSeen:         ident.LastSeen,
		Emotions:         emotions,
		Concentration:    concentration,
		TotalDetections:  len(emotions),
		AvgConcentration: meanConcentration(ident.Concentration),
		DominantEmotion:  dominantEmotion(ident.Emotions),
	}
}

// Snapshot returns a read-only copy of one identity.
func (r *Registry) Snapshot(id string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ident, ok := r.identities[id]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotLocked(ident), true
}

// Snapshots returns read-only copies of every identity, ordered by first
// appearance.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(r.identities))
	for _, ident := range r.identities {
		snapshots = append(snapshots, snapshotLocked(ident))
	}
	sort.Slice(snapshots, func(i, j int) bool {
		if !snapshots[i].FirstSeen.Equal(snapshots[j].FirstSeen) {
			return snapshots[i].FirstSeen.Before(snapshots[j].FirstSeen)
		}
		return snapshots[i].ID < snapshots[j].ID
	})
	return snapshots
}
