package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jromero/facetrack/internal/store"
)

// Options configures a Tracker.
type Options struct {
	// EmbeddingDim is the fixed dimensionality every observation must carry.
	EmbeddingDim int
	// DistanceThreshold is the cosine distance below which (strictly) an
	// observation matches an existing identity.
	DistanceThreshold float64
	// CandidateK is the number of nearest neighbors requested from the
	// vector store per match attempt.
	CandidateK int
	// MaxHistory caps per-identity history length; 0 keeps the full session.
	MaxHistory int
	// Labels is the accepted emotion label set; empty accepts any non-empty
	// normalized label.
	Labels []string
}

// DefaultOptions returns the options used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		EmbeddingDim:      128,
		DistanceThreshold: 0.6,
		CandidateK:        5,
	}
}

// Tracker resolves observations into identities and folds their signals
// into per-identity statistics. Observation processing is serialized: the
// matching decision depends on the full current candidate set, so two
// concurrent writers could otherwise create two identities for one face.
// Reads go through the registry and never wait on the writer section.
type Tracker struct {
	opts     Options
	labels   map[string]struct{}
	store    store.VectorStore
	registry *Registry

	writeMu   sync.Mutex
	resetting atomic.Bool
}

// New creates a Tracker over the given vector store.
func New(vs store.VectorStore, opts Options) *Tracker {
	def := DefaultOptions()
	if opts.EmbeddingDim <= 0 {
		opts.EmbeddingDim = def.EmbeddingDim
	}
	if opts.DistanceThreshold <= 0 {
		opts.DistanceThreshold = def.DistanceThreshold
	}
	if opts.CandidateK <= 0 {
		opts.CandidateK = def.CandidateK
	}

	labels := make(map[string]struct{}, len(opts.Labels))
	for _, l := range opts.Labels {
		labels[NormalizeLabel(l)] = struct{}{}
	}

	return &Tracker{
		opts:     opts,
		labels:   labels,
		store:    vs,
		registry: NewRegistry(),
	}
}

// Registry exposes the read side for reporting.
func (t *Tracker) Registry() *Registry {
	return t.registry
}

// validate rejects malformed observations before they reach matching and
// normalizes the emotion label in place.
func (t *Tracker) validate(obs *Observation) error {
	if len(obs.Embedding) != t.opts.EmbeddingDim {
		return &MalformedObservationError{
			Reason: fmt.Sprintf("embedding has %d dimensions, want %d", len(obs.Embedding), t.opts.EmbeddingDim),
		}
	}
	if obs.Confidence < 0 || obs.Confidence > 100 {
		return &MalformedObservationError{
			Reason: fmt.Sprintf("confidence %.2f outside [0, 100]", obs.Confidence),
		}
	}
	if obs.Concentration < 0 || obs.Concentration > 100 {
		return &MalformedObservationError{
			Reason: fmt.Sprintf("concentration %.2f outside [0, 100]", obs.Concentration),
		}
	}
	if obs.Timestamp.IsZero() {
		return &MalformedObservationError{Reason: "missing timestamp"}
	}

	obs.Emotion = NormalizeLabel(obs.Emotion)
	if obs.Emotion == "" {
		return &MalformedObservationError{Reason: "missing emotion label"}
	}
	if len(t.labels) > 0 {
		if _, ok := t.labels[obs.Emotion]; !ok {
			return &MalformedObservationError{
				Reason: fmt.Sprintf("unknown emotion label %q", obs.Emotion),
			}
		}
	}
	return nil
}

// Resolve assigns the observation to an existing identity or creates a new
// one, folds the emotion and concentration signals into that identity, and
// returns its id.
//
// When the returned error wraps ErrPersistenceDegraded the id is still
// valid: the identity lives in the registry but the vector store could not
// be updated.
func (t *Tracker) Resolve(ctx context.Context, obs Observation) (string, error) {
	if err := t.validate(&obs); err != nil {
		return "", err
	}
	if t.resetting.Load() {
		return "", ErrResetInProgress
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if id, ok := t.match(ctx, obs.Embedding); ok {
		return t.update(ctx, id, obs)
	}
	return t.create(ctx, obs)
}

// match finds an existing identity for the embedding. It prefers the vector
// store's accelerated candidate retrieval, but the registry always gets the
// final word: when the store's candidates yield no verified match, a full
// registry scan runs before the face is declared new. The store can run
// behind the registry (an identity created during a store outage never
// reached it), and without the second scan that identity would be shadowed
// by a duplicate the moment the store recovers.
func (t *Tracker) match(ctx context.Context, embedding []float32) (string, bool) {
	if t.registry.Len() == 0 {
		return "", false
	}

	candidates, err := t.store.QueryNearest(ctx, embedding, t.opts.CandidateK)
	if err != nil {
		if !errors.Is(err, store.ErrUnavailable) {
			log.Printf("vector store query failed: %v", err)
		}
		return t.matchAmong(t.registry.scanNearest(embedding, t.opts.CandidateK), embedding)
	}

	if id, ok := t.matchAmong(candidates, embedding); ok {
		return id, true
	}
	return t.matchAmong(t.registry.scanNearest(embedding, t.opts.CandidateK), embedding)
}

// matchAmong picks the closest candidate with a live registry entry. A
// candidate matches only if its distance is strictly below the threshold;
// exact ties resolve to the identity with the earlier first-seen time.
// Before committing, the distance is recomputed against the in-memory
// representative embedding so a stale store vector cannot produce a false
// match.
func (t *Tracker) matchAmong(candidates []store.Neighbor, embedding []float32) (string, bool) {
	bestID, bestDist := selectCandidate(candidates, t.registry)
	if bestID == "" || bestDist >= t.opts.DistanceThreshold {
		return "", false
	}

	dist, ok := t.registry.distanceTo(bestID, embedding)
	if !ok || dist >= t.opts.DistanceThreshold {
		return "", false
	}
	return bestID, true
}

// selectCandidate picks the closest candidate with a live registry entry.
// Exact distance ties resolve to the earlier first-seen identity.
func selectCandidate(candidates []store.Neighbor, registry *Registry) (string, float64) {
	var (
		bestID    string
		bestDist  float64
		bestFirst time.Time
	)
	for _, c := range candidates {
		// Skip store rows with no live registry entry.
		first, ok := registry.firstSeen(c.ID)
		if !ok {
			continue
		}
		if bestID == "" ||
			c.Distance < bestDist ||
			(c.Distance == bestDist && first.Before(bestFirst)) {
			bestID, bestDist, bestFirst = c.ID, c.Distance, first
		}
	}
	return bestID, bestDist
}

// update folds the observation into a matched identity and refreshes the
// store's metadata cache without rewriting the vector.
func (t *Tracker) update(ctx context.Context, id string, obs Observation) (string, error) {
	t.registry.touch(id, obs.Timestamp)

	sample := EmotionSample{Label: obs.Emotion, Confidence: obs.Confidence, Timestamp: obs.Timestamp}
	meta, ok := t.registry.fold(id, sample, obs.Concentration, t.opts.MaxHistory)
	if !ok {
		return "", fmt.Errorf("matched identity %s disappeared from registry", id)
	}

	err := t.upsertWithRetry(ctx, id, nil, meta)
	if err != nil && !errors.Is(err, store.ErrUnavailable) {
		// The row is missing, not the store: a create during an earlier
		// outage never reached it. Heal with the representative embedding.
		if embedding, ok := t.registry.embeddingOf(id); ok {
			err = t.upsertWithRetry(ctx, id, embedding, meta)
		}
	}
	if err != nil {
		log.Printf("identity %s metadata not persisted, keeping in-memory state: %v", id, err)
		return id, fmt.Errorf("updating identity %s: %w", id, ErrPersistenceDegraded)
	}
	return id, nil
}

// create registers a new identity in both the registry and the store.
func (t *Tracker) create(ctx context.Context, obs Observation) (string, error) {
	id := uuid.NewString()
	sample := EmotionSample{Label: obs.Emotion, Confidence: obs.Confidence, Timestamp: obs.Timestamp}

	embedding := make([]float32, len(obs.Embedding))
	copy(embedding, obs.Embedding)

	t.registry.insert(&Identity{
		ID:            id,
		Embedding:     embedding,
		FirstSeen:     obs.Timestamp,
		LastSeen:      obs.Timestamp,
		Emotions:      []EmotionSample{sample},
		Concentration: []float64{obs.Concentration},
	})

	meta := store.Metadata{
		FirstSeen:        obs.Timestamp,
		LastSeen:         obs.Timestamp,
		TotalDetections:  1,
		DominantEmotion:  obs.Emotion,
		AvgConcentration: obs.Concentration,
	}
	if err := t.upsertWithRetry(ctx, id, embedding, meta); err != nil {
		log.Printf("identity %s not persisted, keeping in-memory state: %v", id, err)
		return id, fmt.Errorf("creating identity %s: %w", id, ErrPersistenceDegraded)
	}
	return id, nil
}

// upsertWithRetry retries a failed store write once before giving up.
func (t *Tracker) upsertWithRetry(ctx context.Context, id string, embedding []float32, meta store.Metadata) error {
	err := t.store.Upsert(ctx, id, embedding, meta)
	if err == nil {
		return nil
	}
	if retryErr := t.store.Upsert(ctx, id, embedding, meta); retryErr == nil {
		return nil
	}
	return err
}

// Reset clears the registry and the vector store together. It holds the
// same exclusive writer section as normal writes, so no observation from
// the previous session can land after the clear begins; writers that arrive
// while the reset runs are rejected with ErrResetInProgress.
func (t *Tracker) Reset(ctx context.Context) error {
	t.resetting.Store(true)
	defer t.resetting.Store(false)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	// Clear the store first: if it fails, registry and store still agree.
	if err := t.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clearing vector store: %w", err)
	}
	t.registry.clear()
	return nil
}

// Hydrate seeds the registry from persisted store records after a restart.
// Identity ids and representative embeddings carry over so matching stays
// stable across sessions; emotion and concentration histories are
// session-scoped and restart empty.
func (t *Tracker) Hydrate(records []store.Record) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	for i := range records {
		rec := &records[i]
		if len(rec.Embedding) == 0 {
			continue
		}
		embedding := make([]float32, len(rec.Embedding))
		copy(embedding, rec.Embedding)
		t.registry.insert(&Identity{
			ID:        rec.ID,
			Embedding: embedding,
			FirstSeen: rec.Meta.FirstSeen,
			LastSeen:  rec.Meta.LastSeen,
		})
	}
}
