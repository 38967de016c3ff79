package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"perspective/internal/domain"
	"perspective/internal/port"
)

// VectorStore keeps vectors and fragments aligned by position and answers
// exact nearest-neighbor queries by squared Euclidean distance.
// Uses brute-force search; corpora are small enough that a flat scan is exact and fast.
type VectorStore struct {
	embedder  port.Embedder
	model     string
	dimension int

	addMu sync.Mutex // serializes Add so embedding happens outside mu
	mu    sync.RWMutex
	// vectors[i] belongs to fragments[i]
	vectors   [][]float32
	fragments []domain.Fragment
}

// NewVectorStore creates an empty store bound to the embedder's model and dimension.
func NewVectorStore(embedder port.Embedder) *VectorStore {
	return &VectorStore{
		embedder:  embedder,
		model:     embedder.ModelName(),
		dimension: embedder.Dimension(),
	}
}

// OpenVectorStore loads a persisted store. Both artifacts must exist.
func OpenVectorStore(embedder port.Embedder, indexPath, metadataPath string) (*VectorStore, error) {
	s := NewVectorStore(embedder)
	if err := s.Load(indexPath, metadataPath); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenOrCreateVectorStore loads a persisted store, or returns an empty one when
// neither artifact exists. Exactly one artifact present is ErrCorruptStore.
func OpenOrCreateVectorStore(embedder port.Embedder, indexPath, metadataPath string) (*VectorStore, bool, error) {
	_, indexErr := os.Stat(indexPath)
	_, metaErr := os.Stat(metadataPath)
	if os.IsNotExist(indexErr) && os.IsNotExist(metaErr) {
		return NewVectorStore(embedder), false, nil
	}
	s, err := OpenVectorStore(embedder, indexPath, metadataPath)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Add embeds texts in one batch and appends the vectors and fragments in order.
// Nothing is appended unless every returned vector has the store's dimension.
func (s *VectorStore) Add(ctx context.Context, texts []string, fragments []domain.Fragment) error {
	if len(texts) != len(fragments) {
		return fmt.Errorf("%d texts, %d fragments: %w", len(texts), len(fragments), domain.ErrShapeMismatch)
	}
	if len(texts) == 0 {
		return nil
	}

	s.addMu.Lock()
	defer s.addMu.Unlock()

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed texts: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedding provider returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, vec := range vectors {
		if len(vec) != s.dimension {
			return fmt.Errorf("vector %d has %d dimensions, expected %d: %w", i, len(vec), s.dimension, domain.ErrDimensionMismatch)
		}
	}

	added := make([]domain.Fragment, len(fragments))
	copy(added, fragments)

	s.mu.Lock()
	s.vectors = append(s.vectors, vectors...)
	s.fragments = append(s.fragments, added...)
	s.mu.Unlock()

	return nil
}

// Search embeds query and returns the k nearest fragments, nearest first.
// An empty store yields an empty result without calling the embedder.
func (s *VectorStore) Search(ctx context.Context, query string, k int) ([]domain.RetrievalResult, error) {
	if s.Len() == 0 || k <= 0 {
		return []domain.RetrievalResult{}, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding provider returned %d vectors for 1 query", len(vectors))
	}

	return s.SearchVector(vectors[0], k)
}

// SearchVector returns the k stored entries nearest to query.
func (s *VectorStore) SearchVector(query []float32, k int) ([]domain.RetrievalResult, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query has %d dimensions, expected %d: %w", len(query), s.dimension, domain.ErrDimensionMismatch)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 || k <= 0 {
		return []domain.RetrievalResult{}, nil
	}

	type scored struct {
		pos      int
		distance float64
	}

	scores := make([]scored, len(s.vectors))
	for i, vec := range s.vectors {
		scores[i] = scored{pos: i, distance: SquaredL2(query, vec)}
	}

	// Ties keep insertion order
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].distance != scores[j].distance {
			return scores[i].distance < scores[j].distance
		}
		return scores[i].pos < scores[j].pos
	})

	if k > len(scores) {
		k = len(scores)
	}

	results := make([]domain.RetrievalResult, k)
	for i := 0; i < k; i++ {
		results[i] = domain.RetrievalResult{
			Fragment: s.fragments[scores[i].pos],
			Distance: scores[i].distance,
			Rank:     i + 1,
		}
	}

	return results, nil
}

// Save writes the index and metadata files from one consistent snapshot.
func (s *VectorStore) Save(indexPath, metadataPath string) error {
	s.mu.RLock()
	indexData, err := encodeIndex(s.model, s.dimension, s.vectors)
	if err != nil {
		s.mu.RUnlock()
		return err
	}
	metaData, err := encodeMetadata(s.fragments)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := writeFileAtomic(indexPath, indexData); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	if err := writeFileAtomic(metadataPath, metaData); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load replaces the store contents with the persisted pair. On any error
// the store is left unchanged.
func (s *VectorStore) Load(indexPath, metadataPath string) error {
	indexData, err := readArtifact("index", indexPath)
	if err != nil {
		return err
	}
	metaData, err := readArtifact("metadata", metadataPath)
	if err != nil {
		return err
	}

	hdr, vectors, err := decodeIndex(indexData)
	if err != nil {
		return err
	}
	fragments, err := decodeMetadata(metaData)
	if err != nil {
		return err
	}

	if len(vectors) != len(fragments) {
		return fmt.Errorf("index holds %d vectors but metadata holds %d entries: %w", len(vectors), len(fragments), domain.ErrCorruptStore)
	}
	if hdr.Dimension != s.dimension {
		return fmt.Errorf("stored dimension %d, configured %d: %w", hdr.Dimension, s.dimension, domain.ErrDimensionMismatch)
	}
	if hdr.Model != s.model {
		return fmt.Errorf("stored model %q, configured %q: %w", hdr.Model, s.model, domain.ErrModelMismatch)
	}

	s.mu.Lock()
	s.vectors = vectors
	s.fragments = fragments
	s.mu.Unlock()

	return nil
}

// Len returns the number of stored fragments.
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fragments)
}

// Fragments returns a copy of the stored fragments in insertion order.
func (s *VectorStore) Fragments() []domain.Fragment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Fragment, len(s.fragments))
	copy(out, s.fragments)
	return out
}

// Snapshot returns aligned copies of the vectors and fragments.
func (s *VectorStore) Snapshot() ([][]float32, []domain.Fragment) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vectors := make([][]float32, len(s.vectors))
	for i, v := range s.vectors {
		vectors[i] = append([]float32(nil), v...)
	}
	fragments := make([]domain.Fragment, len(s.fragments))
	copy(fragments, s.fragments)
	return vectors, fragments
}

// Model returns the embedding model identifier the store is bound to.
func (s *VectorStore) Model() string { return s.model }

// Dimension returns the vector dimension the store is bound to.
func (s *VectorStore) Dimension() int { return s.dimension }

// Info summarizes the store contents.
func (s *VectorStore) Info() domain.StoreInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := domain.StoreInfo{
		Model:      s.model,
		Dimension:  s.dimension,
		Count:      len(s.fragments),
		Categories: make(map[string]int),
	}
	for _, f := range s.fragments {
		info.Categories[f.Category]++
	}
	return info
}

// SquaredL2 returns the squared Euclidean distance between equal-length vectors.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// ReadInfo reads the header and metadata of a persisted store without
// binding it to an embedder.
func ReadInfo(indexPath, metadataPath string) (domain.StoreInfo, error) {
	var info domain.StoreInfo
	indexData, err := readArtifact("index", indexPath)
	if err != nil {
		return info, err
	}
	metaData, err := readArtifact("metadata", metadataPath)
	if err != nil {
		return info, err
	}
	hdr, _, err := decodeIndex(indexData)
	if err != nil {
		return info, err
	}
	fragments, err := decodeMetadata(metaData)
	if err != nil {
		return info, err
	}
	if hdr.Count != len(fragments) {
		return info, fmt.Errorf("index holds %d vectors but metadata holds %d entries: %w", hdr.Count, len(fragments), domain.ErrCorruptStore)
	}

	info = domain.StoreInfo{
		Model:      hdr.Model,
		Dimension:  hdr.Dimension,
		Count:      hdr.Count,
		Categories: make(map[string]int),
	}
	for _, f := range fragments {
		info.Categories[f.Category]++
	}
	return info, nil
}
