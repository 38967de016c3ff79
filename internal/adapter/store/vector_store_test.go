package store

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"perspective/internal/domain"
)

// fakeEmbedder returns fixed vectors per text and counts calls.
type fakeEmbedder struct {
	model   string
	dim     int
	vectors map[string][]float32
	calls   int
	err     error
}

func newFakeEmbedder(dim int, vectors map[string][]float32) *fakeEmbedder {
	return &fakeEmbedder{model: "fake-embed", dim: dim, vectors: vectors}
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			v = make([]float32, e.dim)
		}
		out[i] = v
	}
	return out, nil
}

func (e *fakeEmbedder) Dimension() int    { return e.dim }
func (e *fakeEmbedder) ModelName() string { return e.model }

func frag(text, category string) domain.Fragment {
	return domain.Fragment{Text: text, Category: category, Summary: "summary of " + text}
}

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func threePointEmbedder() *fakeEmbedder {
	return newFakeEmbedder(2, map[string][]float32{
		"query": {0, 0},
		"A":     {0, 0},
		"B":     {1, 0},
		"C":     {1, 1},
	})
}

func TestSearchEmptyStore(t *testing.T) {
	emb := threePointEmbedder()
	s := NewVectorStore(emb)

	results, err := s.Search(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil result, got %v", results)
	}
}

func TestSearchRanking(t *testing.T) {
	emb := threePointEmbedder()
	s := NewVectorStore(emb)
	ctx := context.Background()

	// Insert out of order to make sure ranking is by distance, not position
	if err := s.Add(ctx, []string{"C", "A", "B"}, []domain.Fragment{frag("C", "world"), frag("A", "industry"), frag("B", "company")}); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, "query", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	want := []struct {
		text     string
		distance float64
	}{
		{"A", 0},
		{"B", 1},
		{"C", 2},
	}
	for i, w := range want {
		r := results[i]
		if r.Fragment.Text != w.text {
			t.Errorf("rank %d: expected %s, got %s", i+1, w.text, r.Fragment.Text)
		}
		if !floatEquals(r.Distance, w.distance) {
			t.Errorf("rank %d: expected distance %v, got %v", i+1, w.distance, r.Distance)
		}
		if r.Rank != i+1 {
			t.Errorf("expected rank %d, got %d", i+1, r.Rank)
		}
	}
}

func TestSearchKSaturation(t *testing.T) {
	emb := threePointEmbedder()
	s := NewVectorStore(emb)
	ctx := context.Background()

	if err := s.Add(ctx, []string{"A", "B"}, []domain.Fragment{frag("A", "world"), frag("B", "world")}); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, "query", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Rank != 1 || results[1].Rank != 2 {
		t.Errorf("unexpected ranks %d, %d", results[0].Rank, results[1].Rank)
	}
}

func TestAlignmentAcrossAdds(t *testing.T) {
	vectors := map[string][]float32{}
	var texts []string
	for i := 0; i < 12; i++ {
		text := string(rune('a' + i))
		vectors[text] = []float32{float32(i * 10), float32(-i)}
		texts = append(texts, text)
	}
	emb := newFakeEmbedder(2, vectors)
	s := NewVectorStore(emb)
	ctx := context.Background()

	// Three separate adds of uneven size
	batches := [][]string{texts[:5], texts[5:6], texts[6:]}
	for _, batch := range batches {
		frags := make([]domain.Fragment, len(batch))
		for i, text := range batch {
			frags[i] = frag(text, "world")
		}
		if err := s.Add(ctx, batch, frags); err != nil {
			t.Fatal(err)
		}
	}
	if emb.calls != len(batches) {
		t.Errorf("expected one embed call per add (%d), got %d", len(batches), emb.calls)
	}

	for _, text := range texts {
		results, err := s.SearchVector(vectors[text], 1)
		if err != nil {
			t.Fatal(err)
		}
		if results[0].Fragment.Text != text {
			t.Errorf("query for %s returned %s", text, results[0].Fragment.Text)
		}
		if results[0].Distance != 0 {
			t.Errorf("expected zero distance for %s, got %v", text, results[0].Distance)
		}
	}
}

func TestAddShapeMismatch(t *testing.T) {
	emb := threePointEmbedder()
	s := NewVectorStore(emb)

	err := s.Add(context.Background(), []string{"A", "B"}, []domain.Fragment{frag("A", "world")})
	if !errors.Is(err, domain.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("embedder should not be called on shape mismatch")
	}
}

func TestAddDimensionMismatchIsAtomic(t *testing.T) {
	emb := newFakeEmbedder(2, map[string][]float32{
		"good": {1, 1},
		"bad":  {1, 1, 1},
	})
	s := NewVectorStore(emb)
	ctx := context.Background()

	if err := s.Add(ctx, []string{"good"}, []domain.Fragment{frag("good", "world")}); err != nil {
		t.Fatal(err)
	}

	err := s.Add(ctx, []string{"good", "bad"}, []domain.Fragment{frag("good", "world"), frag("bad", "world")})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("store should be unchanged after failed add, len=%d", s.Len())
	}
}

func TestAddEmbedderError(t *testing.T) {
	emb := threePointEmbedder()
	emb.err = errors.New("timeout")
	s := NewVectorStore(emb)

	if err := s.Add(context.Background(), []string{"A"}, []domain.Fragment{frag("A", "world")}); err == nil {
		t.Fatal("expected error")
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}

func TestUnknownCategoryPassesThrough(t *testing.T) {
	emb := threePointEmbedder()
	s := NewVectorStore(emb)
	ctx := context.Background()

	if err := s.Add(ctx, []string{"A"}, []domain.Fragment{frag("A", "sports")}); err != nil {
		t.Fatal(err)
	}
	results, err := s.Search(ctx, "query", 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Fragment.Category != "sports" {
		t.Errorf("expected category to pass through, got %s", results[0].Fragment.Category)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "nested", "embeddings.index")
	metaPath := filepath.Join(dir, "nested", "embeddings_metadata.json")

	emb := newFakeEmbedder(3, map[string][]float32{
		"alpha": {0.1, 0.2, 0.3},
		"beta":  {-1.5, 2.25, 0},
		"gamma": {3, 3, 3},
		"query": {0, 1, 0},
		"other": {2, 2, 2},
	})
	ctx := context.Background()

	s := NewVectorStore(emb)
	fragments := []domain.Fragment{frag("alpha", "industry"), frag("beta", "company"), frag("gamma", "world")}
	if err := s.Add(ctx, []string{"alpha", "beta", "gamma"}, fragments); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(indexPath, metaPath); err != nil {
		t.Fatal(err)
	}

	loaded, err := OpenVectorStore(emb, indexPath, metaPath)
	if err != nil {
		t.Fatal(err)
	}

	got := loaded.Fragments()
	if len(got) != len(fragments) {
		t.Fatalf("expected %d fragments, got %d", len(fragments), len(got))
	}
	for i := range fragments {
		if got[i] != fragments[i] {
			t.Errorf("fragment %d: expected %+v, got %+v", i, fragments[i], got[i])
		}
	}

	for _, q := range []string{"query", "other", "alpha"} {
		before, err := s.Search(ctx, q, 3)
		if err != nil {
			t.Fatal(err)
		}
		after, err := loaded.Search(ctx, q, 3)
		if err != nil {
			t.Fatal(err)
		}
		for i := range before {
			if before[i].Fragment != after[i].Fragment {
				t.Errorf("query %s rank %d differs: %v vs %v", q, i+1, before[i].Fragment, after[i].Fragment)
			}
			if !floatEquals(before[i].Distance, after[i].Distance) {
				t.Errorf("query %s rank %d distance differs: %v vs %v", q, i+1, before[i].Distance, after[i].Distance)
			}
		}
	}
}

func TestSaveEmptyStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "e.index")
	metaPath := filepath.Join(dir, "e.json")

	emb := threePointEmbedder()
	if err := NewVectorStore(emb).Save(indexPath, metaPath); err != nil {
		t.Fatal(err)
	}
	loaded, err := OpenVectorStore(emb, indexPath, metaPath)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 0 {
		t.Errorf("expected empty store, got %d", loaded.Len())
	}
	data, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("expected empty JSON array, got %q", data)
	}
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()
	emb := threePointEmbedder()

	writeStore := func(t *testing.T, dir string) (string, string) {
		indexPath := filepath.Join(dir, "embeddings.index")
		metaPath := filepath.Join(dir, "embeddings_metadata.json")
		s := NewVectorStore(emb)
		if err := s.Add(ctx, []string{"A", "B"}, []domain.Fragment{frag("A", "world"), frag("B", "world")}); err != nil {
			t.Fatal(err)
		}
		if err := s.Save(indexPath, metaPath); err != nil {
			t.Fatal(err)
		}
		return indexPath, metaPath
	}

	tests := []struct {
		name    string
		prepare func(t *testing.T, indexPath, metaPath string)
		store   func() *VectorStore
		want    error
	}{
		{
			name:    "missing index",
			prepare: func(t *testing.T, indexPath, _ string) { os.Remove(indexPath) },
			want:    domain.ErrCorruptStore,
		},
		{
			name:    "missing metadata",
			prepare: func(t *testing.T, _, metaPath string) { os.Remove(metaPath) },
			want:    domain.ErrCorruptStore,
		},
		{
			name: "length mismatch",
			prepare: func(t *testing.T, _, metaPath string) {
				os.WriteFile(metaPath, []byte(`[{"text":"A","category":"world","summary":"s"}]`), 0644)
			},
			want: domain.ErrCorruptStore,
		},
		{
			name: "truncated index",
			prepare: func(t *testing.T, indexPath, _ string) {
				data, _ := os.ReadFile(indexPath)
				os.WriteFile(indexPath, data[:len(data)-3], 0644)
			},
			want: domain.ErrCorruptStore,
		},
		{
			name: "garbage index",
			prepare: func(t *testing.T, indexPath, _ string) {
				os.WriteFile(indexPath, []byte("not an index"), 0644)
			},
			want: domain.ErrCorruptStore,
		},
		{
			name: "zero dimension with vectors",
			prepare: func(t *testing.T, indexPath, _ string) {
				data := []byte("PVIX")
				for _, v := range []uint32{1, 0, 0, 300_000_000} {
					data = binary.LittleEndian.AppendUint32(data, v)
				}
				os.WriteFile(indexPath, data, 0644)
			},
			want: domain.ErrCorruptStore,
		},
		{
			name: "metadata not json",
			prepare: func(t *testing.T, _, metaPath string) {
				os.WriteFile(metaPath, []byte("{oops"), 0644)
			},
			want: domain.ErrCorruptStore,
		},
		{
			name:    "dimension mismatch",
			prepare: func(t *testing.T, _, _ string) {},
			store: func() *VectorStore {
				return NewVectorStore(newFakeEmbedder(4, nil))
			},
			want: domain.ErrDimensionMismatch,
		},
		{
			name:    "model mismatch",
			prepare: func(t *testing.T, _, _ string) {},
			store: func() *VectorStore {
				other := threePointEmbedder()
				other.model = "another-model"
				return NewVectorStore(other)
			},
			want: domain.ErrModelMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			indexPath, metaPath := writeStore(t, t.TempDir())
			tt.prepare(t, indexPath, metaPath)

			s := NewVectorStore(emb)
			if tt.store != nil {
				s = tt.store()
			}
			if err := s.Add(ctx, []string{}, []domain.Fragment{}); err != nil {
				t.Fatal(err)
			}

			err := s.Load(indexPath, metaPath)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if s.Len() != 0 {
				t.Errorf("failed load must not modify the store")
			}
		})
	}
}

func TestOpenOrCreate(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "x.index")
	metaPath := filepath.Join(dir, "x.json")
	emb := threePointEmbedder()

	s, existed, err := OpenOrCreateVectorStore(emb, indexPath, metaPath)
	if err != nil {
		t.Fatal(err)
	}
	if existed || s.Len() != 0 {
		t.Errorf("expected fresh empty store")
	}

	// Only one artifact present is corruption, not a fresh start
	if err := os.WriteFile(metaPath, []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := OpenOrCreateVectorStore(emb, indexPath, metaPath); !errors.Is(err, domain.ErrCorruptStore) {
		t.Errorf("expected ErrCorruptStore, got %v", err)
	}
}

func TestReadInfo(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "x.index")
	metaPath := filepath.Join(dir, "x.json")
	emb := threePointEmbedder()

	s := NewVectorStore(emb)
	if err := s.Add(context.Background(), []string{"A", "B", "C"}, []domain.Fragment{frag("A", "world"), frag("B", "industry"), frag("C", "world")}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(indexPath, metaPath); err != nil {
		t.Fatal(err)
	}

	info, err := ReadInfo(indexPath, metaPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Model != "fake-embed" || info.Dimension != 2 || info.Count != 3 {
		t.Errorf("unexpected info %+v", info)
	}
	if info.Categories["world"] != 2 || info.Categories["industry"] != 1 {
		t.Errorf("unexpected categories %v", info.Categories)
	}
}
