package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"perspective/internal/adapter/fs"
	"perspective/internal/adapter/store"
	"perspective/internal/domain"
)

type countingEmbedder struct {
	*fakeEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return c.fakeEmbedder.Embed(ctx, texts)
}

func newIngestEmbedder() *countingEmbedder {
	return &countingEmbedder{fakeEmbedder: &fakeEmbedder{dim: 2, vectors: map[string][]float32{
		"one": {1, 0}, "two": {2, 0}, "three": {3, 0}, "four": {4, 0}, "raw text": {0, 1},
	}}}
}

func TestIngestFragments(t *testing.T) {
	dir := t.TempDir()
	emb := newIngestEmbedder()
	kw := &fakeKeyword{}
	mirror := &fakeMirror{}
	var progress []int

	u := NewIngestUseCase(emb, IngestOptions{
		IndexPath:    filepath.Join(dir, "e.index"),
		MetadataPath: filepath.Join(dir, "e.json"),
		BatchSize:    2,
		Keyword:      kw,
		Mirror:       mirror,
		Progress: func(stage string, done, total int) {
			if stage == "embed" {
				progress = append(progress, done)
			}
		},
	})

	frags := []domain.Fragment{
		{Text: "one", Category: "industry"},
		{Text: "  ", Category: "world"},
		{Text: "two", Category: "company"},
		{Text: "three", Category: "world"},
	}
	res, err := u.IngestFragments(context.Background(), frags)
	if err != nil {
		t.Fatal(err)
	}
	if res.Existing || res.Added != 3 || res.Skipped != 1 || res.Total != 3 {
		t.Errorf("unexpected result %+v", res)
	}
	if emb.calls != 2 {
		t.Errorf("expected one embed call per batch, got %d", emb.calls)
	}
	if len(progress) != 2 || progress[1] != 3 {
		t.Errorf("unexpected progress %v", progress)
	}
	if !res.Keyword || len(kw.rebuilt) != 3 {
		t.Errorf("keyword index not rebuilt: %+v", kw.rebuilt)
	}
	if !res.Mirrored || len(mirror.vectors) != 3 {
		t.Errorf("mirror not synced")
	}

	// a second run extends the persisted store
	res, err = u.IngestFragments(context.Background(), []domain.Fragment{{Text: "four", Category: "world"}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Existing || res.Total != 4 {
		t.Errorf("expected store to be extended, got %+v", res)
	}

	s, err := store.OpenVectorStore(emb, filepath.Join(dir, "e.index"), filepath.Join(dir, "e.json"))
	if err != nil {
		t.Fatal(err)
	}
	got := s.Fragments()
	if len(got) != 4 || got[0].Text != "one" || got[3].Text != "four" {
		t.Errorf("unexpected persisted fragments %+v", got)
	}
}

func TestIngestFailureLeavesStoreUnchanged(t *testing.T) {
	dir := t.TempDir()
	idx, meta := filepath.Join(dir, "e.index"), filepath.Join(dir, "e.json")
	emb := newIngestEmbedder()
	u := NewIngestUseCase(emb, IngestOptions{IndexPath: idx, MetadataPath: meta, BatchSize: 1})

	if _, err := u.IngestFragments(context.Background(), []domain.Fragment{{Text: "one"}}); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(meta)

	// "missing" has no vector, so the second batch fails
	_, err := u.IngestFragments(context.Background(), []domain.Fragment{{Text: "two"}, {Text: "missing"}})
	if err == nil {
		t.Fatal("expected error")
	}
	after, _ := os.ReadFile(meta)
	if string(before) != string(after) {
		t.Error("persisted metadata changed after a failed ingest")
	}
}

func TestIngestNonFatalSideEffects(t *testing.T) {
	dir := t.TempDir()
	u := NewIngestUseCase(newIngestEmbedder(), IngestOptions{
		IndexPath:    filepath.Join(dir, "e.index"),
		MetadataPath: filepath.Join(dir, "e.json"),
		Keyword:      &fakeKeyword{err: errors.New("disk full")},
		Mirror:       &fakeMirror{err: errors.New("unreachable")},
	})

	res, err := u.IngestFragments(context.Background(), []domain.Fragment{{Text: "one"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Keyword || res.Mirrored || len(res.Errors) != 2 {
		t.Errorf("expected two recorded errors, got %+v", res)
	}
}

func TestIngestFiles(t *testing.T) {
	dir := t.TempDir()
	labeled := filepath.Join(dir, "labeled.jsonl")
	raw := filepath.Join(dir, "notes.txt")
	os.WriteFile(labeled, []byte(`{"text":"one","summary":"s1","category":"industry"}
not json
{"text":"two","summary":"s2"}
`), 0644)
	os.WriteFile(raw, []byte("raw text\n"), 0644)

	files, err := fs.NewWalker(nil, nil).Expand([]string{dir})
	if err != nil {
		t.Fatal(err)
	}

	u := NewIngestUseCase(newIngestEmbedder(), IngestOptions{
		IndexPath:    filepath.Join(dir, "out", "e.index"),
		MetadataPath: filepath.Join(dir, "out", "e.json"),
		Labeler:      fakeLabeler{},
	})
	res, err := u.IngestFiles(context.Background(), files)
	if err != nil {
		t.Fatal(err)
	}
	if res.Files != 2 || res.Labeled != 1 || res.Added != 3 || res.Skipped != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestIngestTextsRequiresLabeler(t *testing.T) {
	dir := t.TempDir()
	u := NewIngestUseCase(newIngestEmbedder(), IngestOptions{
		IndexPath:    filepath.Join(dir, "e.index"),
		MetadataPath: filepath.Join(dir, "e.json"),
	})
	if _, err := u.IngestTexts(context.Background(), []string{"raw text"}); err == nil {
		t.Error("expected error without a labeler")
	}
}
