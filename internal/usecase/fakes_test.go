package usecase

import (
	"context"
	"fmt"
	"sync"

	"perspective/internal/domain"
	"perspective/internal/port"
)

// fakeEmbedder returns fixed vectors for known texts.
type fakeEmbedder struct {
	dim     int
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int    { return f.dim }
func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

type fakeLLM struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  int
	system string
	user   string
	opts   port.GenerateOptions
}

func (f *fakeLLM) GenerateWithSystem(_ context.Context, system, user string, opts port.GenerateOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.system, f.user, f.opts = system, user, opts
	return f.reply, f.err
}

func (f *fakeLLM) ModelName() string { return "fake-chat" }

type fakeProfiles struct {
	state *domain.ProfileState
	err   error
}

func (f *fakeProfiles) Get(context.Context, string) (*domain.ProfileState, error) { return f.state, f.err }
func (f *fakeProfiles) Put(context.Context, *domain.ProfileState) error          { return nil }
func (f *fakeProfiles) Latest(context.Context) (*domain.ProfileState, error)     { return f.state, f.err }

type fakeJournal struct {
	entries []domain.JournalEntry
}

func (f *fakeJournal) Record(_ context.Context, e domain.JournalEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeJournal) Recent(context.Context, int) ([]domain.JournalEntry, error) {
	return f.entries, nil
}

type fakeLabeler struct{}

func (fakeLabeler) Label(_ context.Context, text string) domain.Fragment {
	return domain.Fragment{Text: text, Category: domain.CategoryWorld, Summary: "about " + text}
}

type fakeKeyword struct {
	rebuilds int
	rebuilt  []domain.Fragment
	hits     []domain.KeywordHit
	err      error
}

func (f *fakeKeyword) Rebuild(frags []domain.Fragment) error {
	f.rebuilds++
	f.rebuilt = frags
	return f.err
}

func (f *fakeKeyword) Search(string, int) ([]domain.KeywordHit, error) { return f.hits, f.err }
func (f *fakeKeyword) Close() error                                     { return nil }
func (f *fakeKeyword) Count() (uint64, error)                           { return uint64(len(f.rebuilt)), nil }

type fakeMirror struct {
	vectors [][]float32
	err     error
}

func (f *fakeMirror) Sync(_ context.Context, vectors [][]float32, _ []domain.Fragment) error {
	f.vectors = vectors
	return f.err
}

func (f *fakeMirror) Close() error { return nil }
