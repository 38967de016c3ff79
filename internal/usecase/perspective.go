package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"perspective/internal/adapter/store"
	"perspective/internal/domain"
	"perspective/internal/logging"
	"perspective/internal/port"
)

// NoResultsAnswer is returned when retrieval finds nothing.
const NoResultsAnswer = "No relevant information found in the knowledge base to answer your question."

const degradedAnswerFormat = `I encountered an error while generating a perspective. However, I found %d relevant sources that might help answer your question: "%s"`

// EngineOptions holds perspective defaults. Zero values use the defaults below.
type EngineOptions struct {
	TopK            int
	MaxContextChars int
	Temperature     float64
	MaxTokens       int
	Persona         string
}

func (o EngineOptions) withDefaults() EngineOptions {
	if o.TopK <= 0 {
		o.TopK = 5
	}
	if o.MaxContextChars <= 0 {
		o.MaxContextChars = 2000
	}
	if o.Temperature <= 0 {
		o.Temperature = 0.7
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 1000
	}
	return o
}

// AnswerRequest is one perspective query. Zero TopK and MaxContextChars use
// the engine defaults; an empty Persona falls back to the configured one and
// then to the latest profile.
type AnswerRequest struct {
	Query           string
	TopK            int
	MaxContextChars int
	Persona         string
}

// PerspectiveEngine retrieves fragments for a query and synthesizes an answer.
type PerspectiveEngine struct {
	embedder port.Embedder
	llm      port.LLM
	opts     EngineOptions

	profiles port.ProfileStore
	journal  port.Journal

	mu           sync.RWMutex
	store        *store.VectorStore
	indexPath    string
	metadataPath string
}

// NewPerspectiveEngine creates an engine with no store loaded.
func NewPerspectiveEngine(embedder port.Embedder, llm port.LLM, opts EngineOptions) *PerspectiveEngine {
	return &PerspectiveEngine{
		embedder: embedder,
		llm:      llm,
		opts:     opts.withDefaults(),
	}
}

// WithProfiles enables persona lookup from profile state.
func (e *PerspectiveEngine) WithProfiles(p port.ProfileStore) *PerspectiveEngine {
	e.profiles = p
	return e
}

// WithJournal records every answer.
func (e *PerspectiveEngine) WithJournal(j port.Journal) *PerspectiveEngine {
	e.journal = j
	return e
}

// LoadVectorStore loads the persisted store and makes it current. The previous
// store stays in place when loading fails.
func (e *PerspectiveEngine) LoadVectorStore(indexPath, metadataPath string) error {
	s, existed, err := store.OpenOrCreateVectorStore(e.embedder, indexPath, metadataPath)
	if err != nil {
		return err
	}
	if !existed {
		return fmt.Errorf("%s, %s: %w", indexPath, metadataPath, domain.ErrStoreNotFound)
	}

	e.mu.Lock()
	e.store = s
	e.indexPath, e.metadataPath = indexPath, metadataPath
	e.mu.Unlock()

	logging.Infof("loaded vector store with %d fragments (model %s, dim %d)", s.Len(), s.Model(), s.Dimension())
	return nil
}

// Reload re-reads the store from the paths of the last successful load.
func (e *PerspectiveEngine) Reload() error {
	e.mu.RLock()
	indexPath, metadataPath := e.indexPath, e.metadataPath
	e.mu.RUnlock()
	if indexPath == "" {
		return domain.ErrStoreNotLoaded
	}
	return e.LoadVectorStore(indexPath, metadataPath)
}

// SetStore makes s the current store.
func (e *PerspectiveEngine) SetStore(s *store.VectorStore) {
	e.mu.Lock()
	e.store = s
	e.mu.Unlock()
}

// Store returns the current store or ErrStoreNotLoaded.
func (e *PerspectiveEngine) Store() (*store.VectorStore, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.store == nil {
		return nil, domain.ErrStoreNotLoaded
	}
	return e.store, nil
}

// Options returns the effective engine defaults.
func (e *PerspectiveEngine) Options() EngineOptions {
	return e.opts
}

// Answer retrieves the top fragments for req.Query and synthesizes a perspective.
// Retrieval errors are returned; synthesis errors produce a degraded perspective.
func (e *PerspectiveEngine) Answer(ctx context.Context, req AnswerRequest) (*domain.Perspective, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.ErrInvalidQuery
	}

	s, err := e.Store()
	if err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = e.opts.TopK
	}
	maxChars := req.MaxContextChars
	if maxChars <= 0 {
		maxChars = e.opts.MaxContextChars
	}

	results, err := s.Search(ctx, req.Query, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	if len(results) == 0 {
		p := &domain.Perspective{
			Query:   req.Query,
			Answer:  NoResultsAnswer,
			Sources: []domain.Source{},
		}
		e.record(ctx, p)
		return p, nil
	}

	if logging.Enabled(logging.LevelDebug) {
		for _, r := range results {
			logging.Debugf("source %d: category=%s distance=%.4f", r.Rank, r.Fragment.Category, r.Distance)
		}
	}

	packed := PackContext(results, maxChars)
	logging.Debugf("context: %d chars from %d sources (truncated=%v)", len(packed.Text), packed.Included, packed.Truncated)

	p := e.synthesize(ctx, req, results, packed)
	e.record(ctx, p)
	return p, nil
}

func (e *PerspectiveEngine) synthesize(ctx context.Context, req AnswerRequest, results []domain.RetrievalResult, packed PackedContext) *domain.Perspective {
	userPrompt, err := BuildPerspectivePrompt(packed.Text, req.Query)
	if err != nil {
		return degraded(req.Query, results, err)
	}

	answer, err := e.llm.GenerateWithSystem(ctx, BuildSystemPrompt(e.resolvePersona(ctx, req.Persona)), userPrompt, port.GenerateOptions{
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil {
		logging.Warnf("perspective generation failed: %v", err)
		return degraded(req.Query, results, err)
	}

	answer = strings.TrimSpace(answer)
	logging.Debugf("generated perspective (%d chars)", len(answer))
	return &domain.Perspective{
		Query:   req.Query,
		Answer:  answer,
		Sources: rankedSources(results),
	}
}

func (e *PerspectiveEngine) resolvePersona(ctx context.Context, persona string) string {
	if strings.TrimSpace(persona) != "" {
		return persona
	}
	if e.opts.Persona != "" {
		return e.opts.Persona
	}
	if e.profiles == nil {
		return ""
	}

	state, err := e.profiles.Latest(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			logging.Warnf("could not read profile state: %v", err)
		}
		return ""
	}
	if state.TextPrompt != "" {
		logging.Debugf("using persona from profile %s", state.Name)
	}
	return state.TextPrompt
}

func (e *PerspectiveEngine) record(ctx context.Context, p *domain.Perspective) {
	if e.journal == nil {
		return
	}
	err := e.journal.Record(ctx, domain.JournalEntry{
		Query:       p.Query,
		Answer:      p.Answer,
		SourceCount: len(p.Sources),
		Degraded:    p.Degraded(),
		Error:       p.Error,
	})
	if err != nil {
		logging.Warnf("failed to record answer: %v", err)
	}
}

func rankedSources(results []domain.RetrievalResult) []domain.Source {
	sources := make([]domain.Source, len(results))
	for i, r := range results {
		score := domain.RelevanceScore(r.Distance)
		sources[i] = domain.Source{
			Rank:           r.Rank,
			Category:       r.Fragment.Category,
			Summary:        r.Fragment.Summary,
			RelevanceScore: &score,
		}
	}
	return sources
}

func degraded(query string, results []domain.RetrievalResult, cause error) *domain.Perspective {
	sources := make([]domain.Source, len(results))
	for i, r := range results {
		sources[i] = domain.Source{
			Category: r.Fragment.Category,
			Summary:  r.Fragment.Summary,
		}
	}
	return &domain.Perspective{
		Query:   query,
		Answer:  fmt.Sprintf(degradedAnswerFormat, len(results), query),
		Sources: sources,
		Error:   cause.Error(),
	}
}
