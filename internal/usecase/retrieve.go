package usecase

import (
	"context"
	"fmt"
	"strings"

	"perspective/internal/adapter/store"
	"perspective/internal/domain"
	"perspective/internal/logging"
	"perspective/internal/port"
)

// Search modes.
const (
	ModeSemantic = "semantic"
	ModeKeyword  = "keyword"
)

// StoreProvider exposes the currently loaded vector store.
type StoreProvider interface {
	Store() (*store.VectorStore, error)
}

// SearchHit is a ranked fragment from either search mode. Distance is set for
// semantic hits, Score for keyword hits.
type SearchHit struct {
	Rank     int             `json:"rank"`
	Position int             `json:"position,omitempty"`
	Fragment domain.Fragment `json:"fragment"`
	Distance *float64        `json:"distance,omitempty"`
	Score    *float64        `json:"score,omitempty"`
}

// RetrieveUseCase handles fragment lookup without synthesis.
type RetrieveUseCase struct {
	stores  StoreProvider
	keyword port.KeywordIndex
}

// NewRetrieveUseCase creates a retrieve use case. keyword may be nil.
func NewRetrieveUseCase(stores StoreProvider, keyword port.KeywordIndex) *RetrieveUseCase {
	return &RetrieveUseCase{
		stores:  stores,
		keyword: keyword,
	}
}

// Retrieve searches for fragments matching query. An empty mode is semantic.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, topK int, mode string) ([]SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrInvalidQuery
	}
	if topK <= 0 {
		topK = 5
	}

	switch mode {
	case ModeSemantic, "":
		return u.semantic(ctx, query, topK)
	case ModeKeyword:
		return u.keywordSearch(query, topK)
	default:
		return nil, fmt.Errorf("unknown search mode %q (use %s or %s)", mode, ModeSemantic, ModeKeyword)
	}
}

func (u *RetrieveUseCase) semantic(ctx context.Context, query string, topK int) ([]SearchHit, error) {
	s, err := u.stores.Store()
	if err != nil {
		return nil, err
	}
	results, err := s.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, len(results))
	for i, r := range results {
		d := r.Distance
		hits[i] = SearchHit{Rank: r.Rank, Fragment: r.Fragment, Distance: &d}
	}
	return hits, nil
}

func (u *RetrieveUseCase) keywordSearch(query string, topK int) ([]SearchHit, error) {
	if u.keyword == nil {
		return nil, fmt.Errorf("keyword index is not available")
	}
	results, err := u.keyword.Search(query, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, len(results))
	for i, r := range results {
		score := r.Score
		hits[i] = SearchHit{Rank: i + 1, Position: r.Position, Fragment: r.Fragment, Score: &score}
	}
	return hits, nil
}

// CountedIndex is a keyword index that can report its size.
type CountedIndex interface {
	port.KeywordIndex
	Count() (uint64, error)
}

// SyncKeywordIndex rebuilds idx from the store when their sizes differ.
func SyncKeywordIndex(s *store.VectorStore, idx CountedIndex) error {
	n, err := idx.Count()
	if err == nil && int(n) == s.Len() {
		return nil
	}
	logging.Infof("rebuilding keyword index for %d fragments", s.Len())
	return idx.Rebuild(s.Fragments())
}
