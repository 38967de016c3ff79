package port

import "perspective/internal/domain"

// KeywordIndex is a full-text index over stored fragments, keyed by store position.
type KeywordIndex interface {
	Rebuild(fragments []domain.Fragment) error
	Search(query string, k int) ([]domain.KeywordHit, error)
	Close() error
}
