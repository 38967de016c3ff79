package port

import (
	"context"

	"perspective/internal/domain"
)

// ProfileStore persists per-person profile state.
type ProfileStore interface {
	Get(ctx context.Context, name string) (*domain.ProfileState, error)
	Put(ctx context.Context, state *domain.ProfileState) error
	// Latest returns the most recently updated profile, or ErrProfileNotFound.
	Latest(ctx context.Context) (*domain.ProfileState, error)
}
