package port

import (
	"context"

	"perspective/internal/domain"
)

// Mirror copies the aligned store contents to a remote vector database.
type Mirror interface {
	Sync(ctx context.Context, vectors [][]float32, fragments []domain.Fragment) error
	Close() error
}
