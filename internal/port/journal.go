package port

import (
	"context"

	"perspective/internal/domain"
)

// Journal records answered queries.
type Journal interface {
	Record(ctx context.Context, entry domain.JournalEntry) error
	Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error)
}
