package port

import (
	"context"

	"perspective/internal/domain"
)

// Labeler assigns a category and a one-sentence summary to raw text.
// Label never fails; unlabeled text falls back to a default fragment.
type Labeler interface {
	Label(ctx context.Context, text string) domain.Fragment
}
