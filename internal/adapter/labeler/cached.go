package labeler

import (
	"context"

	"perspective/internal/adapter/store"
	"perspective/internal/domain"
	"perspective/internal/logging"
	"perspective/internal/port"
)

// CachedLabeler serves repeated texts from a LabelCache. Fallback labels are
// not cached so a later run can retry them.
type CachedLabeler struct {
	inner port.Labeler
	cache *store.LabelCache
}

func NewCachedLabeler(inner port.Labeler, cache *store.LabelCache) *CachedLabeler {
	return &CachedLabeler{inner: inner, cache: cache}
}

func (l *CachedLabeler) Label(ctx context.Context, text string) domain.Fragment {
	if frag, ok, err := l.cache.Get(text); err == nil && ok {
		return frag
	} else if err != nil {
		logging.Warnf("label cache read failed: %v", err)
	}

	frag := l.inner.Label(ctx, text)
	if frag.Summary == FallbackSummary {
		return frag
	}
	if err := l.cache.Put(frag); err != nil {
		logging.Warnf("label cache write failed: %v", err)
	}
	return frag
}
