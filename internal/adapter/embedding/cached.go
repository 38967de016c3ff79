package embedding

import (
	"context"
	"time"

	"perspective/internal/adapter/cache"
	"perspective/internal/port"
)

// CachedEmbedder memoizes single-text embeddings, which is what query
// embedding uses. Batches go straight to the wrapped embedder.
type CachedEmbedder struct {
	inner port.Embedder
	cache *cache.Cache[[]float32]
}

// NewCachedEmbedder wraps inner with an LRU+TTL cache of the given size.
func NewCachedEmbedder(inner port.Embedder, size int, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: cache.New[[]float32](size, ttl),
	}
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) != 1 {
		return e.inner.Embed(ctx, texts)
	}

	key := e.inner.ModelName() + "\x00" + texts[0]
	if vec, ok := e.cache.Get(key); ok {
		return [][]float32{vec}, nil
	}

	vectors, err := e.inner.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 1 {
		e.cache.Put(key, vectors[0])
	}
	return vectors, nil
}

func (e *CachedEmbedder) Dimension() int {
	return e.inner.Dimension()
}

func (e *CachedEmbedder) ModelName() string {
	return e.inner.ModelName()
}
