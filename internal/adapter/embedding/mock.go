package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// MockEmbedder produces deterministic bag-of-words vectors by hashing tokens
// into buckets. Texts sharing words land close together, which is enough for
// offline runs and tests.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dimension)
		tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		for _, tok := range tokens {
			h := fnv.New32a()
			h.Write([]byte(tok))
			vec[int(h.Sum32()%uint32(e.dimension))]++
		}

		// Unit length so distances stay in [0, 4]
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			inv := float32(1 / math.Sqrt(norm))
			for j := range vec {
				vec[j] *= inv
			}
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
