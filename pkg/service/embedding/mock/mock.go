package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// Embedder generates deterministic embeddings from a hash of the text.
// Identical texts always map to identical vectors, which makes semantic
// round trips testable without a real model.
type Embedder struct {
	dimension int
}

var _ interfaces.Embedder = &Embedder{}

func New() *Embedder {
	return &Embedder{
		dimension: model.EmbeddingDimension,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float32, e.dimension)
	for i := 0; i < e.dimension; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(embedding), nil
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	scale := float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / scale
	}
	return normalized
}
