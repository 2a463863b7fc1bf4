package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// Embedder computes vector embeddings for text. Failures are wrapped
// with ErrEmbeddingFailed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Summarizer condenses a promoted turn buffer into the durable summary.
// Lossy output is acceptable.
type Summarizer interface {
	Summarize(ctx context.Context, payload *model.PromotionPayload) (string, error)
}

// Classifier assigns a routing class to a query. Implementations must be
// total: on any internal failure they return a usable class, never an error.
type Classifier interface {
	Classify(ctx context.Context, text string) types.QueryClass
}
