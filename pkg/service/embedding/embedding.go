package embedding

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// Client turns text into fixed-dimension vectors through a gollem LLM
// client. Failures surface as ErrEmbeddingFailed so callers can choose
// between retrying and degrading to lexical-only retrieval.
type Client struct {
	llmClient gollem.LLMClient
}

var _ interfaces.Embedder = &Client{}

func New(llmClient gollem.LLMClient) (*Client, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	return &Client{
		llmClient: llmClient,
	}, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.llmClient.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(interfaces.ErrEmbeddingFailed, "failed to generate embedding",
			goerr.V("cause", err.Error()))
	}
	if len(embeddings) == 0 {
		return nil, goerr.Wrap(interfaces.ErrEmbeddingFailed, "no embedding returned")
	}

	result := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		result[i] = float32(v)
	}

	return result, nil
}

func (c *Client) Dimension() int {
	return model.EmbeddingDimension
}
